package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"invoicehandler/internal/config"
	"invoicehandler/internal/rename"
	"invoicehandler/internal/watch"

	"github.com/spf13/cobra"
)

// newWatchCmd creates the watch command
func newWatchCmd(root *rootOptions) *cobra.Command {
	var (
		dryRun       bool
		scanExisting bool
	)

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Watch the configured directory and rename files as they arrive",
		Long: `Watch the configured directory and rename new files using the rules in the
config file. The config file is reloaded when it changes; an invalid edit is
reported and the previous rules stay active. Stop with Ctrl+C.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, path, err := root.loadConfig()
			if err != nil {
				return err
			}

			var overrides []config.Override
			if dryRun {
				overrides = append(overrides, config.DryRun())
			}
			if scanExisting {
				overrides = append(overrides, config.ScanExisting())
			}
			store := config.NewStore(cfg, overrides...)

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			fmt.Fprintln(cmd.ErrOrStderr(), infoText(fmt.Sprintf("Watching %s (config %s). Press Ctrl+C to stop.", cfg.WatchDirectory, path)))
			if store.Load().DryRun {
				fmt.Fprintln(cmd.ErrOrStderr(), warningText("Running in dry-run mode, no files will be renamed"))
			}

			var opts []watch.DaemonOption
			journal, err := openJournal(ctx, cfg)
			if err != nil {
				return err
			}
			if journal != nil {
				defer journal.Close()
				opts = append(opts, watch.WithJournal(journal))
			}

			daemon := watch.NewDaemon(store, path, rename.NewOS(), opts...)
			if err := daemon.Run(ctx); err != nil {
				return fmt.Errorf("cannot watch %s: %w", cfg.WatchDirectory, err)
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&dryRun, "dry-run", "n", false, "log planned renames without touching files")
	cmd.Flags().BoolVar(&scanExisting, "scan-existing", false, "process files already in the directory at start")

	return cmd
}
