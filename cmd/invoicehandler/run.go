package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"invoicehandler/internal/config"
	"invoicehandler/internal/errors"
	"invoicehandler/internal/history"
	"invoicehandler/internal/log"
	"invoicehandler/internal/rename"

	"github.com/spf13/cobra"
)

// newRunCmd creates the run command
func newRunCmd(root *rootOptions) *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Rename the files currently in the directory once and exit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			loaded, _, err := root.loadConfig()
			if err != nil {
				return err
			}
			var overrides []config.Override
			if dryRun {
				overrides = append(overrides, config.DryRun())
			}
			cfg := config.NewStore(loaded, overrides...).Load()

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			journal, err := openJournal(ctx, cfg)
			if err != nil {
				return err
			}
			if journal != nil {
				defer journal.Close()
			}

			results, err := rename.ProcessDirectory(ctx, rename.NewOS(), cfg)
			printResults(cmd, results)
			if journal != nil {
				for _, r := range results {
					if jerr := history.SaveOutcome(ctx, journal, r, cfg.Generation); jerr != nil {
						log.LogWithFields(log.F("file", r.From)).WithError(jerr).Warn("Failed to record history")
					}
				}
			}
			if err != nil {
				return err
			}

			failed := 0
			for _, r := range results {
				if r.Status == rename.Failed {
					failed++
				}
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d files could not be renamed", failed, len(results))
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&dryRun, "dry-run", "n", false, "show what would be renamed without touching files")

	return cmd
}

func printResults(cmd *cobra.Command, results []rename.Outcome) {
	out := cmd.OutOrStdout()
	counts := map[rename.Status]int{}
	for _, r := range results {
		counts[r.Status]++
		from := filepath.Base(r.From)
		switch r.Status {
		case rename.Renamed:
			fmt.Fprintln(out, successText(fmt.Sprintf("%s -> %s", from, filepath.Base(r.To))))
		case rename.Planned:
			fmt.Fprintln(out, infoText(fmt.Sprintf("%s -> %s (dry run)", from, filepath.Base(r.To))))
		case rename.Failed:
			msg := fmt.Sprintf("%s: %v", from, r.Err)
			if hint := failureHint(r.Err); hint != "" {
				msg += " (" + hint + ")"
			}
			fmt.Fprintln(out, errorText(msg))
		default:
			fmt.Fprintln(out, mutedStyle.Render(fmt.Sprintf("  %s (%s)", from, r.Reason)))
		}
	}
	fmt.Fprintf(out, "\n%d renamed, %d planned, %d skipped, %d failed\n",
		counts[rename.Renamed], counts[rename.Planned], counts[rename.Skipped], counts[rename.Failed])
}

// failureHint suggests what to do about a failed file
func failureHint(err error) string {
	switch {
	case errors.IsRetriesExhausted(err):
		return "still in use, it will be picked up on its next change"
	case errors.IsCollision(err):
		return "too many files with that name, clean up the directory"
	case errors.IsMoveFailed(err):
		return "check directory permissions"
	}
	return ""
}
