package main

import (
	"context"
	"fmt"
	"os"

	"invoicehandler/internal/config"
	"invoicehandler/internal/errors"
	"invoicehandler/internal/history"
	"invoicehandler/internal/log"

	"github.com/spf13/cobra"
)

type rootOptions struct {
	cfgFile   string
	debug     bool
	logFormat string
	logFile   string
}

// NewRootCmd creates the root command. Without a subcommand it watches.
func NewRootCmd() *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:   "invoicehandler",
		Short: "Rename files in a watched directory using regex rules",
		Long: `invoicehandler watches one directory and renames files that match
ordered regex -> template rules. Files still being written are retried until
the writer lets go, and the config file is reloaded whenever it changes.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.setupLogging()
		},
	}

	rootCmd.PersistentFlags().StringVar(&opts.cfgFile, "config", "", fmt.Sprintf("config file (default is $%s or %s)", config.EnvConfigPath, config.DefaultPath()))
	rootCmd.PersistentFlags().BoolVar(&opts.debug, "debug", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVar(&opts.logFormat, "log-format", "text", "log format: text or json")
	rootCmd.PersistentFlags().StringVar(&opts.logFile, "log-file", "", "also append logs to this file")

	watchCmd := newWatchCmd(opts)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(newRunCmd(opts))
	rootCmd.AddCommand(newCheckCmd(opts))
	rootCmd.AddCommand(newTestCmd(opts))
	rootCmd.AddCommand(newInitCmd(opts))
	rootCmd.AddCommand(newHistoryCmd(opts))

	// Bare invocation behaves like "watch".
	rootCmd.Flags().AddFlagSet(watchCmd.Flags())
	rootCmd.RunE = watchCmd.RunE

	return rootCmd
}

func (o *rootOptions) setupLogging() error {
	log.SetDebug(o.debug)

	logOpts := []log.Option{log.WithOutput(os.Stderr)}
	switch o.logFormat {
	case "text", "":
	case "json":
		logOpts = append(logOpts, log.WithJSON())
	default:
		return fmt.Errorf("unknown log format %q", o.logFormat)
	}
	if o.logFile != "" {
		logOpts = append(logOpts, log.WithFile(o.logFile))
	}
	log.Configure(logOpts...)
	return nil
}

// configPath returns the --config flag or the platform default
func (o *rootOptions) configPath() string {
	if o.cfgFile != "" {
		return o.cfgFile
	}
	return config.DefaultPath()
}

// loadConfig loads the initial generation and logs rejected rules
func (o *rootOptions) loadConfig() (*config.Config, string, error) {
	path := o.configPath()
	cfg, err := config.LoadConfigFile(path)
	if err != nil {
		if errors.IsConfigNotFound(err) {
			return nil, path, fmt.Errorf("%w (run 'invoicehandler init' to create one)", err)
		}
		if errors.IsInvalidRule(err) {
			return nil, path, fmt.Errorf("%w (fix the pattern in %s)", err, path)
		}
		return nil, path, err
	}
	for _, rejected := range cfg.Rejected {
		log.LogWithError(rejected).Warn("Rule rejected")
	}
	return cfg, path, nil
}

// openJournal opens the history database named by cfg. It returns nil when
// history is not configured.
func openJournal(ctx context.Context, cfg *config.Config) (*history.SQLiteJournal, error) {
	if cfg.HistoryDB == "" {
		return nil, nil
	}
	j, err := history.Open(ctx, cfg.HistoryDB)
	if err != nil {
		return nil, fmt.Errorf("cannot open history %s: %w", cfg.HistoryDB, err)
	}
	return j, nil
}
