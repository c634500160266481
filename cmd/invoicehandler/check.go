package main

import (
	"fmt"
	"strings"

	"invoicehandler/internal/config"

	"github.com/spf13/cobra"
)

// newCheckCmd creates the check command
func newCheckCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Validate the config file and list the active rules",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, path, err := root.loadConfig()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), describeConfig(cfg, path))
			return nil
		},
	}
}

func describeConfig(cfg *config.Config, path string) string {
	ignore := strings.Join(cfg.IgnorePatterns(), ", ")
	if ignore == "" {
		ignore = mutedStyle.Render("none")
	}

	var b strings.Builder
	b.WriteString(keyValues("Settings", [][2]string{
		{"config", path},
		{"format", config.FormatFor(path).String()},
		{"watch directory", cfg.WatchDirectory},
		{"lock retries", fmt.Sprintf("%d attempts, %s apart", cfg.RetryPolicy.Attempts(), cfg.RetryPolicy.Delay)},
		{"ignore", ignore},
		{"scan existing", fmt.Sprint(cfg.ScanExisting)},
		{"dry run", fmt.Sprint(cfg.DryRun)},
	}))
	b.WriteString("\n\n")

	rows := make([][2]string, 0, cfg.Rules.Len())
	for i, r := range cfg.Rules.Rules() {
		rows = append(rows, [2]string{fmt.Sprintf("%d.", i+1), fmt.Sprintf("%s  ->  %s", r.Pattern(), r.Replacement())})
	}
	if len(rows) == 0 {
		rows = append(rows, [2]string{"", mutedStyle.Render("no rules, nothing will be renamed")})
	}
	b.WriteString(keyValues(fmt.Sprintf("Rules (%d)", cfg.Rules.Len()), rows))

	for _, rejected := range cfg.Rejected {
		b.WriteString("\n")
		b.WriteString(warningText(rejected.Error()))
	}
	if len(cfg.Rejected) == 0 {
		b.WriteString("\n")
		b.WriteString(successText("Configuration is valid"))
	}
	return b.String()
}
