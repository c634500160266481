package main

import (
	"fmt"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

// newHistoryCmd creates the history command
func newHistoryCmd(root *rootOptions) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent renames from the history database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if limit <= 0 {
				return fmt.Errorf("--limit must be positive")
			}
			cfg, _, err := root.loadConfig()
			if err != nil {
				return err
			}
			if cfg.HistoryDB == "" {
				return fmt.Errorf("history is not enabled (set history_db in %s)", cfg.Source)
			}

			journal, err := openJournal(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer journal.Close()

			records, err := journal.Recent(cmd.Context(), limit)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(records) == 0 {
				fmt.Fprintln(out, mutedStyle.Render("No history yet"))
				return nil
			}
			for _, r := range records {
				ts := mutedStyle.Render(fmt.Sprintf("%-16s", humanize.Time(r.Timestamp)))
				from := filepath.Base(r.SourcePath)
				var line string
				switch r.Status {
				case "renamed":
					line = successText(fmt.Sprintf("%s -> %s", from, filepath.Base(r.DestinationPath)))
				case "planned":
					line = infoText(fmt.Sprintf("%s -> %s (dry run)", from, filepath.Base(r.DestinationPath)))
				default:
					line = errorText(fmt.Sprintf("%s: %s (%s)", from, r.Reason, r.Error))
				}
				if r.MimeType != "" {
					line += mutedStyle.Render(" " + r.MimeType)
				}
				fmt.Fprintf(out, "%s %s\n", ts, line)
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "l", 20, "number of entries to show")

	return cmd
}
