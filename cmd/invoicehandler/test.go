package main

import (
	"fmt"

	"invoicehandler/internal/rename"

	"github.com/spf13/cobra"
)

// newTestCmd creates the test command
func newTestCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "test <filename>...",
		Short: "Show what the rules would rename the given file names to",
		Long: `Show what the rules would rename the given file names to. Only names are
evaluated; no file is read, locked or renamed.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := root.loadConfig()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, name := range args {
				target, rule, reason := rename.Resolve(name, cfg)
				switch reason {
				case "":
					fmt.Fprintln(out, successText(fmt.Sprintf("%s -> %s", name, target)))
					fmt.Fprintln(out, mutedStyle.Render("    rule: "+rule.Pattern()))
				case rename.ReasonUnchanged:
					fmt.Fprintln(out, infoText(fmt.Sprintf("%s (already named correctly)", name)))
				default:
					fmt.Fprintln(out, mutedStyle.Render(fmt.Sprintf("%s (%s)", name, reason)))
				}
			}
			return nil
		},
	}
}
