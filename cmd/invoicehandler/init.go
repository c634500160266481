package main

import (
	"fmt"
	"os"
	"path/filepath"

	"invoicehandler/internal/config"

	"github.com/spf13/cobra"
)

// newInitCmd creates the init command
func newInitCmd(root *rootOptions) *cobra.Command {
	var (
		dir   string
		force bool
	)

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a starter config file",
		Long: `Write a starter config file with one example rule. The format follows the
file extension: .yaml/.yml, .toml, anything else is INI.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := root.configPath()
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", path)
			}

			if dir == "" {
				wd, err := os.Getwd()
				if err != nil {
					return fmt.Errorf("error getting current directory: %w", err)
				}
				dir = wd
			}
			abs, err := filepath.Abs(dir)
			if err != nil {
				return err
			}

			if err := config.SaveFile(config.ExampleFile(abs), path); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), successText("Wrote "+path))
			return nil
		},
	}

	cmd.Flags().StringVarP(&dir, "dir", "d", "", "directory to watch (default is the current directory)")
	cmd.Flags().BoolVarP(&force, "force", "f", false, "overwrite an existing config file")

	return cmd
}
