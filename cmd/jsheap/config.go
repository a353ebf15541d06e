package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the effective configuration as TOML",
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		if cfg.Dir != "" {
			fmt.Fprintf(out, "# loaded from %s\n", cfg.Dir)
		} else {
			fmt.Fprintln(out, "# defaults (no jsheap.toml found)")
		}
		return cfg.Write(out)
	},
}
