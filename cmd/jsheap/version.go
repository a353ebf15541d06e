package main

import (
	"fmt"
	"runtime"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

// Version is overridden at link time with -ldflags "-X main.Version=...".
var Version = "0.1.0-dev"

var (
	versionToolColor = color.New(color.FgCyan, color.Bold)
	versionNumColor  = color.New(color.FgGreen, color.Bold)
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show the jsheap version",
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "%s %s (%s %s/%s)\n",
			versionToolColor.Sprint("jsheap"),
			versionNumColor.Sprint(Version),
			runtime.Version(), runtime.GOOS, runtime.GOARCH)
		return nil
	},
}
