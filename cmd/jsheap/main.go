// Command jsheap exercises and inspects the jsheap object model.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"

	"github.com/chazu/jsheap/manifest"
)

var rootCmd = &cobra.Command{
	Use:               "jsheap",
	Short:             "Object model stress and snapshot tooling",
	Long:              `jsheap drives the runtime object model under randomized workloads and inspects heap snapshots.`,
	SilenceUsage:      true,
	PersistentPreRunE: loadConfig,
}

var (
	configDir string
	verbosity int

	// cfg is the effective configuration, set before any command runs.
	cfg *manifest.Manifest
)

func main() {
	rootCmd.Version = Version

	rootCmd.AddCommand(stressCmd)
	rootCmd.AddCommand(inspectCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)

	rootCmd.PersistentFlags().StringVar(&configDir, "config", "", "directory containing "+manifest.FileName+" (default: search upward from the working directory)")
	rootCmd.PersistentFlags().CountVarP(&verbosity, "verbose", "v", "increase log verbosity (repeatable)")

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig resolves the manifest and configures logging from it. An
// explicit -v overrides the manifest's verbosity.
func loadConfig(cmd *cobra.Command, _ []string) error {
	m, err := findManifest(configDir)
	if err != nil {
		return err
	}
	v := m.Log.Verbosity
	if cmd.Flags().Changed("verbose") {
		v = verbosity
	}
	commonlog.Configure(v, m.LogFile())
	cfg = m
	return nil
}

func findManifest(dir string) (*manifest.Manifest, error) {
	if dir != "" {
		return manifest.Load(dir)
	}
	wd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("cannot determine working directory: %w", err)
	}
	m, err := manifest.FindAndLoad(wd)
	if err != nil {
		return nil, err
	}
	if m == nil {
		m = manifest.Default()
	}
	return m, nil
}
