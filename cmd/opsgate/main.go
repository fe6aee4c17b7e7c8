// Package main is the entry point for the opsgate CLI.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

// Set by goreleaser ldflags.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "opsgate",
		Short:         "Permission-gated operation backplane for agent loops",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringP("config", "c", "", "Path to configuration file")
	root.AddCommand(versionCmd(), serveCmd(), mcpCmd(), execCmd(), operationsCmd(), configCmd(), auditCmd())
	return root
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Printf("opsgate %s (commit: %s, built: %s)\n", version, commit, date)
		},
	}
}

// resolveConfigPath searches for a config file in standard locations.
// Search order: --config flag → $XDG_CONFIG_HOME/opsgate/opsgate.yaml →
// ~/.config/opsgate/opsgate.yaml → ./opsgate.yaml
func resolveConfigPath(cmd *cobra.Command) (string, error) {
	if flagPath, _ := cmd.Flags().GetString("config"); flagPath != "" {
		return flagPath, nil
	}

	var candidates []string
	if xdg, ok := os.LookupEnv("XDG_CONFIG_HOME"); ok {
		candidates = append(candidates, filepath.Join(xdg, "opsgate", "opsgate.yaml"))
	} else if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, ".config", "opsgate", "opsgate.yaml"))
	}
	candidates = append(candidates, "opsgate.yaml")

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}
	return "", fmt.Errorf("no configuration file found (searched: %v)", candidates)
}
