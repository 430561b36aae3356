// Package main provides the haven binary: the API server and credential tooling.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	version   = "1.0.0"
	buildTime = "dev"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "haven",
		Short: "Haven real-estate API",
		Long: `Haven serves the real-estate listing API and its account authentication.

Configuration is read from HAVEN_* environment variables and the optional
YAML file named by HAVEN_CONFIG_FILE.`,
		SilenceUsage: true,
	}

	cmd.AddCommand(
		serveCmd(),
		hashPasswordCmd(),
		checkPasswordCmd(),
		genSecretCmd(),
		genPasswordCmd(),
		issueTokenCmd(),
		versionCmd(),
	)
	return cmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "haven version %s (build: %s)\n", version, buildTime)
		},
	}
}
