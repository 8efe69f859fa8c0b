package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "pteroctrl",
	Short: "Management dashboard backend for Pterodactyl game servers",
	Long: `pteroctrl keeps a registry of Pterodactyl panel servers, polls their resource
usage and stops or restarts servers that sit idle according to per-category rules.`,
	SilenceUsage: true,
	// Running the binary without a subcommand starts the server.
	RunE: runServe,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (YAML); environment variables override it")
	rootCmd.AddCommand(serveCmd, automationCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
