package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "ganymede",
	Short: "Ganymede - policy enforcement engine for wrapped tokens",
	Long: `Ganymede is a policy enforcement and balance accounting engine for
wrapped tokens whose transfer, minting, burning, and delegation are
mediated by a per-collection policy.

It provides:
  - Declarative boolean rule trees evaluated against transfer facts
  - Allow/deny-list rulesets bound per mint
  - Dynamic price-dependent royalty computation and collection
  - A per-mint delegate lock state machine
  - A durable audit log of every guard decision`,
	Version: Version,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "config.yaml", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
