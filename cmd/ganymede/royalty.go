package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"mercator-hq/ganymede/pkg/royalty"
)

var royaltyFlags struct {
	file   string
	price  uint64
	baseBp uint16
}

var royaltyCmd = &cobra.Command{
	Use:   "royalty",
	Short: "Evaluate a royalty schedule",
	Long: `Evaluate a dynamic royalty schedule at a given price.

The schedule file is the dynamic_royalty section of a policy document:

  version: 1
  kind: 0
  price_linear:
    start_price: 1000000
    end_price: 2000000
    start_multiplier_bp: 10000
    end_multiplier_bp: 5000

Examples:
  # Fee basis points at a price
  ganymede royalty --file schedule.yaml --price 1500000

  # Compose with a metadata seller fee
  ganymede royalty --file schedule.yaml --price 1500000 --base-bp 500`,
	RunE: runRoyalty,
}

func init() {
	rootCmd.AddCommand(royaltyCmd)

	royaltyCmd.Flags().StringVarP(&royaltyFlags.file, "file", "f", "", "royalty schedule file (required)")
	royaltyCmd.Flags().Uint64Var(&royaltyFlags.price, "price", 0, "sale price in native base units")
	royaltyCmd.Flags().Uint16Var(&royaltyFlags.baseBp, "base-bp", 0, "metadata seller fee to compose with, in basis points")
	royaltyCmd.MarkFlagRequired("file")
}

func runRoyalty(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(royaltyFlags.file)
	if err != nil {
		return fmt.Errorf("failed to read schedule: %w", err)
	}

	var schedule royalty.Schedule
	if err := yaml.Unmarshal(data, &schedule); err != nil {
		return fmt.Errorf("failed to parse schedule: %w", err)
	}
	if err := schedule.Validate(); err != nil {
		return err
	}

	feeBp := schedule.ComputeFeeBp(royaltyFlags.price)
	fmt.Printf("price: %d\n", royaltyFlags.price)
	fmt.Printf("fee: %d bp\n", feeBp)

	if royaltyFlags.baseBp > 0 {
		fmt.Printf("composed with base %d bp: %d bp\n",
			royaltyFlags.baseBp, schedule.ApplyTo(royaltyFlags.price, royaltyFlags.baseBp))
	}
	return nil
}
