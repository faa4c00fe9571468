package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"mercator-hq/ganymede/pkg/audit"
)

var auditFlags struct {
	db     string
	mint   string
	result string
	since  string
	limit  int
	format string
}

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Query the guard decision log",
	Long: `Query recorded guard decisions from a SQLite audit database.

Examples:
  # Last 20 decisions
  ganymede audit --db data/audit.db

  # Rejections for one mint in the past day
  ganymede audit --db data/audit.db --mint mint-1 --result rejected --since 24h

  # Machine-readable output
  ganymede audit --db data/audit.db --format json`,
	RunE: runAudit,
}

func init() {
	rootCmd.AddCommand(auditCmd)

	auditCmd.Flags().StringVar(&auditFlags.db, "db", "data/audit.db", "audit database path")
	auditCmd.Flags().StringVar(&auditFlags.mint, "mint", "", "filter by mint address")
	auditCmd.Flags().StringVar(&auditFlags.result, "result", "", "filter by result (allowed, rejected)")
	auditCmd.Flags().StringVar(&auditFlags.since, "since", "", "only decisions newer than this duration (e.g. 24h)")
	auditCmd.Flags().IntVar(&auditFlags.limit, "limit", 20, "maximum number of decisions")
	auditCmd.Flags().StringVar(&auditFlags.format, "format", "text", "output format (text, json)")
}

func runAudit(cmd *cobra.Command, args []string) error {
	if _, err := os.Stat(auditFlags.db); err != nil {
		return fmt.Errorf("audit database not found: %s", auditFlags.db)
	}

	switch auditFlags.result {
	case "", audit.ResultAllowed, audit.ResultRejected:
	default:
		return fmt.Errorf("invalid result filter %q", auditFlags.result)
	}

	q := audit.Query{
		Mint:   auditFlags.mint,
		Result: auditFlags.result,
		Limit:  auditFlags.limit,
	}
	if auditFlags.since != "" {
		d, err := time.ParseDuration(auditFlags.since)
		if err != nil {
			return fmt.Errorf("invalid --since duration: %w", err)
		}
		q.Since = time.Now().Add(-d)
	}

	cfg := audit.DefaultSQLiteConfig()
	cfg.Path = auditFlags.db
	storage, err := audit.NewSQLiteStorage(cfg, slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError})))
	if err != nil {
		return fmt.Errorf("failed to open audit database: %w", err)
	}
	defer storage.Close()

	decisions, err := storage.List(cmd.Context(), q)
	if err != nil {
		return fmt.Errorf("failed to list decisions: %w", err)
	}

	if auditFlags.format == "json" {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(decisions)
	}

	if len(decisions) == 0 {
		fmt.Println("no decisions match")
		return nil
	}
	for _, d := range decisions {
		fmt.Printf("%s  %-8s %-8s %-8s mint=%s", d.RecordedAt.Format(time.RFC3339), d.Action, d.Variant, d.Result, d.Mint)
		if d.From != "" {
			fmt.Printf(" from=%s to=%s", d.From, d.To)
		}
		if d.Price > 0 {
			fmt.Printf(" price=%d", d.Price)
		}
		if d.FeeAmount > 0 {
			fmt.Printf(" fee=%d (%d bp)", d.FeeAmount, d.FeeBp)
		}
		if d.Reason != "" {
			fmt.Printf(" reason=%q", d.Reason)
		}
		fmt.Println()
	}
	return nil
}
