package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"mercator-hq/ganymede/pkg/policy/source"
	"mercator-hq/ganymede/pkg/rules"
)

var validateFlags struct {
	file   string
	dir    string
	rule   string
	format string
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate policy and rule documents",
	Long: `Validate policy documents and standalone rule trees.

Policy documents are checked for structure (seed, authority, collector),
rule tree well-formedness, the serialized payload ceiling, and royalty
schedule bounds.

Examples:
  # Validate a directory of policy documents
  ganymede validate --dir policies/

  # Validate a single policy document
  ganymede validate --file policy.yaml

  # Validate a standalone rule tree
  ganymede validate --rule rule.yaml

  # JSON output for CI
  ganymede validate --dir policies/ --format json`,
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)

	validateCmd.Flags().StringVarP(&validateFlags.file, "file", "f", "", "policy document to validate")
	validateCmd.Flags().StringVarP(&validateFlags.dir, "dir", "d", "", "directory of policy documents")
	validateCmd.Flags().StringVarP(&validateFlags.rule, "rule", "r", "", "standalone rule tree to validate")
	validateCmd.Flags().StringVar(&validateFlags.format, "format", "text", "output format: text, json")
}

type validateResult struct {
	Path  string `json:"path"`
	Valid bool   `json:"valid"`
	Error string `json:"error,omitempty"`
}

func runValidate(cmd *cobra.Command, args []string) error {
	if validateFlags.file == "" && validateFlags.dir == "" && validateFlags.rule == "" {
		return fmt.Errorf("one of --file, --dir, or --rule must be specified")
	}

	var results []validateResult

	if validateFlags.rule != "" {
		results = append(results, validateRuleFile(validateFlags.rule))
	}
	if validateFlags.file != "" {
		results = append(results, validateDocFile(validateFlags.file))
	}
	if validateFlags.dir != "" {
		files, err := listDocuments(validateFlags.dir)
		if err != nil {
			return err
		}
		for _, f := range files {
			results = append(results, validateDocFile(f))
		}
	}

	return report(results)
}

func validateDocFile(path string) validateResult {
	data, err := os.ReadFile(path)
	if err != nil {
		return validateResult{Path: path, Error: err.Error()}
	}
	if _, err := source.Parse(data); err != nil {
		return validateResult{Path: path, Error: err.Error()}
	}
	return validateResult{Path: path, Valid: true}
}

func validateRuleFile(path string) validateResult {
	data, err := os.ReadFile(path)
	if err != nil {
		return validateResult{Path: path, Error: err.Error()}
	}
	tree, err := rules.ParseYAML(data)
	if err != nil {
		return validateResult{Path: path, Error: err.Error()}
	}
	if err := rules.Validate(tree); err != nil {
		return validateResult{Path: path, Error: err.Error()}
	}
	return validateResult{Path: path, Valid: true}
}

func listDocuments(dir string) ([]string, error) {
	var files []string
	for _, pattern := range []string{"*.yaml", "*.yml"} {
		matches, err := filepath.Glob(filepath.Join(dir, pattern))
		if err != nil {
			return nil, fmt.Errorf("failed to list documents: %w", err)
		}
		files = append(files, matches...)
	}
	return files, nil
}

func report(results []validateResult) error {
	failed := 0
	for _, r := range results {
		if !r.Valid {
			failed++
		}
	}

	if validateFlags.format == "json" {
		out, err := json.MarshalIndent(results, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(out))
	} else {
		for _, r := range results {
			if r.Valid {
				fmt.Printf("ok   %s\n", r.Path)
			} else {
				fmt.Printf("FAIL %s: %s\n", r.Path, r.Error)
			}
		}
		fmt.Printf("%d document(s), %d failed\n", len(results), failed)
	}

	if failed > 0 {
		return fmt.Errorf("%d document(s) failed validation", failed)
	}
	return nil
}
