package main

import (
	"os"
	"path/filepath"
	"testing"
)

const validDocument = `seed: test-policy
authority: alice
collector: treasury
rule_tree:
  kind: leaf
  field: mint
  operator: equals
  value: mint-1
`

const invalidDocument = `seed: test-policy
collector: treasury
`

func writeFixture(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write fixture: %v", err)
	}
	return path
}

func TestValidateValidDocument(t *testing.T) {
	validateFlags.file = writeFixture(t, "policy.yaml", validDocument)
	validateFlags.dir = ""
	validateFlags.rule = ""
	validateFlags.format = "text"

	if err := runValidate(nil, nil); err != nil {
		t.Errorf("runValidate() with valid document returned error: %v", err)
	}
}

func TestValidateInvalidDocument(t *testing.T) {
	validateFlags.file = writeFixture(t, "policy.yaml", invalidDocument)
	validateFlags.dir = ""
	validateFlags.rule = ""
	validateFlags.format = "text"

	if err := runValidate(nil, nil); err == nil {
		t.Error("runValidate() with invalid document should return error")
	}
}

func TestValidateNonexistentFile(t *testing.T) {
	validateFlags.file = filepath.Join(t.TempDir(), "missing.yaml")
	validateFlags.dir = ""
	validateFlags.rule = ""
	validateFlags.format = "text"

	if err := runValidate(nil, nil); err == nil {
		t.Error("runValidate() with nonexistent file should return error")
	}
}

func TestValidateNoInput(t *testing.T) {
	validateFlags.file = ""
	validateFlags.dir = ""
	validateFlags.rule = ""
	validateFlags.format = "text"

	if err := runValidate(nil, nil); err == nil {
		t.Error("runValidate() without input should return error")
	}
}

func TestValidateRuleTree(t *testing.T) {
	rule := `kind: and
children:
  - kind: leaf
    field: mint
    operator: equals
    value: mint-1
  - kind: leaf
    field: last_memo.data
    operator: contains_substring
    value: sale
`
	validateFlags.file = ""
	validateFlags.dir = ""
	validateFlags.rule = writeFixture(t, "rule.yaml", rule)
	validateFlags.format = "text"

	if err := runValidate(nil, nil); err != nil {
		t.Errorf("runValidate() with valid rule tree returned error: %v", err)
	}
}

func TestValidateDirectory(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "a.yaml"), []byte(validDocument), 0o644); err != nil {
		t.Fatalf("failed to write fixture: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "b.yaml"), []byte(invalidDocument), 0o644); err != nil {
		t.Fatalf("failed to write fixture: %v", err)
	}

	validateFlags.file = ""
	validateFlags.dir = dir
	validateFlags.rule = ""
	validateFlags.format = "text"

	if err := runValidate(nil, nil); err == nil {
		t.Error("runValidate() over directory with a bad document should return error")
	}
}
