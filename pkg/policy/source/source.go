// Package source loads policy documents from YAML files and keeps a
// running engine in sync with them. It is the operational distribution
// path: operators edit policy files, the watcher picks up the change,
// and the registry applies it through the normal init/update surface
// with all authority checks intact.
package source

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"mercator-hq/ganymede/pkg/royalty"
	"mercator-hq/ganymede/pkg/rules"
	"mercator-hq/ganymede/pkg/store"
)

// Document is one policy as written in a YAML file.
type Document struct {
	// Seed derives the policy identifier; it doubles as the document's
	// stable name across edits.
	Seed string `yaml:"seed"`

	Authority store.Address `yaml:"authority"`
	Collector store.Address `yaml:"collector"`

	RuleTree       *rules.Node       `yaml:"rule_tree,omitempty"`
	DynamicRoyalty *royalty.Schedule `yaml:"dynamic_royalty,omitempty"`
}

// Validate checks the document before it is applied.
func (d *Document) Validate() error {
	if d.Seed == "" {
		return fmt.Errorf("document has no seed")
	}
	if d.Authority == store.Zero {
		return fmt.Errorf("document %q has no authority", d.Seed)
	}
	if d.Collector == store.Zero {
		return fmt.Errorf("document %q has no collector", d.Seed)
	}
	if err := rules.Validate(d.RuleTree); err != nil {
		return fmt.Errorf("document %q: %w", d.Seed, err)
	}
	if d.DynamicRoyalty != nil {
		if err := d.DynamicRoyalty.Validate(); err != nil {
			return fmt.Errorf("document %q: %w", d.Seed, err)
		}
	}
	return nil
}

// Parse decodes and validates a single document.
func Parse(data []byte) (*Document, error) {
	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse policy document: %w", err)
	}
	if err := doc.Validate(); err != nil {
		return nil, err
	}
	return &doc, nil
}

// FileSource loads policy documents from a directory tree.
type FileSource struct {
	dir        string
	extensions []string
}

// NewFileSource creates a source over dir. Only .yaml and .yml files are
// loaded; hidden files are skipped.
func NewFileSource(dir string) *FileSource {
	return &FileSource{dir: dir, extensions: []string{".yaml", ".yml"}}
}

// Dir returns the watched directory.
func (s *FileSource) Dir() string { return s.dir }

// Load reads every policy document under the directory. A single
// malformed file fails the whole load so a partial policy set is never
// applied.
func (s *FileSource) Load() ([]*Document, error) {
	var docs []*Document
	seen := make(map[string]string)

	err := filepath.Walk(s.dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		base := filepath.Base(path)
		if strings.HasPrefix(base, ".") && path != s.dir {
			if info.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if info.IsDir() || !s.hasValidExtension(path) {
			return nil
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read %q: %w", path, err)
		}
		doc, err := Parse(data)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		if prev, dup := seen[doc.Seed]; dup {
			return fmt.Errorf("duplicate seed %q in %s and %s", doc.Seed, prev, path)
		}
		seen[doc.Seed] = path

		docs = append(docs, doc)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return docs, nil
}

func (s *FileSource) hasValidExtension(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, valid := range s.extensions {
		if ext == valid {
			return true
		}
	}
	return false
}
