package rules

import (
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"
)

// NodeKind represents the type of a rule tree node.
type NodeKind string

const (
	NodeLeaf NodeKind = "leaf" // field op value
	NodeAnd  NodeKind = "and"  // AND of children
	NodeOr   NodeKind = "or"   // OR of children
)

// Operator represents a comparison operator in a rule leaf.
type Operator string

const (
	OpEquals            Operator = "equals"
	OpNotEquals         Operator = "not_equals"
	OpIsSubsetOf        Operator = "is_subset_of"
	OpContainsSubstring Operator = "contains_substring"
	OpNotContainsAny    Operator = "does_not_contain_any"
)

// Node is one node of a rule tree. Leaves carry Field/Operator/Value;
// And/Or carry Children. The zero value is not a valid node.
type Node struct {
	Kind     NodeKind    `yaml:"kind" json:"kind"`
	Field    string      `yaml:"field,omitempty" json:"field,omitempty"`
	Operator Operator    `yaml:"operator,omitempty" json:"operator,omitempty"`
	Value    interface{} `yaml:"value,omitempty" json:"value,omitempty"`
	Children []*Node     `yaml:"children,omitempty" json:"children,omitempty"`
}

// IsLeaf returns true if this is a leaf comparison node.
func (n *Node) IsLeaf() bool {
	return n.Kind == NodeLeaf
}

// IsLogical returns true if this is an And or Or node.
func (n *Node) IsLogical() bool {
	return n.Kind == NodeAnd || n.Kind == NodeOr
}

// And builds an AND node over children.
func And(children ...*Node) *Node {
	return &Node{Kind: NodeAnd, Children: children}
}

// Or builds an OR node over children.
func Or(children ...*Node) *Node {
	return &Node{Kind: NodeOr, Children: children}
}

// Leaf builds a leaf comparison node.
func Leaf(field string, op Operator, value interface{}) *Node {
	return &Node{Kind: NodeLeaf, Field: field, Operator: op, Value: value}
}

// Marshal encodes the tree to its canonical JSON form. This is the
// encoding the payload budget is measured against.
func Marshal(n *Node) ([]byte, error) {
	if n == nil {
		return nil, fmt.Errorf("rule tree cannot be nil")
	}
	return json.Marshal(n)
}

// Unmarshal decodes a tree from its canonical JSON form.
func Unmarshal(data []byte) (*Node, error) {
	var n Node
	if err := json.Unmarshal(data, &n); err != nil {
		return nil, fmt.Errorf("failed to decode rule tree: %w", err)
	}
	return &n, nil
}

// ParseYAML decodes a tree from a YAML document, the authoring format
// used by rule files and the CLI.
func ParseYAML(data []byte) (*Node, error) {
	var n Node
	if err := yaml.Unmarshal(data, &n); err != nil {
		return nil, fmt.Errorf("failed to parse rule document: %w", err)
	}
	return &n, nil
}
