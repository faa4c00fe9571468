package rules

import (
	"fmt"
)

// MaxRulePayload is the hard per-operation payload ceiling for a
// serialized rule tree, in bytes of canonical JSON. The host enforces
// this at submission time; callers must validate before submitting.
// Empirically this fits around a dozen AND-ed scalar leaves.
const MaxRulePayload = 1000

// ValidationError reports why a rule tree failed validation.
type ValidationError struct {
	Path    string
	Message string
}

// Error returns the error message.
func (e *ValidationError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("invalid rule tree: %s", e.Message)
	}
	return fmt.Sprintf("invalid rule tree at %s: %s", e.Path, e.Message)
}

// Validate checks a rule tree for structural well-formedness and the
// serialized payload budget. A nil tree is valid (always matches).
func Validate(n *Node) error {
	if n == nil {
		return nil
	}

	if err := validateNode(n, "$"); err != nil {
		return err
	}

	encoded, err := Marshal(n)
	if err != nil {
		return &ValidationError{Message: err.Error()}
	}
	if len(encoded) > MaxRulePayload {
		return &ValidationError{
			Message: fmt.Sprintf("serialized tree is %d bytes, exceeds the %d byte payload ceiling", len(encoded), MaxRulePayload),
		}
	}

	return nil
}

func validateNode(n *Node, path string) error {
	if n == nil {
		return &ValidationError{Path: path, Message: "node cannot be nil"}
	}

	switch n.Kind {
	case NodeLeaf:
		if n.Field == "" {
			return &ValidationError{Path: path, Message: "leaf requires a field"}
		}
		switch n.Operator {
		case OpEquals, OpNotEquals, OpIsSubsetOf, OpContainsSubstring, OpNotContainsAny:
		default:
			return &ValidationError{Path: path, Message: fmt.Sprintf("unknown operator %q", n.Operator)}
		}
		if len(n.Children) != 0 {
			return &ValidationError{Path: path, Message: "leaf cannot have children"}
		}
		return nil

	case NodeAnd, NodeOr:
		if n.Field != "" || n.Operator != "" || n.Value != nil {
			return &ValidationError{Path: path, Message: "logical node cannot carry field/operator/value"}
		}
		for i, child := range n.Children {
			childPath := fmt.Sprintf("%s.%s[%d]", path, n.Kind, i)
			if err := validateNode(child, childPath); err != nil {
				return err
			}
		}
		return nil

	default:
		return &ValidationError{Path: path, Message: fmt.Sprintf("unknown node kind %q", n.Kind)}
	}
}
