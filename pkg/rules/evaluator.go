package rules

// Evaluate evaluates a rule tree against a fact set. It is pure, has no
// side effects, and always terminates: tree depth and breadth are bounded
// by the payload ceiling enforced at validation time.
//
// A nil tree always matches; deactivation is modeled by an always-failing
// rule, not by absence.
func Evaluate(n *Node, facts *Facts) bool {
	if n == nil {
		return true
	}

	switch n.Kind {
	case NodeLeaf:
		actual, present := facts.Resolve(n.Field)
		return evaluateLeaf(n.Operator, actual, present, n.Value)

	case NodeAnd:
		// Empty AND is vacuously true.
		for _, child := range n.Children {
			if !Evaluate(child, facts) {
				return false
			}
		}
		return true

	case NodeOr:
		// Empty OR is vacuously false.
		for _, child := range n.Children {
			if Evaluate(child, facts) {
				return true
			}
		}
		return false

	default:
		// Unknown kinds fail closed.
		return false
	}
}
