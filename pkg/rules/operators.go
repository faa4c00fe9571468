package rules

import "strings"

// evaluateLeaf applies a leaf's operator to the resolved fact value.
// present is false when the field resolved to the absent sentinel.
//
// Every type mismatch evaluates to false, for negative operators too: a
// rule author who writes a malformed leaf gets a rule that rejects, never
// one that silently admits. The single absence exception is
// does_not_contain_any, which is vacuously true when there is no fact
// value that could contain a disallowed entry.
func evaluateLeaf(op Operator, actual interface{}, present bool, expected interface{}) bool {
	if !present {
		return op == OpNotContainsAny
	}

	switch op {
	case OpEquals:
		return scalarEqual(actual, expected)

	case OpNotEquals:
		// Comparable and unequal. Mismatched types fail closed rather
		// than counting as "not equal".
		if !sameKind(actual, expected) {
			return false
		}
		return !scalarEqual(actual, expected)

	case OpIsSubsetOf:
		return isSubsetOf(actual, expected)

	case OpContainsSubstring:
		actualStr, ok1 := asString(actual)
		expectedStr, ok2 := asString(expected)
		if !ok1 || !ok2 {
			return false
		}
		return strings.Contains(actualStr, expectedStr)

	case OpNotContainsAny:
		return notContainsAny(actual, expected)

	default:
		return false
	}
}

// scalarEqual compares two scalar values, with numeric cross-type
// tolerance (YAML decodes ints, JSON decodes float64).
func scalarEqual(actual, expected interface{}) bool {
	if actualNum, ok1 := asNumber(actual); ok1 {
		expectedNum, ok2 := asNumber(expected)
		return ok2 && actualNum == expectedNum
	}

	if actualStr, ok1 := asString(actual); ok1 {
		expectedStr, ok2 := asString(expected)
		return ok2 && actualStr == expectedStr
	}

	if actualBool, ok1 := actual.(bool); ok1 {
		expectedBool, ok2 := expected.(bool)
		return ok2 && actualBool == expectedBool
	}

	return false
}

// sameKind reports whether two values are of compatible scalar kinds.
func sameKind(actual, expected interface{}) bool {
	if _, ok := asNumber(actual); ok {
		_, ok = asNumber(expected)
		return ok
	}
	if _, ok := asString(actual); ok {
		_, ok = asString(expected)
		return ok
	}
	if _, ok := actual.(bool); ok {
		_, ok = expected.(bool)
		return ok
	}
	return false
}

// isSubsetOf checks that every element of the fact value appears in the
// rule's value list. The rule lists the allowed superset; the fact must be
// fully contained in it. A scalar fact is treated as a one-element list.
func isSubsetOf(actual, expected interface{}) bool {
	allowed, ok := asStringList(expected)
	if !ok {
		return false
	}

	members, ok := asStringList(actual)
	if !ok {
		single, okScalar := asString(actual)
		if !okScalar {
			return false
		}
		members = []string{single}
	}

	allowedSet := make(map[string]bool, len(allowed))
	for _, a := range allowed {
		allowedSet[a] = true
	}

	for _, m := range members {
		if !allowedSet[m] {
			return false
		}
	}
	return true
}

// notContainsAny checks that the fact contains none of the rule's listed
// values: substring containment for string facts, membership for list
// facts.
func notContainsAny(actual, expected interface{}) bool {
	banned, ok := asStringList(expected)
	if !ok {
		single, okScalar := asString(expected)
		if !okScalar {
			return false
		}
		banned = []string{single}
	}

	if members, ok := asStringList(actual); ok {
		memberSet := make(map[string]bool, len(members))
		for _, m := range members {
			memberSet[m] = true
		}
		for _, b := range banned {
			if memberSet[b] {
				return false
			}
		}
		return true
	}

	if actualStr, ok := asString(actual); ok {
		for _, b := range banned {
			if strings.Contains(actualStr, b) {
				return false
			}
		}
		return true
	}

	return false
}

// asString narrows a value to a string. Unlike fmt.Sprint-style coercion
// this is strict: only genuine strings qualify, so type confusion cannot
// produce accidental matches.
func asString(v interface{}) (string, bool) {
	s, ok := v.(string)
	return s, ok
}

// asNumber converts numeric values to float64 for comparison.
func asNumber(v interface{}) (float64, bool) {
	switch val := v.(type) {
	case float64:
		return val, true
	case float32:
		return float64(val), true
	case int:
		return float64(val), true
	case int8:
		return float64(val), true
	case int16:
		return float64(val), true
	case int32:
		return float64(val), true
	case int64:
		return float64(val), true
	case uint:
		return float64(val), true
	case uint8:
		return float64(val), true
	case uint16:
		return float64(val), true
	case uint32:
		return float64(val), true
	case uint64:
		return float64(val), true
	default:
		return 0, false
	}
}

// asStringList narrows a value to a list of strings. YAML/JSON decoding
// produces []interface{}, typed code produces []string; both qualify as
// long as every element is a string.
func asStringList(v interface{}) ([]string, bool) {
	switch val := v.(type) {
	case []string:
		return val, true
	case []interface{}:
		out := make([]string, 0, len(val))
		for _, elem := range val {
			s, ok := elem.(string)
			if !ok {
				return nil, false
			}
			out = append(out, s)
		}
		return out, true
	default:
		return nil, false
	}
}
