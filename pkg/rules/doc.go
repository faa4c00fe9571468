// Package rules implements the declarative boolean rule trees that govern
// wrapped-token operations, and their evaluation against the fact set of
// an attempted operation.
//
// A rule tree is a tagged union over {Leaf, And, Or}. A leaf compares one
// fact field against a value with one of a small fixed operator set; And
// and Or combine children with short-circuit evaluation. Evaluation is
// pure and total: it always terminates and always returns a boolean.
//
// # Fail-Closed Evaluation
//
// A leaf whose field is absent from the fact set, or whose value type does
// not match the operator, evaluates to false. The only exception is
// does_not_contain_any, which is vacuously true when the field is absent
// (there is nothing that could contain a disallowed value). This is the
// conservative default: a malformed rule can only reject operations, never
// silently admit them.
//
// # Payload Budget
//
// Serialized trees must fit the host's per-operation payload ceiling.
// Validate enforces both structural well-formedness and the size bound;
// callers must validate before submission.
package rules
