// Package descriptor implements the field-descriptor compiler for Entweave
// entity definitions.
//
// # Overview
//
// A definition author describes each field with a compact, human-readable
// value: a plain string, a prompt with {placeholders}, a relationship
// expression, a nested object, or a function. The descriptor package
// classifies one raw field value into a typed FieldDescriptor with exactly
// one source kind:
//
//   - Input: plain data supplied by a caller
//   - Generate: synthesized from a prompt template by an external generator
//   - Compute: derived by a function (in-process Go or opaque source blob)
//   - Sync: fetched from a declared external enrichment path ($api.path)
//   - Aggregate: folded over related instances (Sum(Ref("orders.total")))
//   - Fuzzy: grounded against a reference type by similarity (~Company)
//   - Link: a cascade to another entity type (-> <- <-> ~> <~ <~>)
//
// Classification is total and fail-soft: a value that matches no richer rule
// degrades to an Input descriptor rather than failing the definition.
//
// # Cascade grammar
//
// Link fields use a small relationship grammar:
//
//	[description] OPERATOR [:route] Target[.predicate][filter, filter, ...]
//
// The description preceding the operator, when non-empty, doubles as the
// generation prompt and makes the cascade generative. Filters are
// field/comparator/value triples with automatic boolean and number coercion;
// clauses that do not match the filter shape are dropped and counted on the
// resulting CascadeDescriptor.
package descriptor
