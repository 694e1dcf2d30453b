// Package codegen serializes entity definitions and generates deployable
// module source from them.
//
// Serialize emits the JSON form of a definition: literal values for Input,
// Generate, Aggregate and Fuzzy fields, literal code text for Compute bodies
// and Link filters. Parse reconstructs a best-effort Definition from that
// form; code text is preserved opaquely and is executable only through a
// generated module, never reactivated in-process. The asymmetry is
// intentional.
//
// GenerateModule emits a self-contained Starlark module embedding compute
// bodies and link filters as literal code, with compute_field and
// filter_links entry points.
package codegen
