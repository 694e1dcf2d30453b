// Package query provides a lazily-evaluated traversal layer over a graph of
// instances, independent of any single definition's storage binding.
//
// A QueryContext is an explicitly constructed value with an explicit
// lifecycle; there is no global default. Its identity is resolved once at
// construction through a deterministic chain: explicit override, then
// request-derived host, then the ENTWEAVE_CONTEXT environment variable, then
// static configuration, then "local".
//
// Collections are lazy: chaining Where, Filter, Map and FlatMap builds a
// pipeline that only runs when a terminal operation (All, Find, First,
// Count) forces it. Filters are tolerant of reference-valued fields and
// compare references by id.
package query
