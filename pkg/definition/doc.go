// Package definition implements the Entweave entity-definition model and its
// factory.
//
// # Overview
//
// Define compiles a raw declarative map into an immutable Definition: every
// plain key becomes a parsed field descriptor, while reserved keys route to
// the definition's behavioral maps:
//
//   - "type", "id", "version", "context", "extends": definition identity
//   - on<Type>Created / on<Type>Updated / on<Type>Deleted: lifecycle event
//     handlers
//   - every<Interval> ("everyHour"): schedule handlers
//   - five-token cron expressions ("0 0 * * *"): cron handlers
//   - migrate.<version>: versioned migrations applied by the runtime
//
// Definitions are never mutated after Define returns. Extend produces a new
// child Definition by shallow-merging a partial over the parent's raw form
// (single-parent inheritance, no mixins), and Instantiate produces a
// concretely identified Instance of the definition's type. The two are
// distinct operations with distinct result types; intent is never inferred
// from call shape.
package definition
