// Package runtime binds entity definitions to storage and executes their
// behavior.
//
// A Context moves through the states Unbound, Migrating and Bound. Bind
// compares the version recorded in storage with the definition's version and
// applies the missing migrations strictly in ascending order, persisting the
// applied version after each success. CRUD operations are valid only while
// Bound; lifecycle handlers fire synchronously before the triggering call
// returns.
//
// Compute functions execute in-process, either as native Go functions or as
// Starlark source blobs. Generative functions never execute here; Call builds
// a DeferredCall for the external generation collaborator instead.
package runtime
