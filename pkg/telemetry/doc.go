// Package telemetry provides observability instrumentation for Entweave.
//
// The package integrates structured logging (zerolog), distributed tracing
// (OpenTelemetry), Prometheus metrics and a buffered event publisher behind
// one configuration. The event publisher doubles as the runtime's
// event-emission hook: lifecycle operations on bound definitions publish
// typed events (instance.created, migration.applied, ...) that in-process
// subscribers can observe.
//
// Every component degrades to a no-op when disabled in configuration, so
// library code can instrument unconditionally.
package telemetry
