package telemetry

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics provides Prometheus metrics for Entweave.
type Metrics struct {
	config MetricsConfig

	// Definition metrics
	definitionsParsed *prometheus.CounterVec
	fieldsClassified  *prometheus.CounterVec
	parserDegraded    *prometheus.CounterVec

	// Instance metrics
	instanceOps       *prometheus.CounterVec
	instanceOpLatency *prometheus.HistogramVec

	// Migration metrics
	migrationsApplied *prometheus.CounterVec
	migrationDuration *prometheus.HistogramVec

	// Handler metrics
	handlerInvocations *prometheus.CounterVec
	handlerDuration    *prometheus.HistogramVec

	// Function metrics
	functionCalls  *prometheus.CounterVec
	functionErrors *prometheus.CounterVec

	// System metrics
	boundDefinitions prometheus.Gauge

	registry *prometheus.Registry
}

// NewMetrics creates a new metrics collector with the given configuration.
func NewMetrics(cfg MetricsConfig) (*Metrics, error) {
	if !cfg.Enabled {
		// Return a no-op metrics instance
		return &Metrics{config: cfg}, nil
	}

	namespace := cfg.Namespace
	buckets := cfg.DefaultHistogramBuckets
	if len(buckets) == 0 {
		buckets = prometheus.DefBuckets
	}

	registry := prometheus.NewRegistry()

	m := &Metrics{
		config:   cfg,
		registry: registry,

		definitionsParsed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "definitions_parsed_total",
				Help:      "Total number of entity definitions compiled",
			},
			[]string{"status"},
		),
		fieldsClassified: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "fields_classified_total",
				Help:      "Total number of fields classified, by source kind",
			},
			[]string{"source"},
		),
		parserDegraded: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "parser_degradations_total",
				Help:      "Total number of malformed descriptor clauses dropped",
			},
			[]string{"kind"},
		),

		instanceOps: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "instance_operations_total",
				Help:      "Total number of instance lifecycle operations",
			},
			[]string{"type", "operation"},
		),
		instanceOpLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "instance_operation_duration_seconds",
				Help:      "Duration of instance lifecycle operations in seconds",
				Buckets:   buckets,
			},
			[]string{"type", "operation"},
		),

		migrationsApplied: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "migrations_applied_total",
				Help:      "Total number of definition migrations applied",
			},
			[]string{"type", "status"},
		),
		migrationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "migration_duration_seconds",
				Help:      "Duration of migration steps in seconds",
				Buckets:   buckets,
			},
			[]string{"type"},
		),

		handlerInvocations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "handler_invocations_total",
				Help:      "Total number of event and schedule handler invocations",
			},
			[]string{"type", "handler", "status"},
		),
		handlerDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "handler_duration_seconds",
				Help:      "Duration of handler invocations in seconds",
				Buckets:   buckets,
			},
			[]string{"type", "handler"},
		),

		functionCalls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "function_calls_total",
				Help:      "Total number of definition function calls",
			},
			[]string{"type", "function", "kind"},
		),
		functionErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "function_errors_total",
				Help:      "Total number of definition function call errors",
			},
			[]string{"type", "function"},
		),

		boundDefinitions: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "bound_definitions",
				Help:      "Current number of definitions bound to storage",
			},
		),
	}

	registry.MustRegister(
		m.definitionsParsed,
		m.fieldsClassified,
		m.parserDegraded,
		m.instanceOps,
		m.instanceOpLatency,
		m.migrationsApplied,
		m.migrationDuration,
		m.handlerInvocations,
		m.handlerDuration,
		m.functionCalls,
		m.functionErrors,
		m.boundDefinitions,
	)

	return m, nil
}

// Definition Metrics

// RecordDefinitionParsed increments the counter for compiled definitions.
func (m *Metrics) RecordDefinitionParsed(status string) {
	if m.definitionsParsed == nil {
		return
	}
	m.definitionsParsed.WithLabelValues(status).Inc()
}

// RecordFieldClassified records a field classification by source kind.
func (m *Metrics) RecordFieldClassified(source string) {
	if m.fieldsClassified == nil {
		return
	}
	m.fieldsClassified.WithLabelValues(source).Inc()
}

// RecordParserDegradation records malformed clauses the parser dropped.
func (m *Metrics) RecordParserDegradation(kind string, count int) {
	if m.parserDegraded == nil || count <= 0 {
		return
	}
	m.parserDegraded.WithLabelValues(kind).Add(float64(count))
}

// Instance Metrics

// RecordInstanceOperation records an instance lifecycle operation with its
// duration.
func (m *Metrics) RecordInstanceOperation(entityType, operation string, duration time.Duration) {
	if m.instanceOps == nil {
		return
	}
	m.instanceOps.WithLabelValues(entityType, operation).Inc()
	m.instanceOpLatency.WithLabelValues(entityType, operation).Observe(duration.Seconds())
}

// Migration Metrics

// RecordMigrationApplied records a migration step with its status and duration.
func (m *Metrics) RecordMigrationApplied(entityType, status string, duration time.Duration) {
	if m.migrationsApplied == nil {
		return
	}
	m.migrationsApplied.WithLabelValues(entityType, status).Inc()
	m.migrationDuration.WithLabelValues(entityType).Observe(duration.Seconds())
}

// Handler Metrics

// RecordHandlerInvocation records a handler invocation with its duration.
func (m *Metrics) RecordHandlerInvocation(entityType, handler, status string, duration time.Duration) {
	if m.handlerInvocations == nil {
		return
	}
	m.handlerInvocations.WithLabelValues(entityType, handler, status).Inc()
	m.handlerDuration.WithLabelValues(entityType, handler).Observe(duration.Seconds())
}

// Function Metrics

// RecordFunctionCall records a definition function call.
func (m *Metrics) RecordFunctionCall(entityType, function, kind string) {
	if m.functionCalls == nil {
		return
	}
	m.functionCalls.WithLabelValues(entityType, function, kind).Inc()
}

// RecordFunctionError records a definition function call error.
func (m *Metrics) RecordFunctionError(entityType, function string) {
	if m.functionErrors == nil {
		return
	}
	m.functionErrors.WithLabelValues(entityType, function).Inc()
}

// System Metrics

// SetBoundDefinitions sets the current number of bound definitions.
func (m *Metrics) SetBoundDefinitions(count float64) {
	if m.boundDefinitions == nil {
		return
	}
	m.boundDefinitions.Set(count)
}

// Timer provides a convenient way to time operations.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// Duration returns the elapsed time since the timer was created.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}

// ObserveDuration is a helper to time an operation and record it.
func (t *Timer) ObserveDuration(observer prometheus.Observer) {
	observer.Observe(t.Duration().Seconds())
}

// Handler returns an HTTP handler for the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m.registry == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// StartMetricsServer starts an HTTP server to expose metrics.
func (m *Metrics) StartMetricsServer() error {
	if !m.config.Enabled {
		return nil
	}

	mux := http.NewServeMux()
	mux.Handle(m.config.Path, m.Handler())

	server := &http.Server{
		Addr:              m.config.ListenAddress,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			// Log error but don't fail the application
			fmt.Printf("metrics server error: %v\n", err)
		}
	}()

	return nil
}
