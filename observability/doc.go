// Package observability provides OpenTelemetry-based metrics for the
// fieldwork lifecycle. The MetricsExtension implements lifecycle hooks to
// record system-wide counters for intake, transitions, claims and claim
// conflicts, task decisions, document generation and reconciliation,
// payouts, milestones and notification deliveries.
//
// For per-action tracing and metrics, see the middleware package:
// middleware.Tracing() and middleware.Metrics().
package observability
