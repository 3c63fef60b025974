package middleware

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	fieldwork "github.com/garagescholars/garage-tech-stack-sub001"
)

// meterName is the instrumentation scope name for action metrics.
const meterName = "github.com/garagescholars/garage-tech-stack-sub001"

// Metrics returns middleware that records per-action metrics using
// the global OTel MeterProvider. If no MeterProvider is configured, noop
// instruments are used and this middleware becomes a pass-through.
//
// Instruments:
//   - fieldwork.action.duration (Float64Histogram): execution time in seconds,
//     with attributes: action, role, status ("ok", "rejected" or "error")
//   - fieldwork.action.executions (Int64Counter): total executions,
//     with the same attributes
func Metrics() Middleware {
	meter := otel.Meter(meterName)
	return MetricsWithMeter(meter)
}

// MetricsWithMeter returns metrics middleware using the provided meter.
// This variant allows injecting a specific MeterProvider for testing.
func MetricsWithMeter(meter metric.Meter) Middleware {
	// OTel instruments are safe for concurrent use. On error, the API
	// returns noop instruments so the middleware degrades gracefully.
	duration, dErr := meter.Float64Histogram(
		"fieldwork.action.duration",
		metric.WithDescription("Duration of lifecycle actions in seconds"),
		metric.WithUnit("s"),
	)
	_ = dErr // noop fallback guaranteed by OTel API contract

	executions, eErr := meter.Int64Counter(
		"fieldwork.action.executions",
		metric.WithDescription("Total number of lifecycle actions"),
		metric.WithUnit("{execution}"),
	)
	_ = eErr // noop fallback guaranteed by OTel API contract

	return func(ctx context.Context, c Call, next Handler) error {
		start := time.Now()
		err := next(ctx)
		elapsed := time.Since(start).Seconds()

		status := "ok"
		switch {
		case err == nil:
		case rejected(err):
			status = "rejected"
		default:
			status = "error"
		}

		attrs := metric.WithAttributes(
			attribute.String("action", c.Action),
			attribute.String("role", string(c.Actor.Role)),
			attribute.String("status", status),
		)

		duration.Record(ctx, elapsed, attrs)
		executions.Add(ctx, 1, attrs)

		return err
	}
}

// rejected reports whether err is a business-rule rejection rather than a
// system failure.
func rejected(err error) bool {
	return fieldwork.IsGuard(err) ||
		fieldwork.IsUnauthorized(err) ||
		fieldwork.IsConflict(err) ||
		errors.Is(err, fieldwork.ErrJobNotFound)
}
