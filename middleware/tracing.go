package middleware

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	fieldwork "github.com/garagescholars/garage-tech-stack-sub001"
)

const tracerName = "github.com/garagescholars/garage-tech-stack-sub001"

// Tracing wraps each action in a "fieldwork.job.action" span using the
// global TracerProvider.
func Tracing() Middleware {
	return TracingWithTracer(otel.Tracer(tracerName))
}

// TracingWithTracer is Tracing with an explicit tracer.
//
// Business rejections (guards, missing edges, role checks, claim races)
// are recorded as a "fieldwork.rejected" span event and leave the status
// unset. Only system failures mark the span as an error.
func TracingWithTracer(tracer trace.Tracer) Middleware {
	return func(ctx context.Context, c Call, next Handler) error {
		ctx, span := tracer.Start(ctx, "fieldwork.job.action",
			trace.WithAttributes(
				attribute.String("fieldwork.job.id", c.JobID.String()),
				attribute.String("fieldwork.action", c.Action),
				attribute.String("fieldwork.actor.id", c.Actor.ID),
				attribute.String("fieldwork.actor.role", string(c.Actor.Role)),
			),
			trace.WithSpanKind(trace.SpanKindInternal),
		)
		defer span.End()

		err := next(ctx)
		switch {
		case err == nil:
			span.SetStatus(codes.Ok, "")
		case rejected(err):
			span.AddEvent("fieldwork.rejected", trace.WithAttributes(rejectionAttrs(err)...))
		default:
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		return err
	}
}

func rejectionAttrs(err error) []attribute.KeyValue {
	attrs := []attribute.KeyValue{attribute.String("fieldwork.reason", err.Error())}
	var ge *fieldwork.GuardError
	if errors.As(err, &ge) {
		attrs = append(attrs,
			attribute.String("fieldwork.guard", ge.Guard),
			attribute.String("fieldwork.state", ge.State),
		)
	}
	return attrs
}
