package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// Span attributes here must stay low-cardinality: operation and component
// names come from fixed sets, never job ids, file paths, or payloads.

// InstrumentedFunc represents a function that can be instrumented.
type InstrumentedFunc func(ctx context.Context) error

// InstrumentDBOperation wraps a database call in a span and records
// operation metrics.
func (t *Telemetry) InstrumentDBOperation(ctx context.Context, operation string, fn InstrumentedFunc) error {
	if t == nil || t.tracer == nil {
		return fn(ctx)
	}

	start := time.Now()
	ctx, span := t.tracer.Start(ctx, "db."+operation)

	defer span.End()

	span.SetAttributes(
		attribute.String("component", "database"),
		attribute.String("operation", operation),
	)

	err := fn(ctx)

	status := "success"
	if err != nil {
		status = "error"

		span.SetStatus(codes.Error, err.Error())
	}

	t.RecordDBOperation(operation, status, time.Since(start))

	return err
}
