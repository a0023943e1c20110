// Package tracing provides optional OpenTelemetry spans around the lookup
// layer's resolution entry points. It is entirely opt-in: a nil *Config is
// valid everywhere and produces no spans and no allocations beyond the
// passthrough.
package tracing

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Config holds the OpenTelemetry configuration used by the lookup layer.
type Config struct {
	// TracerProvider supplies the Tracer used to create spans. When nil the
	// global otel.GetTracerProvider() is used.
	TracerProvider trace.TracerProvider
}

// tracer returns a configured [trace.Tracer].
func (c *Config) tracer() trace.Tracer {
	tp := c.TracerProvider
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	return tp.Tracer("github.com/Keksclan/goNutStash")
}

// Start opens a span named op with the given attributes and returns the
// span context plus a finish function. The finish function records the
// error (if any) and ends the span. On a nil Config both returns are
// no-op passthroughs.
func (c *Config) Start(ctx context.Context, op string, attrs ...attribute.KeyValue) (context.Context, func(error)) {
	if c == nil {
		return ctx, func(error) {}
	}
	ctx, span := c.tracer().Start(ctx, op, trace.WithSpanKind(trace.SpanKindInternal))
	if len(attrs) > 0 {
		span.SetAttributes(attrs...)
	}
	return ctx, func(err error) {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetStatus(codes.Ok, "")
		}
		span.End()
	}
}
