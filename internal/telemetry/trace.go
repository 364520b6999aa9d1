// Package telemetry wraps OpenTelemetry tracing for graph executions.
package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Kingmaker16/codex-os/internal/errors"
)

const tracerName = "github.com/Kingmaker16/codex-os/internal/engine"

func tracer() trace.Tracer {
	return otel.Tracer(tracerName)
}

// StartGraphSpan creates the root span of one graph execution.
func StartGraphSpan(ctx context.Context, graphID string, taskCount int) (context.Context, trace.Span) {
	ctx, span := tracer().Start(ctx, "graph.execute")
	span.SetAttributes(
		attribute.String("graph.id", graphID),
		attribute.Int("graph.tasks", taskCount),
	)
	return ctx, span
}

// StartRoundSpan creates a span for one scheduling round.
func StartRoundSpan(ctx context.Context, round, runnable int) (context.Context, trace.Span) {
	ctx, span := tracer().Start(ctx, "graph.round")
	span.SetAttributes(
		attribute.Int("round", round),
		attribute.Int("round.runnable", runnable),
	)
	return ctx, span
}

// StartTaskSpan creates a span for dispatching one task.
func StartTaskSpan(ctx context.Context, taskID, taskType string) (context.Context, trace.Span) {
	ctx, span := tracer().Start(ctx, "task."+taskType, trace.WithSpanKind(trace.SpanKindClient))
	span.SetAttributes(
		attribute.String("task.id", taskID),
		attribute.String("task.type", taskType),
	)
	return ctx, span
}

// RecordSuccess marks a span as successful.
func RecordSuccess(span trace.Span) {
	span.SetStatus(codes.Ok, "")
}

// RecordError records err on span and marks it failed. Coded errors add
// an error.code attribute.
func RecordError(span trace.Span, err error) {
	if err == nil {
		return
	}

	span.RecordError(err)
	span.SetStatus(codes.Error, errors.Brief(err))
	span.SetAttributes(attribute.Bool("error", true))
	if code := errors.CodeOf(err); code != "" {
		span.SetAttributes(attribute.String("error.code", string(code)))
	}
}
