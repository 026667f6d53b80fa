package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/felixgeelhaar/plancraft/internal/errors"
)

// Attribute keys shared by engine and command spans.
const (
	AttrPlanID       = attribute.Key("plancraft.plan_id")
	AttrOperation    = attribute.Key("plancraft.operation")
	AttrEntityID     = attribute.Key("plancraft.entity_id")
	AttrCheckpointID = attribute.Key("plancraft.checkpoint_id")
	AttrErrorCode    = attribute.Key("plancraft.error_code")
	AttrErrorKind    = attribute.Key("plancraft.error_kind")
)

// StartCommandSpan creates a span for a CLI command execution.
//
//	ctx, span := telemetry.StartCommandSpan(ctx, "task start")
//	defer span.End()
func StartCommandSpan(ctx context.Context, cmdName string) (context.Context, trace.Span) {
	ctx, span := Tracer().Start(ctx, "command."+cmdName)
	span.SetAttributes(
		attribute.String("command", cmdName),
		attribute.String("component", "cli"),
	)
	return ctx, span
}

// StartOperationSpan creates a span for an engine operation on a plan.
func StartOperationSpan(ctx context.Context, planID, operation string) (context.Context, trace.Span) {
	ctx, span := Tracer().Start(ctx, "engine."+operation)
	span.SetAttributes(
		AttrPlanID.String(planID),
		AttrOperation.String(operation),
		attribute.String("component", "engine"),
	)
	return ctx, span
}

// StartCheckpointSpan creates a span for a checkpoint read or write.
func StartCheckpointSpan(ctx context.Context, planID, operation string) (context.Context, trace.Span) {
	ctx, span := Tracer().Start(ctx, "checkpoint."+operation, trace.WithSpanKind(trace.SpanKindClient))
	span.SetAttributes(
		AttrPlanID.String(planID),
		AttrOperation.String(operation),
		attribute.String("component", "checkpoint"),
	)
	return ctx, span
}

// RecordSuccess marks a span as successful with optional result attributes.
func RecordSuccess(span trace.Span, attrs ...attribute.KeyValue) {
	span.SetAttributes(attrs...)
	span.SetStatus(codes.Ok, "")
}

// RecordError records an error in a span and sets error status. Coded
// errors also contribute their code and kind.
func RecordError(span trace.Span, err error) {
	if err == nil {
		return
	}

	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	span.SetAttributes(attribute.Bool("error", true))
	if code := errors.CodeOf(err); code != "" {
		span.SetAttributes(
			AttrErrorCode.String(string(code)),
			AttrErrorKind.String(string(errors.KindOf(err))),
		)
	}
}

// RecordDuration records the duration of an operation as a span attribute.
func RecordDuration(span trace.Span, name string, duration time.Duration) {
	span.SetAttributes(attribute.Int64(name+"_ms", duration.Milliseconds()))
}

// End records err (if any) or success, then ends the span. It is meant for
// defer with a named error result:
//
//	ctx, span := telemetry.StartOperationSpan(ctx, id, "start_task")
//	defer func() { telemetry.End(span, err) }()
func End(span trace.Span, err error, attrs ...attribute.KeyValue) {
	if err != nil {
		RecordError(span, err)
	} else {
		RecordSuccess(span, attrs...)
	}
	span.End()
}
