// Package otel holds the span helpers and attribute keys shared by the
// meeting client, the sync controller and the vote submitter.
package otel

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Attribute keys
const (
	AttrScope       = attribute.Key("attendance.scope")
	AttrRecordID    = attribute.Key("attendance.record_id")
	AttrStatus      = attribute.Key("attendance.status")
	AttrEditCount   = attribute.Key("attendance.edit_count")
	AttrFailedCount = attribute.Key("batch.failed_count")
	AttrVotingID    = attribute.Key("voting.id")
	AttrQuestionID  = attribute.Key("voting.question_id")
	AttrResultCount = attribute.Key("result.count")
)

// errorDescription is the span status text for failures. Error messages can
// carry session cookies or attendee names, so they only go to the exception event.
const errorDescription = "operation failed"

// StartSpan starts a child span of ctx. With a nil tracer the span already in
// ctx is returned, so callers can End it unconditionally.
func StartSpan(
	ctx context.Context,
	tracer trace.Tracer,
	name string,
	opts ...trace.SpanStartOption,
) (context.Context, trace.Span) {
	if tracer == nil {
		return ctx, trace.SpanFromContext(ctx)
	}
	return tracer.Start(ctx, name, opts...)
}

// RecordError marks span as failed with err. A nil span or error is ignored.
func RecordError(span trace.Span, err error) {
	if span == nil || err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, errorDescription)
}
