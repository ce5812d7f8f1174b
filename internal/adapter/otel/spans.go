package otel

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "roundtable"

// StartActionSpan starts a span for a single Orchestrator action
// (submit_proposal, stake_add, query_state, and so on).
func StartActionSpan(ctx context.Context, action, agentID, issueID string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "rtc.action",
		trace.WithAttributes(
			attribute.String("rtc.action", action),
			attribute.String("rtc.agent_id", agentID),
			attribute.String("rtc.issue_id", issueID),
		),
	)
}

// SetActionAgent records the authenticated agent once an action span's
// credential has been resolved to an agent UID.
func SetActionAgent(span trace.Span, agentID string) {
	span.SetAttributes(attribute.String("rtc.agent_id", agentID))
}

// StartTickSpan starts a span for a single tick of the phase engine.
func StartTickSpan(ctx context.Context, issueID string, tick uint64, phase string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "rtc.tick",
		trace.WithAttributes(
			attribute.String("rtc.issue_id", issueID),
			attribute.Int64("rtc.tick", int64(tick)),
			attribute.String("rtc.phase", phase),
		),
	)
}
