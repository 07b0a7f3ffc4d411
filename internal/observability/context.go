package observability

import (
	"context"

	"go.opentelemetry.io/otel/trace"
)

// DetachTraceContext returns a context.Background() carrying the span
// context from the original request. Episode runs triggered over HTTP or
// MCP outlive the request that started them; this keeps their spans linked
// to the trigger trace without inheriting its cancellation.
func DetachTraceContext(ctx context.Context) context.Context {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.IsValid() {
		return context.Background()
	}
	return trace.ContextWithRemoteSpanContext(context.Background(), sc)
}

// DetachTraceContextFrom copies the trace span from src into baseCtx.
// Used by the task manager so detached runs still stop on SIGTERM (baseCtx
// carries process shutdown) while tracing back to the triggering request.
func DetachTraceContextFrom(src, baseCtx context.Context) context.Context {
	sc := trace.SpanContextFromContext(src)
	if !sc.IsValid() {
		return baseCtx
	}
	return trace.ContextWithRemoteSpanContext(baseCtx, sc)
}
