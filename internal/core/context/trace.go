package context

import (
	"context"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
)

// TraceContext correlates log lines of one HTTP request or one worker job run.
type TraceContext struct {
	TraceID   string
	RequestID string
	// Route is the matched route template ("/api/v1/materials/consume").
	Route string
	// Job is set for background job runs instead of Route.
	Job string
}

type traceContextKey struct{}

// WithTrace adds TraceContext to context.
func WithTrace(ctx context.Context, tc *TraceContext) context.Context {
	return context.WithValue(ctx, traceContextKey{}, tc)
}

// GetTrace returns TraceContext from context.
func GetTrace(ctx context.Context) *TraceContext {
	if v, ok := ctx.Value(traceContextKey{}).(*TraceContext); ok {
		return v
	}
	return nil
}

// ForJob starts a trace context for one run of a background job.
func ForJob(ctx context.Context, job string) context.Context {
	runID := uuid.NewString()
	return WithTrace(ctx, &TraceContext{TraceID: runID, RequestID: runID, Job: job})
}

// GetTraceID returns the trace ID. An active OpenTelemetry span wins over
// the header-derived value.
func GetTraceID(ctx context.Context) string {
	if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
		return sc.TraceID().String()
	}
	if t := GetTrace(ctx); t != nil {
		return t.TraceID
	}
	return ""
}

// GetRequestID returns request ID from context or empty string.
func GetRequestID(ctx context.Context) string {
	if t := GetTrace(ctx); t != nil {
		return t.RequestID
	}
	return ""
}
