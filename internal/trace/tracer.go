package trace

import (
	"context"

	oteltrace "go.opentelemetry.io/otel/trace"
)

// Kind is the role a span plays in a trace.
type Kind int

const (
	KindInternal Kind = iota
	KindServer
	KindClient
)

func (k Kind) String() string {
	switch k {
	case KindServer:
		return "server"
	case KindClient:
		return "client"
	default:
		return "internal"
	}
}

// StartOptions describe a span at creation time.
type StartOptions struct {
	Service string
	Kind    Kind
	// NewRoot starts a new trace, ignoring any span already current in ctx.
	NewRoot bool
}

// Tracer is the capability the request middleware needs from a tracing
// backend. Implementations must be safe for concurrent use.
type Tracer interface {
	// StartSpan starts a span as a child of whatever parent ctx carries and
	// returns a context in which the new span is current.
	StartSpan(ctx context.Context, operation string, opts StartOptions) (context.Context, Span)
}

// Span is a handle to an in-flight span.
//
// The operation name is fixed when the span starts. The resource name and
// tags may change until Finish. Finish is idempotent; everything after the
// first call is dropped.
type Span interface {
	SetTag(key string, value any)
	SetResource(name string)
	RecordError(err error, stack []byte)
	Finish()
	Finished() bool
	Context() TraceContext
}

// ActiveContext returns the ids of the span current in ctx, falling back to
// the propagated parent stored with With.
func ActiveContext(ctx context.Context) TraceContext {
	if sc := oteltrace.SpanContextFromContext(ctx); sc.IsValid() {
		return fromSpanContext(sc)
	}
	return From(ctx)
}

func fromSpanContext(sc oteltrace.SpanContext) TraceContext {
	return TraceContext{
		TraceID: sc.TraceID().String(),
		SpanID:  sc.SpanID().String(),
		Remote:  sc.IsRemote(),
		Sampled: sc.IsSampled(),
	}
}
