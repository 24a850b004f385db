package trace

import (
	"context"
	"log/slog"
	"net/http"

	"go.opentelemetry.io/otel/propagation"
	oteltrace "go.opentelemetry.io/otel/trace"
)

// Header is the W3C header carrying the propagated parent.
const Header = "traceparent"

// Propagator turns inbound request headers into the parent of a request span.
type Propagator struct {
	prop propagation.TextMapPropagator
}

// NewPropagator wraps p. A nil p selects W3C trace context plus baggage.
func NewPropagator(p propagation.TextMapPropagator) *Propagator {
	if p == nil {
		p = propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{})
	}
	return &Propagator{prop: p}
}

// Activate extracts the remote parent from h and makes it current in the
// returned context. When enabled is false, or the headers are missing or
// malformed, the request starts a new trace; Activate never fails.
func (p *Propagator) Activate(ctx context.Context, h http.Header, enabled bool) (context.Context, TraceContext) {
	if !enabled || len(h) == 0 {
		return With(ctx, TraceContext{}), TraceContext{}
	}

	extracted := p.prop.Extract(ctx, propagation.HeaderCarrier(h))
	sc := oteltrace.SpanContextFromContext(extracted)
	if !sc.IsValid() || !sc.IsRemote() {
		if raw := h.Get(Header); raw != "" {
			slog.Debug("trace: ignoring malformed parent", "traceparent", raw)
		}
		return With(ctx, TraceContext{}), TraceContext{}
	}

	tc := fromSpanContext(sc)
	return With(extracted, tc), tc
}

// Inject writes the span current in ctx onto h, for outbound calls.
func (p *Propagator) Inject(ctx context.Context, h http.Header) {
	p.prop.Inject(ctx, propagation.HeaderCarrier(h))
}
