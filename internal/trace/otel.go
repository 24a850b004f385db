package trace

import (
	"context"
	"fmt"
	"sync"

	"github.com/zoobzio/clockz"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	oteltrace "go.opentelemetry.io/otel/trace"
)

const (
	defaultTracerName = "github.com/TwigBush/reqtrace"

	// AttrResource carries the mutable resource name; the otel span name
	// stays the operation name.
	AttrResource = "resource.name"
	AttrService  = "service.name"
	AttrStack    = "error.stack"
)

// OTel adapts an OpenTelemetry tracer to Tracer.
type OTel struct {
	tracer oteltrace.Tracer
	clock  clockz.Clock
}

// OTelOption configures OTel.
type OTelOption func(*OTel)

// WithTracerProvider selects the provider spans are started on. The global
// provider is used otherwise.
func WithTracerProvider(tp oteltrace.TracerProvider) OTelOption {
	return func(o *OTel) {
		o.tracer = tp.Tracer(defaultTracerName)
	}
}

// WithClock sets the clock used for start and end timestamps.
func WithClock(c clockz.Clock) OTelOption {
	return func(o *OTel) {
		o.clock = c
	}
}

func NewOTel(opts ...OTelOption) *OTel {
	o := &OTel{clock: clockz.RealClock}
	for _, opt := range opts {
		opt(o)
	}
	if o.tracer == nil {
		o.tracer = otel.Tracer(defaultTracerName)
	}
	return o
}

func (o *OTel) StartSpan(ctx context.Context, operation string, opts StartOptions) (context.Context, Span) {
	startOpts := []oteltrace.SpanStartOption{
		oteltrace.WithSpanKind(otelKind(opts.Kind)),
		oteltrace.WithTimestamp(o.clock.Now()),
	}
	if opts.NewRoot {
		startOpts = append(startOpts, oteltrace.WithNewRoot())
	}
	if opts.Service != "" {
		startOpts = append(startOpts, oteltrace.WithAttributes(attribute.String(AttrService, opts.Service)))
	}
	ctx, span := o.tracer.Start(ctx, operation, startOpts...)
	return ctx, &otelSpan{span: span, clock: o.clock}
}

func otelKind(k Kind) oteltrace.SpanKind {
	switch k {
	case KindServer:
		return oteltrace.SpanKindServer
	case KindClient:
		return oteltrace.SpanKindClient
	default:
		return oteltrace.SpanKindInternal
	}
}

type otelSpan struct {
	mu       sync.Mutex
	span     oteltrace.Span
	clock    clockz.Clock
	finished bool
}

func (s *otelSpan) SetTag(key string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.finished {
		return
	}
	s.span.SetAttributes(toAttribute(key, value))
}

func (s *otelSpan) SetResource(name string) {
	s.SetTag(AttrResource, name)
}

func (s *otelSpan) RecordError(err error, stack []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.finished || err == nil {
		return
	}
	s.span.RecordError(err, oteltrace.WithTimestamp(s.clock.Now()))
	s.span.SetStatus(codes.Error, err.Error())
	if len(stack) > 0 {
		s.span.SetAttributes(attribute.String(AttrStack, string(stack)))
	}
}

func (s *otelSpan) Finish() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.finished {
		return
	}
	s.finished = true
	s.span.End(oteltrace.WithTimestamp(s.clock.Now()))
}

func (s *otelSpan) Finished() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.finished
}

func (s *otelSpan) Context() TraceContext {
	return fromSpanContext(s.span.SpanContext())
}

func toAttribute(key string, value any) attribute.KeyValue {
	switch v := value.(type) {
	case string:
		return attribute.String(key, v)
	case bool:
		return attribute.Bool(key, v)
	case int:
		return attribute.Int(key, v)
	case int64:
		return attribute.Int64(key, v)
	case float64:
		return attribute.Float64(key, v)
	case []string:
		return attribute.StringSlice(key, v)
	case fmt.Stringer:
		return attribute.String(key, v.String())
	default:
		return attribute.String(key, fmt.Sprint(v))
	}
}
