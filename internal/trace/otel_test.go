package trace

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/zoobzio/clockz"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	oteltrace "go.opentelemetry.io/otel/trace"
)

func newTestOTel(t *testing.T, clock clockz.Clock) (*OTel, *tracetest.SpanRecorder) {
	t.Helper()
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })
	return NewOTel(WithTracerProvider(tp), WithClock(clock)), rec
}

func attr(kvs []attribute.KeyValue, key string) (attribute.Value, bool) {
	for _, kv := range kvs {
		if string(kv.Key) == key {
			return kv.Value, true
		}
	}
	return attribute.Value{}, false
}

func TestOTel_FinishIsIdempotent(t *testing.T) {
	clock := clockz.NewFakeClock()
	tr, rec := newTestOTel(t, clock)

	_, span := tr.StartSpan(context.Background(), "http.server.request", StartOptions{Service: "svc", Kind: KindServer})
	clock.Advance(25 * time.Millisecond)
	span.SetResource("GET /")
	span.Finish()
	clock.Advance(time.Second)
	span.Finish()
	span.SetTag("late", "dropped")

	ended := rec.Ended()
	if len(ended) != 1 {
		t.Fatalf("ended spans = %d, want 1", len(ended))
	}
	ro := ended[0]
	if ro.Name() != "http.server.request" {
		t.Fatalf("name = %q", ro.Name())
	}
	if ro.SpanKind() != oteltrace.SpanKindServer {
		t.Fatalf("kind = %v, want server", ro.SpanKind())
	}
	if got := ro.EndTime().Sub(ro.StartTime()); got != 25*time.Millisecond {
		t.Fatalf("duration = %v, want 25ms", got)
	}
	if v, ok := attr(ro.Attributes(), AttrResource); !ok || v.AsString() != "GET /" {
		t.Fatalf("resource = %v (%v), want GET /", v.AsString(), ok)
	}
	if v, ok := attr(ro.Attributes(), AttrService); !ok || v.AsString() != "svc" {
		t.Fatalf("service = %v (%v), want svc", v.AsString(), ok)
	}
	if _, ok := attr(ro.Attributes(), "late"); ok {
		t.Fatalf("tag set after finish was recorded")
	}
	if !span.Finished() {
		t.Fatalf("Finished() = false after Finish")
	}
}

func TestOTel_ParentFromPropagatedContext(t *testing.T) {
	tr, rec := newTestOTel(t, clockz.NewFakeClock())

	h := http.Header{}
	h.Set("traceparent", "00-"+parentTraceID+"-"+parentSpanID+"-01")
	ctx, _ := NewPropagator(nil).Activate(context.Background(), h, true)

	ctx, span := tr.StartSpan(ctx, "op", StartOptions{Kind: KindServer})
	span.Finish()

	ro := rec.Ended()[0]
	if got := ro.Parent().SpanID().String(); got != parentSpanID {
		t.Fatalf("parent span = %q, want %q", got, parentSpanID)
	}
	if got := span.Context().TraceID; got != parentTraceID {
		t.Fatalf("trace id = %q, want %q", got, parentTraceID)
	}
	if got := ActiveContext(ctx).SpanID; got != span.Context().SpanID {
		t.Fatalf("active span = %q, want the new span %q", got, span.Context().SpanID)
	}
}

func TestOTel_NewRootIgnoresCurrentSpan(t *testing.T) {
	tr, rec := newTestOTel(t, clockz.NewFakeClock())

	ctx, outer := tr.StartSpan(context.Background(), "outer", StartOptions{})
	_, span := tr.StartSpan(ctx, "op", StartOptions{Kind: KindServer, NewRoot: true})
	span.Finish()
	outer.Finish()

	ro := rec.Ended()[0]
	if ro.Parent().IsValid() {
		t.Fatalf("parent = %v, want none", ro.Parent().SpanID())
	}
	if span.Context().TraceID == outer.Context().TraceID {
		t.Fatalf("new root joined the current trace")
	}
}

func TestOTel_RecordError(t *testing.T) {
	tr, rec := newTestOTel(t, clockz.NewFakeClock())

	_, span := tr.StartSpan(context.Background(), "op", StartOptions{})
	span.RecordError(errors.New("boom"), []byte("goroutine 1 [running]"))
	span.RecordError(nil, nil)
	span.Finish()

	ro := rec.Ended()[0]
	if ro.Status().Code != codes.Error || ro.Status().Description != "boom" {
		t.Fatalf("status = %+v, want error/boom", ro.Status())
	}
	if len(ro.Events()) != 1 {
		t.Fatalf("events = %d, want 1 exception event", len(ro.Events()))
	}
	if v, ok := attr(ro.Attributes(), AttrStack); !ok || v.AsString() == "" {
		t.Fatalf("missing stack attribute")
	}
}

func TestToAttribute(t *testing.T) {
	if got := toAttribute("k", 200).Value.AsInt64(); got != 200 {
		t.Fatalf("int = %d", got)
	}
	if got := toAttribute("k", 0.5).Value.AsFloat64(); got != 0.5 {
		t.Fatalf("float = %v", got)
	}
	if got := toAttribute("k", true).Value.AsBool(); !got {
		t.Fatalf("bool = %v", got)
	}
	if got := toAttribute("k", KindServer).Value.AsString(); got != "server" {
		t.Fatalf("stringer = %q", got)
	}
	if got := toAttribute("k", struct{ A int }{1}).Value.AsString(); got != "{1}" {
		t.Fatalf("fallback = %q", got)
	}
}
