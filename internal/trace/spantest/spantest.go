// Package spantest provides an in-memory trace.Tracer that records every span
// and every Finish call, for asserting span lifecycles in tests.
package spantest

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"sync"
	"time"

	"github.com/zoobzio/clockz"

	"github.com/TwigBush/reqtrace/internal/trace"
)

type spanKey struct{}

// Tracer records spans. Safe for concurrent use.
type Tracer struct {
	mu    sync.Mutex
	clock clockz.Clock
	spans []*Span
}

func New(clock clockz.Clock) *Tracer {
	if clock == nil {
		clock = clockz.RealClock
	}
	return &Tracer{clock: clock}
}

func (t *Tracer) StartSpan(ctx context.Context, operation string, opts trace.StartOptions) (context.Context, trace.Span) {
	s := &Span{
		Operation: operation,
		Service:   opts.Service,
		Kind:      opts.Kind,
		Start:     t.clock.Now(),
		clock:     t.clock,
		tags:      map[string]any{},
		ids:       trace.TraceContext{TraceID: randomHex(16), SpanID: randomHex(8)},
	}
	parent, ok := ctx.Value(spanKey{}).(*Span)
	switch {
	case opts.NewRoot:
	case ok:
		s.Parent = parent.ids
		s.ids.TraceID = parent.ids.TraceID
	case !trace.From(ctx).IsRoot():
		s.Parent = trace.From(ctx)
		s.ids.TraceID = s.Parent.TraceID
	}

	t.mu.Lock()
	t.spans = append(t.spans, s)
	t.mu.Unlock()

	return context.WithValue(ctx, spanKey{}, s), s
}

// Spans returns every span started so far, in start order.
func (t *Tracer) Spans() []*Span {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]*Span(nil), t.spans...)
}

// Span is a recorded span.
type Span struct {
	Operation string
	Service   string
	Kind      trace.Kind
	Parent    trace.TraceContext
	Start     time.Time

	mu          sync.Mutex
	clock       clockz.Clock
	ids         trace.TraceContext
	resource    string
	tags        map[string]any
	errs        []error
	end         time.Time
	finishCalls int
	done        chan struct{}
}

func (s *Span) SetTag(key string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.end.IsZero() {
		return
	}
	s.tags[key] = value
}

func (s *Span) SetResource(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.end.IsZero() {
		return
	}
	s.resource = name
}

func (s *Span) RecordError(err error, stack []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.end.IsZero() || err == nil {
		return
	}
	s.errs = append(s.errs, err)
	if len(stack) > 0 {
		s.tags[trace.AttrStack] = string(stack)
	}
}

func (s *Span) Finish() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.finishCalls++
	if !s.end.IsZero() {
		return
	}
	s.end = s.clock.Now()
	if s.done != nil {
		close(s.done)
	}
}

func (s *Span) Finished() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.end.IsZero()
}

func (s *Span) Context() trace.TraceContext { return s.ids }

// Done returns a channel closed when the span finishes.
func (s *Span) Done() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done == nil {
		s.done = make(chan struct{})
		if !s.end.IsZero() {
			close(s.done)
		}
	}
	return s.done
}

func (s *Span) Resource() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.resource
}

func (s *Span) Tag(key string) (any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.tags[key]
	return v, ok
}

// Tags returns a copy of the span's tags.
func (s *Span) Tags() map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]any, len(s.tags))
	for k, v := range s.tags {
		out[k] = v
	}
	return out
}

func (s *Span) Errors() []error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]error(nil), s.errs...)
}

func (s *Span) End() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.end
}

// FinishCalls counts every call to Finish, including no-op repeats.
func (s *Span) FinishCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.finishCalls
}

func randomHex(n int) string {
	b := make([]byte, n)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
