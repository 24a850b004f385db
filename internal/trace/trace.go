// internal/trace/trace.go
package trace

import (
	"context"
)

type ctxKey int

const key ctxKey = 1

// TraceContext identifies the parent of a request span. The zero value is a
// root: no trace was propagated to us.
type TraceContext struct {
	TraceID string
	SpanID  string
	Remote  bool
	Sampled bool
}

func (tc TraceContext) IsRoot() bool { return tc.TraceID == "" }

func With(ctx context.Context, tc TraceContext) context.Context {
	return context.WithValue(ctx, key, tc)
}

func From(ctx context.Context) TraceContext {
	if v := ctx.Value(key); v != nil {
		if tc, ok := v.(TraceContext); ok {
			return tc
		}
	}
	return TraceContext{}
}
