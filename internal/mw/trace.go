// internal/mw/trace.go
package mw

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/TwigBush/reqtrace/internal/app"
	"github.com/TwigBush/reqtrace/internal/task"
	"github.com/TwigBush/reqtrace/internal/trace"
)

// OperationName is the fixed operation name of every request span.
const OperationName = "http.server.request"

const (
	TagSpanKind        = "span.kind"
	TagMeasured        = "measured"
	TagComponent       = "component"
	TagAnalyticsRate   = "analytics.sample_rate"
	TagMethod          = "http.method"
	TagURL             = "http.url"
	TagStatusCode      = "http.status_code"
	TagRoute           = "http.route"
	TagQueryString     = "http.query.string"
	TagRequestHeaders  = "http.request.headers."
	TagResponseHeaders = "http.response.headers."
	TagError           = "error"
	TagErrorMessage    = "error.message"
	TagCanceled        = "http.canceled"
)

// Keys of the request span entries in app.State.
type stateKey int

const (
	parentKey stateKey = iota
	spanKey
	configKey
	finalizedKey
)

// TraceApp installs tracing on a: the interceptor goes first in the
// middleware chain and Finalize last among the prepare hooks. Installing
// twice is a no-op; the second call returns nil.
func TraceApp(a *app.App, tracer trace.Tracer, opts ...TraceOption) *TraceConfig {
	if a.Traced {
		slog.Debug("mw: tracing already installed", "app", a.Name)
		return nil
	}
	a.Traced = true

	cfg := newTraceConfig(tracer, opts...)
	a.Prepend(Interceptor(cfg))
	a.OnResponsePrepare(Finalize)
	return cfg
}

// Interceptor starts a server span for every request and leaves it open: the
// span is finished by Finalize, or by the request's task completing.
func Interceptor(cfg *TraceConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, parent := cfg.Propagator.Activate(r.Context(), r.Header, cfg.distributedTracing())

			ctx, span := cfg.Tracer.StartSpan(ctx, OperationName, trace.StartOptions{
				Service: cfg.Service,
				Kind:    trace.KindServer,
				NewRoot: parent.IsRoot(),
			})
			span.SetTag(TagMeasured, true)
			span.SetTag(TagComponent, cfg.Integration)
			span.SetTag(TagSpanKind, trace.KindServer.String())
			if cfg.analyticsEnabled() {
				span.SetTag(TagAnalyticsRate, cfg.AnalyticsSampleRate)
			}
			cfg.Metrics.spanStarted()

			st := app.StateFrom(ctx)
			tk := task.From(ctx)
			if st == nil || tk == nil {
				// Outside an App nothing will prepare or complete the
				// request for us; finish when the handler returns.
				slog.Debug("mw: tracing outside an app, span ends with the handler", "path", r.URL.Path)
				defer func() {
					span.Finish()
					cfg.Metrics.spanFinished(FinishSync)
				}()
			} else {
				st.Set(parentKey, parent)
				st.Set(spanKey, span)
				st.Set(configKey, cfg)
				tk.AddDoneCallback(func(tk *task.Task) { finishAbandoned(ctx, tk, st, span, cfg) })
			}

			// echo our span so callers can correlate
			cfg.Propagator.Inject(ctx, w.Header())

			defer func() {
				if p := recover(); p != nil {
					span.RecordError(panicError(p), debug.Stack())
					panic(p)
				}
			}()
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// finishAbandoned closes a span whose request completed before Finalize ran,
// which happens when the client went away before a response was prepared.
func finishAbandoned(ctx context.Context, tk *task.Task, st *app.State, span trace.Span, cfg *TraceConfig) {
	if _, ok := st.Get(finalizedKey); ok || span.Finished() {
		return
	}
	err := tk.Err()
	if err == nil {
		err = ctx.Err()
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		span.SetTag(TagCanceled, true)
	}
	if err != nil {
		span.SetTag(TagErrorMessage, err.Error())
	}
	span.Finish()
	cfg.Metrics.spanFinished(FinishCanceled)
}

func panicError(p any) error {
	if err, ok := p.(error); ok {
		return err
	}
	return fmt.Errorf("panic: %v", p)
}

// SpanFrom returns the request span stored for the request ctx belongs to.
func SpanFrom(ctx context.Context) (trace.Span, bool) {
	st := app.StateFrom(ctx)
	if st == nil {
		return nil, false
	}
	v, ok := st.Get(spanKey)
	if !ok {
		return nil, false
	}
	span, ok := v.(trace.Span)
	return span, ok
}

// ParentFrom returns the propagated parent the request span was started under.
func ParentFrom(ctx context.Context) (trace.TraceContext, bool) {
	st := app.StateFrom(ctx)
	if st == nil {
		return trace.TraceContext{}, false
	}
	v, ok := st.Get(parentKey)
	if !ok {
		return trace.TraceContext{}, false
	}
	tc, ok := v.(trace.TraceContext)
	return tc, ok
}

func configFrom(st *app.State) *TraceConfig {
	if v, ok := st.Get(configKey); ok {
		if cfg, ok := v.(*TraceConfig); ok {
			return cfg
		}
	}
	return nil
}
