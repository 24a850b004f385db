package mw

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/TwigBush/reqtrace/internal/app"
	"github.com/TwigBush/reqtrace/internal/httpx"
	"github.com/TwigBush/reqtrace/internal/route"
	"github.com/TwigBush/reqtrace/internal/task"
	"github.com/TwigBush/reqtrace/internal/trace"
)

// pendingSpan holds a streaming request's span until its task completes.
var pendingSpan = task.NewLocal[trace.Span]("mw.pending_span")

// Finalize tags the request span with the response and finishes it when the
// response is buffered. Any other response may still be written, so the span
// goes to the request's task and finishes on completion. It is an
// app.PrepareHook.
func Finalize(r *http.Request, w *httpx.Recorder) {
	st := app.StateFrom(r.Context())
	if st == nil {
		return
	}
	span, ok := SpanFrom(r.Context())
	if !ok {
		return
	}
	cfg := configFrom(st)
	if cfg == nil {
		cfg = newTraceConfig(nil)
	}
	info := route.FromRequest(r)
	span.SetResource(ResourceName(r.Method, info, w.Status))

	withQuery := cfg.traceQueryString()
	if withQuery {
		span.SetTag(TagQueryString, r.URL.RawQuery)
	}
	setHTTPTags(span, r, w, info, withQuery)

	tk := task.From(r.Context())
	if !w.Buffered() && tk != nil && !tk.Done() {
		st.Set(finalizedKey, true)
		pendingSpan.Set(tk, span)
		cfg.Metrics.spanDeferred()
		tk.AddDoneCallback(func(tk *task.Task) { finishPending(tk, cfg.Metrics) })
		slog.Debug("mw: span deferred until the response ends", "path", r.URL.Path, "status", w.Status)
		return
	}

	st.Set(finalizedKey, true)
	span.Finish()
	cfg.Metrics.spanFinished(FinishSync)
}

func finishPending(tk *task.Task, m *Metrics) {
	span, ok := pendingSpan.Take(tk)
	if !ok {
		return
	}
	span.Finish()
	m.spanFinished(FinishDeferred)
}

// ResourceName labels a request by the route that served it: its path,
// formatter or prefix, prefixed by the method. Requests no route matched are
// labelled by their status code.
func ResourceName(method string, info route.Info, status int) string {
	var res string
	switch v := info.(type) {
	case route.Path:
		res = v.Path
	case route.Formatter:
		res = v.Formatter
	case route.Prefix:
		res = v.Prefix
	}
	if res == "" {
		return strconv.Itoa(status)
	}
	return method + " " + res
}

func setHTTPTags(span trace.Span, r *http.Request, w *httpx.Recorder, info route.Info, withQuery bool) {
	u := httpx.FullURL(r)
	if !withQuery {
		u = httpx.BaseURL(r) + r.URL.EscapedPath()
	}
	span.SetTag(TagMethod, r.Method)
	span.SetTag(TagURL, u)
	span.SetTag(TagStatusCode, w.Status)
	if w.Status >= http.StatusInternalServerError {
		span.SetTag(TagError, true)
	}
	if _, system := info.(route.System); !system {
		span.SetTag(TagRoute, info.Canonical())
	}

	req := flattenHeaders(r.Header)
	for _, k := range sortedKeys(req) {
		span.SetTag(TagRequestHeaders+k, req[k])
	}
	resp := flattenHeaders(w.Header())
	for _, k := range sortedKeys(resp) {
		span.SetTag(TagResponseHeaders+k, resp[k])
	}
}
