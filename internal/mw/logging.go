package mw

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/TwigBush/reqtrace/internal/httpx"
	"github.com/TwigBush/reqtrace/internal/route"
	"github.com/TwigBush/reqtrace/internal/trace"
)

type LogOpts struct {
	Logger        *slog.Logger
	SkipPaths     []string
	RedactHeaders []string
}

func isPreflight(r *http.Request) bool {
	return r.Method == http.MethodOptions
}

func Logger(opts LogOpts) func(http.Handler) http.Handler {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	skip := make(map[string]bool, len(opts.SkipPaths))
	for _, p := range opts.SkipPaths {
		skip[p] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if isPreflight(r) || skip[r.URL.Path] {
				next.ServeHTTP(w, r)
				return
			}

			start := time.Now()
			rec := httpx.NewRecorder(w)
			next.ServeHTTP(rec, r)
			dur := time.Since(start)

			tc := trace.ActiveContext(r.Context())
			status := rec.Status
			if status == 0 {
				status = http.StatusOK
			}

			// one-liner summary
			log.Info("req",
				"trace", tc.TraceID,
				"span", tc.SpanID,
				"m", r.Method,
				"path", r.URL.Path,
				"route", route.FromRequest(r).Canonical(),
				"status", status,
				"ms", dur.Milliseconds(),
				"bytes", rec.Bytes,
				"stream", rec.Streaming(),
			)

			// on error, add the (redacted) request headers
			if status >= 400 {
				log.Error("req_detail",
					"trace", tc.TraceID,
					"m", r.Method, "path", r.URL.Path,
					"status", status, "ms", dur.Milliseconds(),
					"headers", flattenHeaders(r.Header, opts.RedactHeaders...),
				)
			}
		})
	}
}
