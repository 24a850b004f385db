package cli

import (
	"context"
	"log/slog"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/TwigBush/reqtrace/internal/trace"
)

// logExporter writes finished spans to the process logger.
type logExporter struct {
	log *slog.Logger
}

func (e *logExporter) ExportSpans(ctx context.Context, spans []sdktrace.ReadOnlySpan) error {
	for _, s := range spans {
		attrs := []any{
			"trace", s.SpanContext().TraceID().String(),
			"span", s.SpanContext().SpanID().String(),
			"name", s.Name(),
			"ms", s.EndTime().Sub(s.StartTime()).Milliseconds(),
		}
		if p := s.Parent(); p.IsValid() {
			attrs = append(attrs, "parent", p.SpanID().String())
		}
		for _, kv := range s.Attributes() {
			switch kv.Key {
			case trace.AttrResource, trace.AttrService, "http.status_code", "http.canceled":
				attrs = append(attrs, string(kv.Key), kv.Value.Emit())
			}
		}
		if code := s.Status().Code.String(); code != "Unset" {
			attrs = append(attrs, "status", code, "desc", s.Status().Description)
		}
		e.log.InfoContext(ctx, "span", attrs...)
	}
	return nil
}

func (e *logExporter) Shutdown(context.Context) error { return nil }

// newTracer builds the process tracer. The returned shutdown flushes and
// stops the provider.
func newTracer(c TraceConfig, log *slog.Logger) (trace.Tracer, func(context.Context) error) {
	opts := []sdktrace.TracerProviderOption{
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.AlwaysSample())),
	}
	if c.Exporter == "log" {
		opts = append(opts, sdktrace.WithSyncer(&logExporter{log: log}))
	}
	tp := sdktrace.NewTracerProvider(opts...)
	log.Debug("tracing: provider ready", "exporter", c.Exporter, "service", c.Service)
	return trace.NewOTel(trace.WithTracerProvider(tp)), tp.Shutdown
}
