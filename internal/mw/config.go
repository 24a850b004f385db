package mw

import (
	"github.com/TwigBush/reqtrace/internal/trace"
)

const (
	DefaultService     = "reqtrace-web"
	DefaultIntegration = "net/http"
)

// Settings are process-wide tracing defaults. Per-app overrides left unset
// in TraceConfig fall back to these.
type Settings struct {
	DistributedTracing bool
	AnalyticsEnabled   bool
	TraceQueryString   bool
}

func DefaultSettings() Settings {
	return Settings{DistributedTracing: true}
}

// TraceConfig is the tracing configuration of one App. It is built once by
// TraceApp and only read afterwards, by every request concurrently.
type TraceConfig struct {
	Tracer      trace.Tracer
	Service     string
	Integration string

	// Tri-state overrides: nil defers to Settings.
	DistributedTracing *bool
	AnalyticsEnabled   *bool
	TraceQueryString   *bool

	AnalyticsSampleRate float64

	Settings   Settings
	Propagator *trace.Propagator
	Metrics    *Metrics
}

type TraceOption func(*TraceConfig)

func WithService(name string) TraceOption {
	return func(c *TraceConfig) { c.Service = name }
}

func WithDistributedTracing(enabled bool) TraceOption {
	return func(c *TraceConfig) { c.DistributedTracing = &enabled }
}

func WithAnalytics(enabled bool) TraceOption {
	return func(c *TraceConfig) { c.AnalyticsEnabled = &enabled }
}

func WithAnalyticsSampleRate(rate float64) TraceOption {
	return func(c *TraceConfig) { c.AnalyticsSampleRate = rate }
}

func WithTraceQueryString(enabled bool) TraceOption {
	return func(c *TraceConfig) { c.TraceQueryString = &enabled }
}

func WithSettings(s Settings) TraceOption {
	return func(c *TraceConfig) { c.Settings = s }
}

func WithPropagator(p *trace.Propagator) TraceOption {
	return func(c *TraceConfig) { c.Propagator = p }
}

func WithMetrics(m *Metrics) TraceOption {
	return func(c *TraceConfig) { c.Metrics = m }
}

func newTraceConfig(tracer trace.Tracer, opts ...TraceOption) *TraceConfig {
	c := &TraceConfig{
		Tracer:              tracer,
		Service:             DefaultService,
		Integration:         DefaultIntegration,
		AnalyticsSampleRate: 1.0,
		Settings:            DefaultSettings(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.Propagator == nil {
		c.Propagator = trace.NewPropagator(nil)
	}
	return c
}

func (c *TraceConfig) distributedTracing() bool {
	if c.DistributedTracing != nil {
		return *c.DistributedTracing
	}
	return c.Settings.DistributedTracing
}

// analyticsEnabled: on globally unless the app opts out, or on for the app.
func (c *TraceConfig) analyticsEnabled() bool {
	app := c.AnalyticsEnabled
	return (c.Settings.AnalyticsEnabled && (app == nil || *app)) || (app != nil && *app)
}

func (c *TraceConfig) traceQueryString() bool {
	if c.TraceQueryString != nil {
		return *c.TraceQueryString
	}
	return c.Settings.TraceQueryString
}
