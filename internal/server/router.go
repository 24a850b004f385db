package server

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/TwigBush/reqtrace/internal/app"
	"github.com/TwigBush/reqtrace/internal/handlers"
	"github.com/TwigBush/reqtrace/internal/mw"
	"github.com/TwigBush/reqtrace/internal/trace"
)

type Options struct {
	Name       string
	EnableCORS bool
	DevNoStore bool
	Trace      []mw.TraceOption
}

type Deps struct {
	Tracer   trace.Tracer
	Registry *prometheus.Registry
	Logger   *slog.Logger
	Hub      *handlers.Hub
}

// Build assembles the web app. Tracing is installed last so its interceptor
// still runs ahead of everything else in the chain.
func Build(opts Options, d Deps) *app.App {
	name := opts.Name
	if name == "" {
		name = "reqtrace"
	}
	a := app.New(name)

	// baseline
	a.Use(middleware.RequestID)
	a.Use(middleware.RealIP)

	if opts.EnableCORS {
		a.Use(cors.Handler(cors.Options{
			AllowedOrigins:   []string{"*"},
			AllowedMethods:   []string{"GET", "OPTIONS"},
			AllowedHeaders:   []string{"Content-Type", "Authorization", trace.Header},
			ExposedHeaders:   []string{trace.Header},
			AllowCredentials: false,
			MaxAge:           300,
		}))
	}
	if opts.DevNoStore {
		a.Use(mw.NoStore) // stops UI caching in dev
	}

	a.Use(mw.Logger(mw.LogOpts{
		Logger:        d.Logger,
		SkipPaths:     []string{"/healthz", "/metrics"},
		RedactHeaders: []string{"Authorization"},
	}))

	traceOpts := opts.Trace
	var metricsHandler http.Handler
	if d.Registry != nil {
		traceOpts = append(traceOpts, mw.WithMetrics(mw.NewMetrics(d.Registry)))
		metricsHandler = promhttp.HandlerFor(d.Registry, promhttp.HandlerOpts{})
	}
	if d.Tracer != nil {
		mw.TraceApp(a, d.Tracer, traceOpts...)
	}

	hub := d.Hub
	if hub == nil {
		hub = handlers.NewHub()
	}

	a.Route(func(r chi.Router) {
		r.Get("/healthz", handlers.Healthz)
		r.Get("/version", handlers.Version)
		if metricsHandler != nil {
			r.Method(http.MethodGet, "/metrics", metricsHandler)
		}

		r.Get("/", handlers.NewSample().ServeHTTP)
		r.Get("/users/{id}", handlers.GetUser)
		r.Get("/events", hub.ServeHTTP)
		r.Handle("/static/*", handlers.Static("/static"))
	})
	return a
}

// Handler wraps a with the panic recoverer. It sits outside the app so a
// panic passes through the tracer before it is turned into a 500.
func Handler(a *app.App) http.Handler {
	return middleware.Recoverer(a)
}
