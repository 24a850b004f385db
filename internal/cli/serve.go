package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/TwigBush/reqtrace/internal/handlers"
	"github.com/TwigBush/reqtrace/internal/server"
)

const shutdownTimeout = 5 * time.Second

func cmdServe() *cobra.Command {
	c := &cobra.Command{
		Use:   "serve",
		Short: "Start the traced web server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cfgPath, cmd.Flags())
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg)
		},
	}

	f := c.Flags()
	f.String("host", "0.0.0.0", "listen host")
	f.Int("port", 8080, "listen port")
	f.Bool("cors", false, "enable permissive CORS")
	f.String("service", "reqtrace-web", "service name on request spans")
	f.String("exporter", "log", "span exporter: log|none")
	f.String("log-level", "info", "log level: debug|info|warn|error")
	f.Bool("log-json", false, "log as JSON")
	f.Bool("metrics", true, "serve /metrics")
	return c
}

func serve(ctx context.Context, cfg *Config) error {
	log, err := newLogger(os.Stderr, cfg.Log)
	if err != nil {
		return err
	}
	slog.SetDefault(log)

	tracer, shutdownTracer := newTracer(cfg.Trace, log)
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := shutdownTracer(sctx); err != nil {
			log.Warn("tracing: shutdown", "err", err)
		}
	}()

	var reg *prometheus.Registry
	if cfg.Metrics.Enabled {
		reg = prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	}

	hub := handlers.NewHub()
	a := server.Build(server.Options{
		EnableCORS: cfg.Server.CORS,
		DevNoStore: cfg.Server.DevNoStore,
		Trace:      cfg.TraceOptions(),
	}, server.Deps{
		Tracer:   tracer,
		Registry: reg,
		Logger:   log,
		Hub:      hub,
	})

	g, ctx := errgroup.WithContext(ctx)
	// Run closes the hub on exit, ending open streams so Shutdown can drain.
	g.Go(func() error {
		hub.Run(ctx, time.Second)
		return nil
	})
	g.Go(func() error { return run(ctx, cfg.Addr(), server.Handler(a), log) })

	if err := g.Wait(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve: %w", err)
	}
	return nil
}

// run serves h on addr until ctx is done, then shuts down gracefully.
func run(ctx context.Context, addr string, h http.Handler, log *slog.Logger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 1)
	go func() {
		log.Info("listening", "addr", addr)
		errc <- srv.ListenAndServe()
	}()
	select {
	case <-ctx.Done():
		ctx2, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		log.Info("shutting down", "addr", addr)
		return srv.Shutdown(ctx2)
	case err := <-errc:
		return err
	}
}
