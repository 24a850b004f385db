// Package app is the host application the request middleware plugs into: an
// ordered middleware chain on a chi router, response-prepare hooks, and one
// task per request.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"

	"github.com/TwigBush/reqtrace/internal/httpx"
	"github.com/TwigBush/reqtrace/internal/task"
)

type Middleware = func(http.Handler) http.Handler

// PrepareHook runs once per request, just before the response head is sent.
// r is the request as the App received it, carrying State and the task.
type PrepareHook func(r *http.Request, w *httpx.Recorder)

var errHandlerExited = errors.New("app: handler exited without returning")

type App struct {
	Name string

	// Traced is set by the tracing installer so that it runs only once.
	Traced bool

	mux         *chi.Mux
	middlewares []Middleware
	routes      []func(chi.Router)
	onPrepare   []PrepareHook

	once  sync.Once
	built bool
}

func New(name string) *App {
	return &App{Name: name, mux: chi.NewRouter()}
}

// Use appends middleware to the chain.
func (a *App) Use(mw ...Middleware) {
	a.mustNotBeBuilt("Use")
	a.middlewares = append(a.middlewares, mw...)
}

// Prepend inserts mw ahead of every middleware registered so far.
func (a *App) Prepend(mw Middleware) {
	a.mustNotBeBuilt("Prepend")
	a.middlewares = append([]Middleware{mw}, a.middlewares...)
}

// Middlewares returns the number of middlewares in the chain.
func (a *App) Middlewares() int { return len(a.middlewares) }

// Route registers routes. They are mounted after all middleware when the
// App serves its first request.
func (a *App) Route(fn func(r chi.Router)) {
	a.mustNotBeBuilt("Route")
	a.routes = append(a.routes, fn)
}

// OnResponsePrepare appends a hook run when a response is prepared.
func (a *App) OnResponsePrepare(h PrepareHook) {
	a.mustNotBeBuilt("OnResponsePrepare")
	a.onPrepare = append(a.onPrepare, h)
}

func (a *App) mustNotBeBuilt(op string) {
	if a.built {
		panic(fmt.Sprintf("app: %s called after %s started serving", op, a.Name))
	}
}

func (a *App) build() {
	a.mux.Use(a.middlewares...)
	for _, fn := range a.routes {
		fn(a.mux)
	}
	a.built = true
}

func (a *App) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	a.once.Do(a.build)

	tk := task.New()
	// Our own route context outlives the mux call, so hooks that fire after
	// the handler returns still see the matched pattern.
	rctx := chi.NewRouteContext()
	rctx.Routes = a.mux

	ctx := context.WithValue(r.Context(), chi.RouteCtxKey, rctx)
	ctx = WithState(ctx, &State{})
	ctx = task.With(ctx, tk)
	r = r.WithContext(ctx)

	rec := httpx.NewRecorder(w)
	rec.OnPrepare(func(rec *httpx.Recorder) { a.prepare(r, rec) })

	returned := false
	defer func() {
		if returned {
			return
		}
		p := recover()
		if p == nil {
			rec.Prepare(http.StatusInternalServerError)
			tk.Complete(errHandlerExited)
			return
		}
		// the error path still prepares a response, even if an outer
		// recoverer ends up writing it
		rec.Prepare(http.StatusInternalServerError)
		tk.Complete(fmt.Errorf("app: handler panic: %v", p))
		panic(p)
	}()

	a.mux.ServeHTTP(rec, r)
	returned = true

	if !rec.Prepared() && ctx.Err() == nil {
		// net/http sends an empty 200 for handlers that never write
		rec.Prepare(http.StatusOK)
	}
	tk.Complete(ctx.Err())
}

func (a *App) prepare(r *http.Request, rec *httpx.Recorder) {
	for _, h := range a.onPrepare {
		a.runHook(h, r, rec)
	}
}

func (a *App) runHook(h PrepareHook, r *http.Request, rec *httpx.Recorder) {
	defer func() {
		if p := recover(); p != nil {
			slog.Error("app: prepare hook panicked", "app", a.Name, "path", r.URL.Path, "panic", p)
		}
	}()
	h(r, rec)
}
