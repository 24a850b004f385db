// Package route describes the route that served a request, as resolved by
// the chi router.
package route

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
)

// Info is one of Path, Formatter, Prefix or System.
type Info interface {
	// Canonical is the route's pattern, or "" for a System route.
	Canonical() string
	isInfo()
}

// Path is a route with a fixed path.
type Path struct{ Path string }

// Formatter is a route with URL parameters, e.g. /users/{id}.
type Formatter struct{ Formatter string }

// Prefix is a mounted subtree, e.g. /static/*.
type Prefix struct{ Prefix string }

// System stands in for requests no route matched; the router answered them
// itself (404, 405).
type System struct{}

func (p Path) Canonical() string      { return p.Path }
func (f Formatter) Canonical() string { return f.Formatter }
func (p Prefix) Canonical() string    { return p.Prefix }
func (System) Canonical() string      { return "" }

func (Path) isInfo()      {}
func (Formatter) isInfo() {}
func (Prefix) isInfo()    {}
func (System) isInfo()    {}

// FromRequest reads the pattern chi matched for r.
func FromRequest(r *http.Request) Info {
	rctx := chi.RouteContext(r.Context())
	if rctx == nil {
		return System{}
	}
	return Parse(rctx.RoutePattern())
}

// Parse classifies a chi route pattern.
func Parse(pattern string) Info {
	switch {
	case pattern == "":
		return System{}
	case strings.HasSuffix(pattern, "*"):
		prefix := strings.TrimSuffix(strings.TrimSuffix(pattern, "*"), "/")
		if prefix == "" {
			prefix = "/"
		}
		return Prefix{Prefix: prefix}
	case strings.Contains(pattern, "{"):
		return Formatter{Formatter: pattern}
	default:
		return Path{Path: pattern}
	}
}
