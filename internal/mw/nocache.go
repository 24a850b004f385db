package mw

import "net/http"

var noStoreHeaders = http.Header{
	// strongest: never write to disk cache
	"Cache-Control": {"no-store, no-cache, must-revalidate, max-age=0"},
	"Pragma":        {"no-cache"},
	"Expires":       {"0"},
}

// NoStore marks every response uncacheable.
func NoStore(next http.Handler) http.Handler {
	return SetHeaders(noStoreHeaders)(next)
}

// SetHeaders sets h on every response before the handler runs, so handlers
// may still override them.
func SetHeaders(h http.Header) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			for k, vv := range h {
				w.Header()[http.CanonicalHeaderKey(k)] = append([]string(nil), vv...)
			}
			next.ServeHTTP(w, r)
		})
	}
}
