package middleware

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"shelteraccess/internal/platform/metrics"
)

// Latency records per-route request duration. The chi route pattern keeps
// metric cardinality bounded regardless of path parameters.
func Latency(m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			next.ServeHTTP(w, r)

			route := r.URL.Path
			if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
				route = rctx.RoutePattern()
			}
			m.ObserveRequest(route, time.Since(start))
		})
	}
}
