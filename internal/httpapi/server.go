// Package httpapi is the HTTP observability surface (spec section 6,
// C13): liveness/readiness probes, Prometheus exposition, and a
// per-model stats endpoint shaped after Triton's own status/stats
// route, since that system is what this module's runtime behavior is
// grounded on. Built the way the teacher's internal/httpapi builds its
// mux: chi router, chi/middleware stack, Prometheus via promhttp.
package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"inferd/internal/registry"
	"inferd/internal/statuskeeper"
)

// ReadyFunc reports whether the server has finished loading enough to
// serve traffic. NewMux calls it on every /readyz request.
type ReadyFunc func() bool

// Deps are the runtime components the observability surface reads from.
// None of them are owned by this package; cmd/inferd builds and passes
// them in once at startup.
type Deps struct {
	Repo  *registry.Repository
	Stats *statuskeeper.Sink
	Ready ReadyFunc
}

// NewMux builds the HTTP handler for the observability surface.
func NewMux(deps Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			next.ServeHTTP(w, r)
		})
	})
	if corsEnabled {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: corsAllowedOrigins,
			AllowedMethods: corsAllowedMethods,
			AllowedHeaders: corsAllowedHeaders,
		}))
	}
	r.Use(MetricsMiddleware)
	r.Use(accessLog)

	r.Get("/healthz", handleHealthz)
	r.Get("/readyz", handleReadyz(deps.Ready))
	r.Get("/metrics", promhttp.Handler().ServeHTTP)
	r.Get("/v2/models/{name}/stats", handleModelStats(deps))

	return r
}

func handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func handleReadyz(ready ReadyFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if ready != nil && ready() {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ready"))
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("loading"))
	}
}

// modelStatsResponse mirrors the shape spec section 6 calls out as
// Triton-like: a model name plus its per-instance counters.
type modelStatsResponse struct {
	Name      string                          `json:"name"`
	Instances map[string]statuskeeper.Counters `json:"instances"`
}

func handleModelStats(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := chi.URLParam(r, "name")
		if deps.Repo != nil {
			if _, ok := deps.Repo.Get(name); !ok {
				writeJSONError(w, http.StatusNotFound, "unknown model "+name)
				return
			}
		}
		var instances map[string]statuskeeper.Counters
		if deps.Stats != nil {
			instances = deps.Stats.SnapshotModel(name)
		}
		if instances == nil {
			instances = map[string]statuskeeper.Counters{}
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(modelStatsResponse{Name: name, Instances: instances}); err != nil {
			writeJSONError(w, http.StatusInternalServerError, "failed to encode response")
			return
		}
	}
}
