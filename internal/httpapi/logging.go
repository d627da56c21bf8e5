package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

// zlog is the structured logger used for access logging. Unset by
// default, in which case accessLog is a no-op beyond the metrics it
// already contributes to via MetricsMiddleware.
var zlog *zerolog.Logger

// SetLogger installs the logger cmd/inferd built at startup.
func SetLogger(l zerolog.Logger) { zlog = &l }

// accessLog emits one structured line per request when a logger has
// been installed.
func accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if zlog == nil {
			next.ServeHTTP(w, r)
			return
		}
		sr := &statusRecorder{ResponseWriter: w, status: 200}
		start := time.Now()
		next.ServeHTTP(sr, r)
		zlog.Info().
			Str("method", r.Method).
			Str("path", routePatternOrPath(r)).
			Int("status", sr.status).
			Dur("duration", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("http request")
	})
}
