package ops

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"media-pipeline/internal/logging"
	"media-pipeline/internal/metrics"
)

// statusRecorder wraps http.ResponseWriter to capture the status code.
type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func newStatusRecorder(w http.ResponseWriter) *statusRecorder {
	return &statusRecorder{w, http.StatusOK}
}

func (rw *statusRecorder) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// instrument records request metrics and, optionally, an access log line.
// Health endpoints can be excluded from logging; container orchestrators
// probe them every few seconds.
func instrument(logHealthChecks bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			metrics.HTTPRequestsInFlight.Inc()
			defer metrics.HTTPRequestsInFlight.Dec()

			wrapped := newStatusRecorder(w)
			start := time.Now()
			next.ServeHTTP(wrapped, r)
			duration := time.Since(start)

			status := strconv.Itoa(wrapped.statusCode)
			metrics.HTTPRequestsTotal.WithLabelValues(r.Method, r.URL.Path, status).Inc()
			metrics.HTTPRequestDuration.WithLabelValues(r.Method, r.URL.Path).Observe(duration.Seconds())

			if !logHealthChecks && isHealthPath(r.URL.Path) {
				return
			}
			logging.Debug("%s %s %s %v", r.Method, r.URL.Path, status, duration.Round(time.Millisecond))
		})
	}
}

func isHealthPath(path string) bool {
	for _, p := range []string{"/health", "/healthz", "/livez", "/readyz"} {
		if strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}
