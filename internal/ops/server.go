package ops

import (
	"context"
	"encoding/json"
	"net/http"
	"runtime"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"media-pipeline/internal/catalog"
	"media-pipeline/internal/logging"
	"media-pipeline/internal/startup"
)

const (
	statusHealthy  = "healthy"
	statusDegraded = "degraded"
)

// Server is the operational HTTP surface: health, readiness, version, and
// optionally metrics on a separate listener. The media API itself lives in
// the upload/delivery layer, not here.
type Server struct {
	catalog   *catalog.Catalog
	startedAt time.Time
}

// NewServer creates the ops server over a catalog.
func NewServer(cat *catalog.Catalog) *Server {
	return &Server{catalog: cat, startedAt: time.Now()}
}

// Router builds the ops route set.
func (s *Server) Router(logHealthChecks bool) *mux.Router {
	r := mux.NewRouter()
	r.Use(instrument(logHealthChecks))

	r.HandleFunc("/health", s.HealthCheck).Methods("GET")
	r.HandleFunc("/healthz", s.HealthCheck).Methods("GET")
	r.HandleFunc("/livez", s.LivenessCheck).Methods("GET")
	r.HandleFunc("/readyz", s.ReadinessCheck).Methods("GET")
	r.HandleFunc("/version", s.GetVersion).Methods("GET")
	return r
}

// MetricsRouter builds the separate metrics listener route set.
func MetricsRouter() *mux.Router {
	r := mux.NewRouter()
	r.Handle("/metrics", promhttp.Handler()).Methods("GET")
	return r
}

// HealthResponse contains the health check response
type HealthResponse struct {
	Status       string `json:"status"`
	Ready        bool   `json:"ready"`
	Version      string `json:"version"`
	Uptime       string `json:"uptime"`
	QueueDepth   int    `json:"queueDepth"`
	GoVersion    string `json:"goVersion"`
	NumCPU       int    `json:"numCpu"`
	NumGoroutine int    `json:"numGoroutine"`
}

// HealthCheck reports overall service health, including catalog reachability
// and current queue depth.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	response := HealthResponse{
		Version:      startup.Version,
		Uptime:       time.Since(s.startedAt).Round(time.Second).String(),
		GoVersion:    runtime.Version(),
		NumCPU:       runtime.NumCPU(),
		NumGoroutine: runtime.NumGoroutine(),
	}

	depth, err := s.catalog.CountQueued(r.Context())
	if err != nil {
		response.Status = statusDegraded
		writeJSON(w, http.StatusServiceUnavailable, response)
		return
	}
	response.Status = statusHealthy
	response.Ready = true
	response.QueueDepth = depth
	writeJSON(w, http.StatusOK, response)
}

// LivenessCheck reports that the process is up. It never consults the
// catalog; a wedged database must not get the process restarted.
func (s *Server) LivenessCheck(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "alive"})
}

// ReadinessCheck reports whether the service can accept work.
func (s *Server) ReadinessCheck(w http.ResponseWriter, r *http.Request) {
	if _, err := s.catalog.CountQueued(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not ready"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// GetVersion returns build information.
func (s *Server) GetVersion(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, startup.GetBuildInfo())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Error("failed to encode response: %v", err)
	}
}

// ListenAndServe runs an HTTP server until ctx is cancelled, then shuts it
// down gracefully within timeout.
func ListenAndServe(ctx context.Context, addr string, handler http.Handler, timeout time.Duration) error {
	srv := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
