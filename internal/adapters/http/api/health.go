package api

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/okian/vnclub/pkg/metrics"
)

func metricsHandler() http.Handler {
	// Use our custom metrics registry to serve metrics
	return promhttp.HandlerFor(metrics.GetRegistry(), promhttp.HandlerOpts{})
}

// handleHealth handles GET /healthz.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Ping(r.Context()); err != nil {
		writeError(w, http.StatusServiceUnavailable, "unavailable", Wrap("api.healthz", err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
		"period": s.deps.CurrentPeriod().String(),
	})
}

// handleStats handles GET /stats.
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.deps.GetStats())
}

// handleReconcile handles POST /reconcile?dry_run= by running one pass
// immediately.
func (s *Server) handleReconcile(w http.ResponseWriter, r *http.Request) {
	const op = "api.reconcile"
	dryRun := false
	if raw := r.URL.Query().Get("dry_run"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
			return
		}
		dryRun = v
	}
	report, err := s.deps.Reconcile(r.Context(), dryRun)
	if err != nil {
		fail(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}
