package handler

import "net/http"

// Health is the liveness probe
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Ready is the readiness probe; it verifies backing stores when present
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	checks := map[string]string{}

	if h.db != nil {
		if err := h.db.HealthCheck(r.Context()); err != nil {
			checks["database"] = "unavailable"
			writeJSON(w, http.StatusServiceUnavailable, map[string]interface{}{"status": "degraded", "checks": checks})
			return
		}
		checks["database"] = "ok"
	}
	if h.rdb != nil {
		if err := h.rdb.HealthCheck(r.Context()); err != nil {
			checks["redis"] = "unavailable"
			writeJSON(w, http.StatusServiceUnavailable, map[string]interface{}{"status": "degraded", "checks": checks})
			return
		}
		checks["redis"] = "ok"
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"status": "ready", "checks": checks})
}
