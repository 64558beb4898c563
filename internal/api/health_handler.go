// health_handler.go -- Health check handler for GET /health.
package api

import (
	"errors"
	"net/http"

	"github.com/MGallo-Code/ticklist/internal/store"
)

// CheckHealth handles GET /health: pings Postgres and the cache, returns per-dependency status.
// Returns 200 if both are healthy (an in-process cache reports "disabled"), 503 if either is down.
func (h *Handler) CheckHealth(w http.ResponseWriter, r *http.Request) {
	cacheStatus := "ok"
	postgresStatus := "ok"

	if err := h.Cache.CheckHealth(r.Context()); err != nil {
		if errors.Is(err, store.ErrCacheDisabled) {
			cacheStatus = "disabled"
		} else {
			logError(r, "cache health check failed", "error", err)
			cacheStatus = "error"
		}
	}
	if err := h.Store.CheckHealth(r.Context()); err != nil {
		logError(r, "postgres health check failed", "error", err)
		postgresStatus = "error"
	}

	status := http.StatusOK
	if cacheStatus == "error" || postgresStatus == "error" {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, struct {
		Postgres string `json:"postgres"`
		Cache    string `json:"cache"`
	}{postgresStatus, cacheStatus})
}
