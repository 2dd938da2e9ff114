// health.go — liveness и readiness probes.
package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/bigkaa/lanshare/internal/config"
	"github.com/bigkaa/lanshare/internal/storage/blob"
)

// HealthHandler — обработчик health endpoints.
type HealthHandler struct {
	store *blob.Store
}

// NewHealthHandler создаёт обработчик health endpoints.
func NewHealthHandler(store *blob.Store) *HealthHandler {
	return &HealthHandler{store: store}
}

// Live обрабатывает GET /health/live.
// Процесс жив и принимает запросы.
func (h *HealthHandler) Live(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]string{
		"status":  "alive",
		"version": config.Version,
	})
}

// Ready обрабатывает GET /health/ready.
// Готов, когда каталог данных доступен для записи.
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	if err := h.store.CheckWritable(); err != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		_ = json.NewEncoder(w).Encode(map[string]string{
			"status": "not_ready",
			"reason": err.Error(),
		})
		return
	}

	writeJSON(w, map[string]string{
		"status": "ready",
	})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
