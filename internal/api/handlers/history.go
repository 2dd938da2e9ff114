// history.go — журнал передач.
package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/bigkaa/lanshare/internal/registry"
)

// HistoryHandler — обработчик журнала передач.
type HistoryHandler struct {
	reg    *registry.Registry
	logger *slog.Logger
}

// NewHistoryHandler создаёт обработчик журнала передач.
func NewHistoryHandler(reg *registry.Registry, logger *slog.Logger) *HistoryHandler {
	return &HistoryHandler{
		reg:    reg,
		logger: logger.With(slog.String("component", "history_handler")),
	}
}

// History обрабатывает GET /history.
// Возвращает журнал в хронологическом порядке, включая записи об
// уже удалённых файлах.
func (h *HistoryHandler) History(w http.ResponseWriter, r *http.Request) {
	entries := h.reg.History()

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(entries); err != nil {
		h.logger.Error("Ошибка сериализации ответа", slog.String("error", err.Error()))
	}
}
