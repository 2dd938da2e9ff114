// history.go — ограниченный журнал передач.
package registry

import (
	"sync"

	"github.com/bigkaa/lanshare/internal/domain/model"
)

// defaultHistoryLimit — размер журнала по умолчанию.
const defaultHistoryLimit = 1000

// historyLog — append-only журнал с ограничением размера.
// При переполнении отбрасываются самые старые записи, монотонность
// временного порядка сохраняется.
type historyLog struct {
	mu      sync.Mutex
	limit   int
	records []model.HistoryEntry
}

func newHistoryLog(limit int) *historyLog {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	return &historyLog{limit: limit}
}

// append добавляет запись, отбрасывая самые старые при переполнении.
func (h *historyLog) append(e model.HistoryEntry) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.records = append(h.records, e)
	if len(h.records) > h.limit {
		// Сдвигаем вместо реаллокации: переполнение на одну запись
		overflow := len(h.records) - h.limit
		h.records = append(h.records[:0], h.records[overflow:]...)
	}
}

// entries возвращает копию журнала в хронологическом порядке.
func (h *historyLog) entries() []model.HistoryEntry {
	h.mu.Lock()
	defer h.mu.Unlock()

	out := make([]model.HistoryEntry, len(h.records))
	copy(out, h.records)
	return out
}
