// page.go — встроенная веб-страница обмена файлами.
package handlers

import (
	_ "embed"
	"net/http"
)

//go:embed index.html
var indexPage []byte

// PageHandler — обработчик корневой страницы.
type PageHandler struct{}

// NewPageHandler создаёт обработчик корневой страницы.
func NewPageHandler() *PageHandler {
	return &PageHandler{}
}

// Index обрабатывает GET /.
// Отдаёт страницу для загрузки и скачивания файлов из браузера.
func (h *PageHandler) Index(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(indexPage)
}
