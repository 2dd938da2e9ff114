// Пакет handlers — HTTP handlers lanshare.
// files.go — файловые операции: Upload, List, Download, Delete.
package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/bigkaa/lanshare/internal/api/apierrors"
	"github.com/bigkaa/lanshare/internal/config"
	"github.com/bigkaa/lanshare/internal/registry"
	"github.com/bigkaa/lanshare/internal/service"
)

// FilesHandler — обработчик файловых endpoints.
type FilesHandler struct {
	cfg         *config.Config
	uploadSvc   *service.UploadService
	downloadSvc *service.DownloadService
	cleanupSvc  *service.CleanupService
	reg         *registry.Registry
	logger      *slog.Logger
}

// NewFilesHandler создаёт обработчик файловых endpoints.
func NewFilesHandler(
	cfg *config.Config,
	uploadSvc *service.UploadService,
	downloadSvc *service.DownloadService,
	cleanupSvc *service.CleanupService,
	reg *registry.Registry,
	logger *slog.Logger,
) *FilesHandler {
	return &FilesHandler{
		cfg:         cfg,
		uploadSvc:   uploadSvc,
		downloadSvc: downloadSvc,
		cleanupSvc:  cleanupSvc,
		reg:         reg,
		logger:      logger.With(slog.String("component", "files_handler")),
	}
}

// Upload обрабатывает POST /upload.
//
// Принимает multipart/form-data с полем file либо сырое тело запроса
// с именем файла в query-параметре filename или заголовке X-Filename.
// Тело не буферизуется: байты идут из сети напрямую в хранилище.
func (h *FilesHandler) Upload(w http.ResponseWriter, r *http.Request) {
	// Жёсткий лимит на всё тело запроса
	r.Body = http.MaxBytesReader(w, r.Body, h.cfg.MaxFileSize+maxMultipartOverhead)

	var reader io.Reader
	var displayName string
	declaredSize := int64(-1)

	contentType := r.Header.Get("Content-Type")
	if strings.HasPrefix(contentType, "multipart/form-data") {
		// Streaming чтение multipart: ParseMultipartForm буферизует
		// файл целиком, MultipartReader отдаёт поток по частям
		mr, err := r.MultipartReader()
		if err != nil {
			apierrors.ValidationError(w, "Ошибка разбора multipart: "+err.Error())
			return
		}

		part, err := nextFilePart(mr)
		if err != nil {
			apierrors.ValidationError(w, "Поле 'file' обязательно")
			return
		}
		defer part.Close()

		reader = part
		displayName = part.FileName()
	} else {
		// Сырое тело: имя файла из query или заголовка
		displayName = r.URL.Query().Get("filename")
		if displayName == "" {
			displayName = r.Header.Get("X-Filename")
		}
		reader = r.Body
		declaredSize = r.ContentLength
	}

	displayName = sanitizeFilename(displayName)
	if displayName == "" {
		apierrors.ValidationError(w, "Имя файла не указано")
		return
	}

	rec, uploadErr := h.uploadSvc.Upload(service.UploadParams{
		Reader:       reader,
		DisplayName:  displayName,
		DeclaredSize: declaredSize,
		ClientAddr:   clientAddr(r),
	})
	if uploadErr != nil {
		apierrors.WriteError(w, uploadErr.StatusCode, uploadErr.Code, uploadErr.Message)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	if err := json.NewEncoder(w).Encode(rec); err != nil {
		h.logger.Error("Ошибка сериализации ответа", slog.String("error", err.Error()))
	}
}

// List обрабатывает GET /files.
// Возвращает доступные файлы, отсортированные по времени загрузки
// (новые первые). Файлы в состоянии uploading и deleted не видны.
func (h *FilesHandler) List(w http.ResponseWriter, r *http.Request) {
	records := h.reg.List()

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(records); err != nil {
		h.logger.Error("Ошибка сериализации ответа", slog.String("error", err.Error()))
	}
}

// Download обрабатывает GET /files/{id}/download.
func (h *FilesHandler) Download(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	h.downloadSvc.Serve(w, r, id, clientAddr(r))
}

// Delete обрабатывает DELETE /files/{id}.
// Удаление немедленное: файл исчезает из списка сразу, начатые
// скачивания дочитывают до конца.
func (h *FilesHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := h.cleanupSvc.DeleteNow(id); err != nil {
		if errors.Is(err, registry.ErrNotFound) {
			apierrors.NotFound(w, "Файл не найден")
			return
		}
		h.logger.Error("Ошибка удаления файла",
			slog.String("file_id", id),
			slog.String("error", err.Error()),
		)
		apierrors.InternalError(w, "Ошибка удаления файла")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// maxMultipartOverhead — запас на boundary и заголовки частей multipart
const maxMultipartOverhead = 1 << 20

// nextFilePart ищет в multipart-потоке первую часть с именем file.
func nextFilePart(mr *multipart.Reader) (*multipart.Part, error) {
	for {
		part, err := mr.NextPart()
		if err != nil {
			return nil, err
		}
		if part.FormName() == "file" && part.FileName() != "" {
			return part, nil
		}
		part.Close()
	}
}

// sanitizeFilename отбрасывает путь, оставляя только имя файла.
// Защита от "../../etc/passwd" в имени.
func sanitizeFilename(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	name = filepath.Base(name)
	if name == "." || name == "/" {
		return ""
	}
	return name
}

// clientAddr возвращает адрес клиента без порта. Один хост с разных
// эфемерных портов — одно устройство.
func clientAddr(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
