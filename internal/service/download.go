// download.go — сервис выдачи файлов клиентам.
package service

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"path/filepath"

	"github.com/bigkaa/lanshare/internal/api/apierrors"
	"github.com/bigkaa/lanshare/internal/api/middleware"
	"github.com/bigkaa/lanshare/internal/registry"
	"github.com/bigkaa/lanshare/internal/storage/blob"
)

// DownloadService — сервис скачивания файлов.
type DownloadService struct {
	store  *blob.Store
	reg    *registry.Registry
	logger *slog.Logger
}

// NewDownloadService создаёт сервис скачивания файлов.
func NewDownloadService(store *blob.Store, reg *registry.Registry, logger *slog.Logger) *DownloadService {
	return &DownloadService{
		store:  store,
		reg:    reg,
		logger: logger.With(slog.String("component", "download_service")),
	}
}

// Serve отдаёт файл клиенту.
//
// Порядок существенный: сначала открываем файл в хранилище, потом
// регистрируемся читателем. Открытый дескриптор переживает удаление
// файла (unlink), поэтому начатое скачивание доходит до конца даже
// если файл удалят в процессе.
//
// Скачивание засчитывается только после передачи всех байтов без
// ошибки. Оборванное соединение счётчик не увеличивает.
func (s *DownloadService) Serve(w http.ResponseWriter, r *http.Request, id, clientAddr string) {
	handle, err := s.store.Open(id)
	if err != nil {
		if errors.Is(err, blob.ErrNotFound) {
			middleware.OperationsTotal.WithLabelValues("download", "not_found").Inc()
			apierrors.NotFound(w, "Файл не найден")
			return
		}
		s.logger.Error("Ошибка открытия файла",
			slog.String("file_id", id),
			slog.String("error", err.Error()),
		)
		middleware.OperationsTotal.WithLabelValues("download", "error").Inc()
		apierrors.InternalError(w, "Ошибка чтения файла")
		return
	}
	defer handle.Close()

	rec, err := s.reg.AcquireReader(id)
	if err != nil {
		middleware.OperationsTotal.WithLabelValues("download", "not_found").Inc()
		apierrors.NotFound(w, "Файл не найден")
		return
	}
	defer s.reg.ReleaseReader(id)

	contentType := mime.TypeByExtension(filepath.Ext(rec.DisplayName))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Length", fmt.Sprintf("%d", rec.SizeBytes))
	w.Header().Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=%q", rec.DisplayName))

	written, err := io.Copy(w, handle)
	middleware.BytesTransferredTotal.WithLabelValues("out").Add(float64(written))

	if err != nil || written != rec.SizeBytes {
		// Клиент оборвал соединение. Заголовки уже отправлены,
		// код ответа менять поздно — только логируем.
		middleware.OperationsTotal.WithLabelValues("download", "aborted").Inc()
		s.logger.Info("Скачивание прервано",
			slog.String("file_id", id),
			slog.String("client", clientAddr),
			slog.Int64("sent", written),
			slog.Int64("size", rec.SizeBytes),
		)
		return
	}

	if _, err := s.reg.RecordDownload(id, clientAddr); err != nil {
		// Файл удалили пока мы отдавали байты. Клиент данные получил,
		// но в историю скачивание уже не попадает.
		s.logger.Debug("Скачивание завершено после удаления файла",
			slog.String("file_id", id),
		)
	}

	middleware.OperationsTotal.WithLabelValues("download", "success").Inc()
	s.logger.Info("Файл скачан",
		slog.String("file_id", id),
		slog.String("filename", rec.DisplayName),
		slog.Int64("size", rec.SizeBytes),
		slog.String("client", clientAddr),
	)
}
