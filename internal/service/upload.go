// Пакет service — бизнес-логика lanshare.
// upload.go — сервис приёма загружаемых файлов.
package service

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/bigkaa/lanshare/internal/api/apierrors"
	"github.com/bigkaa/lanshare/internal/api/middleware"
	"github.com/bigkaa/lanshare/internal/config"
	"github.com/bigkaa/lanshare/internal/domain/model"
	"github.com/bigkaa/lanshare/internal/registry"
	"github.com/bigkaa/lanshare/internal/storage/blob"
)

// UploadParams — параметры загрузки файла.
type UploadParams struct {
	// Reader — поток данных файла
	Reader io.Reader
	// DisplayName — оригинальное имя файла
	DisplayName string
	// DeclaredSize — заявленный размер (Content-Length), -1 если неизвестен
	DeclaredSize int64
	// ClientAddr — адрес загружающего клиента
	ClientAddr string
}

// UploadError — ошибка загрузки с HTTP-кодом.
type UploadError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *UploadError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// UploadService — сервис загрузки файлов.
type UploadService struct {
	cfg    *config.Config
	store  *blob.Store
	reg    *registry.Registry
	logger *slog.Logger
}

// NewUploadService создаёт сервис загрузки файлов.
func NewUploadService(
	cfg *config.Config,
	store *blob.Store,
	reg *registry.Registry,
	logger *slog.Logger,
) *UploadService {
	return &UploadService{
		cfg:    cfg,
		store:  store,
		reg:    reg,
		logger: logger.With(slog.String("component", "upload_service")),
	}
}

// Upload принимает файл в хранилище.
//
// Поток:
//  1. Проверка заявленного размера
//  2. registry.BeginUpload — запись в состоянии uploading
//  3. blob.Create + streaming io.Copy (файл целиком в память не читается)
//  4. Finalize (fsync + atomic rename)
//  5. registry.CompleteUpload — запись становится available
//
// При любой ошибке — rollback: Abort handle + AbortUpload. Частично
// загруженный файл никогда не виден в списке доступных.
func (s *UploadService) Upload(params UploadParams) (*model.FileRecord, *UploadError) {
	// 1. Заявленный размер проверяем до приёма первого байта.
	// Превышение лимита — ошибка клиента, отвечаем 400.
	if params.DeclaredSize > s.cfg.MaxFileSize {
		middleware.OperationsTotal.WithLabelValues("upload", "rejected").Inc()
		return nil, &UploadError{
			StatusCode: http.StatusBadRequest,
			Code:       apierrors.CodeFileTooLarge,
			Message:    fmt.Sprintf("Размер файла %d байт превышает максимум %d байт", params.DeclaredSize, s.cfg.MaxFileSize),
		}
	}

	// 2. Регистрируем загрузку
	id := s.reg.BeginUpload(params.DisplayName)

	// 3. Выделяем хранилище
	handle, err := s.store.Create(id)
	if err != nil {
		_ = s.reg.AbortUpload(id)
		middleware.OperationsTotal.WithLabelValues("upload", "error").Inc()

		if errors.Is(err, blob.ErrDuplicateID) {
			// Невозможно при UUID v4, но контракт хранилища честный
			return nil, &UploadError{
				StatusCode: http.StatusConflict,
				Code:       apierrors.CodeConflict,
				Message:    "Идентификатор файла уже используется",
			}
		}
		s.logger.Error("Ошибка выделения хранилища",
			slog.String("file_id", id),
			slog.String("error", err.Error()),
		)
		return nil, &UploadError{
			StatusCode: http.StatusInternalServerError,
			Code:       apierrors.CodeInternalError,
			Message:    "Ошибка сохранения файла",
		}
	}

	rollback := func() {
		handle.Abort()
		_ = s.reg.AbortUpload(id)
	}

	// 4. Streaming запись. LimitReader прерывает приём сразу после
	// превышения лимита, не дожидаясь конца потока.
	written, err := io.Copy(handle, io.LimitReader(params.Reader, s.cfg.MaxFileSize+1))
	if err != nil {
		rollback()

		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			middleware.OperationsTotal.WithLabelValues("upload", "rejected").Inc()
			return nil, &UploadError{
				StatusCode: http.StatusBadRequest,
				Code:       apierrors.CodeFileTooLarge,
				Message:    fmt.Sprintf("Размер файла превышает максимум %d байт", s.cfg.MaxFileSize),
			}
		}

		// Обрыв соединения клиентом — штатная ситуация, не ошибка сервера
		middleware.OperationsTotal.WithLabelValues("upload", "aborted").Inc()
		s.logger.Info("Загрузка прервана",
			slog.String("file_id", id),
			slog.String("filename", params.DisplayName),
			slog.Int64("received", written),
			slog.String("error", err.Error()),
		)
		return nil, &UploadError{
			StatusCode: http.StatusBadRequest,
			Code:       apierrors.CodeValidationError,
			Message:    "Загрузка прервана до получения всех данных",
		}
	}

	if written > s.cfg.MaxFileSize {
		rollback()
		middleware.OperationsTotal.WithLabelValues("upload", "rejected").Inc()
		return nil, &UploadError{
			StatusCode: http.StatusBadRequest,
			Code:       apierrors.CodeFileTooLarge,
			Message:    fmt.Sprintf("Размер файла превышает максимум %d байт", s.cfg.MaxFileSize),
		}
	}

	// 5. Финализация: fsync + atomic rename
	size, err := handle.Finalize()
	if err != nil {
		rollback()
		middleware.OperationsTotal.WithLabelValues("upload", "error").Inc()
		s.logger.Error("Ошибка финализации файла",
			slog.String("file_id", id),
			slog.String("error", err.Error()),
		)
		return nil, &UploadError{
			StatusCode: http.StatusInternalServerError,
			Code:       apierrors.CodeInternalError,
			Message:    "Ошибка сохранения файла",
		}
	}

	// 6. Файл становится доступным
	rec, err := s.reg.CompleteUpload(id, size, params.ClientAddr)
	if err != nil {
		// Байты уже записаны, но запись не финализировалась — убираем
		_ = s.store.Remove(id)
		middleware.OperationsTotal.WithLabelValues("upload", "error").Inc()

		if errors.Is(err, registry.ErrAlreadyFinalized) {
			return nil, &UploadError{
				StatusCode: http.StatusConflict,
				Code:       apierrors.CodeConflict,
				Message:    "Загрузка уже была завершена",
			}
		}
		s.logger.Error("Ошибка завершения загрузки",
			slog.String("file_id", id),
			slog.String("error", err.Error()),
		)
		return nil, &UploadError{
			StatusCode: http.StatusInternalServerError,
			Code:       apierrors.CodeInternalError,
			Message:    "Ошибка регистрации файла",
		}
	}

	middleware.OperationsTotal.WithLabelValues("upload", "success").Inc()
	middleware.FilesTotal.WithLabelValues(string(model.StateAvailable)).Inc()
	middleware.BytesTransferredTotal.WithLabelValues("in").Add(float64(size))

	s.logger.Info("Файл загружен",
		slog.String("file_id", id),
		slog.String("filename", params.DisplayName),
		slog.Int64("size", size),
		slog.String("client", params.ClientAddr),
	)

	return &rec, nil
}
