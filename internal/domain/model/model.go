// Пакет model — доменные модели lanshare.
// FileRecord — метаданные одного загруженного файла, HistoryEntry —
// неизменяемая запись журнала передач. Обе структуры принадлежат
// реестру передач и наружу отдаются только копиями.
package model

import (
	"time"
)

// FileState — состояние файла в реестре.
type FileState string

const (
	// StateUploading — загрузка начата, байты ещё пишутся
	StateUploading FileState = "uploading"
	// StateAvailable — файл полностью записан и доступен для скачивания
	StateAvailable FileState = "available"
	// StateDeleted — терминальное состояние, байты удалены или удаляются
	StateDeleted FileState = "deleted"
)

// FileRecord — метаданные загруженного файла.
// ID назначается при начале загрузки и никогда не переиспользуется.
type FileRecord struct {
	// ID — уникальный идентификатор файла (UUID v4)
	ID string `json:"id"`

	// DisplayName — оригинальное имя файла при загрузке.
	// Уникальность не гарантируется.
	DisplayName string `json:"display_name"`

	// SizeBytes — размер файла в байтах.
	// Заполняется в момент завершения загрузки.
	SizeBytes int64 `json:"size_bytes"`

	// UploadedAt — момент полного сохранения файла (UTC).
	// Не момент начала загрузки.
	UploadedAt time.Time `json:"uploaded_at"`

	// State — текущее состояние файла
	State FileState `json:"state"`

	// DownloadCount — количество полностью завершённых скачиваний.
	// Только растёт.
	DownloadCount int64 `json:"download_count"`

	// LastDownloadAt — момент последнего завершённого скачивания.
	// nil, если файл ещё не скачивали.
	LastDownloadAt *time.Time `json:"last_download_at,omitempty"`
}

// IsAvailable проверяет, что файл доступен для скачивания.
func (r *FileRecord) IsAvailable() bool {
	return r.State == StateAvailable
}

// HistoryAction — тип события в журнале передач.
type HistoryAction string

const (
	// ActionUpload — завершённая загрузка файла
	ActionUpload HistoryAction = "upload"
	// ActionDownload — завершённое скачивание файла
	ActionDownload HistoryAction = "download"
)

// HistoryEntry — запись журнала передач. После создания не изменяется.
// Журнал хранится в хронологическом порядке (старые записи первые).
type HistoryEntry struct {
	// FileID — идентификатор файла
	FileID string `json:"file_id"`

	// FileName — имя файла на момент события.
	// Дублируется из FileRecord: запись переживает удаление файла.
	FileName string `json:"file_name"`

	// Action — тип события (upload или download)
	Action HistoryAction `json:"action"`

	// Timestamp — момент события (UTC)
	Timestamp time.Time `json:"timestamp"`

	// ClientAddr — адрес клиента, выполнившего операцию
	ClientAddr string `json:"client_addr"`
}
