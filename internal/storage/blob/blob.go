// Пакет blob — байтовое хранилище файлов, ключом служит непрозрачный id.
// Метаданных не знает: create/write/finalize/open/remove поверх afero.Fs
// (OsFs в продакшене, MemMapFs в тестах).
//
// Паттерн записи: {id}.part → streaming запись → fsync → atomic rename в {id}.
// Открытый ReadHandle переживает Remove (семантика unlink): удаление
// влияет только на последующие Open.
package blob

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/spf13/afero"
)

// Ошибки контракта хранилища.
var (
	// ErrDuplicateID — id уже занят (активной записью или готовым файлом)
	ErrDuplicateID = errors.New("blob: идентификатор уже используется")
	// ErrIncompleteWrite — handle брошен или уже завершён
	ErrIncompleteWrite = errors.New("blob: запись не была завершена")
	// ErrNotFound — id неизвестен или файл не финализирован
	ErrNotFound = errors.New("blob: файл не найден")
)

// partSuffix — суффикс незавершённой записи.
const partSuffix = ".part"

// Store — хранилище байтов, потокобезопасно.
type Store struct {
	fs      afero.Fs
	dataDir string

	// mu защищает partial
	mu sync.Mutex
	// partial — id с активной незавершённой записью
	partial map[string]struct{}

	logger *slog.Logger
}

// New создаёт хранилище на реальной файловой системе.
func New(dataDir string, logger *slog.Logger) (*Store, error) {
	return NewWithFs(afero.NewOsFs(), dataDir, logger)
}

// NewWithFs создаёт хранилище поверх произвольной afero.Fs.
// Создаёт директорию данных, если она не существует.
func NewWithFs(fs afero.Fs, dataDir string, logger *slog.Logger) (*Store, error) {
	if err := fs.MkdirAll(dataDir, 0o750); err != nil {
		return nil, fmt.Errorf("не удалось создать директорию данных %s: %w", dataDir, err)
	}

	return &Store{
		fs:      fs,
		dataDir: dataDir,
		partial: make(map[string]struct{}),
		logger:  logger.With(slog.String("component", "blob")),
	}, nil
}

// DataDir возвращает путь к директории данных.
func (s *Store) DataDir() string {
	return s.dataDir
}

// CheckWritable проверяет, что директория данных доступна для записи.
// Используется readiness probe.
func (s *Store) CheckWritable() error {
	probe := filepath.Join(s.dataDir, ".writable-check")
	f, err := s.fs.Create(probe)
	if err != nil {
		return fmt.Errorf("директория данных недоступна для записи: %w", err)
	}
	f.Close()
	return s.fs.Remove(probe)
}

// WriteHandle — handle незавершённой записи. Не потокобезопасен:
// принадлежит одной загрузке.
type WriteHandle struct {
	store   *Store
	id      string
	f       afero.File
	written int64
	done    bool
	aborted bool
}

// Create выделяет хранилище под id и возвращает WriteHandle.
// Возвращает ErrDuplicateID, если id уже занят.
func (s *Store) Create(id string) (*WriteHandle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.partial[id]; ok {
		return nil, ErrDuplicateID
	}
	if exists, _ := afero.Exists(s.fs, s.dataPath(id)); exists {
		return nil, ErrDuplicateID
	}

	f, err := s.fs.Create(s.partPath(id))
	if err != nil {
		return nil, fmt.Errorf("ошибка создания временного файла: %w", err)
	}

	s.partial[id] = struct{}{}

	return &WriteHandle{store: s, id: id, f: f}, nil
}

// Write дописывает байты. Вызывается многократно при streaming-загрузке.
func (h *WriteHandle) Write(p []byte) (int, error) {
	if h.done || h.aborted {
		return 0, ErrIncompleteWrite
	}
	n, err := h.f.Write(p)
	h.written += int64(n)
	if err != nil {
		return n, fmt.Errorf("ошибка записи данных: %w", err)
	}
	return n, nil
}

// Finalize делает записанные байты неизменяемыми и возвращает итоговый
// размер. Паттерн: fsync → close → atomic rename {id}.part → {id}.
// Возвращает ErrIncompleteWrite, если handle был брошен или уже завершён.
func (h *WriteHandle) Finalize() (int64, error) {
	if h.done || h.aborted {
		return 0, ErrIncompleteWrite
	}

	if err := h.f.Sync(); err != nil {
		h.Abort()
		return 0, fmt.Errorf("ошибка fsync: %w", err)
	}
	if err := h.f.Close(); err != nil {
		h.Abort()
		return 0, fmt.Errorf("ошибка закрытия файла: %w", err)
	}

	if err := h.store.fs.Rename(h.store.partPath(h.id), h.store.dataPath(h.id)); err != nil {
		h.aborted = true
		_ = h.store.fs.Remove(h.store.partPath(h.id))
		h.store.forget(h.id)
		return 0, fmt.Errorf("ошибка атомарного переименования: %w", err)
	}

	h.done = true
	h.store.forget(h.id)

	return h.written, nil
}

// Abort прерывает запись и удаляет частично записанные байты.
// Идемпотентен: повторный вызов — no-op.
func (h *WriteHandle) Abort() {
	if h.done || h.aborted {
		return
	}
	h.aborted = true

	_ = h.f.Close()
	if err := h.store.fs.Remove(h.store.partPath(h.id)); err != nil && !os.IsNotExist(err) {
		h.store.logger.Error("Ошибка удаления временного файла",
			slog.String("id", h.id),
			slog.String("error", err.Error()),
		)
	}
	h.store.forget(h.id)
}

// ReadHandle — handle чтения финализированного файла.
type ReadHandle interface {
	io.ReadSeekCloser
}

// Open открывает финализированный файл для чтения.
// Возвращает ErrNotFound, если id неизвестен или запись не завершена.
// Вызывающий код обязан закрыть handle.
func (s *Store) Open(id string) (ReadHandle, error) {
	s.mu.Lock()
	_, inProgress := s.partial[id]
	s.mu.Unlock()
	if inProgress {
		return nil, ErrNotFound
	}

	f, err := s.fs.Open(s.dataPath(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка открытия файла %s: %w", id, err)
	}
	return f, nil
}

// Remove удаляет байты файла. Идемпотентен: удаление отсутствующего id —
// no-op, не ошибка. Уже открытые ReadHandle продолжают читать.
func (s *Store) Remove(id string) error {
	err := s.fs.Remove(s.dataPath(id))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("ошибка удаления файла %s: %w", id, err)
	}
	return nil
}

// Reset удаляет всё содержимое директории данных: брошенные .part и
// осиротевшие файлы прошлого запуска. Вызывается при старте процесса —
// реестр живёт только в памяти, поэтому после рестарта все байты
// на диске по определению осиротевшие.
// Возвращает количество удалённых файлов.
func (s *Store) Reset() (int, error) {
	entries, err := afero.ReadDir(s.fs, s.dataDir)
	if err != nil {
		return 0, fmt.Errorf("ошибка сканирования директории %s: %w", s.dataDir, err)
	}

	removed := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if err := s.fs.Remove(filepath.Join(s.dataDir, entry.Name())); err != nil {
			s.logger.Error("Ошибка удаления осиротевшего файла",
				slog.String("name", entry.Name()),
				slog.String("error", err.Error()),
			)
			continue
		}
		removed++
	}

	if removed > 0 {
		s.logger.Info("Директория данных очищена",
			slog.Int("removed", removed),
			slog.String("data_dir", s.dataDir),
		)
	}

	return removed, nil
}

// forget снимает отметку активной записи с id.
func (s *Store) forget(id string) {
	s.mu.Lock()
	delete(s.partial, id)
	s.mu.Unlock()
}

// dataPath возвращает путь финализированного файла.
func (s *Store) dataPath(id string) string {
	return filepath.Join(s.dataDir, sanitizeID(id))
}

// partPath возвращает путь незавершённой записи.
func (s *Store) partPath(id string) string {
	return s.dataPath(id) + partSuffix
}

// sanitizeID защищает от выхода за пределы dataDir.
// id генерируются как UUID, но хранилище не доверяет вызывающему коду.
func sanitizeID(id string) string {
	id = strings.ReplaceAll(id, string(filepath.Separator), "_")
	return strings.ReplaceAll(id, "..", "_")
}
