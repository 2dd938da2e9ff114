// Пакет registry — потокобезопасный in-memory реестр передач.
// Единственный источник истины о том, какие файлы доступны.
//
// Конкурентность: карта id → entry защищена RWMutex, каждый entry
// несёт собственный мьютекс. Мутации одного id сериализованы между
// собой, операции над разными id идут параллельно — глобальная
// блокировка держится только на время поиска в карте.
//
// Не персистентный: при рестарте процесса реестр пуст.
package registry

import (
	"errors"
	"sort"
	"sync"
	"time"

	"log/slog"

	"github.com/google/uuid"

	"github.com/bigkaa/lanshare/internal/domain/model"
)

// Ошибки контракта реестра.
var (
	// ErrUnknownID — id никогда не начинал загрузку
	ErrUnknownID = errors.New("registry: неизвестный идентификатор")
	// ErrAlreadyFinalized — загрузка уже завершена или прервана
	ErrAlreadyFinalized = errors.New("registry: загрузка уже завершена")
	// ErrNotFound — запись не существует или недоступна
	ErrNotFound = errors.New("registry: файл не найден")
	// ErrBusy — у записи есть активные читатели
	ErrBusy = errors.New("registry: файл сейчас скачивается")
)

// entry — запись реестра с собственным мьютексом.
type entry struct {
	mu  sync.Mutex
	rec model.FileRecord

	// readers — количество активных скачиваний.
	// Запись с readers > 0 не подлежит очистке.
	readers int

	// downloaders — адреса клиентов, завершивших скачивание.
	// Используется политикой очистки "devices".
	downloaders map[string]struct{}

	// uploaderAddr — адрес клиента, загрузившего файл
	uploaderAddr string
}

// RecordView — снимок записи для менеджера жизненного цикла.
// Содержит копии: изменение view не влияет на реестр.
type RecordView struct {
	model.FileRecord
	// Readers — активные скачивания на момент снимка
	Readers int
	// Downloaders — адреса клиентов, завершивших скачивание
	Downloaders []string
	// UploaderAddr — адрес клиента, загрузившего файл
	UploaderAddr string
}

// Registry — реестр передач.
type Registry struct {
	mu      sync.RWMutex
	records map[string]*entry

	hist   *historyLog
	logger *slog.Logger
}

// New создаёт пустой реестр. historyLimit ограничивает размер журнала
// передач: при переполнении отбрасываются самые старые записи.
func New(historyLimit int, logger *slog.Logger) *Registry {
	return &Registry{
		records: make(map[string]*entry),
		hist:    newHistoryLog(historyLimit),
		logger:  logger.With(slog.String("component", "registry")),
	}
}

// BeginUpload создаёт запись в состоянии uploading и возвращает свежий id.
// UUID v4 гарантирует, что id не переиспользуются за время жизни процесса.
func (r *Registry) BeginUpload(displayName string) string {
	id := uuid.New().String()

	e := &entry{
		rec: model.FileRecord{
			ID:          id,
			DisplayName: displayName,
			State:       model.StateUploading,
		},
		downloaders: make(map[string]struct{}),
	}

	r.mu.Lock()
	r.records[id] = e
	r.mu.Unlock()

	return id
}

// CompleteUpload переводит запись в состояние available, фиксирует
// размер и момент загрузки, добавляет upload-запись в журнал.
// Возвращает ErrUnknownID для неизвестного id и ErrAlreadyFinalized
// при повторном вызове.
func (r *Registry) CompleteUpload(id string, sizeBytes int64, clientAddr string) (model.FileRecord, error) {
	e := r.lookup(id)
	if e == nil {
		return model.FileRecord{}, ErrUnknownID
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.rec.State != model.StateUploading {
		return model.FileRecord{}, ErrAlreadyFinalized
	}

	now := time.Now().UTC()
	e.rec.State = model.StateAvailable
	e.rec.SizeBytes = sizeBytes
	e.rec.UploadedAt = now
	e.uploaderAddr = clientAddr

	r.hist.append(model.HistoryEntry{
		FileID:     id,
		FileName:   e.rec.DisplayName,
		Action:     model.ActionUpload,
		Timestamp:  now,
		ClientAddr: clientAddr,
	})

	r.logger.Debug("Запись стала доступной",
		slog.String("file_id", id),
		slog.Int64("size", sizeBytes),
	)

	return e.rec, nil
}

// AbortUpload переводит запись из uploading сразу в deleted, минуя
// available. Используется при разрыве соединения во время загрузки.
// Возвращает ErrUnknownID для неизвестного id. Повторный вызов — no-op.
func (r *Registry) AbortUpload(id string) error {
	e := r.lookup(id)
	if e == nil {
		return ErrUnknownID
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.rec.State == model.StateUploading {
		e.rec.State = model.StateDeleted
	}
	return nil
}

// Get возвращает копию записи. ErrNotFound, если id неизвестен.
func (r *Registry) Get(id string) (model.FileRecord, error) {
	e := r.lookup(id)
	if e == nil {
		return model.FileRecord{}, ErrNotFound
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	return e.rec, nil
}

// List возвращает доступные файлы, отсортированные по дате загрузки
// (новые первые). Порядок — пользовательский контракт, а не деталь
// реализации. Отражает все CompleteUpload, завершившиеся до вызова.
func (r *Registry) List() []model.FileRecord {
	r.mu.RLock()
	entries := make([]*entry, 0, len(r.records))
	for _, e := range r.records {
		entries = append(entries, e)
	}
	r.mu.RUnlock()

	out := make([]model.FileRecord, 0, len(entries))
	for _, e := range entries {
		e.mu.Lock()
		if e.rec.IsAvailable() {
			out = append(out, e.rec)
		}
		e.mu.Unlock()
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].UploadedAt.After(out[j].UploadedAt)
	})

	return out
}

// AcquireReader регистрирует активное скачивание. Пока счётчик
// читателей больше нуля, запись не подлежит очистке.
// Возвращает копию записи или ErrNotFound, если файл недоступен.
func (r *Registry) AcquireReader(id string) (model.FileRecord, error) {
	e := r.lookup(id)
	if e == nil {
		return model.FileRecord{}, ErrNotFound
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.rec.IsAvailable() {
		return model.FileRecord{}, ErrNotFound
	}

	e.readers++
	return e.rec, nil
}

// ReleaseReader снимает регистрацию активного скачивания.
func (r *Registry) ReleaseReader(id string) {
	e := r.lookup(id)
	if e == nil {
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.readers > 0 {
		e.readers--
	}
}

// RecordDownload фиксирует полностью завершённое скачивание:
// инкрементирует счётчик и добавляет download-запись в журнал.
// Вызывается только после того, как всё тело ответа ушло клиенту.
// Возвращает ErrNotFound, если запись недоступна.
func (r *Registry) RecordDownload(id, clientAddr string) (model.FileRecord, error) {
	e := r.lookup(id)
	if e == nil {
		return model.FileRecord{}, ErrNotFound
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.rec.IsAvailable() {
		return model.FileRecord{}, ErrNotFound
	}

	now := time.Now().UTC()
	e.rec.DownloadCount++
	e.rec.LastDownloadAt = &now
	e.downloaders[clientAddr] = struct{}{}

	r.hist.append(model.HistoryEntry{
		FileID:     id,
		FileName:   e.rec.DisplayName,
		Action:     model.ActionDownload,
		Timestamp:  now,
		ClientAddr: clientAddr,
	})

	return e.rec, nil
}

// MarkDeleted — первая фаза двухфазного удаления: запись немедленно
// становится невидимой для новых скачиваний, байты удаляет вызывающий
// код после. Возвращает ErrNotFound, если запись неизвестна или уже
// удалена. Активные читатели дочитывают из уже открытых handle.
func (r *Registry) MarkDeleted(id string) error {
	e := r.lookup(id)
	if e == nil {
		return ErrNotFound
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.rec.State == model.StateDeleted {
		return ErrNotFound
	}

	e.rec.State = model.StateDeleted
	r.logger.Debug("Запись помечена удалённой", slog.String("file_id", id))
	return nil
}

// MarkDeletedIfIdle — вариант MarkDeleted для фоновой очистки:
// отказывает с ErrBusy, если у записи есть активные читатели.
// Проверка и переход выполняются под одним мьютексом записи,
// поэтому гонка «читатель пришёл между проверкой и пометкой»
// исключена.
func (r *Registry) MarkDeletedIfIdle(id string) error {
	e := r.lookup(id)
	if e == nil {
		return ErrNotFound
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.rec.IsAvailable() {
		return ErrNotFound
	}
	if e.readers > 0 {
		return ErrBusy
	}

	e.rec.State = model.StateDeleted
	return nil
}

// Snapshot возвращает снимок всех записей для менеджера жизненного
// цикла: состояние, читатели, адреса скачавших клиентов.
func (r *Registry) Snapshot() []RecordView {
	r.mu.RLock()
	entries := make([]*entry, 0, len(r.records))
	for _, e := range r.records {
		entries = append(entries, e)
	}
	r.mu.RUnlock()

	out := make([]RecordView, 0, len(entries))
	for _, e := range entries {
		e.mu.Lock()
		view := RecordView{
			FileRecord:   e.rec,
			Readers:      e.readers,
			UploaderAddr: e.uploaderAddr,
		}
		if len(e.downloaders) > 0 {
			view.Downloaders = make([]string, 0, len(e.downloaders))
			for addr := range e.downloaders {
				view.Downloaders = append(view.Downloaders, addr)
			}
		}
		e.mu.Unlock()
		out = append(out, view)
	}

	return out
}

// History возвращает журнал передач в хронологическом порядке
// (старые записи первые). Только чтение.
func (r *Registry) History() []model.HistoryEntry {
	return r.hist.entries()
}

// CountByState возвращает количество записей в указанном состоянии.
func (r *Registry) CountByState(state model.FileState) int {
	r.mu.RLock()
	entries := make([]*entry, 0, len(r.records))
	for _, e := range r.records {
		entries = append(entries, e)
	}
	r.mu.RUnlock()

	count := 0
	for _, e := range entries {
		e.mu.Lock()
		if e.rec.State == state {
			count++
		}
		e.mu.Unlock()
	}
	return count
}

// lookup возвращает entry по id или nil.
func (r *Registry) lookup(id string) *entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.records[id]
}
