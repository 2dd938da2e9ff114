package blob

import (
	"bytes"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/spf13/afero"
)

func testStore(t *testing.T) *Store {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s, err := NewWithFs(afero.NewMemMapFs(), "/data", logger)
	if err != nil {
		t.Fatalf("ошибка создания хранилища: %v", err)
	}
	return s
}

func mustWrite(t *testing.T, s *Store, id string, content []byte) {
	t.Helper()

	h, err := s.Create(id)
	if err != nil {
		t.Fatalf("ошибка Create: %v", err)
	}
	if _, err := h.Write(content); err != nil {
		t.Fatalf("ошибка Write: %v", err)
	}
	if _, err := h.Finalize(); err != nil {
		t.Fatalf("ошибка Finalize: %v", err)
	}
}

// TestNewWithFs_CreatesDirectory проверяет создание директории данных.
func TestNewWithFs_CreatesDirectory(t *testing.T) {
	fs := afero.NewMemMapFs()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	s, err := NewWithFs(fs, "/data/files", logger)
	if err != nil {
		t.Fatalf("ошибка создания хранилища: %v", err)
	}

	info, err := fs.Stat(s.DataDir())
	if err != nil {
		t.Fatalf("директория не создана: %v", err)
	}
	if !info.IsDir() {
		t.Fatal("путь не является директорией")
	}
}

// TestWriteReadCycle проверяет полный цикл: Create → Write → Finalize → Open.
func TestWriteReadCycle(t *testing.T) {
	s := testStore(t)
	content := []byte("Hello, World! Тестовые данные для проверки.")

	h, err := s.Create("file-1")
	if err != nil {
		t.Fatalf("ошибка Create: %v", err)
	}

	n, err := h.Write(content)
	if err != nil {
		t.Fatalf("ошибка Write: %v", err)
	}
	if n != len(content) {
		t.Errorf("записано байт: ожидалось %d, получено %d", len(content), n)
	}

	size, err := h.Finalize()
	if err != nil {
		t.Fatalf("ошибка Finalize: %v", err)
	}
	if size != int64(len(content)) {
		t.Errorf("размер: ожидалось %d, получено %d", len(content), size)
	}

	r, err := s.Open("file-1")
	if err != nil {
		t.Fatalf("ошибка Open: %v", err)
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("ошибка чтения: %v", err)
	}
	if !bytes.Equal(data, content) {
		t.Error("прочитанные данные не совпадают с записанными")
	}
}

// TestCreate_DuplicateID проверяет отказ при повторном использовании id.
func TestCreate_DuplicateID(t *testing.T) {
	s := testStore(t)

	// Активная запись занимает id
	h, err := s.Create("dup")
	if err != nil {
		t.Fatalf("ошибка Create: %v", err)
	}

	if _, err := s.Create("dup"); !errors.Is(err, ErrDuplicateID) {
		t.Errorf("ожидалась ErrDuplicateID, получено %v", err)
	}

	// Финализированный файл тоже занимает id
	if _, err := h.Write([]byte("x")); err != nil {
		t.Fatalf("ошибка Write: %v", err)
	}
	if _, err := h.Finalize(); err != nil {
		t.Fatalf("ошибка Finalize: %v", err)
	}

	if _, err := s.Create("dup"); !errors.Is(err, ErrDuplicateID) {
		t.Errorf("ожидалась ErrDuplicateID после финализации, получено %v", err)
	}
}

// TestOpen_Unfinalized проверяет, что незавершённая запись не видна для чтения.
func TestOpen_Unfinalized(t *testing.T) {
	s := testStore(t)

	h, err := s.Create("partial")
	if err != nil {
		t.Fatalf("ошибка Create: %v", err)
	}
	if _, err := h.Write([]byte("половина данных")); err != nil {
		t.Fatalf("ошибка Write: %v", err)
	}

	if _, err := s.Open("partial"); !errors.Is(err, ErrNotFound) {
		t.Errorf("незавершённый файл не должен открываться, получено %v", err)
	}
}

// TestOpen_NotFound проверяет ошибку при открытии несуществующего файла.
func TestOpen_NotFound(t *testing.T) {
	s := testStore(t)

	if _, err := s.Open("nonexistent"); !errors.Is(err, ErrNotFound) {
		t.Errorf("ожидалась ErrNotFound, получено %v", err)
	}
}

// TestAbort проверяет откат незавершённой записи.
func TestAbort(t *testing.T) {
	s := testStore(t)

	h, err := s.Create("aborted")
	if err != nil {
		t.Fatalf("ошибка Create: %v", err)
	}
	if _, err := h.Write([]byte("брошенные данные")); err != nil {
		t.Fatalf("ошибка Write: %v", err)
	}

	h.Abort()

	// id освобождён
	if _, err := s.Create("aborted"); err != nil {
		t.Errorf("id должен быть свободен после Abort: %v", err)
	}
}

// TestAbort_Idempotent проверяет, что повторный Abort безопасен.
func TestAbort_Idempotent(t *testing.T) {
	s := testStore(t)

	h, err := s.Create("a")
	if err != nil {
		t.Fatalf("ошибка Create: %v", err)
	}

	h.Abort()
	h.Abort()
}

// TestFinalize_AfterAbort проверяет отказ финализации после отката.
func TestFinalize_AfterAbort(t *testing.T) {
	s := testStore(t)

	h, err := s.Create("fa")
	if err != nil {
		t.Fatalf("ошибка Create: %v", err)
	}
	h.Abort()

	if _, err := h.Finalize(); !errors.Is(err, ErrIncompleteWrite) {
		t.Errorf("ожидалась ErrIncompleteWrite, получено %v", err)
	}
}

// TestRemove проверяет удаление файла и повторное удаление.
func TestRemove(t *testing.T) {
	s := testStore(t)
	mustWrite(t, s, "rm-1", []byte("delete me"))

	if err := s.Remove("rm-1"); err != nil {
		t.Fatalf("ошибка Remove: %v", err)
	}

	if _, err := s.Open("rm-1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("файл должен быть удалён, получено %v", err)
	}

	// Повторное удаление — не ошибка
	if err := s.Remove("rm-1"); err != nil {
		t.Errorf("повторный Remove не должен быть ошибкой: %v", err)
	}
}

// TestReset проверяет очистку каталога данных при старте.
func TestReset(t *testing.T) {
	s := testStore(t)
	mustWrite(t, s, "old-1", []byte("данные прошлого запуска"))
	mustWrite(t, s, "old-2", []byte("ещё одни"))

	// Брошенный .part файл тоже должен исчезнуть
	h, err := s.Create("old-3")
	if err != nil {
		t.Fatalf("ошибка Create: %v", err)
	}
	if _, err := h.Write([]byte("part")); err != nil {
		t.Fatalf("ошибка Write: %v", err)
	}

	removed, err := s.Reset()
	if err != nil {
		t.Fatalf("ошибка Reset: %v", err)
	}
	if removed != 3 {
		t.Errorf("удалено файлов: ожидалось 3, получено %d", removed)
	}

	for _, id := range []string{"old-1", "old-2"} {
		if _, err := s.Open(id); !errors.Is(err, ErrNotFound) {
			t.Errorf("файл %s должен быть удалён после Reset", id)
		}
	}
}

// TestCheckWritable проверяет readiness-пробу каталога данных.
func TestCheckWritable(t *testing.T) {
	s := testStore(t)

	if err := s.CheckWritable(); err != nil {
		t.Errorf("каталог должен быть доступен для записи: %v", err)
	}

	// Проба не оставляет следов в каталоге данных
	entries, err := afero.ReadDir(s.fs, s.DataDir())
	if err != nil {
		t.Fatalf("ошибка чтения каталога: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("каталог должен быть пуст после пробы, найдено %d файлов", len(entries))
	}
}
