// cleanup.go — менеджер жизненного цикла файлов: фоновая очистка
// по настроенной политике и явное удаление по запросу.
package service

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/lanshare/internal/api/middleware"
	"github.com/bigkaa/lanshare/internal/config"
	"github.com/bigkaa/lanshare/internal/domain/model"
	"github.com/bigkaa/lanshare/internal/registry"
	"github.com/bigkaa/lanshare/internal/storage/blob"
)

var (
	cleanupRunsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ls_cleanup_runs_total",
		Help: "Количество проходов фоновой очистки",
	})
	cleanupFilesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ls_cleanup_files_total",
		Help: "Файлы, обработанные очисткой, по результату",
	}, []string{"result"})
	cleanupDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "ls_cleanup_duration_seconds",
		Help:    "Длительность прохода очистки",
		Buckets: prometheus.DefBuckets,
	})
)

// CleanupService — фоновая очистка файлов по политике.
type CleanupService struct {
	cfg    *config.Config
	store  *blob.Store
	reg    *registry.Registry
	policy Policy
	logger *slog.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewCleanupService создаёт менеджер жизненного цикла.
func NewCleanupService(
	cfg *config.Config,
	store *blob.Store,
	reg *registry.Registry,
	policy Policy,
	logger *slog.Logger,
) *CleanupService {
	return &CleanupService{
		cfg:    cfg,
		store:  store,
		reg:    reg,
		policy: policy,
		logger: logger.With(slog.String("component", "cleanup_service")),
	}
}

// Start запускает фоновый цикл очистки.
func (s *CleanupService) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		s.logger.Info("Фоновая очистка запущена",
			slog.String("policy", s.policy.Name()),
			slog.Duration("interval", s.cfg.CleanupInterval),
		)

		ticker := time.NewTicker(s.cfg.CleanupInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				s.logger.Info("Фоновая очистка остановлена")
				return
			case <-ticker.C:
				s.RunOnce()
			}
		}
	}()
}

// Stop останавливает фоновый цикл и дожидается завершения текущего
// прохода.
func (s *CleanupService) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
}

// RunOnce выполняет один проход очистки: обходит снимок реестра,
// помечает подходящие под политику файлы удалёнными и убирает их
// байты из хранилища.
//
// Файлы с активными читателями пропускаются и будут рассмотрены
// на следующем проходе.
func (s *CleanupService) RunOnce() int {
	start := time.Now()
	now := start.UTC()
	cleaned := 0

	for _, view := range s.reg.Snapshot() {
		if view.State != model.StateAvailable {
			continue
		}
		if !s.policy.Eligible(view, now) {
			continue
		}

		err := s.reg.MarkDeletedIfIdle(view.ID)
		if errors.Is(err, registry.ErrBusy) {
			// Файл сейчас скачивают — вернёмся на следующем проходе
			cleanupFilesTotal.WithLabelValues("busy").Inc()
			s.logger.Debug("Файл занят читателями, пропускаем",
				slog.String("file_id", view.ID),
				slog.Int("readers", view.Readers),
			)
			continue
		}
		if err != nil {
			continue
		}

		// Вторая фаза: убираем байты. Ошибка не отменяет пометку —
		// запись уже невидима, осиротевшие байты приберёт Reset при
		// следующем старте.
		if err := s.store.Remove(view.ID); err != nil {
			cleanupFilesTotal.WithLabelValues("remove_error").Inc()
			s.logger.Error("Ошибка удаления файла из хранилища",
				slog.String("file_id", view.ID),
				slog.String("error", err.Error()),
			)
		} else {
			cleanupFilesTotal.WithLabelValues("cleaned").Inc()
		}

		cleaned++
		s.logger.Info("Файл удалён очисткой",
			slog.String("file_id", view.ID),
			slog.String("filename", view.DisplayName),
			slog.String("policy", s.policy.Name()),
			slog.Int64("downloads", view.DownloadCount),
		)
	}

	s.updateGauges()
	cleanupRunsTotal.Inc()
	cleanupDuration.Observe(time.Since(start).Seconds())

	return cleaned
}

// DeleteNow выполняет явное удаление файла по запросу клиента.
// В отличие от фоновой очистки не проверяет активных читателей:
// начатые скачивания дочитывают из открытых handle.
func (s *CleanupService) DeleteNow(id string) error {
	if err := s.reg.MarkDeleted(id); err != nil {
		return err
	}

	if err := s.store.Remove(id); err != nil {
		s.logger.Error("Ошибка удаления файла из хранилища",
			slog.String("file_id", id),
			slog.String("error", err.Error()),
		)
	}

	middleware.OperationsTotal.WithLabelValues("delete", "success").Inc()
	s.updateGauges()

	s.logger.Info("Файл удалён по запросу",
		slog.String("file_id", id),
	)
	return nil
}

func (s *CleanupService) updateGauges() {
	middleware.FilesTotal.WithLabelValues(string(model.StateAvailable)).
		Set(float64(s.reg.CountByState(model.StateAvailable)))
	middleware.FilesTotal.WithLabelValues(string(model.StateDeleted)).
		Set(float64(s.reg.CountByState(model.StateDeleted)))
}
