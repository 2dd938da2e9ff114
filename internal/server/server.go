// Пакет server — HTTP-сервер lanshare с graceful shutdown.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/bigkaa/lanshare/internal/api/handlers"
	"github.com/bigkaa/lanshare/internal/api/middleware"
	"github.com/bigkaa/lanshare/internal/config"
	"github.com/bigkaa/lanshare/internal/service"
)

// Server — HTTP-сервер lanshare.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
	cfg        *config.Config
}

// Handlers — обработчики всех endpoints сервера.
type Handlers struct {
	Files   *handlers.FilesHandler
	History *handlers.HistoryHandler
	Health  *handlers.HealthHandler
	Page    *handlers.PageHandler
}

// New создаёт HTTP-сервер с настроенными routes и middleware.
func New(cfg *config.Config, logger *slog.Logger, h Handlers, devices *service.DeviceTracker) *Server {
	router := NewRouter(logger, h, devices)

	// Read/Write таймауты не ставим: передача большого файла по
	// медленной сети легально занимает минуты.
	srv := &http.Server{
		Addr:        fmt.Sprintf(":%d", cfg.Port),
		Handler:     router,
		IdleTimeout: cfg.IdleTimeout,
	}

	return &Server{
		httpServer: srv,
		logger:     logger,
		cfg:        cfg,
	}
}

// NewRouter собирает chi-роутер со всеми маршрутами.
// Вынесен отдельно для использования в тестах через httptest.
func NewRouter(logger *slog.Logger, h Handlers, devices *service.DeviceTracker) chi.Router {
	router := chi.NewRouter()

	router.Use(middleware.RequestLogger(logger))
	router.Use(middleware.MetricsMiddleware())
	router.Use(middleware.DeviceTracking(devices))

	router.Get("/", h.Page.Index)

	router.Post("/upload", h.Files.Upload)
	router.Get("/files", h.Files.List)
	router.Get("/files/{id}/download", h.Files.Download)
	router.Delete("/files/{id}", h.Files.Delete)

	router.Get("/history", h.History.History)

	router.Get("/health/live", h.Health.Live)
	router.Get("/health/ready", h.Health.Ready)
	router.Handle("/metrics", promhttp.Handler())

	return router
}

// Run запускает сервер и ожидает сигнала завершения (SIGINT, SIGTERM).
// При получении сигнала выполняется graceful shutdown с таймаутом из
// конфигурации.
func (s *Server) Run() error {
	errCh := make(chan error, 1)

	go func() {
		s.logger.Info("HTTP-сервер запущен",
			slog.String("addr", s.httpServer.Addr),
		)

		err := s.httpServer.ListenAndServe()
		if err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		s.logger.Info("Получен сигнал завершения", slog.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("ошибка HTTP-сервера: %w", err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()

	s.logger.Info("Выполняется graceful shutdown...")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("ошибка при graceful shutdown: %w", err)
	}

	s.logger.Info("HTTP-сервер остановлен")
	return nil
}
