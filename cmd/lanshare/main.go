// Точка входа lanshare — сервиса обмена файлами в локальной сети.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"

	"github.com/bigkaa/lanshare/internal/api/handlers"
	"github.com/bigkaa/lanshare/internal/config"
	"github.com/bigkaa/lanshare/internal/registry"
	"github.com/bigkaa/lanshare/internal/server"
	"github.com/bigkaa/lanshare/internal/service"
	"github.com/bigkaa/lanshare/internal/storage/blob"
)

func main() {
	// .env удобен при локальной разработке, в продакшене его нет
	_ = godotenv.Load()

	// Загрузка конфигурации из переменных окружения
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Ошибка конфигурации: %v\n", err)
		os.Exit(1)
	}

	// Настройка логгера
	logger := config.SetupLogger(cfg)
	logger.Info("lanshare запускается",
		slog.String("version", config.Version),
		slog.Int("port", cfg.Port),
		slog.String("data_dir", cfg.DataDir),
		slog.String("cleanup_policy", cfg.CleanupPolicy),
	)

	// --- Инициализация компонентов ---

	// 1. Байтовое хранилище
	store, err := blob.New(cfg.DataDir, logger)
	if err != nil {
		logger.Error("Ошибка инициализации хранилища", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Реестр живёт только в памяти, поэтому все файлы на диске после
	// рестарта — осиротевшие байты. Начинаем с чистого каталога.
	removed, err := store.Reset()
	if err != nil {
		logger.Error("Ошибка очистки каталога данных", slog.String("error", err.Error()))
		os.Exit(1)
	}
	if removed > 0 {
		logger.Info("Каталог данных очищен от файлов предыдущего запуска",
			slog.Int("removed", removed),
		)
	}

	logDiskUsage(logger, cfg.DataDir)

	// 2. Реестр передач
	reg := registry.New(cfg.HistoryLimit, logger)

	// 3. Трекер устройств локальной сети
	devices := service.NewDeviceTracker(cfg.DeviceWindow)

	// 4. Политика очистки
	policy, err := service.NewPolicy(cfg, devices)
	if err != nil {
		logger.Error("Ошибка конфигурации политики очистки", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 5. Сервисы
	uploadSvc := service.NewUploadService(cfg, store, reg, logger)
	downloadSvc := service.NewDownloadService(store, reg, logger)
	cleanupSvc := service.NewCleanupService(cfg, store, reg, policy, logger)

	// 6. Фоновая очистка
	cleanupSvc.Start(context.Background())

	// 7. Handlers
	h := server.Handlers{
		Files:   handlers.NewFilesHandler(cfg, uploadSvc, downloadSvc, cleanupSvc, reg, logger),
		History: handlers.NewHistoryHandler(reg, logger),
		Health:  handlers.NewHealthHandler(store),
		Page:    handlers.NewPageHandler(),
	}

	// 8. Запуск HTTP-сервера
	srv := server.New(cfg, logger, h, devices)

	if err := srv.Run(); err != nil {
		logger.Error("Ошибка сервера", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// --- Graceful shutdown фоновых процессов ---
	logger.Info("Остановка фоновых процессов...")
	cleanupSvc.Stop()

	logger.Info("lanshare остановлен")
}

// logDiskUsage пишет в лог доступное место в каталоге данных.
func logDiskUsage(logger *slog.Logger, dataDir string) {
	total, used, available, err := getDiskUsage(dataDir)
	if err != nil {
		logger.Warn("Не удалось получить информацию о диске",
			slog.String("error", err.Error()),
		)
		return
	}
	logger.Info("Дисковое пространство каталога данных",
		slog.Int64("total_bytes", total),
		slog.Int64("used_bytes", used),
		slog.Int64("available_bytes", available),
	)
}
