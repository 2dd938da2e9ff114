// Пакет config — загрузка и валидация конфигурации lanshare
// из переменных окружения.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Версия приложения, задаётся при сборке через -ldflags.
var Version = "dev"

// Политики очистки хранилища.
const (
	// PolicyDownloads — удаление после N успешных скачиваний (+ grace period)
	PolicyDownloads = "downloads"
	// PolicyTTL — удаление по истечении времени жизни с момента загрузки
	PolicyTTL = "ttl"
	// PolicyDevices — удаление, когда файл скачали все известные устройства
	PolicyDevices = "devices"
	// PolicyManual — только явное удаление через DELETE /files/{id}
	PolicyManual = "manual"
)

// Config содержит все параметры конфигурации lanshare.
// Все параметры опциональны: сервис должен подниматься без настройки.
type Config struct {
	// Порт HTTP-сервера
	Port int
	// Путь к директории хранения файлов
	DataDir string
	// Максимальный размер загружаемого файла в байтах
	MaxFileSize int64
	// Политика очистки (downloads, ttl, devices, manual)
	CleanupPolicy string
	// Порог скачиваний для политики downloads
	DownloadThreshold int
	// Время жизни файла для политики ttl
	TTL time.Duration
	// Grace period: минимальное время доступности файла после того,
	// как он стал кандидатом на удаление
	GracePeriod time.Duration
	// Интервал запуска фоновой очистки
	CleanupInterval time.Duration
	// Окно, в течение которого устройство считается «известным»
	DeviceWindow time.Duration
	// Максимальное количество записей журнала передач
	HistoryLimit int
	// Idle-таймаут HTTP-соединений
	IdleTimeout time.Duration
	// Таймаут graceful shutdown HTTP-сервера
	ShutdownTimeout time.Duration
	// Уровень логирования (debug, info, warn, error)
	LogLevel slog.Level
	// Формат логов (json, text)
	LogFormat string
}

// Load загружает конфигурацию из переменных окружения, валидирует
// значения и возвращает Config или ошибку.
func Load() (*Config, error) {
	cfg := &Config{}

	// LS_PORT — порт HTTP-сервера (по умолчанию 4848 —
	// порт, документированный продуктом)
	port, err := getEnvInt("LS_PORT", 4848)
	if err != nil {
		return nil, fmt.Errorf("LS_PORT: %w", err)
	}
	if port < 1 || port > 65535 {
		return nil, fmt.Errorf("LS_PORT: значение %d вне допустимого диапазона 1-65535", port)
	}
	cfg.Port = port

	// LS_DATA_DIR — директория хранения (по умолчанию во временной
	// директории ОС: состояние не переживает рестарт по контракту)
	cfg.DataDir = getEnvDefault("LS_DATA_DIR", filepath.Join(os.TempDir(), "lanshare"))

	// LS_MAX_FILE_SIZE — максимальный размер файла (по умолчанию 1 GB)
	maxFileSize, err := getEnvInt64("LS_MAX_FILE_SIZE", 1073741824)
	if err != nil {
		return nil, fmt.Errorf("LS_MAX_FILE_SIZE: %w", err)
	}
	if maxFileSize <= 0 {
		return nil, fmt.Errorf("LS_MAX_FILE_SIZE: значение должно быть положительным")
	}
	cfg.MaxFileSize = maxFileSize

	// LS_CLEANUP_POLICY — политика очистки (по умолчанию downloads:
	// файл удаляется после первого успешного скачивания с grace period)
	cfg.CleanupPolicy = getEnvDefault("LS_CLEANUP_POLICY", PolicyDownloads)
	validPolicies := map[string]bool{
		PolicyDownloads: true,
		PolicyTTL:       true,
		PolicyDevices:   true,
		PolicyManual:    true,
	}
	if !validPolicies[cfg.CleanupPolicy] {
		return nil, fmt.Errorf("LS_CLEANUP_POLICY: недопустимое значение %q, допустимые: downloads, ttl, devices, manual", cfg.CleanupPolicy)
	}

	// LS_DOWNLOAD_THRESHOLD — порог скачиваний (по умолчанию 1)
	threshold, err := getEnvInt("LS_DOWNLOAD_THRESHOLD", 1)
	if err != nil {
		return nil, fmt.Errorf("LS_DOWNLOAD_THRESHOLD: %w", err)
	}
	if threshold < 1 {
		return nil, fmt.Errorf("LS_DOWNLOAD_THRESHOLD: значение должно быть не меньше 1")
	}
	cfg.DownloadThreshold = threshold

	// LS_TTL — время жизни файла для политики ttl (по умолчанию 24h)
	cfg.TTL, err = getEnvDuration("LS_TTL", 24*time.Hour)
	if err != nil {
		return nil, fmt.Errorf("LS_TTL: %w", err)
	}

	// LS_GRACE_PERIOD — grace period (по умолчанию 30s).
	// Позволяет нескольким устройствам скачать файл почти одновременно
	// до освобождения места.
	cfg.GracePeriod, err = getEnvDuration("LS_GRACE_PERIOD", 30*time.Second)
	if err != nil {
		return nil, fmt.Errorf("LS_GRACE_PERIOD: %w", err)
	}

	// LS_CLEANUP_INTERVAL — интервал фоновой очистки (по умолчанию 10s)
	cfg.CleanupInterval, err = getEnvDuration("LS_CLEANUP_INTERVAL", 10*time.Second)
	if err != nil {
		return nil, fmt.Errorf("LS_CLEANUP_INTERVAL: %w", err)
	}

	// LS_DEVICE_WINDOW — окно актуальности устройства (по умолчанию 10m)
	cfg.DeviceWindow, err = getEnvDuration("LS_DEVICE_WINDOW", 10*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("LS_DEVICE_WINDOW: %w", err)
	}

	// LS_HISTORY_LIMIT — размер журнала передач (по умолчанию 1000)
	historyLimit, err := getEnvInt("LS_HISTORY_LIMIT", 1000)
	if err != nil {
		return nil, fmt.Errorf("LS_HISTORY_LIMIT: %w", err)
	}
	if historyLimit < 1 {
		return nil, fmt.Errorf("LS_HISTORY_LIMIT: значение должно быть не меньше 1")
	}
	cfg.HistoryLimit = historyLimit

	// LS_IDLE_TIMEOUT — idle-таймаут соединений (по умолчанию 120s).
	// Ограничивает удержание ресурсов зависшими клиентами.
	cfg.IdleTimeout, err = getEnvDuration("LS_IDLE_TIMEOUT", 120*time.Second)
	if err != nil {
		return nil, fmt.Errorf("LS_IDLE_TIMEOUT: %w", err)
	}

	// LS_SHUTDOWN_TIMEOUT — таймаут graceful shutdown (по умолчанию 10s)
	cfg.ShutdownTimeout, err = getEnvDuration("LS_SHUTDOWN_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, fmt.Errorf("LS_SHUTDOWN_TIMEOUT: %w", err)
	}

	// LS_LOG_LEVEL — уровень логирования (по умолчанию info)
	cfg.LogLevel, err = parseLogLevel(getEnvDefault("LS_LOG_LEVEL", "info"))
	if err != nil {
		return nil, fmt.Errorf("LS_LOG_LEVEL: %w", err)
	}

	// LS_LOG_FORMAT — формат логов (по умолчанию text: сервис
	// запускается на рабочей машине, а не в кластере)
	cfg.LogFormat = getEnvDefault("LS_LOG_FORMAT", "text")
	if cfg.LogFormat != "json" && cfg.LogFormat != "text" {
		return nil, fmt.Errorf("LS_LOG_FORMAT: недопустимое значение %q, допустимые: json, text", cfg.LogFormat)
	}

	return cfg, nil
}

// SetupLogger настраивает глобальный slog-логгер на основе конфигурации.
func SetupLogger(cfg *Config) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}

	var handler slog.Handler
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// --- Вспомогательные функции ---

// getEnvDefault возвращает значение переменной окружения или значение по умолчанию.
func getEnvDefault(key, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val
}

// getEnvInt возвращает целочисленное значение переменной окружения или значение по умолчанию.
func getEnvInt(key string, defaultVal int) (int, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("некорректное целое число: %q", val)
	}
	return n, nil
}

// getEnvInt64 возвращает int64 значение переменной окружения или значение по умолчанию.
func getEnvInt64(key string, defaultVal int64) (int64, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	n, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("некорректное целое число: %q", val)
	}
	return n, nil
}

// getEnvDuration возвращает time.Duration из переменной окружения или значение по умолчанию.
func getEnvDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return 0, fmt.Errorf("некорректная длительность: %q (используйте формат Go: 30s, 1h, 6h)", val)
	}
	return d, nil
}

// parseLogLevel преобразует строку уровня логирования в slog.Level.
func parseLogLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("недопустимый уровень %q, допустимые: debug, info, warn, error", level)
	}
}
