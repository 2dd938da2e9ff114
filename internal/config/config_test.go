package config

import (
	"log/slog"
	"strings"
	"testing"
	"time"
)

// clearEnv сбрасывает все переменные LS_* для изоляции тестов.
func clearEnv(t *testing.T) {
	t.Helper()

	vars := []string{
		"LS_PORT", "LS_DATA_DIR", "LS_MAX_FILE_SIZE", "LS_CLEANUP_POLICY",
		"LS_DOWNLOAD_THRESHOLD", "LS_TTL", "LS_GRACE_PERIOD",
		"LS_CLEANUP_INTERVAL", "LS_DEVICE_WINDOW", "LS_HISTORY_LIMIT",
		"LS_IDLE_TIMEOUT", "LS_SHUTDOWN_TIMEOUT", "LS_LOG_LEVEL", "LS_LOG_FORMAT",
	}
	for _, v := range vars {
		t.Setenv(v, "")
	}
}

// TestLoad_Defaults проверяет значения по умолчанию: сервис должен
// подниматься без единой переменной окружения.
func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("ошибка загрузки конфигурации: %v", err)
	}

	if cfg.Port != 4848 {
		t.Errorf("Port: ожидалось 4848, получено %d", cfg.Port)
	}
	if cfg.MaxFileSize != 1073741824 {
		t.Errorf("MaxFileSize: ожидалось 1073741824, получено %d", cfg.MaxFileSize)
	}
	if cfg.CleanupPolicy != PolicyDownloads {
		t.Errorf("CleanupPolicy: ожидалось downloads, получено %s", cfg.CleanupPolicy)
	}
	if cfg.DownloadThreshold != 1 {
		t.Errorf("DownloadThreshold: ожидалось 1, получено %d", cfg.DownloadThreshold)
	}
	if cfg.TTL != 24*time.Hour {
		t.Errorf("TTL: ожидалось 24h, получено %s", cfg.TTL)
	}
	if cfg.GracePeriod != 30*time.Second {
		t.Errorf("GracePeriod: ожидалось 30s, получено %s", cfg.GracePeriod)
	}
	if cfg.CleanupInterval != 10*time.Second {
		t.Errorf("CleanupInterval: ожидалось 10s, получено %s", cfg.CleanupInterval)
	}
	if cfg.HistoryLimit != 1000 {
		t.Errorf("HistoryLimit: ожидалось 1000, получено %d", cfg.HistoryLimit)
	}
	if cfg.LogLevel != slog.LevelInfo {
		t.Errorf("LogLevel: ожидалось info, получено %s", cfg.LogLevel)
	}
	if cfg.LogFormat != "text" {
		t.Errorf("LogFormat: ожидалось text, получено %s", cfg.LogFormat)
	}
	if cfg.DataDir == "" {
		t.Error("DataDir не должен быть пустым")
	}
}

// TestLoad_Overrides проверяет переопределение через переменные окружения.
func TestLoad_Overrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("LS_PORT", "8080")
	t.Setenv("LS_DATA_DIR", "/srv/lanshare")
	t.Setenv("LS_MAX_FILE_SIZE", "1048576")
	t.Setenv("LS_CLEANUP_POLICY", "ttl")
	t.Setenv("LS_TTL", "6h")
	t.Setenv("LS_GRACE_PERIOD", "5s")
	t.Setenv("LS_LOG_LEVEL", "debug")
	t.Setenv("LS_LOG_FORMAT", "json")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("ошибка загрузки конфигурации: %v", err)
	}

	if cfg.Port != 8080 {
		t.Errorf("Port: ожидалось 8080, получено %d", cfg.Port)
	}
	if cfg.DataDir != "/srv/lanshare" {
		t.Errorf("DataDir: ожидалось /srv/lanshare, получено %s", cfg.DataDir)
	}
	if cfg.MaxFileSize != 1048576 {
		t.Errorf("MaxFileSize: ожидалось 1048576, получено %d", cfg.MaxFileSize)
	}
	if cfg.CleanupPolicy != PolicyTTL {
		t.Errorf("CleanupPolicy: ожидалось ttl, получено %s", cfg.CleanupPolicy)
	}
	if cfg.TTL != 6*time.Hour {
		t.Errorf("TTL: ожидалось 6h, получено %s", cfg.TTL)
	}
	if cfg.GracePeriod != 5*time.Second {
		t.Errorf("GracePeriod: ожидалось 5s, получено %s", cfg.GracePeriod)
	}
	if cfg.LogLevel != slog.LevelDebug {
		t.Errorf("LogLevel: ожидалось debug, получено %s", cfg.LogLevel)
	}
	if cfg.LogFormat != "json" {
		t.Errorf("LogFormat: ожидалось json, получено %s", cfg.LogFormat)
	}
}

// TestLoad_InvalidValues проверяет отказ при некорректных значениях.
func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		name    string
		key     string
		value   string
		errPart string
	}{
		{"некорректный порт", "LS_PORT", "abc", "LS_PORT"},
		{"порт вне диапазона", "LS_PORT", "99999", "диапазона"},
		{"отрицательный размер", "LS_MAX_FILE_SIZE", "-1", "положительным"},
		{"неизвестная политика", "LS_CLEANUP_POLICY", "random", "LS_CLEANUP_POLICY"},
		{"нулевой порог", "LS_DOWNLOAD_THRESHOLD", "0", "LS_DOWNLOAD_THRESHOLD"},
		{"некорректная длительность", "LS_TTL", "вечность", "LS_TTL"},
		{"неизвестный уровень логов", "LS_LOG_LEVEL", "verbose", "LS_LOG_LEVEL"},
		{"неизвестный формат логов", "LS_LOG_FORMAT", "xml", "LS_LOG_FORMAT"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(tt.key, tt.value)

			_, err := Load()
			if err == nil {
				t.Fatalf("ожидалась ошибка для %s=%s", tt.key, tt.value)
			}
			if !strings.Contains(err.Error(), tt.errPart) {
				t.Errorf("текст ошибки %q должен содержать %q", err.Error(), tt.errPart)
			}
		})
	}
}

// TestParseLogLevel проверяет разбор уровней логирования.
func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		input string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"INFO", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
	}

	for _, tt := range tests {
		got, err := parseLogLevel(tt.input)
		if err != nil {
			t.Errorf("parseLogLevel(%q): неожиданная ошибка %v", tt.input, err)
			continue
		}
		if got != tt.want {
			t.Errorf("parseLogLevel(%q): ожидалось %s, получено %s", tt.input, tt.want, got)
		}
	}
}
