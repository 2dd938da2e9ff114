// metrics.go — Prometheus HTTP метрики lanshare.
// Регистрирует метрики: ls_http_requests_total, ls_http_request_duration_seconds.
// Бизнес-метрики (ls_files_total, ls_operations_total и др.) регистрируются
// здесь же и обновляются из сервисного слоя.
package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP метрики
var (
	// httpRequestsTotal — общее количество HTTP-запросов.
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ls_http_requests_total",
			Help: "Общее количество HTTP-запросов к lanshare",
		},
		[]string{"method", "path", "status"},
	)

	// httpRequestDuration — гистограмма длительности HTTP-запросов.
	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ls_http_request_duration_seconds",
			Help:    "Длительность HTTP-запросов к lanshare в секундах",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
)

// Бизнес-метрики (экспортируются для обновления из сервисного слоя)
var (
	// FilesTotal — текущее количество файлов по состояниям (gauge).
	FilesTotal = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "ls_files_total",
			Help: "Текущее количество файлов в хранилище",
		},
		[]string{"state"},
	)

	// OperationsTotal — общее количество операций передачи.
	OperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ls_operations_total",
			Help: "Общее количество операций передачи файлов",
		},
		[]string{"operation", "result"},
	)

	// BytesTransferredTotal — переданные байты по направлениям.
	BytesTransferredTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ls_bytes_transferred_total",
			Help: "Общее количество переданных байт",
		},
		[]string{"direction"},
	)

	// KnownDevices — количество известных устройств (gauge).
	KnownDevices = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "ls_known_devices",
			Help: "Количество устройств, видимых в окне активности",
		},
	)
)

// MetricsMiddleware возвращает HTTP middleware для сбора Prometheus метрик.
// Записывает количество запросов и длительность для каждого endpoint.
func MetricsMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// Нормализуем путь для лейблов метрик
			// (заменяем UUID на {id} для предотвращения кардинальности)
			normalizedPath := normalizePath(r.URL.Path)

			wrapped := newStatusResponseWriter(w)
			next.ServeHTTP(wrapped, r)

			duration := time.Since(start).Seconds()
			status := strconv.Itoa(wrapped.statusCode)

			httpRequestsTotal.WithLabelValues(r.Method, normalizedPath, status).Inc()
			httpRequestDuration.WithLabelValues(r.Method, normalizedPath).Observe(duration)
		})
	}
}

// statusResponseWriter — обёртка для перехвата статус-кода.
type statusResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func newStatusResponseWriter(w http.ResponseWriter) *statusResponseWriter {
	return &statusResponseWriter{ResponseWriter: w, statusCode: http.StatusOK}
}

func (rw *statusResponseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Unwrap позволяет http.ResponseController получить доступ к оригинальному ResponseWriter.
func (rw *statusResponseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// normalizePath заменяет id-сегменты пути на {id} для предотвращения
// взрывного роста кардинальности метрик.
// /files/a1b2c3d4-e5f6-7890-abcd-ef1234567890/download → /files/{id}/download
func normalizePath(path string) string {
	switch {
	case path == "/", path == "/upload", path == "/files", path == "/history",
		path == "/metrics", path == "/health/live", path == "/health/ready":
		return path
	case strings.HasPrefix(path, "/files/"):
		rest := path[len("/files/"):]
		if strings.HasSuffix(rest, "/download") {
			return "/files/{id}/download"
		}
		if !strings.Contains(rest, "/") {
			return "/files/{id}"
		}
	}
	return path
}
