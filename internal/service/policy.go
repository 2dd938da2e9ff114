// policy.go — подключаемые политики очистки хранилища.
//
// Политика решает только вопрос пригодности записи к удалению;
// само удаление (двухфазный протокол, учёт активных читателей)
// выполняет CleanupService.
package service

import (
	"fmt"
	"time"

	"github.com/bigkaa/lanshare/internal/config"
	"github.com/bigkaa/lanshare/internal/registry"
)

// Policy — политика пригодности файла к удалению.
type Policy interface {
	// Name возвращает имя политики для логов и метрик.
	Name() string
	// Eligible сообщает, подлежит ли доступная запись удалению.
	// Вызывается только для записей в состоянии available.
	Eligible(view registry.RecordView, now time.Time) bool
}

// NewPolicy создаёт политику по конфигурации.
// devices требуется только политике devices, остальные его игнорируют.
func NewPolicy(cfg *config.Config, devices *DeviceTracker) (Policy, error) {
	switch cfg.CleanupPolicy {
	case config.PolicyDownloads:
		return &DownloadCountPolicy{
			Threshold: cfg.DownloadThreshold,
			Grace:     cfg.GracePeriod,
		}, nil
	case config.PolicyTTL:
		return &TTLPolicy{TTL: cfg.TTL}, nil
	case config.PolicyDevices:
		return &AllDevicesPolicy{
			Devices: devices,
			Grace:   cfg.GracePeriod,
		}, nil
	case config.PolicyManual:
		return ManualPolicy{}, nil
	default:
		return nil, fmt.Errorf("неизвестная политика очистки: %q", cfg.CleanupPolicy)
	}
}

// DownloadCountPolicy — удаление после Threshold успешных скачиваний.
// Grace period отсчитывается от последнего скачивания: каждое новое
// скачивание продлевает жизнь файла ещё на grace, что покрывает
// почти одновременные запросы нескольких устройств.
type DownloadCountPolicy struct {
	Threshold int
	Grace     time.Duration
}

func (p *DownloadCountPolicy) Name() string { return config.PolicyDownloads }

func (p *DownloadCountPolicy) Eligible(view registry.RecordView, now time.Time) bool {
	if view.DownloadCount < int64(p.Threshold) {
		return false
	}
	if view.LastDownloadAt == nil {
		return false
	}
	return now.Sub(*view.LastDownloadAt) >= p.Grace
}

// TTLPolicy — удаление по истечении времени жизни с момента загрузки,
// независимо от скачиваний.
type TTLPolicy struct {
	TTL time.Duration
}

func (p *TTLPolicy) Name() string { return config.PolicyTTL }

func (p *TTLPolicy) Eligible(view registry.RecordView, now time.Time) bool {
	return now.Sub(view.UploadedAt) >= p.TTL
}

// AllDevicesPolicy — удаление, когда файл скачали все устройства,
// известные на момент проверки. Пустой список известных устройств
// не делает файл пригодным: как минимум одно скачивание обязательно.
type AllDevicesPolicy struct {
	Devices *DeviceTracker
	Grace   time.Duration
}

func (p *AllDevicesPolicy) Name() string { return config.PolicyDevices }

func (p *AllDevicesPolicy) Eligible(view registry.RecordView, now time.Time) bool {
	if view.DownloadCount == 0 || view.LastDownloadAt == nil {
		return false
	}

	downloaded := make(map[string]struct{}, len(view.Downloaders))
	for _, addr := range view.Downloaders {
		downloaded[addr] = struct{}{}
	}

	// Загрузчик свой файл не скачивает, его адрес из требования исключён.
	for _, addr := range p.Devices.Known() {
		if addr == view.UploaderAddr {
			continue
		}
		if _, ok := downloaded[addr]; !ok {
			return false
		}
	}

	return now.Sub(*view.LastDownloadAt) >= p.Grace
}

// ManualPolicy — автоматическая очистка выключена, файлы удаляются
// только явным DELETE /files/{id}.
type ManualPolicy struct{}

func (ManualPolicy) Name() string { return config.PolicyManual }

func (ManualPolicy) Eligible(registry.RecordView, time.Time) bool { return false }
