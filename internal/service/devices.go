// devices.go — трекер известных устройств локальной сети.
//
// Устройство считается известным, если оно обращалось к сервису в
// пределах скользящего окна (LS_DEVICE_WINDOW). Используется политикой
// очистки devices: файл удаляется, когда его скачали все известные
// устройства. Отдельного протокола обнаружения нет — известность
// выводится из наблюдаемых HTTP-запросов.
package service

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// deviceCacheSize — максимум отслеживаемых адресов.
// Для локальной сети заведомо достаточно.
const deviceCacheSize = 1024

// DeviceTracker — потокобезопасный трекер адресов устройств
// с автоматическим истечением по TTL.
type DeviceTracker struct {
	cache *expirable.LRU[string, struct{}]
}

// NewDeviceTracker создаёт трекер. window — время, в течение которого
// устройство после последнего запроса считается известным.
func NewDeviceTracker(window time.Duration) *DeviceTracker {
	return &DeviceTracker{
		cache: expirable.NewLRU[string, struct{}](deviceCacheSize, nil, window),
	}
}

// Touch отмечает активность устройства. Вызывается на каждый HTTP-запрос.
func (t *DeviceTracker) Touch(addr string) {
	if addr == "" {
		return
	}
	t.cache.Add(addr, struct{}{})
}

// Known возвращает адреса устройств, активных в пределах окна.
func (t *DeviceTracker) Known() []string {
	return t.cache.Keys()
}

// Count возвращает количество известных устройств.
func (t *DeviceTracker) Count() int {
	return t.cache.Len()
}
