// devices.go — учёт устройств по адресам входящих запросов.
package middleware

import (
	"net"
	"net/http"
)

// DeviceToucher отмечает активность устройства по адресу.
type DeviceToucher interface {
	Touch(addr string)
	Count() int
}

// DeviceTracking регистрирует адрес каждого входящего запроса в
// трекере устройств. Трекер питает политику очистки devices и
// метрику известных устройств.
func DeviceTracking(devices DeviceToucher) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			host, _, err := net.SplitHostPort(r.RemoteAddr)
			if err != nil {
				host = r.RemoteAddr
			}
			devices.Touch(host)
			KnownDevices.Set(float64(devices.Count()))

			next.ServeHTTP(w, r)
		})
	}
}
