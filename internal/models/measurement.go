package models

const (
	StatusGood      = "BAIK"
	StatusModerate  = "SEDANG"
	StatusUnhealthy = "TIDAK SEHAT"
	StatusUnknown   = "UNKNOWN"
)

// Measurement is one PM reading. (DeviceID, Timestamp) is its key; Timestamp
// is epoch milliseconds.
type Measurement struct {
	DeviceID  string   `json:"deviceId"`
	Timestamp int64    `json:"timestamp"`
	PM25      *float64 `json:"pm25"`
	PM10      *float64 `json:"pm10"`
	Location  string   `json:"location"`
	Status    string   `json:"status"`
	CreatedAt int64    `json:"created_at"`
}
