package types

// ------------------------
// Wireless protocol payloads (JSON on the GATT characteristics)
// ------------------------

// StatusPayload is the Status characteristic body.
type StatusPayload struct {
	BLE             bool   `json:"ble"`
	PhoneConfigured bool   `json:"phone_configured"`
	Phone           string `json:"phone"`
	Interval        uint32 `json:"interval"`
	Alerts          bool   `json:"alerts"`
	User            bool   `json:"user"`
	Mode            string `json:"mode"`
	GPSValid        bool   `json:"gps_valid"`
	Lat             string `json:"lat"`
	Lon             string `json:"lon"`
}

// HistoryPoint is one History characteristic element.
type HistoryPoint struct {
	Lat  float64 `json:"lat"`
	Lon  float64 `json:"lon"`
	Time int64   `json:"time"`
	Src  uint8   `json:"src"`
}

// HistoryPayload is the History characteristic body. Page fields are only
// set for paged fetches.
type HistoryPayload struct {
	History []HistoryPoint `json:"history"`
	Count   int            `json:"count"`
	Page    *int           `json:"page,omitempty"`
	Pages   *int           `json:"pages,omitempty"`
}

// LocationPayload is the Location characteristic body.
type LocationPayload struct {
	Lat   string `json:"lat"`
	Lon   string `json:"lon"`
	Valid bool   `json:"valid"`
	Time  int64  `json:"time"`
}
