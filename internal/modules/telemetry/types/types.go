package types

import "time"

// Wire keys of a telemetry payload.
const (
	FieldTemperature = "temperature"
	FieldTDSValue    = "TDS_Value"
	FieldLatitude    = "latitude"
	FieldLongitude   = "longitude"
	FieldSpeed       = "speed"
)

// Payload is a decoded telemetry message exactly as the device sent it.
// Keys outside the reading schema are kept so that rebroadcasts are verbatim.
type Payload map[string]any

// Reading is a persisted telemetry sample.
type Reading struct {
	ID          string    `json:"id"`
	Temperature *float64  `json:"temperature,omitempty"`
	TDSValue    *float64  `json:"TDS_Value,omitempty"`
	Latitude    *float64  `json:"latitude,omitempty"`
	Longitude   *float64  `json:"longitude,omitempty"`
	Speed       float64   `json:"speed"`
	Timestamp   time.Time `json:"timestamp"`
}

// Float returns a pointer to v; handy for building readings in code and tests.
func Float(v float64) *float64 {
	return &v
}
