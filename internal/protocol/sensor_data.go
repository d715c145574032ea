package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/smukkama/landslide-monitor/internal/reading"
)

const (
	DateLayout = "2006-01-02"
	TimeLayout = "15:04:05"
)

// SensorData is the body of GET /api/sensor-data.
type SensorData struct {
	Date         string              `json:"date"`
	Time         string              `json:"time"`
	Timestamp    string              `json:"timestamp,omitempty"`
	SoilMoisture reading.Measurement `json:"soilMoisture"`
	Displacement reading.Measurement `json:"displacement"`
	Rainfall     reading.Measurement `json:"rainfall"`
	Vibration    reading.Measurement `json:"vibration"`
	Temperature  reading.Measurement `json:"temperature"`
	ESP32        *DevicePayload      `json:"esp32,omitempty"`
}

// NewSensorData converts a reading to its wire form. Date and time are
// rendered in the reading's own location.
func NewSensorData(r reading.SensorReading) *SensorData {
	ts := r.Timestamp()
	m := r.Measurements()

	data := &SensorData{
		Date:         ts.Format(DateLayout),
		Time:         ts.Format(TimeLayout),
		Timestamp:    ts.Format(time.RFC3339Nano),
		SoilMoisture: m.SoilMoisture,
		Displacement: m.Displacement,
		Rainfall:     m.Rainfall,
		Vibration:    m.Vibration,
		Temperature:  m.Temperature,
	}
	if d, ok := r.Device(); ok {
		data.ESP32 = DevicePayloadFrom(d)
	}
	return data
}

// Reading converts the wire form back to a reading. The timestamp comes from
// the RFC3339 field, then from date and time in loc, then falls back to
// receivedAt.
func (s *SensorData) Reading(receivedAt time.Time, loc *time.Location) reading.SensorReading {
	ts := receivedAt
	if s.Timestamp != "" {
		if parsed, err := time.Parse(time.RFC3339Nano, s.Timestamp); err == nil {
			ts = parsed
		}
	} else if s.Date != "" && s.Time != "" {
		if parsed, err := time.ParseInLocation(DateLayout+" "+TimeLayout, s.Date+" "+s.Time, loc); err == nil {
			ts = parsed
		}
	}

	values := reading.Measurements{
		SoilMoisture: s.SoilMoisture,
		Displacement: s.Displacement,
		Rainfall:     s.Rainfall,
		Vibration:    s.Vibration,
		Temperature:  s.Temperature,
	}

	var device *reading.Device
	if s.ESP32 != nil {
		d := s.ESP32.Device()
		device = &d
	}
	return reading.New(ts, values, device)
}

// EncodeSensorData encodes a reading for the wire.
func EncodeSensorData(r reading.SensorReading) ([]byte, error) {
	return json.Marshal(NewSensorData(r))
}

// DecodeSensorData decodes a /api/sensor-data body. The body must be a JSON
// object; missing measurements decode as unavailable.
func DecodeSensorData(data []byte, receivedAt time.Time) (reading.SensorReading, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return reading.SensorReading{}, fmt.Errorf("invalid sensor data: expected JSON object")
	}

	var s SensorData
	if err := json.Unmarshal(data, &s); err != nil {
		return reading.SensorReading{}, fmt.Errorf("invalid sensor data: %w", err)
	}
	return s.Reading(receivedAt, time.Local), nil
}
