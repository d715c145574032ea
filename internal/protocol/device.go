package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/smukkama/landslide-monitor/internal/reading"
)

// NoDataMarker is returned by /data before the device has sent anything.
const NoDataMarker = "no data yet"

// GPSFix is the position block of the device payload.
type GPSFix struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// DevicePayload is one JSON line sent by the ESP32 over serial.
type DevicePayload struct {
	MPU  string   `json:"MPU,omitempty"`
	GPS  *GPSFix  `json:"GPS,omitempty"`
	BATT *float64 `json:"BATT,omitempty"`

	// The field unit may also report measurements under the dashboard names.
	SoilMoisture *float64 `json:"soilMoisture,omitempty"`
	Displacement *float64 `json:"displacement,omitempty"`
	Rainfall     *float64 `json:"rainfall,omitempty"`
	Vibration    *float64 `json:"vibration,omitempty"`
	Temperature  *float64 `json:"temperature,omitempty"`
}

// ParseDeviceLine parses a single serial line. Anything that is not a JSON
// object is rejected.
func ParseDeviceLine(line []byte) (*DevicePayload, error) {
	line = bytes.TrimSpace(line)
	if len(line) == 0 {
		return nil, fmt.Errorf("empty line")
	}
	if line[0] != '{' {
		return nil, fmt.Errorf("not a JSON object")
	}

	var payload DevicePayload
	if err := json.Unmarshal(line, &payload); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}
	return &payload, nil
}

// Device converts the telemetry part of the payload. Unknown coordinates
// default to 0.
func (p *DevicePayload) Device() reading.Device {
	d := reading.Device{
		MotionStatus:   p.MPU,
		BatteryVoltage: reading.FromPtr(p.BATT),
	}
	if p.GPS != nil {
		d.GPSLatitude = p.GPS.Lat
		d.GPSLongitude = p.GPS.Lon
	}
	return d
}

// Apply overrides m with every measurement the device reported.
func (p *DevicePayload) Apply(m reading.Measurements) reading.Measurements {
	overrides := map[reading.Name]*float64{
		reading.SoilMoisture: p.SoilMoisture,
		reading.Displacement: p.Displacement,
		reading.Rainfall:     p.Rainfall,
		reading.Vibration:    p.Vibration,
		reading.Temperature:  p.Temperature,
	}
	for name, v := range overrides {
		if v != nil {
			m = m.Set(name, reading.Available(*v))
		}
	}
	return m
}

// DevicePayloadFrom builds the wire telemetry block for a reading's device.
func DevicePayloadFrom(d reading.Device) *DevicePayload {
	return &DevicePayload{
		MPU:  d.MotionStatus,
		GPS:  &GPSFix{Lat: d.GPSLatitude, Lon: d.GPSLongitude},
		BATT: d.BatteryVoltage.Ptr(),
	}
}

// DataEnvelope is the body of GET /data.
type DataEnvelope struct {
	ESP32 any `json:"esp32"`
}

// NewDataEnvelope wraps the raw latest device line, or the no-data marker
// when raw is empty.
func NewDataEnvelope(raw []byte) DataEnvelope {
	if len(raw) == 0 {
		return DataEnvelope{ESP32: NoDataMarker}
	}
	return DataEnvelope{ESP32: json.RawMessage(raw)}
}
