package reading

import (
	"encoding/json"
	"time"
)

// Name identifies a measured quantity.
type Name string

const (
	SoilMoisture Name = "soilMoisture"
	Displacement Name = "displacement"
	Rainfall     Name = "rainfall"
	Vibration    Name = "vibration"
	Temperature  Name = "temperature"
)

// Governed returns the measurements that take part in risk classification,
// in display order.
func Governed() []Name {
	return []Name{SoilMoisture, Displacement, Rainfall, Vibration}
}

// All returns every measured quantity, in display order.
func All() []Name {
	return []Name{SoilMoisture, Displacement, Rainfall, Vibration, Temperature}
}

// Unit returns the physical unit the value is expressed in.
func (n Name) Unit() string {
	switch n {
	case SoilMoisture:
		return "%"
	case Displacement, Rainfall:
		return "mm"
	case Vibration:
		return "Hz"
	case Temperature:
		return "°C"
	default:
		return ""
	}
}

// Measurements groups the five base values of a reading.
type Measurements struct {
	SoilMoisture Measurement `json:"soilMoisture"`
	Displacement Measurement `json:"displacement"`
	Rainfall     Measurement `json:"rainfall"`
	Vibration    Measurement `json:"vibration"`
	Temperature  Measurement `json:"temperature"`
}

// Get returns the measurement for name; unknown names are unavailable.
func (m Measurements) Get(name Name) Measurement {
	switch name {
	case SoilMoisture:
		return m.SoilMoisture
	case Displacement:
		return m.Displacement
	case Rainfall:
		return m.Rainfall
	case Vibration:
		return m.Vibration
	case Temperature:
		return m.Temperature
	default:
		return Unavailable()
	}
}

// Set returns a copy of m with name replaced by v.
func (m Measurements) Set(name Name, v Measurement) Measurements {
	switch name {
	case SoilMoisture:
		m.SoilMoisture = v
	case Displacement:
		m.Displacement = v
	case Rainfall:
		m.Rainfall = v
	case Vibration:
		m.Vibration = v
	case Temperature:
		m.Temperature = v
	}
	return m
}

// Device is the optional telemetry block reported by the field unit.
type Device struct {
	MotionStatus   string      `json:"motionStatus"`
	GPSLatitude    float64     `json:"gpsLatitude"`
	GPSLongitude   float64     `json:"gpsLongitude"`
	BatteryVoltage Measurement `json:"batteryVoltage"`
}

// SensorReading is a snapshot of all sensors at one point in time. It has
// no exported fields and no mutating methods; a new value is built for
// every sample.
type SensorReading struct {
	timestamp time.Time
	values    Measurements
	device    *Device
}

// New builds a reading. The device block, if any, is copied.
func New(ts time.Time, values Measurements, device *Device) SensorReading {
	r := SensorReading{timestamp: ts, values: values}
	if device != nil {
		d := *device
		r.device = &d
	}
	return r
}

func (r SensorReading) Timestamp() time.Time { return r.timestamp }

func (r SensorReading) Measurements() Measurements { return r.values }

func (r SensorReading) Get(name Name) Measurement { return r.values.Get(name) }

// Device returns a copy of the telemetry block.
func (r SensorReading) Device() (Device, bool) {
	if r.device == nil {
		return Device{}, false
	}
	return *r.device, true
}

// IsZero reports whether r was never constructed.
func (r SensorReading) IsZero() bool {
	return r.timestamp.IsZero() && r.values == (Measurements{}) && r.device == nil
}

// Equal compares two readings by value.
func (r SensorReading) Equal(o SensorReading) bool {
	if !r.timestamp.Equal(o.timestamp) || r.values != o.values {
		return false
	}
	if (r.device == nil) != (o.device == nil) {
		return false
	}
	return r.device == nil || *r.device == *o.device
}

type readingJSON struct {
	Timestamp time.Time `json:"timestamp"`
	Measurements
	Device *Device `json:"device,omitempty"`
}

func (r SensorReading) MarshalJSON() ([]byte, error) {
	return json.Marshal(readingJSON{
		Timestamp:    r.timestamp,
		Measurements: r.values,
		Device:       r.device,
	})
}

func (r *SensorReading) UnmarshalJSON(data []byte) error {
	var raw readingJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*r = New(raw.Timestamp, raw.Measurements, raw.Device)
	return nil
}
