package reading

import (
	"encoding/json"
	"math"
	"testing"
	"time"
)

func TestMeasurement_UnavailableIsNotZero(t *testing.T) {
	var m Measurement
	if m.IsAvailable() {
		t.Fatal("zero value should be unavailable")
	}

	zero := Available(0)
	if !zero.IsAvailable() {
		t.Fatal("Available(0) should be available")
	}
	if v, ok := zero.Value(); !ok || v != 0 {
		t.Errorf("Expected (0, true), got (%v, %v)", v, ok)
	}
}

func TestMeasurement_NaNIsUnavailable(t *testing.T) {
	if Available(math.NaN()).IsAvailable() {
		t.Error("NaN should be unavailable")
	}
	if Available(math.Inf(1)).IsAvailable() {
		t.Error("+Inf should be unavailable")
	}
}

func TestMeasurement_JSON(t *testing.T) {
	data, err := json.Marshal(struct {
		A Measurement `json:"a"`
		B Measurement `json:"b"`
	}{A: Available(4.5), B: Unavailable()})
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	if string(data) != `{"a":4.5,"b":null}` {
		t.Errorf("Unexpected JSON: %s", data)
	}

	var decoded struct {
		A Measurement `json:"a"`
		B Measurement `json:"b"`
		C Measurement `json:"c"`
	}
	if err := json.Unmarshal([]byte(`{"a":4.5,"b":null}`), &decoded); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if v, ok := decoded.A.Value(); !ok || v != 4.5 {
		t.Errorf("Expected a=4.5, got %v", decoded.A)
	}
	if decoded.B.IsAvailable() || decoded.C.IsAvailable() {
		t.Error("null and missing fields should decode as unavailable")
	}

	if err := json.Unmarshal([]byte(`{"a":"wet"}`), &decoded); err == nil {
		t.Error("Expected error for non-numeric measurement")
	}
}

func TestNew_CopiesDevice(t *testing.T) {
	dev := &Device{MotionStatus: "still", GPSLatitude: 47.2, BatteryVoltage: Available(3.7)}
	r := New(time.Now(), Measurements{}, dev)

	dev.MotionStatus = "moving"

	got, ok := r.Device()
	if !ok {
		t.Fatal("Expected device block")
	}
	if got.MotionStatus != "still" {
		t.Errorf("Reading was mutated through the caller's pointer: %q", got.MotionStatus)
	}
}

func TestSensorReading_JSONRoundTrip(t *testing.T) {
	ts := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	r := New(ts, Measurements{
		SoilMoisture: Available(40),
		Displacement: Unavailable(),
		Rainfall:     Available(10),
		Vibration:    Available(50),
		Temperature:  Available(21.5),
	}, &Device{MotionStatus: "ok", GPSLatitude: 1, GPSLongitude: 2})

	data, err := json.Marshal(r)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	var decoded SensorReading
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if !decoded.Equal(r) {
		t.Errorf("Round trip mismatch:\n got %s\nwant %s", mustJSON(t, decoded), data)
	}
}

func TestMeasurements_SetReturnsCopy(t *testing.T) {
	m := Measurements{Rainfall: Available(1)}
	updated := m.Set(Rainfall, Available(2))

	if v, _ := m.Rainfall.Value(); v != 1 {
		t.Errorf("Original was modified: %v", v)
	}
	if v, _ := updated.Get(Rainfall).Value(); v != 2 {
		t.Errorf("Expected 2, got %v", v)
	}
}

func mustJSON(t *testing.T, v any) string {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	return string(data)
}
