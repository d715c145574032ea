package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"
	"time"

	"github.com/smukkama/landslide-monitor/internal/alarming"
	"github.com/smukkama/landslide-monitor/internal/database"
	"github.com/smukkama/landslide-monitor/internal/protocol"
	"github.com/smukkama/landslide-monitor/internal/reading"
	"github.com/smukkama/landslide-monitor/internal/refresh"
	"github.com/smukkama/landslide-monitor/internal/risk"
	"github.com/smukkama/landslide-monitor/internal/source"
	"github.com/smukkama/landslide-monitor/internal/websocket"
)

type fakeLatest struct {
	raw []byte
	err error
}

func (f *fakeLatest) Get(ctx context.Context) ([]byte, error) {
	return f.raw, f.err
}

type fakeSource struct {
	reading reading.SensorReading
	err     error
}

func (f *fakeSource) FetchLatest(ctx context.Context) (reading.SensorReading, error) {
	return f.reading, f.err
}

var readingTime = time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)

func sampleReading() reading.SensorReading {
	return reading.New(readingTime, reading.Measurements{
		SoilMoisture: reading.Available(40),
		Displacement: reading.Available(1),
		Rainfall:     reading.Available(10),
		Vibration:    reading.Available(50),
		Temperature:  reading.Available(21),
	}, &reading.Device{MotionStatus: "stable", GPSLatitude: 1, GPSLongitude: 2, BatteryVoltage: reading.Available(3.9)})
}

func do(t *testing.T, h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestBridge_Data(t *testing.T) {
	tests := []struct {
		name   string
		latest *fakeLatest
		want   string
	}{
		{"no data", &fakeLatest{}, `{"esp32":"no data yet"}`},
		{"payload", &fakeLatest{raw: []byte(`{"MPU":"stable","BATT":3.9}`)}, `{"esp32":{"MPU":"stable","BATT":3.9}}`},
		{"store error", &fakeLatest{err: errors.New("redis down")}, `{"esp32":"no data yet"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := NewBridgeRouter(NewBridgeHandler(tt.latest, &fakeSource{}), []string{"*"})
			rec := do(t, router, httptest.NewRequest(http.MethodGet, "/data", nil))

			if rec.Code != http.StatusOK {
				t.Fatalf("Expected 200, got %d", rec.Code)
			}
			if got := string(bytes.TrimSpace(rec.Body.Bytes())); got != tt.want {
				t.Errorf("Expected %s, got %s", tt.want, got)
			}
		})
	}
}

func TestBridge_SensorData(t *testing.T) {
	router := NewBridgeRouter(NewBridgeHandler(&fakeLatest{}, &fakeSource{reading: sampleReading()}), []string{"*"})
	rec := do(t, router, httptest.NewRequest(http.MethodGet, "/api/sensor-data", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}

	got, err := protocol.DecodeSensorData(rec.Body.Bytes(), time.Now())
	if err != nil {
		t.Fatalf("Invalid body: %v", err)
	}
	if !got.Equal(sampleReading()) {
		t.Errorf("Round trip mismatch: %s", rec.Body.String())
	}

	var raw map[string]any
	json.Unmarshal(rec.Body.Bytes(), &raw)
	if raw["date"] != "2024-06-01" || raw["time"] != "08:00:00" {
		t.Errorf("Unexpected date/time in %s", rec.Body.String())
	}
}

func TestBridge_SensorDataUnavailable(t *testing.T) {
	src := &fakeSource{err: fmt.Errorf("%w: offline", source.ErrUnavailable)}
	router := NewBridgeRouter(NewBridgeHandler(&fakeLatest{}, src), []string{"*"})
	rec := do(t, router, httptest.NewRequest(http.MethodGet, "/api/sensor-data", nil))

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("Expected 503, got %d", rec.Code)
	}
	var apiErr APIError
	if err := json.Unmarshal(rec.Body.Bytes(), &apiErr); err != nil {
		t.Fatalf("Invalid error body: %v", err)
	}
	if apiErr.Code != ErrorCodeSourceUnavailable {
		t.Errorf("Unexpected code %s", apiErr.Code)
	}
}

type fakeMonitor struct {
	snap  refresh.Snapshot
	alert *alarming.Action
}

func (f *fakeMonitor) Snapshot() refresh.Snapshot       { return f.snap }
func (f *fakeMonitor) Thresholds() risk.ThresholdConfig { return risk.DefaultThresholds() }
func (f *fakeMonitor) State() refresh.State             { return refresh.Idle }
func (f *fakeMonitor) LastAlert() *alarming.Action      { return f.alert }

func monitorRouter(m *fakeMonitor) http.Handler {
	return NewMonitorRouter(NewMonitorHandler(m, websocket.NewHub()), []string{"*"})
}

func TestMonitor_Risk(t *testing.T) {
	alert := &alarming.Action{ID: "a-1", Level: risk.Medium}
	m := &fakeMonitor{
		snap: refresh.Snapshot{
			Site:   "slope-7",
			Window: []reading.SensorReading{sampleReading()},
			Assessment: risk.Assessment{
				Level:           risk.Medium,
				CriticalFactors: []reading.Name{reading.SoilMoisture, reading.Vibration},
				Available:       4,
			},
			Level: risk.Medium,
		},
		alert: alert,
	}

	rec := do(t, monitorRouter(m), httptest.NewRequest(http.MethodGet, "/api/risk", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}

	var got RiskResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("Invalid body: %v", err)
	}
	if got.Level != risk.Medium || len(got.CriticalFactors) != 2 || !got.HasData {
		t.Errorf("Unexpected risk %+v", got)
	}
	if got.State != "idle" || got.LastAlert == nil || got.LastAlert.ID != "a-1" {
		t.Errorf("Unexpected state or alert %+v", got)
	}
}

func TestMonitor_WindowAndThresholds(t *testing.T) {
	m := &fakeMonitor{snap: refresh.Snapshot{Window: []reading.SensorReading{sampleReading(), sampleReading()}}}
	router := monitorRouter(m)

	rec := do(t, router, httptest.NewRequest(http.MethodGet, "/api/window", nil))
	var window websocket.SnapshotPayload
	if err := json.Unmarshal(rec.Body.Bytes(), &window); err != nil {
		t.Fatalf("Invalid window body: %v", err)
	}
	if len(window.Window) != 2 || window.Window[0].ESP32 == nil {
		t.Errorf("Unexpected window %s", rec.Body.String())
	}

	rec = do(t, router, httptest.NewRequest(http.MethodGet, "/api/thresholds", nil))
	var thresholds risk.ThresholdConfig
	if err := json.Unmarshal(rec.Body.Bytes(), &thresholds); err != nil {
		t.Fatalf("Invalid thresholds body: %v", err)
	}
	if thresholds != risk.DefaultThresholds() {
		t.Errorf("Unexpected thresholds %+v", thresholds)
	}
}

func TestMonitor_Terrain(t *testing.T) {
	rec := do(t, monitorRouter(&fakeMonitor{}), httptest.NewRequest(http.MethodGet, "/api/terrain", nil))

	var got Terrain
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("Invalid body: %v", err)
	}
	if got.Center != [2]float64{11.39085, 47.27574} || got.Pitch != 70 || got.MaxPitch != 85 {
		t.Errorf("Unexpected terrain %+v", got)
	}
	if _, ok := got.Sources["terrainSource"]; !ok {
		t.Error("Missing terrain source")
	}
}

func imageRequest(t *testing.T, filename, contentType string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="image"; filename="%s"`, filename))
	header.Set("Content-Type", contentType)
	part, err := mw.CreatePart(header)
	if err != nil {
		t.Fatal(err)
	}
	part.Write([]byte("fake image bytes"))
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/image-analysis", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestMonitor_ImageAnalysis(t *testing.T) {
	router := monitorRouter(&fakeMonitor{})

	tests := []struct {
		filename    string
		contentType string
		status      int
		detected    bool
	}{
		{"Landslide_2023.JPG", "image/jpeg", http.StatusOK, true},
		{"hillside.png", "image/png", http.StatusOK, false},
		{"landslide.pdf", "application/pdf", http.StatusUnsupportedMediaType, false},
	}

	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			rec := do(t, router, imageRequest(t, tt.filename, tt.contentType))
			if rec.Code != tt.status {
				t.Fatalf("Expected %d, got %d: %s", tt.status, rec.Code, rec.Body.String())
			}
			if tt.status != http.StatusOK {
				return
			}
			var got ImageAnalysis
			if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
				t.Fatalf("Invalid body: %v", err)
			}
			if got.Detected != tt.detected || got.Filename != tt.filename {
				t.Errorf("Unexpected analysis %+v", got)
			}
		})
	}
}

func TestMonitor_ImageAnalysisMissingFile(t *testing.T) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	mw.WriteField("note", "no image")
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/image-analysis", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	rec := do(t, monitorRouter(&fakeMonitor{}), req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400, got %d", rec.Code)
	}
}

func TestRouter_HealthRequestIDAndCORS(t *testing.T) {
	router := NewNotifierRouter(NewAlertsHandler(&fakeHistory{}), []string{"*"})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "http://dashboard.local")
	rec := do(t, router, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	if rec.Header().Get(RequestIDHeader) == "" {
		t.Error("Missing request id header")
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Errorf("Expected open CORS, got %q", rec.Header().Get("Access-Control-Allow-Origin"))
	}

	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(RequestIDHeader, "req-42")
	if got := do(t, router, req).Header().Get(RequestIDHeader); got != "req-42" {
		t.Errorf("Expected incoming request id to be kept, got %q", got)
	}

	rec = do(t, router, httptest.NewRequest(http.MethodGet, "/nope", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("Expected 404, got %d", rec.Code)
	}
}

func TestRecover(t *testing.T) {
	h := Recover("test")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	rec := do(t, h, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("Expected 500, got %d", rec.Code)
	}
}

type fakeHistory struct {
	alerts   []*database.AlertLog
	err      error
	gotSite  string
	gotLimit int
}

func (f *fakeHistory) RecentAlerts(ctx context.Context, site string, limit int) ([]*database.AlertLog, error) {
	f.gotSite = site
	f.gotLimit = limit
	return f.alerts, f.err
}

func TestAlerts_Recent(t *testing.T) {
	history := &fakeHistory{alerts: []*database.AlertLog{
		{AlertID: "a-2", Site: "ridge", Level: "High", CriticalFactors: []string{"rainfall", "vibration", "displacement"}},
		{AlertID: "a-1", Site: "ridge", Level: "Medium", CriticalFactors: []string{"rainfall"}},
	}}
	router := NewNotifierRouter(NewAlertsHandler(history), []string{"*"})

	rec := do(t, router, httptest.NewRequest(http.MethodGet, "/api/alerts?site=ridge&limit=5", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if history.gotSite != "ridge" || history.gotLimit != 5 {
		t.Errorf("Unexpected query site=%q limit=%d", history.gotSite, history.gotLimit)
	}

	var got []database.AlertLog
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("Failed to decode body: %v", err)
	}
	if len(got) != 2 || got[0].AlertID != "a-2" || len(got[0].CriticalFactors) != 3 {
		t.Errorf("Unexpected alerts %+v", got)
	}
}

func TestAlerts_RecentLimits(t *testing.T) {
	history := &fakeHistory{}
	router := NewNotifierRouter(NewAlertsHandler(history), []string{"*"})

	rec := do(t, router, httptest.NewRequest(http.MethodGet, "/api/alerts?site=ridge", nil))
	if rec.Code != http.StatusOK || history.gotLimit != defaultAlertLimit {
		t.Errorf("Expected default limit, got code=%d limit=%d", rec.Code, history.gotLimit)
	}
	if body := bytes.TrimSpace(rec.Body.Bytes()); string(body) != "[]" {
		t.Errorf("Expected empty list, got %s", body)
	}

	do(t, router, httptest.NewRequest(http.MethodGet, "/api/alerts?site=ridge&limit=100000", nil))
	if history.gotLimit != maxAlertLimit {
		t.Errorf("Expected limit capped at %d, got %d", maxAlertLimit, history.gotLimit)
	}

	for _, target := range []string{"/api/alerts", "/api/alerts?site=ridge&limit=zero"} {
		rec := do(t, router, httptest.NewRequest(http.MethodGet, target, nil))
		if rec.Code != http.StatusBadRequest {
			t.Errorf("%s: expected 400, got %d", target, rec.Code)
		}
	}

	history.err = errors.New("db down")
	rec = do(t, router, httptest.NewRequest(http.MethodGet, "/api/alerts?site=ridge", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("Expected 500, got %d", rec.Code)
	}
}
