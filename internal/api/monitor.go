package api

import (
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/smukkama/landslide-monitor/internal/alarming"
	"github.com/smukkama/landslide-monitor/internal/reading"
	"github.com/smukkama/landslide-monitor/internal/refresh"
	"github.com/smukkama/landslide-monitor/internal/risk"
	"github.com/smukkama/landslide-monitor/internal/websocket"
)

// maxImageSize bounds image-analysis uploads.
const maxImageSize = 10 << 20

// Monitor is the part of the refresh loop the HTTP layer reads.
type Monitor interface {
	Snapshot() refresh.Snapshot
	Thresholds() risk.ThresholdConfig
	State() refresh.State
	LastAlert() *alarming.Action
}

// RiskResponse is the body of GET /api/risk.
type RiskResponse struct {
	Site            string           `json:"site"`
	Level           risk.Level       `json:"level"`
	CriticalFactors []reading.Name   `json:"criticalFactors"`
	HasData         bool             `json:"hasData"`
	Stale           bool             `json:"stale"`
	Failures        int              `json:"failures"`
	State           string           `json:"state"`
	LastAlert       *alarming.Action `json:"lastAlert,omitempty"`
	UpdatedAt       time.Time        `json:"updatedAt"`
}

// ImageAnalysis is the body of POST /api/image-analysis.
type ImageAnalysis struct {
	Detected bool   `json:"detected"`
	Message  string `json:"message"`
	Filename string `json:"filename"`
}

// MonitorHandler serves the presentation boundary of the refresh loop.
type MonitorHandler struct {
	monitor Monitor
	hub     *websocket.Hub
}

func NewMonitorHandler(monitor Monitor, hub *websocket.Hub) *MonitorHandler {
	return &MonitorHandler{monitor: monitor, hub: hub}
}

// HandleWindow returns the sliding window, oldest first.
func (h *MonitorHandler) HandleWindow(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, websocket.NewSnapshotPayload(h.monitor.Snapshot()))
}

// HandleRisk returns the latest classification.
func (h *MonitorHandler) HandleRisk(w http.ResponseWriter, r *http.Request) {
	snap := h.monitor.Snapshot()
	factors := snap.Assessment.CriticalFactors
	if factors == nil {
		factors = []reading.Name{}
	}
	respondWithJSON(w, http.StatusOK, RiskResponse{
		Site:            snap.Site,
		Level:           snap.Level,
		CriticalFactors: factors,
		HasData:         snap.Assessment.HasData(),
		Stale:           snap.Stale,
		Failures:        snap.Failures,
		State:           h.monitor.State().String(),
		LastAlert:       h.monitor.LastAlert(),
		UpdatedAt:       snap.UpdatedAt,
	})
}

// HandleThresholds returns the cutoffs in use.
func (h *MonitorHandler) HandleThresholds(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, h.monitor.Thresholds())
}

// HandleTerrain returns the 3D map configuration.
func (h *MonitorHandler) HandleTerrain(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, DefaultTerrain())
}

// HandleImageAnalysis is a placeholder classifier: an image counts as a
// landslide when its file name mentions one.
func (h *MonitorHandler) HandleImageAnalysis(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxImageSize)
	if err := r.ParseMultipartForm(maxImageSize); err != nil {
		respondWithError(w, NewAPIError(ErrorCodeBadRequest, "expected multipart form", err.Error(), http.StatusBadRequest))
		return
	}

	file, header, err := r.FormFile("image")
	if err != nil {
		respondWithError(w, NewAPIError(ErrorCodeMissingParameter, "please select an image first", nil, http.StatusBadRequest))
		return
	}
	defer file.Close()

	contentType := header.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "image/") {
		respondWithError(w, NewAPIError(ErrorCodeUnsupportedMediaType, "please select a valid image file", contentType, http.StatusUnsupportedMediaType))
		return
	}

	filename := filepath.Base(header.Filename)
	result := ImageAnalysis{
		Detected: strings.Contains(strings.ToLower(filename), "land"),
		Filename: filename,
	}
	if result.Detected {
		result.Message = "🌋 Landslide detected in the image."
	} else {
		result.Message = "✅ No landslide detected in the image."
	}
	respondWithJSON(w, http.StatusOK, result)
}
