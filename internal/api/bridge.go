package api

import (
	"encoding/json"
	"net/http"

	"github.com/smukkama/landslide-monitor/internal/logger"
	"github.com/smukkama/landslide-monitor/internal/protocol"
	"github.com/smukkama/landslide-monitor/internal/source"
)

// BridgeHandler serves the device feed to the monitor and dashboards.
type BridgeHandler struct {
	latest source.LatestReader
	source source.Adapter
}

func NewBridgeHandler(latest source.LatestReader, src source.Adapter) *BridgeHandler {
	return &BridgeHandler{latest: latest, source: src}
}

// HandleData returns the raw latest device payload, or the no-data marker.
func (h *BridgeHandler) HandleData(w http.ResponseWriter, r *http.Request) {
	raw, err := h.latest.Get(r.Context())
	if err != nil {
		log := logger.WithComponent("bridge")
		log.Warn().Err(err).Msg("failed to read latest device payload")
		raw = nil
	}
	if raw != nil && !json.Valid(raw) {
		raw = nil
	}
	respondWithJSON(w, http.StatusOK, protocol.NewDataEnvelope(raw))
}

// HandleSensorData returns the current reading in dashboard shape.
func (h *BridgeHandler) HandleSensorData(w http.ResponseWriter, r *http.Request) {
	reading, err := h.source.FetchLatest(r.Context())
	if err != nil {
		respondWithError(w, NewAPIError(ErrorCodeSourceUnavailable, "sensor data unavailable", err.Error(), http.StatusServiceUnavailable))
		return
	}
	respondWithJSON(w, http.StatusOK, protocol.NewSensorData(reading))
}
