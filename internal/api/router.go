package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
)

func newRouter(component string, allowedOrigins []string) *chi.Mux {
	r := chi.NewRouter()
	r.Use(RequestID)
	r.Use(Instrument(component))
	r.Use(Recover(component))
	r.Use(cors.New(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"*"},
		ExposedHeaders: []string{RequestIDHeader},
	}).Handler)

	r.Get("/health", handleHealth)
	r.Handle("/metrics", promhttp.Handler())
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		respondWithError(w, NewAPIError(ErrorCodeNotFound, "route not found", r.URL.Path, http.StatusNotFound))
	})
	return r
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// NewBridgeRouter routes the device bridge endpoints.
func NewBridgeRouter(h *BridgeHandler, allowedOrigins []string) http.Handler {
	r := newRouter("bridge", allowedOrigins)
	r.Get("/data", h.HandleData)
	r.Get("/api/sensor-data", h.HandleSensorData)
	return r
}

// NewMonitorRouter routes the dashboard endpoints.
func NewMonitorRouter(h *MonitorHandler, allowedOrigins []string) http.Handler {
	r := newRouter("monitor", allowedOrigins)
	r.Get("/ws", h.hub.ServeWS)
	r.Route("/api", func(r chi.Router) {
		r.Get("/window", h.HandleWindow)
		r.Get("/risk", h.HandleRisk)
		r.Get("/thresholds", h.HandleThresholds)
		r.Get("/terrain", h.HandleTerrain)
		r.Post("/image-analysis", h.HandleImageAnalysis)
	})
	return r
}

// NewNotifierRouter serves the alert journal next to /health and /metrics.
func NewNotifierRouter(h *AlertsHandler, allowedOrigins []string) http.Handler {
	r := newRouter("notifier", allowedOrigins)
	r.Get("/api/alerts", h.HandleRecent)
	return r
}
