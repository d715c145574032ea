package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "landslide_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "landslide_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{"method", "route"},
	)

	// Refresh loop metrics
	RefreshCyclesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "landslide_refresh_cycles_total",
			Help: "Refresh cycles by outcome",
		},
		[]string{"outcome"}, // applied, skipped
	)

	FetchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "landslide_fetch_duration_seconds",
			Help:    "Time taken to fetch the latest reading",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
	)

	RiskLevel = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "landslide_risk_level",
			Help: "Current risk level (0=Low, 1=Medium, 2=High)",
		},
	)

	CriticalFactors = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "landslide_critical_factors",
			Help: "Number of governed measurements above their cutoff in the latest reading",
		},
	)

	WindowSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "landslide_window_size",
			Help: "Readings currently held in the sliding window",
		},
	)

	AlertsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "landslide_alerts_total",
			Help: "Alert actions emitted by level",
		},
		[]string{"level"},
	)

	PublishFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "landslide_publish_failures_total",
			Help: "Snapshot publish failures by sink",
		},
		[]string{"sink"},
	)

	// Device feed metrics
	DeviceLinesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "landslide_device_lines_total",
			Help: "Serial lines received from the device by outcome",
		},
		[]string{"outcome"}, // stored, malformed, text, dropped
	)

	DeviceConnected = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "landslide_device_connected",
			Help: "1 while the serial device is open",
		},
	)

	WebsocketClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "landslide_websocket_clients",
			Help: "Connected dashboard websocket clients",
		},
	)

	// Panic recovery
	PanicsRecovered = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "landslide_panics_recovered_total",
			Help: "Total number of panics recovered",
		},
		[]string{"component"},
	)
)
