package source

import (
	"context"
	"fmt"

	"github.com/smukkama/landslide-monitor/internal/logger"
	"github.com/smukkama/landslide-monitor/internal/protocol"
	"github.com/smukkama/landslide-monitor/internal/reading"
)

// LatestReader returns the raw latest device line, or nil when the device
// has not reported.
type LatestReader interface {
	Get(ctx context.Context) ([]byte, error)
}

// DeviceSource merges the latest device payload over synthetic draws. This
// is what the bridge serves on /api/sensor-data.
type DeviceSource struct {
	latest    LatestReader
	synthetic *Synthetic
}

func NewDeviceSource(latest LatestReader, synthetic *Synthetic) *DeviceSource {
	return &DeviceSource{latest: latest, synthetic: synthetic}
}

func (s *DeviceSource) FetchLatest(ctx context.Context) (reading.SensorReading, error) {
	if err := ctx.Err(); err != nil {
		return reading.SensorReading{}, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}

	now := s.synthetic.now()
	values := s.synthetic.Measurements()

	raw, err := s.latest.Get(ctx)
	if err != nil {
		// A broken store degrades to synthetic values without telemetry.
		log := logger.WithComponent("source")
		log.Warn().Err(err).Msg("failed to read latest device payload")
		return reading.New(now, values, nil), nil
	}
	if len(raw) == 0 {
		return reading.New(now, values, nil), nil
	}

	payload, err := protocol.ParseDeviceLine(raw)
	if err != nil {
		return reading.New(now, values, nil), nil
	}

	device := payload.Device()
	return reading.New(now, payload.Apply(values), &device), nil
}
