package source

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/smukkama/landslide-monitor/internal/protocol"
	"github.com/smukkama/landslide-monitor/internal/reading"
)

// HTTPSource fetches readings from the bridge's /api/sensor-data endpoint.
type HTTPSource struct {
	client *resty.Client
	url    string
	now    func() time.Time
}

// NewHTTPSource creates a live source. timeout bounds each request on top of
// whatever deadline the caller's context carries.
func NewHTTPSource(url string, timeout time.Duration) *HTTPSource {
	client := resty.New().
		SetTimeout(timeout).
		SetHeader("Accept", "application/json")

	return &HTTPSource{
		client: client,
		url:    url,
		now:    time.Now,
	}
}

func (s *HTTPSource) FetchLatest(ctx context.Context) (reading.SensorReading, error) {
	resp, err := s.client.R().
		SetContext(ctx).
		Get(s.url)
	if err != nil {
		return reading.SensorReading{}, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}

	if !resp.IsSuccess() {
		return reading.SensorReading{}, fmt.Errorf("%w: %s returned %s", ErrUnavailable, s.url, resp.Status())
	}

	r, err := protocol.DecodeSensorData(resp.Body(), s.now())
	if err != nil {
		return reading.SensorReading{}, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}

	return r, nil
}
