package source

import (
	"context"
	"errors"

	"github.com/smukkama/landslide-monitor/internal/reading"
)

// ErrUnavailable marks an ordinary failure to obtain a reading. Every error
// returned by an Adapter wraps it.
var ErrUnavailable = errors.New("reading unavailable")

// Adapter produces the latest reading on demand.
type Adapter interface {
	FetchLatest(ctx context.Context) (reading.SensorReading, error)
}
