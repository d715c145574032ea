package source

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/smukkama/landslide-monitor/internal/reading"
)

// Range is an inclusive-exclusive interval for uniform draws.
type Range struct {
	Min float64
	Max float64
}

// SyntheticRanges are the draw intervals of the demonstration generator.
var SyntheticRanges = map[reading.Name]Range{
	reading.SoilMoisture: {Min: 30, Max: 50},
	reading.Displacement: {Min: 0, Max: 5},
	reading.Rainfall:     {Min: 0, Max: 30},
	reading.Vibration:    {Min: 0, Max: 15},
	reading.Temperature:  {Min: 18, Max: 30},
}

// Synthetic draws every measurement independently on each call. It keeps
// no memory of earlier readings.
type Synthetic struct {
	mu  sync.Mutex
	rng *rand.Rand
	now func() time.Time
}

// NewSynthetic creates a generator seeded with seed.
func NewSynthetic(seed int64) *Synthetic {
	return NewSyntheticWith(rand.New(rand.NewSource(seed)), time.Now)
}

// NewSyntheticWith creates a generator with an explicit random source and
// clock.
func NewSyntheticWith(rng *rand.Rand, now func() time.Time) *Synthetic {
	return &Synthetic{rng: rng, now: now}
}

func (s *Synthetic) FetchLatest(ctx context.Context) (reading.SensorReading, error) {
	if err := ctx.Err(); err != nil {
		return reading.SensorReading{}, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	return s.Generate(s.now()), nil
}

// Measurements draws one set of values.
func (s *Synthetic) Measurements() reading.Measurements {
	s.mu.Lock()
	defer s.mu.Unlock()

	var m reading.Measurements
	for _, name := range reading.All() {
		r := SyntheticRanges[name]
		m = m.Set(name, reading.Available(r.Min+s.rng.Float64()*(r.Max-r.Min)))
	}
	return m
}

// Generate builds a reading stamped at.
func (s *Synthetic) Generate(at time.Time) reading.SensorReading {
	return reading.New(at, s.Measurements(), nil)
}

// History returns count readings ending at end, spaced step apart, oldest
// first.
func (s *Synthetic) History(count int, end time.Time, step time.Duration) []reading.SensorReading {
	if count < 1 {
		return nil
	}
	history := make([]reading.SensorReading, 0, count)
	for i := count - 1; i >= 0; i-- {
		history = append(history, s.Generate(end.Add(-time.Duration(i)*step)))
	}
	return history
}
