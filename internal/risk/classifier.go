package risk

import (
	"errors"
	"fmt"
	"math"

	"github.com/smukkama/landslide-monitor/internal/reading"
)

// ErrInvalidThreshold is returned by Validate for unusable cutoffs.
var ErrInvalidThreshold = errors.New("invalid threshold")

// ThresholdConfig holds the cutoff for each governed measurement. A value
// strictly above its cutoff is a critical factor.
type ThresholdConfig struct {
	SoilMoisture float64 `json:"soilMoisture"`
	Displacement float64 `json:"displacement"`
	Rainfall     float64 `json:"rainfall"`
	Vibration    float64 `json:"vibration"`
}

// DefaultThresholds are the dashboard's reference cutoffs.
func DefaultThresholds() ThresholdConfig {
	return ThresholdConfig{
		SoilMoisture: 35,
		Displacement: 5.5,
		Rainfall:     55,
		Vibration:    42,
	}
}

// Cutoff returns the configured cutoff for a governed measurement.
func (c ThresholdConfig) Cutoff(name reading.Name) (float64, bool) {
	switch name {
	case reading.SoilMoisture:
		return c.SoilMoisture, true
	case reading.Displacement:
		return c.Displacement, true
	case reading.Rainfall:
		return c.Rainfall, true
	case reading.Vibration:
		return c.Vibration, true
	default:
		return 0, false
	}
}

// Validate rejects NaN, infinite and negative cutoffs.
func (c ThresholdConfig) Validate() error {
	for _, name := range reading.Governed() {
		v, _ := c.Cutoff(name)
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
			return fmt.Errorf("%w: %s=%v", ErrInvalidThreshold, name, v)
		}
	}
	return nil
}

// Assessment is the full result of evaluating one reading.
type Assessment struct {
	Level           Level          `json:"level"`
	CriticalFactors []reading.Name `json:"criticalFactors"`
	// Available counts governed measurements that carried a value. Zero
	// means Low was reached without any data.
	Available int `json:"available"`
}

// HasData reports whether at least one governed measurement was present.
func (a Assessment) HasData() bool {
	return a.Available > 0
}

// Evaluate counts critical factors among the governed measurements.
// Unavailable measurements never count. Temperature and device telemetry
// are ignored.
func Evaluate(r reading.SensorReading, cfg ThresholdConfig) Assessment {
	a := Assessment{CriticalFactors: []reading.Name{}}

	for _, name := range reading.Governed() {
		value, ok := r.Get(name).Value()
		if !ok {
			continue
		}
		a.Available++

		cutoff, _ := cfg.Cutoff(name)
		if value > cutoff {
			a.CriticalFactors = append(a.CriticalFactors, name)
		}
	}

	a.Level = levelFor(len(a.CriticalFactors))
	return a
}

// Classify maps a reading to a risk level.
func Classify(r reading.SensorReading, cfg ThresholdConfig) Level {
	return Evaluate(r, cfg).Level
}

func levelFor(criticalFactors int) Level {
	switch {
	case criticalFactors >= 3:
		return High
	case criticalFactors >= 1:
		return Medium
	default:
		return Low
	}
}
