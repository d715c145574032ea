package config

import (
	"fmt"

	"github.com/spf13/cast"
	"github.com/spf13/viper"

	"github.com/smukkama/landslide-monitor/internal/risk"
)

var thresholdKeys = map[string]string{
	"thresholds.soil_moisture": "THRESHOLD_SOIL_MOISTURE",
	"thresholds.displacement":  "THRESHOLD_DISPLACEMENT",
	"thresholds.rainfall":      "THRESHOLD_RAINFALL",
	"thresholds.vibration":     "THRESHOLD_VIBRATION",
}

// LoadThresholds reads the risk cutoffs. Values come from, in order of
// precedence, THRESHOLD_* environment variables, the optional file at path
// (any format viper understands) and the built-in defaults.
func LoadThresholds(path string) (risk.ThresholdConfig, error) {
	v := viper.New()

	def := risk.DefaultThresholds()
	v.SetDefault("thresholds.soil_moisture", def.SoilMoisture)
	v.SetDefault("thresholds.displacement", def.Displacement)
	v.SetDefault("thresholds.rainfall", def.Rainfall)
	v.SetDefault("thresholds.vibration", def.Vibration)

	for key, env := range thresholdKeys {
		if err := v.BindEnv(key, env); err != nil {
			return risk.ThresholdConfig{}, fmt.Errorf("failed to bind %s: %w", env, err)
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return risk.ThresholdConfig{}, fmt.Errorf("failed to read thresholds file %s: %w", path, err)
		}
	}

	var cfg risk.ThresholdConfig
	fields := []struct {
		key string
		dst *float64
	}{
		{"thresholds.soil_moisture", &cfg.SoilMoisture},
		{"thresholds.displacement", &cfg.Displacement},
		{"thresholds.rainfall", &cfg.Rainfall},
		{"thresholds.vibration", &cfg.Vibration},
	}
	// GetFloat64 would turn a typo into a zero cutoff.
	for _, f := range fields {
		value, err := cast.ToFloat64E(v.Get(f.key))
		if err != nil {
			return risk.ThresholdConfig{}, fmt.Errorf("%w: %s (%s): %v", risk.ErrInvalidThreshold, f.key, thresholdKeys[f.key], err)
		}
		*f.dst = value
	}
	if err := cfg.Validate(); err != nil {
		return risk.ThresholdConfig{}, err
	}

	return cfg, nil
}
