package reading

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

// Measurement is a single numeric sensor value that may be unavailable.
// The zero value is unavailable, never zero.
type Measurement struct {
	value float64
	ok    bool
}

// Available returns a measurement holding v. NaN and infinities cannot be
// compared against a cutoff, so they produce an unavailable measurement.
func Available(v float64) Measurement {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return Measurement{}
	}
	return Measurement{value: v, ok: true}
}

// Unavailable returns the explicit "no data" marker.
func Unavailable() Measurement {
	return Measurement{}
}

// Value returns the measured value and whether it is available.
func (m Measurement) Value() (float64, bool) {
	return m.value, m.ok
}

// IsAvailable reports whether the measurement carries a value.
func (m Measurement) IsAvailable() bool {
	return m.ok
}

// Ptr returns nil for an unavailable measurement. Useful for nullable
// database columns and JSON fields.
func (m Measurement) Ptr() *float64 {
	if !m.ok {
		return nil
	}
	v := m.value
	return &v
}

// FromPtr is the inverse of Ptr.
func FromPtr(v *float64) Measurement {
	if v == nil {
		return Unavailable()
	}
	return Available(*v)
}

func (m Measurement) String() string {
	if !m.ok {
		return "unavailable"
	}
	return strconv.FormatFloat(m.value, 'f', -1, 64)
}

// MarshalJSON encodes an unavailable measurement as null.
func (m Measurement) MarshalJSON() ([]byte, error) {
	if !m.ok {
		return []byte("null"), nil
	}
	return json.Marshal(m.value)
}

// UnmarshalJSON accepts a number or null.
func (m *Measurement) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*m = Unavailable()
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("measurement must be a number or null: %w", err)
	}
	*m = Available(v)
	return nil
}
