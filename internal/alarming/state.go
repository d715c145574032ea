package alarming

import (
	"github.com/smukkama/landslide-monitor/internal/risk"
)

// State holds the most recently notified risk level. It is unset until the
// first observation.
type State struct {
	lastNotified risk.Level
	set          bool
}

// Last returns the last notified level and whether one has been recorded.
func (s *State) Last() (risk.Level, bool) {
	return s.lastNotified, s.set
}

// transition records level and reports whether it differs from the stored one.
func (s *State) transition(level risk.Level) bool {
	if s.set && s.lastNotified == level {
		return false
	}
	s.lastNotified = level
	s.set = true
	return true
}
