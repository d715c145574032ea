package alarming

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/smukkama/landslide-monitor/internal/protocol"
	"github.com/smukkama/landslide-monitor/internal/reading"
	"github.com/smukkama/landslide-monitor/internal/risk"
)

// Severity tags an alert action.
type Severity string

const (
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

const (
	SoundMedium = "/medium.mp3"
	SoundHigh   = "/high.mp3"

	MessageMedium = "⚠️ Risk Level: Medium\nStay alert."
	MessageHigh   = "⚠️ Landslide Risk Level: HIGH!\nPlease take necessary precautions."
)

// Action tells the presentation layer to raise an audible and visual alert.
type Action struct {
	ID       string     `json:"id"`
	Level    risk.Level `json:"level"`
	Severity Severity   `json:"severity"`
	Message  string     `json:"message"`
	Sound    string     `json:"sound"`
	At       time.Time  `json:"at"`
}

// Policy fires an action only when the classified level changes, and only
// for Medium and High. Moving back to Low updates the state silently.
type Policy struct {
	mu    sync.Mutex
	state State
	now   func() time.Time
}

// NewPolicy creates a policy with no level recorded yet.
func NewPolicy() *Policy {
	return &Policy{now: time.Now}
}

// Observe records level and returns the action to raise, or nil.
func (p *Policy) Observe(level risk.Level) *Action {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.state.transition(level) {
		return nil
	}

	switch level {
	case risk.Medium:
		return p.newAction(level, SeverityWarning, MessageMedium, SoundMedium)
	case risk.High:
		return p.newAction(level, SeverityCritical, MessageHigh, SoundHigh)
	default:
		return nil
	}
}

// Last returns the most recently notified level.
func (p *Policy) Last() (risk.Level, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state.Last()
}

func (p *Policy) newAction(level risk.Level, severity Severity, message, sound string) *Action {
	return &Action{
		ID:       uuid.New().String(),
		Level:    level,
		Severity: severity,
		Message:  message,
		Sound:    sound,
		At:       p.now(),
	}
}

// NewNotification builds the bus message for an action raised while
// assessing the reading taken at readingTime.
func NewNotification(site string, action *Action, factors []reading.Name, readingTime time.Time) *protocol.AlertNotification {
	return &protocol.AlertNotification{
		ID:              action.ID,
		Site:            site,
		Level:           action.Level,
		Severity:        string(action.Severity),
		Message:         action.Message,
		Sound:           action.Sound,
		CriticalFactors: factors,
		ReadingTime:     readingTime,
		EmittedAt:       action.At,
	}
}
