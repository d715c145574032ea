package database

import (
	"time"

	"github.com/smukkama/landslide-monitor/internal/protocol"
)

// AlertLog is one journaled alert action
type AlertLog struct {
	ID              int64     `json:"id"`
	AlertID         string    `json:"alertId"`
	Site            string    `json:"site"`
	Level           string    `json:"level"`
	Severity        string    `json:"severity"`
	Message         string    `json:"message"`
	Sound           string    `json:"sound"`
	CriticalFactors []string  `json:"criticalFactors"`
	ReadingTime     time.Time `json:"readingTime"`
	EmittedAt       time.Time `json:"emittedAt"`
	CreatedAt       time.Time `json:"createdAt"`
}

// NewAlertLog converts a bus notification into a journal row
func NewAlertLog(n *protocol.AlertNotification) *AlertLog {
	factors := make([]string, len(n.CriticalFactors))
	for i, f := range n.CriticalFactors {
		factors[i] = string(f)
	}

	return &AlertLog{
		AlertID:         n.ID,
		Site:            n.Site,
		Level:           n.Level.String(),
		Severity:        n.Severity,
		Message:         n.Message,
		Sound:           n.Sound,
		CriticalFactors: factors,
		ReadingTime:     n.ReadingTime,
		EmittedAt:       n.EmittedAt,
	}
}
