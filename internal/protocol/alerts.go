package protocol

import (
	"encoding/json"
	"time"

	"github.com/smukkama/landslide-monitor/internal/reading"
	"github.com/smukkama/landslide-monitor/internal/risk"
)

// AlertNotification is the message published to the alert topic whenever
// the risk level rises into Medium or High.
type AlertNotification struct {
	ID              string         `json:"id"`
	Site            string         `json:"site"`
	Level           risk.Level     `json:"level"`
	Severity        string         `json:"severity"`
	Message         string         `json:"message"`
	Sound           string         `json:"sound"`
	CriticalFactors []reading.Name `json:"critical_factors"`
	ReadingTime     time.Time      `json:"reading_time"`
	EmittedAt       time.Time      `json:"emitted_at"`
}

// EncodeAlertNotification encodes an AlertNotification to JSON
func EncodeAlertNotification(n *AlertNotification) ([]byte, error) {
	return json.Marshal(n)
}

// DecodeAlertNotification decodes JSON to AlertNotification
func DecodeAlertNotification(data []byte) (*AlertNotification, error) {
	var n AlertNotification
	if err := json.Unmarshal(data, &n); err != nil {
		return nil, err
	}
	return &n, nil
}
