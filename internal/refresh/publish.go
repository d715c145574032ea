package refresh

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/smukkama/landslide-monitor/internal/alarming"
	"github.com/smukkama/landslide-monitor/internal/logger"
	"github.com/smukkama/landslide-monitor/internal/metrics"
	"github.com/smukkama/landslide-monitor/internal/protocol"
	"github.com/smukkama/landslide-monitor/internal/reading"
	"github.com/smukkama/landslide-monitor/internal/risk"
)

// Snapshot is what the loop hands to the presentation boundary after each
// cycle.
type Snapshot struct {
	Site       string                  `json:"site"`
	Cycle      uint64                  `json:"cycle"`
	Window     []reading.SensorReading `json:"window"`
	Assessment risk.Assessment         `json:"assessment"`
	Level      risk.Level              `json:"level"`
	Action     *alarming.Action        `json:"action,omitempty"`
	// Stale is set when the cycle's fetch failed and the window was left
	// as it was.
	Stale     bool      `json:"stale"`
	Failures  int       `json:"failures"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Latest returns the newest reading in the window.
func (s Snapshot) Latest() (reading.SensorReading, bool) {
	if len(s.Window) == 0 {
		return reading.SensorReading{}, false
	}
	return s.Window[len(s.Window)-1], true
}

// Publisher receives snapshots in cycle order.
type Publisher interface {
	Publish(ctx context.Context, snap Snapshot) error
}

// PublisherFunc adapts a function to Publisher.
type PublisherFunc func(ctx context.Context, snap Snapshot) error

func (f PublisherFunc) Publish(ctx context.Context, snap Snapshot) error {
	return f(ctx, snap)
}

type namedPublisher struct {
	name string
	Publisher
}

// Fanout delivers each snapshot to every registered publisher in
// registration order. A failing publisher does not stop the others.
type Fanout struct {
	publishers []namedPublisher
}

func NewFanout() *Fanout {
	return &Fanout{}
}

// Add registers p under name, which labels its failure metric.
func (f *Fanout) Add(name string, p Publisher) *Fanout {
	f.publishers = append(f.publishers, namedPublisher{name: name, Publisher: p})
	return f
}

func (f *Fanout) Publish(ctx context.Context, snap Snapshot) error {
	var errs []error
	for _, p := range f.publishers {
		if err := p.Publish(ctx, snap); err != nil {
			metrics.PublishFailures.WithLabelValues(p.name).Inc()
			errs = append(errs, fmt.Errorf("%s: %w", p.name, err))
		}
	}
	return errors.Join(errs...)
}

// AlertSender delivers alert notifications, e.g. to Kafka.
type AlertSender interface {
	Send(ctx context.Context, n *protocol.AlertNotification) error
}

// AlertPublisher forwards snapshots that carry an alert action.
type AlertPublisher struct {
	sender  AlertSender
	timeout time.Duration
}

// NewAlertPublisher creates an alert publisher; timeout bounds each send.
func NewAlertPublisher(sender AlertSender, timeout time.Duration) *AlertPublisher {
	return &AlertPublisher{sender: sender, timeout: timeout}
}

func (p *AlertPublisher) Publish(ctx context.Context, snap Snapshot) error {
	if snap.Action == nil {
		return nil
	}

	var readingTime time.Time
	if latest, ok := snap.Latest(); ok {
		readingTime = latest.Timestamp()
	}

	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	n := alarming.NewNotification(snap.Site, snap.Action, snap.Assessment.CriticalFactors, readingTime)
	if err := p.sender.Send(ctx, n); err != nil {
		return fmt.Errorf("failed to send alert %s: %w", n.ID, err)
	}

	log := logger.WithComponent("refresh")
	log.Info().
		Str("alert_id", n.ID).
		Str("level", n.Level.String()).
		Msg("alert published")
	return nil
}
