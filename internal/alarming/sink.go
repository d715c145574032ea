package alarming

import (
	"context"

	"github.com/smukkama/landslide-monitor/internal/protocol"
)

// AlertWriter publishes notifications to the alert bus.
type AlertWriter interface {
	PublishAlert(ctx context.Context, n *protocol.AlertNotification) error
}

// KafkaSink forwards alert notifications to the alert topic.
type KafkaSink struct {
	writer AlertWriter
}

// NewKafkaSink creates a sink on top of an existing producer.
func NewKafkaSink(writer AlertWriter) *KafkaSink {
	return &KafkaSink{writer: writer}
}

// Send publishes n. Nil notifications are ignored.
func (s *KafkaSink) Send(ctx context.Context, n *protocol.AlertNotification) error {
	if n == nil {
		return nil
	}
	return s.writer.PublishAlert(ctx, n)
}
