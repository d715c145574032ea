package notification

import (
	"context"
	"fmt"

	"github.com/segmentio/kafka-go"

	"github.com/smukkama/landslide-monitor/internal/database"
	"github.com/smukkama/landslide-monitor/internal/logger"
	"github.com/smukkama/landslide-monitor/internal/metrics"
	"github.com/smukkama/landslide-monitor/internal/protocol"
)

// Journal stores alert records.
type Journal interface {
	InsertAlertLogs(ctx context.Context, alerts []*database.AlertLog) error
}

// Mailer delivers one alert.
type Mailer interface {
	SendAlert(n *protocol.AlertNotification) error
}

// AlertHandler journals and mails batches of alert messages from the bus.
type AlertHandler struct {
	journal Journal
	mailer  Mailer
}

// NewAlertHandler creates a handler. Either dependency may be nil.
func NewAlertHandler(journal Journal, mailer Mailer) *AlertHandler {
	return &AlertHandler{journal: journal, mailer: mailer}
}

// HandleBatch decodes the batch, journals it in one transaction and then
// mails each alert. Undecodable messages are dropped. A journal failure
// fails the batch so it is redelivered; journaling is idempotent per alert
// id. Mail failures are logged only, so a redelivery never re-mails alerts
// that went out.
func (h *AlertHandler) HandleBatch(ctx context.Context, batch []kafka.Message) error {
	log := logger.WithComponent("notifier")

	notifications := make([]*protocol.AlertNotification, 0, len(batch))
	for _, msg := range batch {
		n, err := protocol.DecodeAlertNotification(msg.Value)
		if err != nil {
			log.Warn().Err(err).Int64("offset", msg.Offset).Msg("dropping undecodable alert message")
			continue
		}
		notifications = append(notifications, n)
	}

	if h.journal != nil && len(notifications) > 0 {
		rows := make([]*database.AlertLog, len(notifications))
		for i, n := range notifications {
			rows[i] = database.NewAlertLog(n)
		}
		if err := h.journal.InsertAlertLogs(ctx, rows); err != nil {
			return fmt.Errorf("failed to journal %d alerts: %w", len(rows), err)
		}
	}

	if h.mailer != nil {
		for _, n := range notifications {
			if err := h.mailer.SendAlert(n); err != nil {
				metrics.PublishFailures.WithLabelValues("email").Inc()
				log.Warn().Err(err).Str("alert_id", n.ID).Msg("failed to email alert")
			}
		}
	}

	log.Info().Int("alerts", len(notifications)).Msg("alert batch processed")
	return nil
}
