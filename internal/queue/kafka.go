package queue

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/smukkama/landslide-monitor/internal/protocol"
)

// AlertIDHeader carries the alert id so consumers can deduplicate without
// decoding the body.
const AlertIDHeader = "alert-id"

// Producer writes alert notifications to the alert topic. Messages are keyed
// by site, so one site's alerts land on one partition in emission order.
type Producer struct {
	writer *kafka.Writer
}

// NewProducer creates a producer for topic.
func NewProducer(brokers []string, topic string) *Producer {
	return &Producer{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireAll,
			// Alerts are rare and latency matters more than batching.
			BatchTimeout: 10 * time.Millisecond,
			WriteTimeout: 10 * time.Second,
		},
	}
}

// PublishAlert encodes n and writes it synchronously.
func (p *Producer) PublishAlert(ctx context.Context, n *protocol.AlertNotification) error {
	msg, err := AlertMessage(n)
	if err != nil {
		return err
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to publish alert %s for site %s: %w", n.ID, n.Site, err)
	}
	return nil
}

// Close flushes and closes the producer.
func (p *Producer) Close() error {
	return p.writer.Close()
}

// AlertMessage builds the Kafka message for n.
func AlertMessage(n *protocol.AlertNotification) (kafka.Message, error) {
	data, err := protocol.EncodeAlertNotification(n)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("failed to encode alert %s: %w", n.ID, err)
	}
	return kafka.Message{
		Key:     []byte(n.Site),
		Value:   data,
		Headers: []kafka.Header{{Key: AlertIDHeader, Value: []byte(n.ID)}},
		Time:    n.EmittedAt,
	}, nil
}

// Consumer reads the alert topic as part of a consumer group. Offsets are
// committed explicitly after a batch has been handled.
type Consumer struct {
	reader *kafka.Reader
}

// NewConsumer creates a group consumer. A new group starts from the oldest
// retained alert; the journal ignores alerts it has already seen.
func NewConsumer(brokers []string, topic, groupID string) *Consumer {
	return &Consumer{
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers:        brokers,
			Topic:          topic,
			GroupID:        groupID,
			MinBytes:       1,
			MaxBytes:       1e6,
			MaxWait:        time.Second,
			CommitInterval: 0,
			StartOffset:    kafka.FirstOffset,
		}),
	}
}

// Consume blocks until the next message arrives or ctx is done.
func (c *Consumer) Consume(ctx context.Context) (kafka.Message, error) {
	msg, err := c.reader.FetchMessage(ctx)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("failed to fetch alert: %w", err)
	}
	return msg, nil
}

// Commit marks msgs as handled for the group.
func (c *Consumer) Commit(ctx context.Context, msgs ...kafka.Message) error {
	if err := c.reader.CommitMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("failed to commit %d alerts: %w", len(msgs), err)
	}
	return nil
}

// Close leaves the group and closes the reader.
func (c *Consumer) Close() error {
	return c.reader.Close()
}

// EnsureTopic creates topic through the cluster controller. A topic that
// already exists is not an error.
func EnsureTopic(brokers []string, topic string, partitions, replication int) error {
	if len(brokers) == 0 {
		return errors.New("no kafka brokers configured")
	}

	conn, err := kafka.Dial("tcp", brokers[0])
	if err != nil {
		return fmt.Errorf("failed to dial broker %s: %w", brokers[0], err)
	}
	defer conn.Close()

	controller, err := conn.Controller()
	if err != nil {
		return fmt.Errorf("failed to find controller: %w", err)
	}

	controllerConn, err := kafka.Dial("tcp", net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port)))
	if err != nil {
		return fmt.Errorf("failed to dial controller: %w", err)
	}
	defer controllerConn.Close()

	err = controllerConn.CreateTopics(kafka.TopicConfig{
		Topic:             topic,
		NumPartitions:     partitions,
		ReplicationFactor: replication,
	})
	if err != nil && !errors.Is(err, kafka.TopicAlreadyExists) {
		return fmt.Errorf("failed to create topic %s: %w", topic, err)
	}
	return nil
}
