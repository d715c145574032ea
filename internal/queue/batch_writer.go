package queue

import (
	"context"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/smukkama/landslide-monitor/internal/logger"
)

// MessageSource is the consuming side of a topic.
type MessageSource interface {
	Consume(ctx context.Context) (kafka.Message, error)
	Commit(ctx context.Context, msgs ...kafka.Message) error
}

// BatchHandler processes a batch. Offsets are committed only when it
// returns nil.
type BatchHandler func(ctx context.Context, batch []kafka.Message) error

// BatchWriter consumes from Kafka and hands messages to a handler in batches
type BatchWriter struct {
	source        MessageSource
	handler       BatchHandler
	batchSize     int
	flushInterval time.Duration
	stopCh        chan struct{}
	stopOnce      sync.Once
	wg            sync.WaitGroup
}

// NewBatchWriter creates a new batch writer
func NewBatchWriter(source MessageSource, handler BatchHandler, batchSize int, flushInterval time.Duration) *BatchWriter {
	if batchSize <= 0 {
		batchSize = 50
	}
	if flushInterval <= 0 {
		flushInterval = 5 * time.Second
	}
	return &BatchWriter{
		source:        source,
		handler:       handler,
		batchSize:     batchSize,
		flushInterval: flushInterval,
		stopCh:        make(chan struct{}),
	}
}

// Start begins consuming
func (bw *BatchWriter) Start(ctx context.Context) {
	bw.wg.Add(1)
	go bw.run(ctx)
}

// Stop flushes the pending batch and waits for the writer to exit
func (bw *BatchWriter) Stop() {
	bw.stopOnce.Do(func() { close(bw.stopCh) })
	bw.wg.Wait()
}

func (bw *BatchWriter) run(ctx context.Context) {
	defer bw.wg.Done()

	log := logger.WithComponent("batch_writer")

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var batch []kafka.Message
	ticker := time.NewTicker(bw.flushInterval)
	defer ticker.Stop()

	msgChan := make(chan kafka.Message, bw.batchSize)
	go func() {
		for {
			msg, err := bw.source.Consume(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				log.Warn().Err(err).Msg("consumer error")
				time.Sleep(time.Second)
				continue
			}
			select {
			case msgChan <- msg:
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-bw.stopCh:
			batch = bw.flush(ctx, batch)
			return

		case <-ctx.Done():
			return

		case <-ticker.C:
			batch = bw.flush(ctx, batch)

		case msg := <-msgChan:
			batch = append(batch, msg)
			if len(batch) >= bw.batchSize {
				batch = bw.flush(ctx, batch)
			}
		}
	}
}

// flush returns the batch to keep: empty on success, unchanged on failure
// so the messages are retried on the next flush.
func (bw *BatchWriter) flush(ctx context.Context, batch []kafka.Message) []kafka.Message {
	if len(batch) == 0 {
		return batch
	}

	log := logger.WithComponent("batch_writer")

	if err := bw.handler(ctx, batch); err != nil {
		log.Error().Err(err).Int("batch_size", len(batch)).Msg("failed to process batch")
		return batch
	}

	if err := bw.source.Commit(ctx, batch...); err != nil {
		log.Error().Err(err).Msg("failed to commit offsets")
	}

	log.Debug().Int("batch_size", len(batch)).Msg("batch flushed")
	return batch[:0]
}
