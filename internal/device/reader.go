package device

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/smukkama/landslide-monitor/internal/logger"
	"github.com/smukkama/landslide-monitor/internal/metrics"
	"github.com/smukkama/landslide-monitor/internal/protocol"
)

// Line outcomes, also used as metric labels.
const (
	OutcomeStored    = "stored"
	OutcomeMalformed = "malformed"
	OutcomeText      = "text"
	OutcomeDropped   = "dropped"
	OutcomeEmpty     = "empty"
)

// MaxLineLength bounds a single device line. Longer runs of bytes without a
// newline are discarded as malformed.
const MaxLineLength = 64 * 1024

// Opener opens a port for reading.
type Opener func(name string, baud int) (io.ReadCloser, error)

// ReaderConfig configures a Reader.
type ReaderConfig struct {
	// Port skips detection when set.
	Port           string
	BaudRate       int
	VendorHints    []string
	ReconnectDelay time.Duration
}

// Reader tails the device's serial output and keeps the latest valid
// payload in a LatestStore. It survives unplugging, bad lines and missing
// devices by retrying after ReconnectDelay.
type Reader struct {
	cfg   ReaderConfig
	store LatestStore
	list  Lister
	open  Opener
	log   zerolog.Logger
}

// NewReader creates a reader on the system's serial ports.
func NewReader(cfg ReaderConfig, store LatestStore) *Reader {
	return NewReaderWith(cfg, store, SystemPorts, func(name string, baud int) (io.ReadCloser, error) {
		return OpenSerial(name, baud)
	})
}

// NewReaderWith creates a reader with explicit port listing and opening.
func NewReaderWith(cfg ReaderConfig, store LatestStore, list Lister, open Opener) *Reader {
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = 5 * time.Second
	}
	return &Reader{
		cfg:   cfg,
		store: store,
		list:  list,
		open:  open,
		log:   logger.WithComponent("device"),
	}
}

// Run reads until ctx is cancelled.
func (r *Reader) Run(ctx context.Context) {
	for {
		err := r.session(ctx)
		if ctx.Err() != nil {
			return
		}
		if errors.Is(err, ErrPortNotFound) {
			r.log.Warn().Err(err).Msg("device not found, continuing without live telemetry")
		} else {
			r.log.Warn().Err(err).Msg("device connection lost")
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(r.cfg.ReconnectDelay):
		}
	}
}

// resolvePort returns the configured port or detects one.
func (r *Reader) resolvePort() (string, error) {
	if r.cfg.Port != "" {
		return r.cfg.Port, nil
	}
	ports, err := r.list()
	if err != nil {
		return "", err
	}
	p, err := Detect(ports, r.cfg.VendorHints)
	if err != nil {
		return "", err
	}
	return p.Name, nil
}

func (r *Reader) session(ctx context.Context) error {
	name, err := r.resolvePort()
	if err != nil {
		return err
	}

	port, err := r.open(name, r.cfg.BaudRate)
	if err != nil {
		return err
	}

	metrics.DeviceConnected.Set(1)
	defer metrics.DeviceConnected.Set(0)
	r.log.Info().Str("port", name).Int("baud", r.cfg.BaudRate).Msg("device connected")

	// Closing the port is the only way to unblock a pending read.
	var closeOnce sync.Once
	closePort := func() { closeOnce.Do(func() { port.Close() }) }
	defer closePort()

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			closePort()
		case <-done:
		}
	}()

	scanner := bufio.NewScanner(port)
	scanner.Buffer(make([]byte, 4096), MaxLineLength)
	scanner.Split(splitLines(MaxLineLength, func() {
		metrics.DeviceLinesTotal.WithLabelValues(OutcomeMalformed).Inc()
		r.log.Warn().Str("port", name).Int("limit", MaxLineLength).Msg("discarding overlong device line")
	}))
	for scanner.Scan() {
		r.HandleLine(ctx, scanner.Bytes())
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read from %s: %w", name, err)
	}
	return fmt.Errorf("%s closed", name)
}

// splitLines is bufio.ScanLines with a length cap. Once a line reaches max
// bytes without a newline, onDrop is called and everything up to the next
// newline is skipped, so noise on the wire never ends the session.
func splitLines(max int, onDrop func()) bufio.SplitFunc {
	discarding := false
	return func(data []byte, atEOF bool) (int, []byte, error) {
		if i := bytes.IndexByte(data, '\n'); i >= 0 {
			if discarding {
				discarding = false
				return i + 1, nil, nil
			}
			return i + 1, data[:i], nil
		}
		if len(data) >= max {
			if !discarding {
				discarding = true
				onDrop()
			}
			return len(data), nil, nil
		}
		if atEOF && len(data) > 0 {
			if discarding {
				return len(data), nil, nil
			}
			return len(data), data, nil
		}
		return 0, nil, nil
	}
}

// HandleLine classifies one line and stores it when it is a valid payload.
// It returns the outcome.
func (r *Reader) HandleLine(ctx context.Context, line []byte) string {
	line = bytes.TrimSpace(line)
	outcome := r.handle(ctx, line)
	if outcome != OutcomeEmpty {
		metrics.DeviceLinesTotal.WithLabelValues(outcome).Inc()
	}
	return outcome
}

func (r *Reader) handle(ctx context.Context, line []byte) string {
	if len(line) == 0 {
		return OutcomeEmpty
	}

	if line[0] != '{' {
		r.log.Info().Str("line", string(line)).Msg("device message")
		return OutcomeText
	}

	if _, err := protocol.ParseDeviceLine(line); err != nil {
		r.log.Warn().Err(err).Str("line", string(line)).Msg("discarding malformed device line")
		return OutcomeMalformed
	}

	if err := r.store.Put(ctx, line); err != nil {
		r.log.Warn().Err(err).Msg("failed to store device payload")
		return OutcomeDropped
	}
	return OutcomeStored
}
