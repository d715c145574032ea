package refresh

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/smukkama/landslide-monitor/internal/alarming"
	"github.com/smukkama/landslide-monitor/internal/logger"
	"github.com/smukkama/landslide-monitor/internal/metrics"
	"github.com/smukkama/landslide-monitor/internal/reading"
	"github.com/smukkama/landslide-monitor/internal/risk"
	"github.com/smukkama/landslide-monitor/internal/source"
	"github.com/smukkama/landslide-monitor/internal/timer"
	"github.com/smukkama/landslide-monitor/internal/window"
)

const cycleTaskID = "refresh-cycle"

// Defaults applied by New to unset options.
const (
	DefaultInterval     = 8 * time.Second
	DefaultFetchTimeout = 5 * time.Second
)

// Options configures a Loop.
type Options struct {
	Site         string
	Interval     time.Duration
	FetchTimeout time.Duration
	// MaxBackoff caps the delay after consecutive failures. Zero or a value
	// not above Interval keeps the fixed period.
	MaxBackoff     time.Duration
	WindowCapacity int
	Thresholds     risk.ThresholdConfig
}

// Loop periodically fetches a reading, appends it to the window, classifies
// it and runs the alert policy. Cycles never overlap: the next one is armed
// only after the current one has finished.
type Loop struct {
	opts      Options
	source    source.Adapter
	publisher Publisher
	timer     *timer.TimerManager

	// cycleMu serializes whole cycles, publishing included, so snapshots
	// reach publishers in cycle order.
	cycleMu sync.Mutex

	// mu guards the window, the policy and the bookkeeping below.
	mu        sync.Mutex
	window    *window.Store
	policy    *alarming.Policy
	failures  int
	cycle     uint64
	last      Snapshot
	lastAlert *alarming.Action

	state atomic.Int32

	ctx       context.Context
	cancel    context.CancelFunc
	startOnce sync.Once
	stopOnce  sync.Once
}

// New creates a loop that owns a fresh window and alert state. publisher
// may be nil. Unset durations and capacity fall back to the defaults.
func New(src source.Adapter, publisher Publisher, opts Options) *Loop {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.FetchTimeout <= 0 {
		opts.FetchTimeout = DefaultFetchTimeout
	}
	if opts.WindowCapacity < 1 {
		opts.WindowCapacity = window.DefaultCapacity
	}
	if opts.Thresholds == (risk.ThresholdConfig{}) {
		opts.Thresholds = risk.DefaultThresholds()
	}
	if publisher == nil {
		publisher = NewFanout()
	}

	ctx, cancel := context.WithCancel(context.Background())
	l := &Loop{
		opts:      opts,
		source:    src,
		publisher: publisher,
		timer:     timer.NewTimerManager("refresh"),
		window:    window.NewStore(opts.WindowCapacity),
		policy:    alarming.NewPolicy(),
		ctx:       ctx,
		cancel:    cancel,
	}
	l.last = Snapshot{Site: opts.Site, Window: []reading.SensorReading{}, Assessment: risk.Assessment{CriticalFactors: []reading.Name{}}}
	return l
}

// Start runs the first cycle immediately and keeps cycling until Stop.
func (l *Loop) Start() {
	l.startOnce.Do(func() {
		l.timer.Start()
		if err := l.timer.ScheduleAfter(cycleTaskID, 0, l.tick); err != nil {
			log := logger.WithComponent("refresh")
			log.Error().Err(err).Msg("failed to schedule first cycle")
		}
	})
}

// Stop cancels any in-flight fetch, waits for the running cycle to finish
// and drops the next one. It is safe to call at any point and more than
// once. The window and alert state are never left half-updated.
func (l *Loop) Stop() {
	l.stopOnce.Do(func() {
		l.cancel()
		l.timer.Stop()
		l.state.Store(int32(Idle))
	})
}

// State returns the loop's current position in its cycle.
func (l *Loop) State() State {
	return State(l.state.Load())
}

// Thresholds returns the cutoffs the loop classifies with.
func (l *Loop) Thresholds() risk.ThresholdConfig {
	return l.opts.Thresholds
}

// Snapshot returns the result of the most recent cycle.
func (l *Loop) Snapshot() Snapshot {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.last
}

// LastAlert returns the most recent alert action, or nil.
func (l *Loop) LastAlert() *alarming.Action {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.lastAlert
}

func (l *Loop) tick() {
	if l.ctx.Err() != nil {
		return
	}

	snap, _ := l.RunOnce(l.ctx)

	if l.ctx.Err() != nil {
		return
	}
	err := l.timer.ScheduleAfter(cycleTaskID, l.nextDelay(snap.Failures), l.tick)
	if err != nil && !errors.Is(err, timer.ErrManagerStopped) {
		log := logger.WithComponent("refresh")
		log.Error().Err(err).Msg("failed to schedule next cycle")
	}
}

// nextDelay doubles the period per consecutive failure up to MaxBackoff.
func (l *Loop) nextDelay(failures int) time.Duration {
	delay := l.opts.Interval
	if failures == 0 || l.opts.MaxBackoff <= delay {
		return delay
	}
	for i := 0; i < failures && delay < l.opts.MaxBackoff; i++ {
		delay *= 2
	}
	if delay > l.opts.MaxBackoff {
		delay = l.opts.MaxBackoff
	}
	return delay
}

// RunOnce performs a single fetch-apply cycle and publishes its snapshot.
// The returned error is the fetch failure of a skipped cycle.
func (l *Loop) RunOnce(ctx context.Context) (Snapshot, error) {
	l.cycleMu.Lock()
	defer l.cycleMu.Unlock()

	log := logger.WithComponent("refresh")

	l.state.Store(int32(Fetching))
	start := time.Now()
	fetchCtx, cancel := context.WithTimeout(ctx, l.opts.FetchTimeout)
	r, err := l.source.FetchLatest(fetchCtx)
	cancel()
	metrics.FetchDuration.Observe(time.Since(start).Seconds())

	var snap Snapshot
	if err != nil {
		l.state.Store(int32(Skipping))
		snap = l.skip()
		metrics.RefreshCyclesTotal.WithLabelValues("skipped").Inc()
		log.Warn().
			Err(err).
			Int("consecutive_failures", snap.Failures).
			Msg("fetch failed, keeping previous window")
	} else {
		l.state.Store(int32(Applying))
		snap = l.apply(r)
		metrics.RefreshCyclesTotal.WithLabelValues("applied").Inc()
		log.Debug().
			Uint64("cycle", snap.Cycle).
			Str("level", snap.Level.String()).
			Int("critical_factors", len(snap.Assessment.CriticalFactors)).
			Msg("reading applied")
	}

	l.publish(snap)
	l.state.Store(int32(Idle))
	return snap, err
}

// Seed fills the window with history and classifies its newest entry, as
// if the readings had arrived one by one without intermediate alerts.
func (l *Loop) Seed(history []reading.SensorReading) Snapshot {
	if len(history) == 0 {
		return l.Snapshot()
	}

	l.cycleMu.Lock()
	defer l.cycleMu.Unlock()

	for _, r := range history[:len(history)-1] {
		l.window.Append(r)
	}
	snap := l.apply(history[len(history)-1])
	l.publish(snap)
	return snap
}

// apply appends r, classifies it and observes the level. It holds mu for
// the whole update.
func (l *Loop) apply(r reading.SensorReading) Snapshot {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.window.Append(r)
	assessment := risk.Evaluate(r, l.opts.Thresholds)
	action := l.policy.Observe(assessment.Level)

	l.failures = 0
	l.cycle++
	l.last = Snapshot{
		Site:       l.opts.Site,
		Cycle:      l.cycle,
		Window:     l.window.All(),
		Assessment: assessment,
		Level:      assessment.Level,
		Action:     action,
		UpdatedAt:  time.Now(),
	}

	metrics.WindowSize.Set(float64(l.window.Len()))
	metrics.RiskLevel.Set(float64(assessment.Level))
	metrics.CriticalFactors.Set(float64(len(assessment.CriticalFactors)))
	if action != nil {
		l.lastAlert = action
		metrics.AlertsTotal.WithLabelValues(action.Level.String()).Inc()
	}

	return l.last
}

// skip records a failed cycle without touching the window or alert state.
func (l *Loop) skip() Snapshot {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.failures++
	l.cycle++
	l.last.Cycle = l.cycle
	l.last.Action = nil
	l.last.Stale = true
	l.last.Failures = l.failures
	l.last.UpdatedAt = time.Now()
	return l.last
}

func (l *Loop) publish(snap Snapshot) {
	// Publishing uses a background context so the last snapshot still goes
	// out while the loop is stopping.
	if err := l.publisher.Publish(context.Background(), snap); err != nil {
		log := logger.WithComponent("refresh")
		log.Warn().Err(err).Uint64("cycle", snap.Cycle).Msg("failed to publish snapshot")
	}
}
