package refresh

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/smukkama/landslide-monitor/internal/protocol"
	"github.com/smukkama/landslide-monitor/internal/reading"
	"github.com/smukkama/landslide-monitor/internal/risk"
	"github.com/smukkama/landslide-monitor/internal/source"
)

type step struct {
	reading reading.SensorReading
	err     error
}

// scriptedSource replays steps in order and then keeps failing.
type scriptedSource struct {
	mu    sync.Mutex
	steps []step
	calls int
}

func (s *scriptedSource) FetchLatest(ctx context.Context) (reading.SensorReading, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if len(s.steps) == 0 {
		return reading.SensorReading{}, fmt.Errorf("%w: exhausted", source.ErrUnavailable)
	}
	next := s.steps[0]
	s.steps = s.steps[1:]
	return next.reading, next.err
}

// blockingSource waits for its context to end.
type blockingSource struct {
	entered chan struct{}
	once    sync.Once
}

func (s *blockingSource) FetchLatest(ctx context.Context) (reading.SensorReading, error) {
	s.once.Do(func() { close(s.entered) })
	<-ctx.Done()
	return reading.SensorReading{}, fmt.Errorf("%w: %w", source.ErrUnavailable, ctx.Err())
}

type recorder struct {
	mu    sync.Mutex
	snaps []Snapshot
}

func (r *recorder) Publish(ctx context.Context, snap Snapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.snaps = append(r.snaps, snap)
	return nil
}

func (r *recorder) all() []Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Snapshot(nil), r.snaps...)
}

type fakeSender struct {
	mu   sync.Mutex
	sent []*protocol.AlertNotification
	err  error
}

func (f *fakeSender) Send(ctx context.Context, n *protocol.AlertNotification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, n)
	return nil
}

var base = time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)

func sample(i int, soil, disp, rain, vib float64) reading.SensorReading {
	return reading.New(base.Add(time.Duration(i)*8*time.Second), reading.Measurements{
		SoilMoisture: reading.Available(soil),
		Displacement: reading.Available(disp),
		Rainfall:     reading.Available(rain),
		Vibration:    reading.Available(vib),
		Temperature:  reading.Available(20),
	}, nil)
}

func testOptions() Options {
	return Options{
		Site:           "slope-7",
		Interval:       10 * time.Millisecond,
		FetchTimeout:   50 * time.Millisecond,
		WindowCapacity: 8,
		Thresholds:     risk.DefaultThresholds(),
	}
}

func TestLoop_EndToEndScenario(t *testing.T) {
	src := &scriptedSource{steps: []step{
		{reading: sample(0, 40, 1, 10, 50)},
		{reading: sample(1, 40, 6, 60, 50)},
		{reading: sample(2, 40, 6, 60, 50)},
	}}
	rec := &recorder{}
	sender := &fakeSender{}
	fanout := NewFanout().Add("recorder", rec).Add("alerts", NewAlertPublisher(sender, time.Second))

	l := New(src, fanout, testOptions())
	ctx := context.Background()

	snap, err := l.RunOnce(ctx)
	if err != nil {
		t.Fatalf("RunOnce failed: %v", err)
	}
	if snap.Level != risk.Medium {
		t.Fatalf("Expected Medium, got %s", snap.Level)
	}
	want := []reading.Name{reading.SoilMoisture, reading.Vibration}
	if fmt.Sprint(snap.Assessment.CriticalFactors) != fmt.Sprint(want) {
		t.Errorf("Expected factors %v, got %v", want, snap.Assessment.CriticalFactors)
	}

	snap, _ = l.RunOnce(ctx)
	if snap.Level != risk.High || len(snap.Assessment.CriticalFactors) != 4 {
		t.Fatalf("Expected High with 4 factors, got %s with %v", snap.Level, snap.Assessment.CriticalFactors)
	}
	if snap.Action == nil || snap.Action.Level != risk.High {
		t.Fatalf("Expected High action, got %+v", snap.Action)
	}

	snap, _ = l.RunOnce(ctx)
	if snap.Action != nil {
		t.Errorf("Sustained High should not alert again, got %+v", snap.Action)
	}

	var highs int
	for _, n := range sender.sent {
		if n.Level == risk.High {
			highs++
			if n.Site != "slope-7" || !n.ReadingTime.Equal(sample(1, 0, 0, 0, 0).Timestamp()) {
				t.Errorf("Unexpected notification %+v", n)
			}
		}
	}
	if highs != 1 {
		t.Errorf("Expected exactly one High alert, got %d", highs)
	}
	if len(sender.sent) != 2 {
		t.Errorf("Expected Medium then High alerts, got %d", len(sender.sent))
	}
	if got := len(rec.all()); got != 3 {
		t.Errorf("Expected 3 published snapshots, got %d", got)
	}
}

func TestLoop_SkipKeepsWindowAndAlertState(t *testing.T) {
	src := &scriptedSource{steps: []step{
		{reading: sample(0, 40, 1, 10, 50)},
		{err: fmt.Errorf("%w: connection refused", source.ErrUnavailable)},
		{reading: sample(1, 40, 1, 10, 50)},
	}}
	l := New(src, nil, testOptions())
	ctx := context.Background()

	first, _ := l.RunOnce(ctx)

	skipped, err := l.RunOnce(ctx)
	if !errors.Is(err, source.ErrUnavailable) {
		t.Fatalf("Expected ErrUnavailable, got %v", err)
	}
	if !skipped.Stale || skipped.Failures != 1 {
		t.Errorf("Expected stale snapshot with 1 failure, got stale=%v failures=%d", skipped.Stale, skipped.Failures)
	}
	if len(skipped.Window) != 1 || !skipped.Window[0].Equal(first.Window[0]) {
		t.Errorf("Window changed on a skipped cycle: %v", skipped.Window)
	}
	if skipped.Level != risk.Medium || skipped.Action != nil {
		t.Errorf("Skipped cycle should keep level and raise nothing, got %s %+v", skipped.Level, skipped.Action)
	}

	// Same level after recovery: still no repeat alert.
	recovered, err := l.RunOnce(ctx)
	if err != nil {
		t.Fatalf("RunOnce failed: %v", err)
	}
	if recovered.Action != nil {
		t.Errorf("Expected no alert after recovery at the same level, got %+v", recovered.Action)
	}
	if recovered.Stale || recovered.Failures != 0 || len(recovered.Window) != 2 {
		t.Errorf("Unexpected recovered snapshot %+v", recovered)
	}
}

func TestLoop_WindowEviction(t *testing.T) {
	var steps []step
	for i := 0; i < 11; i++ {
		steps = append(steps, step{reading: sample(i, 10, 1, 1, 1)})
	}
	l := New(&scriptedSource{steps: steps}, nil, testOptions())

	var snap Snapshot
	for i := 0; i < 11; i++ {
		snap, _ = l.RunOnce(context.Background())
	}

	if len(snap.Window) != 8 {
		t.Fatalf("Expected 8 readings, got %d", len(snap.Window))
	}
	if !snap.Window[0].Equal(sample(3, 10, 1, 1, 1)) || !snap.Window[7].Equal(sample(10, 10, 1, 1, 1)) {
		t.Error("Window does not hold the last 8 readings oldest first")
	}
}

func TestLoop_FetchTimeoutIsUnavailable(t *testing.T) {
	src := &blockingSource{entered: make(chan struct{})}
	opts := testOptions()
	opts.FetchTimeout = 20 * time.Millisecond
	l := New(src, nil, opts)

	start := time.Now()
	snap, err := l.RunOnce(context.Background())
	if !errors.Is(err, source.ErrUnavailable) {
		t.Fatalf("Expected ErrUnavailable, got %v", err)
	}
	if time.Since(start) > time.Second {
		t.Error("Fetch was not bounded by the timeout")
	}
	if !snap.Stale || len(snap.Window) != 0 {
		t.Errorf("Expected stale empty snapshot, got %+v", snap)
	}
	if l.State() != Idle {
		t.Errorf("Expected Idle after cycle, got %s", l.State())
	}
}

func TestLoop_StartCyclesUntilStop(t *testing.T) {
	var steps []step
	for i := 0; i < 100; i++ {
		steps = append(steps, step{reading: sample(i, 10, 1, 1, 1)})
	}
	src := &scriptedSource{steps: steps}
	rec := &recorder{}
	l := New(src, rec, testOptions())

	l.Start()
	l.Start()
	time.Sleep(100 * time.Millisecond)
	l.Stop()
	l.Stop()

	published := rec.all()
	if len(published) < 2 {
		t.Fatalf("Expected several cycles, got %d", len(published))
	}
	for i := 1; i < len(published); i++ {
		if published[i].Cycle != published[i-1].Cycle+1 {
			t.Fatalf("Snapshots out of order: %d after %d", published[i].Cycle, published[i-1].Cycle)
		}
	}

	count := len(published)
	time.Sleep(50 * time.Millisecond)
	if len(rec.all()) != count {
		t.Error("Loop kept cycling after Stop")
	}
}

func TestLoop_StopDuringFetch(t *testing.T) {
	src := &blockingSource{entered: make(chan struct{})}
	opts := testOptions()
	opts.FetchTimeout = time.Hour
	l := New(src, nil, opts)

	l.Start()
	select {
	case <-src.entered:
	case <-time.After(time.Second):
		t.Fatal("Fetch never started")
	}

	done := make(chan struct{})
	go func() {
		l.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Stop did not cancel the in-flight fetch")
	}

	snap := l.Snapshot()
	if len(snap.Window) != 0 {
		t.Errorf("Window changed by a cancelled fetch: %v", snap.Window)
	}
	if _, ok := l.policy.Last(); ok {
		t.Error("Alert state changed by a cancelled fetch")
	}
	if l.State() != Idle {
		t.Errorf("Expected Idle after Stop, got %s", l.State())
	}
}

func TestLoop_NextDelay(t *testing.T) {
	opts := testOptions()
	opts.Interval = time.Second
	opts.MaxBackoff = 10 * time.Second
	l := New(&scriptedSource{}, nil, opts)

	tests := []struct {
		failures int
		want     time.Duration
	}{
		{0, time.Second},
		{1, 2 * time.Second},
		{2, 4 * time.Second},
		{3, 8 * time.Second},
		{4, 10 * time.Second},
		{50, 10 * time.Second},
	}
	for _, tt := range tests {
		if got := l.nextDelay(tt.failures); got != tt.want {
			t.Errorf("nextDelay(%d) = %v, want %v", tt.failures, got, tt.want)
		}
	}

	l.opts.MaxBackoff = 0
	if got := l.nextDelay(5); got != time.Second {
		t.Errorf("Expected fixed period without backoff, got %v", got)
	}
}

func TestLoop_ZeroOptionsUseDefaults(t *testing.T) {
	src := &scriptedSource{steps: []step{{reading: sample(0, 40, 1, 10, 50)}}}
	l := New(src, nil, Options{})

	if l.opts.Interval != DefaultInterval || l.opts.FetchTimeout != DefaultFetchTimeout {
		t.Errorf("Expected default interval and timeout, got %v and %v", l.opts.Interval, l.opts.FetchTimeout)
	}
	if l.Thresholds() != risk.DefaultThresholds() {
		t.Errorf("Expected default thresholds, got %+v", l.Thresholds())
	}
	if l.nextDelay(0) != DefaultInterval {
		t.Errorf("Expected default period, got %v", l.nextDelay(0))
	}

	snap, err := l.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("Cycle with zero options was skipped: %v", err)
	}
	if snap.Stale || len(snap.Window) != 1 {
		t.Errorf("Expected applied cycle, got stale=%v window=%d", snap.Stale, len(snap.Window))
	}
	if snap.Level != risk.Medium {
		t.Errorf("Expected Medium under default thresholds, got %v", snap.Level)
	}
}

func TestLoop_Seed(t *testing.T) {
	rec := &recorder{}
	l := New(&scriptedSource{}, rec, testOptions())

	var history []reading.SensorReading
	for i := 0; i < 8; i++ {
		history = append(history, sample(i, 40, 1, 1, 1))
	}

	snap := l.Seed(history)
	if len(snap.Window) != 8 {
		t.Fatalf("Expected 8 seeded readings, got %d", len(snap.Window))
	}
	if snap.Level != risk.Medium || snap.Action == nil {
		t.Errorf("Expected first observation to alert Medium, got %s %+v", snap.Level, snap.Action)
	}
	if len(rec.all()) != 1 {
		t.Errorf("Expected one published snapshot, got %d", len(rec.all()))
	}
}

type failingPublisher struct{}

func (failingPublisher) Publish(ctx context.Context, snap Snapshot) error {
	return errors.New("broker down")
}

func TestFanout_ContinuesAfterFailure(t *testing.T) {
	rec := &recorder{}
	fanout := NewFanout().Add("broken", failingPublisher{}).Add("recorder", rec)

	err := fanout.Publish(context.Background(), Snapshot{Cycle: 1})
	if err == nil {
		t.Error("Expected joined error")
	}
	if len(rec.all()) != 1 {
		t.Error("Later publisher was skipped after a failure")
	}
}

func TestAlertPublisher_IgnoresSnapshotsWithoutAction(t *testing.T) {
	sender := &fakeSender{}
	p := NewAlertPublisher(sender, 0)

	if err := p.Publish(context.Background(), Snapshot{Level: risk.High}); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}
	if len(sender.sent) != 0 {
		t.Errorf("Expected nothing sent, got %d", len(sender.sent))
	}
}
