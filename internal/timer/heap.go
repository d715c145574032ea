package timer

import (
	"container/heap"
	"sync"
	"time"

	"github.com/smukkama/landslide-monitor/internal/logger"
	"github.com/smukkama/landslide-monitor/internal/metrics"
)

// TimerTask represents a task scheduled for future execution
type TimerTask struct {
	ID       string
	ExpiryAt time.Time
	Callback func()
	index    int // index in the heap (for heap.Interface)
}

// timerHeap is a min-heap of TimerTasks ordered by ExpiryAt
type timerHeap []*TimerTask

func (h timerHeap) Len() int { return len(h) }

func (h timerHeap) Less(i, j int) bool {
	return h[i].ExpiryAt.Before(h[j].ExpiryAt)
}

func (h timerHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *timerHeap) Push(x any) {
	task := x.(*TimerTask)
	task.index = len(*h)
	*h = append(*h, task)
}

func (h *timerHeap) Pop() any {
	old := *h
	n := len(old)
	task := old[n-1]
	old[n-1] = nil
	task.index = -1
	*h = old[0 : n-1]
	return task
}

// TimerManager runs callbacks at scheduled times. Each callback runs on its
// own goroutine; Stop waits for callbacks already running to return.
type TimerManager struct {
	name    string
	heap    timerHeap
	mu      sync.Mutex
	wakeup  chan struct{}
	tasks   map[string]*TimerTask // for O(1) lookup by ID
	running sync.WaitGroup
	active  int
	started bool
	stopped bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewTimerManager creates a timer manager. name labels its logs and panic
// metrics.
func NewTimerManager(name string) *TimerManager {
	tm := &TimerManager{
		name:   name,
		heap:   make(timerHeap, 0),
		wakeup: make(chan struct{}, 1),
		tasks:  make(map[string]*TimerTask),
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
	heap.Init(&tm.heap)
	return tm
}

// Start starts the scheduler goroutine. Calling it twice is a no-op.
func (tm *TimerManager) Start() {
	tm.mu.Lock()
	defer tm.mu.Unlock()
	if tm.started || tm.stopped {
		return
	}
	tm.started = true
	go tm.run()
}

// Stop drops every pending task and waits for running callbacks. It is
// idempotent.
func (tm *TimerManager) Stop() {
	tm.mu.Lock()
	if tm.stopped {
		tm.mu.Unlock()
		tm.running.Wait()
		return
	}
	tm.stopped = true
	started := tm.started
	for id := range tm.tasks {
		delete(tm.tasks, id)
	}
	tm.heap = tm.heap[:0]
	close(tm.stopCh)
	tm.mu.Unlock()

	if started {
		<-tm.doneCh
	}
	tm.running.Wait()
}

// Schedule adds a task to be executed at expiryAt. A task with the same ID
// is replaced.
func (tm *TimerManager) Schedule(id string, expiryAt time.Time, callback func()) error {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	if tm.stopped {
		return ErrManagerStopped
	}

	if existing, ok := tm.tasks[id]; ok {
		heap.Remove(&tm.heap, existing.index)
		delete(tm.tasks, id)
	}

	task := &TimerTask{
		ID:       id,
		ExpiryAt: expiryAt,
		Callback: callback,
	}

	heap.Push(&tm.heap, task)
	tm.tasks[id] = task

	// Wake up the scheduler if this is the earliest task
	if tm.heap[0] == task {
		select {
		case tm.wakeup <- struct{}{}:
		default:
		}
	}

	return nil
}

// ScheduleAfter is Schedule relative to now.
func (tm *TimerManager) ScheduleAfter(id string, d time.Duration, callback func()) error {
	return tm.Schedule(id, time.Now().Add(d), callback)
}

// Cancel removes a scheduled task
func (tm *TimerManager) Cancel(id string) bool {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	task, ok := tm.tasks[id]
	if !ok {
		return false
	}

	heap.Remove(&tm.heap, task.index)
	delete(tm.tasks, id)
	return true
}

// Pending reports whether a task with id is waiting to fire.
func (tm *TimerManager) Pending(id string) bool {
	tm.mu.Lock()
	defer tm.mu.Unlock()
	_, ok := tm.tasks[id]
	return ok
}

func (tm *TimerManager) run() {
	defer close(tm.doneCh)

	for {
		tm.mu.Lock()

		if tm.stopped {
			tm.mu.Unlock()
			return
		}

		var waitDuration time.Duration
		if tm.heap.Len() == 0 {
			waitDuration = 24 * time.Hour
		} else {
			nextTask := tm.heap[0]
			waitDuration = time.Until(nextTask.ExpiryAt)

			if waitDuration <= 0 {
				task := heap.Pop(&tm.heap).(*TimerTask)
				delete(tm.tasks, task.ID)

				// Registered under the lock so Stop cannot miss it.
				tm.running.Add(1)
				tm.active++
				go tm.execute(task)

				tm.mu.Unlock()
				continue
			}
		}

		tm.mu.Unlock()

		timer := time.NewTimer(waitDuration)
		select {
		case <-timer.C:
		case <-tm.wakeup:
			timer.Stop()
		case <-tm.stopCh:
			timer.Stop()
			return
		}
	}
}

func (tm *TimerManager) execute(task *TimerTask) {
	defer func() {
		if r := recover(); r != nil {
			metrics.PanicsRecovered.WithLabelValues(tm.name).Inc()
			log := logger.WithComponent(tm.name)
			log.Error().Interface("panic", r).Str("task", task.ID).Msg("timer callback panicked")
		}
		tm.mu.Lock()
		tm.active--
		tm.mu.Unlock()
		tm.running.Done()
	}()

	task.Callback()
}

// Stats returns statistics about the timer manager
func (tm *TimerManager) Stats() TimerStats {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	return TimerStats{
		ScheduledTasks: len(tm.tasks),
		RunningTasks:   tm.active,
	}
}

// TimerStats contains statistics about the timer manager
type TimerStats struct {
	ScheduledTasks int
	RunningTasks   int
}

var (
	ErrManagerStopped = &TimerError{"timer manager is stopped"}
)

// TimerError represents a timer error
type TimerError struct {
	msg string
}

func (e *TimerError) Error() string {
	return e.msg
}
