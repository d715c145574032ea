package window

import (
	"sync"

	"github.com/smukkama/landslide-monitor/internal/reading"
)

// DefaultCapacity keeps the last seven days plus the current reading.
const DefaultCapacity = 8

// Store is a bounded, oldest-first buffer of readings. When full, Append
// evicts the oldest entry before adding the new one.
type Store struct {
	mu       sync.RWMutex
	buffer   []reading.SensorReading
	capacity int
}

// NewStore creates a store holding at most capacity readings. Capacities
// below one are raised to one.
func NewStore(capacity int) *Store {
	if capacity < 1 {
		capacity = 1
	}
	return &Store{
		buffer:   make([]reading.SensorReading, 0, capacity),
		capacity: capacity,
	}
}

// Append adds r as the newest entry.
func (s *Store) Append(r reading.SensorReading) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.buffer) == s.capacity {
		// Shift in place so evicted readings are not kept alive by the
		// backing array.
		copy(s.buffer, s.buffer[1:])
		s.buffer[len(s.buffer)-1] = reading.SensorReading{}
		s.buffer = s.buffer[:len(s.buffer)-1]
	}
	s.buffer = append(s.buffer, r)
}

// Latest returns the newest reading, or false before the first Append.
func (s *Store) Latest() (reading.SensorReading, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.buffer) == 0 {
		return reading.SensorReading{}, false
	}
	return s.buffer[len(s.buffer)-1], true
}

// All returns a copy of the stored readings, oldest first.
func (s *Store) All() []reading.SensorReading {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]reading.SensorReading, len(s.buffer))
	copy(result, s.buffer)
	return result
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.buffer)
}

func (s *Store) Cap() int {
	return s.capacity
}
