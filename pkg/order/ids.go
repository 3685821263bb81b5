package order

import (
	"sync"
	"time"
)

// IDSequence derives order ids from a clock reading in Unix milliseconds.
// Two readings in the same millisecond still yield increasing ids.
type IDSequence struct {
	mu   sync.Mutex
	now  func() time.Time
	last int64
}

func NewIDSequence(now func() time.Time) *IDSequence {
	if now == nil {
		now = time.Now
	}
	return &IDSequence{now: now}
}

// Next returns a new id and the clock reading it was taken from.
func (s *IDSequence) Next() (int64, time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	at := s.now()
	id := at.UnixMilli()
	if id <= s.last {
		id = s.last + 1
	}
	s.last = id
	return id, at
}
