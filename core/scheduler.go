package core

import (
	"context"
	"sync"
	"time"
)

// Timer represents a scheduled event
type Timer struct {
	WakeTime time.Time
	Handler  func(*Timer) uint8
	Next     *Timer
}

const (
	SF_DONE       = 0
	SF_RESCHEDULE = 1
)

// Scheduler keeps timers sorted by wake time and fires them from Dispatch
type Scheduler struct {
	mu   sync.Mutex
	list *Timer
	now  func() time.Time
}

// NewScheduler creates an empty scheduler using the wall clock
func NewScheduler() *Scheduler {
	return &Scheduler{now: time.Now}
}

// Schedule adds a timer to the schedule
func (s *Scheduler) Schedule(t *Timer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.insert(t)
}

// insert must be called with the lock held
func (s *Scheduler) insert(t *Timer) {
	if s.list == nil || t.WakeTime.Before(s.list.WakeTime) {
		t.Next = s.list
		s.list = t
		return
	}

	current := s.list
	for current.Next != nil && !t.WakeTime.Before(current.Next.WakeTime) {
		current = current.Next
	}

	t.Next = current.Next
	current.Next = t
}

// Pending returns the number of scheduled timers
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for t := s.list; t != nil; t = t.Next {
		n++
	}
	return n
}

// NextWake returns the wake time of the earliest timer
func (s *Scheduler) NextWake() (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.list == nil {
		return time.Time{}, false
	}
	return s.list.WakeTime, true
}

// Dispatch runs every timer whose wake time is at or before now. Handlers
// run without the lock held and may schedule other timers.
func (s *Scheduler) Dispatch(now time.Time) int {
	fired := 0
	for {
		s.mu.Lock()
		if s.list == nil || s.list.WakeTime.After(now) {
			s.mu.Unlock()
			return fired
		}
		timer := s.list
		s.list = timer.Next
		timer.Next = nil
		s.mu.Unlock()

		fired++
		if timer.Handler(timer) == SF_RESCHEDULE {
			// A handler that forgets to advance its wake time would spin here.
			if !timer.WakeTime.After(now) {
				timer.WakeTime = now.Add(time.Nanosecond)
			}
			s.Schedule(timer)
		}
	}
}

// Run dispatches due timers every resolution until ctx is done
func (s *Scheduler) Run(ctx context.Context, resolution time.Duration) error {
	if resolution <= 0 {
		resolution = 100 * time.Millisecond
	}

	ticker := time.NewTicker(resolution)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.Dispatch(s.now())
		}
	}
}
