package protocol

import (
	"errors"
	"sync"
)

var (
	ErrQueueFull    = errors.New("reply queue full")
	ErrReplyTooLong = errors.New("reply exceeds maximum length")
)

// replySlot holds one pre-formatted line
type replySlot struct {
	buf [MaxReplyLen]byte
	n   int
}

// ReplyQueue is a bounded FIFO of outgoing lines. Any goroutine may Push;
// Pop is meant for the single writer. The lock only covers slot bookkeeping
// and copying, never the serial write.
type ReplyQueue struct {
	mu    sync.Mutex
	slots []replySlot
	head  int // Oldest occupied slot
	count int
}

// NewReplyQueue creates a queue holding up to slots lines
func NewReplyQueue(slots int) *ReplyQueue {
	if slots < 1 {
		slots = 1
	}
	return &ReplyQueue{slots: make([]replySlot, slots)}
}

// Push copies line into the next free slot. A full queue leaves its
// contents untouched and returns ErrQueueFull.
func (q *ReplyQueue) Push(line []byte) error {
	if len(line) > MaxReplyLen {
		return ErrReplyTooLong
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	if q.count == len(q.slots) {
		return ErrQueueFull
	}

	slot := &q.slots[(q.head+q.count)%len(q.slots)]
	slot.n = copy(slot.buf[:], line)
	q.count++
	return nil
}

// Pop copies the oldest line into dst and releases its slot.
// dst should hold MaxReplyLen bytes; a shorter dst truncates the line.
func (q *ReplyQueue) Pop(dst []byte) (int, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.count == 0 {
		return 0, false
	}

	slot := &q.slots[q.head]
	n := copy(dst, slot.buf[:slot.n])
	slot.n = 0
	q.head = (q.head + 1) % len(q.slots)
	q.count--
	return n, true
}

// IsEmpty returns true if no line is queued
func (q *ReplyQueue) IsEmpty() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.count == 0
}

// Len returns the number of queued lines
func (q *ReplyQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.count
}

// Cap returns the number of slots
func (q *ReplyQueue) Cap() int {
	return len(q.slots)
}
