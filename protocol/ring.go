package protocol

import "sync/atomic"

// ByteRing is a single-producer/single-consumer circular byte buffer fed from
// the serial receive path. The producer only advances write and the consumer
// only advances read, so no lock is needed.
type ByteRing struct {
	buf     []byte
	size    uint32
	read    atomic.Uint32
	write   atomic.Uint32
	overrun atomic.Bool
	dropped atomic.Uint64
}

// NewByteRing creates a new ByteRing with the specified capacity.
// One slot is reserved, so capacity-1 bytes can be queued.
func NewByteRing(capacity int) *ByteRing {
	if capacity < 2 {
		capacity = 2
	}
	return &ByteRing{
		buf:  make([]byte, capacity),
		size: uint32(capacity),
	}
}

// Push appends one byte. When the ring is full the byte is dropped, the
// overrun flag is latched and false is returned; unread data is never
// overwritten.
func (r *ByteRing) Push(b byte) bool {
	w := r.write.Load()
	next := (w + 1) % r.size
	if next == r.read.Load() {
		// Buffer full
		r.overrun.Store(true)
		r.dropped.Add(1)
		return false
	}
	r.buf[w] = b
	r.write.Store(next)
	return true
}

// Pop removes the oldest byte
func (r *ByteRing) Pop() (byte, bool) {
	rd := r.read.Load()
	if rd == r.write.Load() {
		return 0, false
	}
	b := r.buf[rd]
	r.read.Store((rd + 1) % r.size)
	return b, true
}

// Available returns the number of bytes available for reading
func (r *ByteRing) Available() int {
	w, rd := r.write.Load(), r.read.Load()
	if w >= rd {
		return int(w - rd)
	}
	return int(r.size - rd + w)
}

// Free returns the number of bytes available for writing
func (r *ByteRing) Free() int {
	return int(r.size) - r.Available() - 1
}

// IsEmpty returns true if the buffer is empty
func (r *ByteRing) IsEmpty() bool {
	return r.read.Load() == r.write.Load()
}

// TakeOverrun reports whether a byte was dropped since the last call and
// clears the flag.
func (r *ByteRing) TakeOverrun() bool {
	return r.overrun.Swap(false)
}

// Dropped returns the total number of bytes dropped on overflow
func (r *ByteRing) Dropped() uint64 {
	return r.dropped.Load()
}

// Reset discards all queued bytes. Only the consumer may call it.
func (r *ByteRing) Reset() {
	r.read.Store(r.write.Load())
	r.overrun.Store(false)
}
