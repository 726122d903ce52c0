package protocol

// LineStatus is the result of feeding one byte into a LineBuffer
type LineStatus uint8

const (
	LinePartial  LineStatus = iota // Terminator not seen yet
	LineComplete                   // Line ready in Line()
	LineDropped                    // Terminator closed an overlong or discarded line
)

// LineBuffer accumulates received bytes until the EOL terminator.
// It is owned by the reader and is not safe for concurrent use.
type LineBuffer struct {
	buf        [MaxLineLen]byte
	n          int
	complete   int
	discarding bool
	overflowed bool
}

// NewLineBuffer creates an empty LineBuffer
func NewLineBuffer() *LineBuffer {
	return &LineBuffer{}
}

// Feed appends one byte. An overlong line is discarded up to the next
// terminator instead of growing past the buffer.
func (l *LineBuffer) Feed(c byte) LineStatus {
	if c == EOL {
		if l.discarding {
			l.discarding = false
			l.n = 0
			return LineDropped
		}
		l.complete = l.n
		l.n = 0
		return LineComplete
	}

	if l.discarding {
		return LinePartial
	}

	if l.n == len(l.buf) {
		l.discarding = true
		l.overflowed = true
		l.n = 0
		return LinePartial
	}

	l.buf[l.n] = c
	l.n++
	return LinePartial
}

// Line returns the last completed line without its terminator.
// The slice is only valid until the next Feed.
func (l *LineBuffer) Line() []byte {
	return l.buf[:l.complete]
}

// Discard drops the partial line and skips input until the next terminator
func (l *LineBuffer) Discard() {
	l.n = 0
	l.discarding = true
}

// TakeOverflow reports whether the last dropped line exceeded the buffer
// and clears the flag.
func (l *LineBuffer) TakeOverflow() bool {
	v := l.overflowed
	l.overflowed = false
	return v
}

// Len returns the length of the partial line
func (l *LineBuffer) Len() int {
	return l.n
}
