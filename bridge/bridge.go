// Package bridge connects the serial link to the gateway: a reader worker
// turns received bytes into command lines, a writer worker drains formatted
// replies to the host.
package bridge

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"go.uber.org/zap"

	"loragate/metrics"
	"loragate/protocol"
)

// Dispatcher executes one received command line
type Dispatcher interface {
	Dispatch(line string) error
}

// DispatcherFunc adapts a function to Dispatcher
type DispatcherFunc func(line string) error

func (f DispatcherFunc) Dispatch(line string) error { return f(line) }

// Option configures a Bridge
type Option func(*Bridge)

// WithLogger sets the bridge logger
func WithLogger(l *zap.Logger) Option {
	return func(b *Bridge) { b.logger = l }
}

// WithMetrics records bridge activity in m
func WithMetrics(m *metrics.Registry) Option {
	return func(b *Bridge) { b.metrics = m }
}

// WithIngressCapacity sets the receive ring size
func WithIngressCapacity(n int) Option {
	return func(b *Bridge) { b.ingressCap = n }
}

// WithReplySlots sets the reply queue depth
func WithReplySlots(n int) Option {
	return func(b *Bridge) { b.replySlots = n }
}

// Bridge owns the ingress ring, the line accumulator and the reply queue.
//
// PushByte and Enqueue may be called from any goroutine and never block.
// The reader and writer workers started by Run are the only consumers.
type Bridge struct {
	ring    *protocol.ByteRing
	line    *protocol.LineBuffer
	replies *protocol.ReplyQueue

	out        io.Writer
	dispatcher Dispatcher

	readerWake chan struct{}
	writerWake chan struct{}

	// reader-owned: drop lines until the ring has been drained after an overrun
	overrun bool

	ingressCap int
	replySlots int
	logger     *zap.Logger
	metrics    *metrics.Registry
}

// New creates a bridge writing replies to out and handing command lines to d
func New(out io.Writer, d Dispatcher, opts ...Option) *Bridge {
	b := &Bridge{
		out:        out,
		dispatcher: d,
		readerWake: make(chan struct{}, 1),
		writerWake: make(chan struct{}, 1),
		ingressCap: protocol.IngressCapacity,
		replySlots: protocol.ReplySlots,
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.metrics == nil {
		b.metrics = metrics.New()
	}

	b.ring = protocol.NewByteRing(b.ingressCap)
	b.line = protocol.NewLineBuffer()
	b.replies = protocol.NewReplyQueue(b.replySlots)

	return b
}

// wake sends a coalescing notification; a pending one is never lost
func wake(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}

// PushByte is the receive-context entry point. A terminator wakes the
// reader even when the byte itself could not be stored.
func (b *Bridge) PushByte(c byte) {
	b.ring.Push(c)
	if c == protocol.EOL {
		wake(b.readerWake)
	}
}

// Receive pushes a chunk of received bytes
func (b *Bridge) Receive(p []byte) {
	for _, c := range p {
		b.PushByte(c)
	}
}

// Pump reads from r and feeds the ingress ring until ctx is done or r
// reports io.EOF.
func (b *Bridge) Pump(ctx context.Context, r io.Reader) error {
	buf := make([]byte, 64)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		n, err := r.Read(buf)
		if n > 0 {
			b.Receive(buf[:n])
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			b.logger.Warn("serial read failed", zap.Error(err))
			time.Sleep(10 * time.Millisecond)
		}
	}
}

// Enqueue queues one formatted reply and wakes the writer. A full queue
// drops the reply; there is no retry.
func (b *Bridge) Enqueue(line []byte) bool {
	if err := b.replies.Push(line); err != nil {
		b.metrics.RepliesDropped.Inc()
		b.logger.Warn("reply dropped", zap.Error(err), zap.ByteString("line", line))
		return false
	}
	b.metrics.ReplyQueueDepth.Set(float64(b.replies.Len()))
	wake(b.writerWake)
	return true
}

// Pending returns the number of queued replies
func (b *Bridge) Pending() int {
	return b.replies.Len()
}

// Run starts the reader and writer workers and blocks until ctx is done
func (b *Bridge) Run(ctx context.Context) error {
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		b.readLoop(ctx)
	}()
	go func() {
		defer wg.Done()
		b.writeLoop(ctx)
	}()

	<-ctx.Done()
	wg.Wait()
	return ctx.Err()
}

func (b *Bridge) readLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-b.readerWake:
			b.drain()
		}
	}
}

// drain consumes the ring to empty, dispatching every completed line.
//
// After an overrun the position of the lost bytes is unknown, so every line
// completed before the ring runs empty is dropped, and so is the line in
// progress at that point.
func (b *Bridge) drain() {
	for {
		if b.ring.TakeOverrun() {
			b.overrun = true
			b.metrics.IngressOverruns.Inc()
			b.logger.Warn("receive buffer overrun, discarding input", zap.Uint64("dropped", b.ring.Dropped()))
		}

		c, ok := b.ring.Pop()
		if !ok {
			if b.overrun {
				b.overrun = false
				b.line.Discard()
			}
			return
		}

		switch b.line.Feed(c) {
		case protocol.LineComplete:
			b.metrics.LinesReceived.Inc()
			if b.overrun {
				b.metrics.IncrementLinesDropped("overrun")
				continue
			}
			b.dispatch(string(b.line.Line()))
		case protocol.LineDropped:
			if b.line.TakeOverflow() {
				b.metrics.IncrementLinesDropped("too_long")
				b.logger.Warn("command line too long, dropped", zap.Int("max", protocol.MaxLineLen))
			} else {
				b.metrics.IncrementLinesDropped("overrun")
			}
		}
	}
}

func (b *Bridge) dispatch(line string) {
	if line == "" {
		return
	}
	if err := b.dispatcher.Dispatch(line); err != nil {
		b.metrics.LinesFailed.Inc()
		b.logger.Info("command failed", zap.String("line", line), zap.Error(err))
		return
	}
	b.metrics.LinesDispatched.Inc()
}

func (b *Bridge) writeLoop(ctx context.Context) {
	buf := make([]byte, protocol.MaxReplyLen)
	for {
		select {
		case <-ctx.Done():
			return
		case <-b.writerWake:
			b.flush(buf)
		}
	}
}

// flush writes queued replies until the queue is empty. The queue lock is
// released before each write.
func (b *Bridge) flush(buf []byte) {
	for {
		n, ok := b.replies.Pop(buf)
		if !ok {
			b.metrics.ReplyQueueDepth.Set(0)
			return
		}
		if _, err := b.out.Write(buf[:n]); err != nil {
			b.metrics.ReplyWriteErrors.Inc()
			b.logger.Warn("serial write failed", zap.Error(err))
			continue
		}
		b.metrics.RepliesSent.Inc()
	}
}
