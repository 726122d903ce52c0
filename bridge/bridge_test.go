package bridge

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"loragate/metrics"
	"loragate/protocol"
)

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (s *syncBuffer) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.Write(p)
}

func (s *syncBuffer) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.String()
}

type recordingDispatcher struct {
	mu    sync.Mutex
	lines []string
	err   error
}

func (r *recordingDispatcher) Dispatch(line string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lines = append(r.lines, line)
	return r.err
}

func (r *recordingDispatcher) Lines() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.lines...)
}

func startBridge(t *testing.T, b *Bridge) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- b.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		assert.ErrorIs(t, <-done, context.Canceled)
	})
}

func TestReaderDeliversLinesInOrder(t *testing.T) {
	d := &recordingDispatcher{}
	b := New(io.Discard, d, WithLogger(zaptest.NewLogger(t)))
	startBridge(t, b)

	b.Receive([]byte("set dr 3\rlist\r"))
	b.Receive([]byte("listcon"))
	b.Receive([]byte("fig\r"))

	require.Eventually(t, func() bool { return len(d.Lines()) == 3 }, time.Second, time.Millisecond)
	assert.Equal(t, []string{"set dr 3", "list", "listconfig"}, d.Lines())
}

func TestDrainHandlesCoalescedWakes(t *testing.T) {
	d := &recordingDispatcher{}
	b := New(io.Discard, d)

	// several terminators before the reader runs leave a single wake
	b.Receive([]byte("a\rb\rc\r"))
	assert.Len(t, b.readerWake, 1)

	<-b.readerWake
	b.drain()
	assert.Equal(t, []string{"a", "b", "c"}, d.Lines())
	assert.True(t, b.ring.IsEmpty())
}

func TestDrainKeepsPartialLine(t *testing.T) {
	d := &recordingDispatcher{}
	b := New(io.Discard, d)

	b.Receive([]byte("kick 1"))
	b.drain()
	assert.Empty(t, d.Lines())

	b.Receive([]byte("0\r"))
	b.drain()
	assert.Equal(t, []string{"kick 10"}, d.Lines())
}

func TestDrainSkipsEmptyLines(t *testing.T) {
	d := &recordingDispatcher{}
	b := New(io.Discard, d)

	b.Receive([]byte("\r\rhelp\r"))
	b.drain()
	assert.Equal(t, []string{"help"}, d.Lines())
}

func TestDrainOverrunFailsClosed(t *testing.T) {
	d := &recordingDispatcher{}
	m := metrics.New()
	b := New(io.Discard, d, WithIngressCapacity(8), WithMetrics(m))

	// ring holds 7 bytes, the rest of the line and its terminator are lost
	b.Receive([]byte("abcdefghij\r"))
	b.drain()
	assert.Empty(t, d.Lines())
	assert.Equal(t, 1.0, testutil.ToFloat64(m.IngressOverruns))

	// the line in progress when the overrun was seen is discarded too
	b.Receive([]byte("xyz\r"))
	b.drain()
	assert.Empty(t, d.Lines())

	b.Receive([]byte("ok\r"))
	b.drain()
	assert.Equal(t, []string{"ok"}, d.Lines())
	assert.Equal(t, 1.0, testutil.ToFloat64(m.LinesDropped.WithLabelValues("overrun")))
}

func TestDrainOverlongLineDropped(t *testing.T) {
	d := &recordingDispatcher{}
	m := metrics.New()
	b := New(io.Discard, d, WithMetrics(m), WithIngressCapacity(1024))

	b.Receive([]byte(strings.Repeat("x", protocol.MaxLineLen+10) + "\rnext\r"))
	b.drain()

	assert.Equal(t, []string{"next"}, d.Lines())
	assert.Equal(t, 1.0, testutil.ToFloat64(m.LinesDropped.WithLabelValues("too_long")))
}

func TestDispatchErrorsAreCounted(t *testing.T) {
	d := &recordingDispatcher{err: errors.New("bad command")}
	m := metrics.New()
	b := New(io.Discard, d, WithMetrics(m))

	b.Receive([]byte("bogus\r"))
	b.drain()

	assert.Equal(t, 1.0, testutil.ToFloat64(m.LinesFailed))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.LinesDispatched))
}

func TestWriterPreservesOrder(t *testing.T) {
	out := &syncBuffer{}
	b := New(out, &recordingDispatcher{})
	startBridge(t, b)

	var want strings.Builder
	for i := 0; i < 50; i++ {
		line := []byte{'A', byte('0' + i%10), '\n'}
		require.True(t, b.Enqueue(line))
		want.Write(line)
		// keep the queue from filling while the writer catches up
		require.Eventually(t, func() bool { return b.Pending() < 8 }, time.Second, time.Millisecond)
	}

	require.Eventually(t, func() bool { return out.String() == want.String() }, time.Second, time.Millisecond)
}

func TestEnqueueFullQueueDrops(t *testing.T) {
	m := metrics.New()
	b := New(io.Discard, &recordingDispatcher{}, WithReplySlots(2), WithMetrics(m))

	assert.True(t, b.Enqueue([]byte("A1\n")))
	assert.True(t, b.Enqueue([]byte("A2\n")))
	assert.False(t, b.Enqueue([]byte("A3\n")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RepliesDropped))

	var out bytes.Buffer
	b.out = &out
	b.flush(make([]byte, protocol.MaxReplyLen))
	assert.Equal(t, "A1\nA2\n", out.String())
	assert.Equal(t, 2.0, testutil.ToFloat64(m.RepliesSent))
}

type failingWriter struct{ calls int }

func (f *failingWriter) Write(p []byte) (int, error) {
	f.calls++
	return 0, errors.New("port closed")
}

func TestFlushContinuesAfterWriteError(t *testing.T) {
	m := metrics.New()
	w := &failingWriter{}
	b := New(w, &recordingDispatcher{}, WithMetrics(m))

	b.Enqueue([]byte("A1\n"))
	b.Enqueue([]byte("A2\n"))
	b.flush(make([]byte, protocol.MaxReplyLen))

	assert.Equal(t, 2, w.calls)
	assert.Equal(t, 2.0, testutil.ToFloat64(m.ReplyWriteErrors))
	assert.Equal(t, 0, b.Pending())
}

func TestPumpFeedsReader(t *testing.T) {
	d := &recordingDispatcher{}
	b := New(io.Discard, d)
	startBridge(t, b)

	err := b.Pump(context.Background(), strings.NewReader("set ch 1\rlist\r"))
	require.NoError(t, err)

	require.Eventually(t, func() bool { return len(d.Lines()) == 2 }, time.Second, time.Millisecond)
	assert.Equal(t, []string{"set ch 1", "list"}, d.Lines())
}

func TestPumpStopsOnCancel(t *testing.T) {
	b := New(io.Discard, &recordingDispatcher{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	pr, pw := io.Pipe()
	defer pw.Close()
	assert.ErrorIs(t, b.Pump(ctx, pr), context.Canceled)
}
