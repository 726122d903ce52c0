package bridge

import (
	"bytes"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"loragate/core"
	"loragate/metrics"
	"loragate/protocol"
)

func popAll(t *testing.T, b *Bridge) string {
	t.Helper()
	var out bytes.Buffer
	b.out = &out
	b.flush(make([]byte, protocol.MaxReplyLen))
	return out.String()
}

func TestEventsEncodeReplies(t *testing.T) {
	m := metrics.New()
	b := New(nil, &recordingDispatcher{}, WithMetrics(m))

	ch := &core.Channel{LastRSSI: -42}
	node := &core.Node{Addr: 0x10, NodeID: 0x0102030405060708, Class: 1, Channel: ch}

	assert.True(t, b.AcceptJoin(node.NodeID, 0xAA))
	b.OnJoined(node)
	b.OnData(node, ch, []byte{0xAB, 0xCD}, 0)
	b.OnAck(node, ch)
	b.OnPendingRequest(node)
	b.OnKicked(node)

	want := "J01020304050607081\n" +
		"I0102030405060708FFD600ABCD\n" +
		"A0102030405060708\n" +
		"P0102030405060708\n" +
		"K0102030405060708\n"
	assert.Equal(t, want, popAll(t, b))

	for _, kind := range []string{"joined", "data", "ack", "pending", "kicked"} {
		assert.Equal(t, 1.0, testutil.ToFloat64(m.EventsTotal.WithLabelValues(kind)), kind)
	}
}

func TestOnDataTruncatesPayload(t *testing.T) {
	b := New(nil, &recordingDispatcher{})
	node := &core.Node{NodeID: 1}

	b.OnData(node, &core.Channel{LastRSSI: -120}, make([]byte, 200), 0x5A)

	line := popAll(t, b)
	require.LessOrEqual(t, len(line), protocol.MaxReplyLen)
	assert.Equal(t, "I0000000000000001FF885A", line[:23])
	assert.Equal(t, byte('\n'), line[len(line)-1])
	assert.Equal(t, 24+2*protocol.MaxDataPayload(), len(line))
}

func TestOnDataUsesNodeChannelWhenMissing(t *testing.T) {
	b := New(nil, &recordingDispatcher{})
	node := &core.Node{NodeID: 2, Channel: &core.Channel{LastRSSI: -1}}

	b.OnData(node, nil, nil, 0)
	assert.Equal(t, "I0000000000000002FFFF00\n", popAll(t, b))

	b.OnData(&core.Node{NodeID: 3}, nil, nil, 0)
	assert.Equal(t, "I0000000000000003000000\n", popAll(t, b))
}
