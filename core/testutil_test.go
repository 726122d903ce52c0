package core

import (
	"errors"
	"sync"
	"testing"

	"github.com/brocaar/lorawan"
	"github.com/stretchr/testify/require"
)

// testRegions mirrors two bands with a small, known channel plan
func testRegions() *RegionTable {
	return NewStaticRegionTable(
		Region{Name: "EU868", Channels: []uint32{868100000, 868300000, 868500000}},
		Region{Name: "RU864", Channels: []uint32{868900000, 869100000}},
	)
}

type memStore struct {
	saved []Settings
	err   error
}

func (m *memStore) SaveSettings(s Settings) error {
	if m.err != nil {
		return m.err
	}
	m.saved = append(m.saved, s)
	return nil
}

type recordedEvent struct {
	kind string
	node Node
}

type recordingEvents struct {
	NopEvents
	mu     sync.Mutex
	events []recordedEvent
}

func (r *recordingEvents) OnKicked(n *Node) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, recordedEvent{kind: "kicked", node: *n})
}

func testIdentity() Identity {
	return Identity{
		NodeID:  lorawan.EUI64{0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08},
		AppID:   lorawan.EUI64{0xAA, 0xBB, 0xCC, 0xDD, 0x00, 0x00, 0x00, 0x01},
		JoinKey: lorawan.AES128Key{14: 0xBE, 15: 0xEF},
	}
}

func newTestGateway(t *testing.T, opts ...GatewayOption) *Gateway {
	t.Helper()
	gw, err := NewGateway(testIdentity(), Settings{Region: 0, Channel: 1, DataRate: DR3}, testRegions(), opts...)
	require.NoError(t, err)
	return gw
}

var errStoreDown = errors.New("store down")
