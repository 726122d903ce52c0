package core

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeviceListAddLookupRemove(t *testing.T) {
	list := NewDeviceList()
	ch := &Channel{}

	node, err := list.AddByAddr(0x01, 0xA1, 0xB1, 7, ch)
	require.NoError(t, err)
	assert.Equal(t, Addr(0x01), node.Addr)
	assert.True(t, list.IsInNetwork(0x01))
	assert.Equal(t, 1, list.Len())

	got, ok := list.Lookup(0x01)
	require.True(t, ok)
	assert.Equal(t, uint64(0xA1), got.NodeID)
	assert.Equal(t, uint32(7), got.Nonce)

	assert.True(t, list.Remove(0x01))
	assert.False(t, list.Remove(0x01))
	assert.False(t, list.IsInNetwork(0x01))
	assert.Equal(t, 0, list.Len())
}

func TestDeviceListAddSameAddressReplaces(t *testing.T) {
	list := NewDeviceList()
	ch := &Channel{}

	_, err := list.AddByAddr(0x42, 0x1, 0x1, 0, ch)
	require.NoError(t, err)
	_, err = list.AddByAddr(0x42, 0x2, 0x2, 0, ch)
	require.NoError(t, err)

	nodes := list.Nodes()
	require.Len(t, nodes, 1)
	assert.Equal(t, uint64(0x2), nodes[0].NodeID)
}

func TestDeviceListFull(t *testing.T) {
	list := NewDeviceList()
	ch := &Channel{}

	for i := 0; i < MaxNodes; i++ {
		_, err := list.AddByAddr(Addr(i+1), uint64(i), 0, 0, ch)
		require.NoError(t, err)
	}
	_, err := list.AddByAddr(Addr(MaxNodes+1), 0, 0, 0, ch)
	assert.ErrorIs(t, err, ErrTableFull)

	require.True(t, list.Remove(5))
	_, err = list.AddByAddr(Addr(MaxNodes+1), 0, 0, 0, ch)
	assert.NoError(t, err)
}

func TestDeviceListNilChannel(t *testing.T) {
	_, err := NewDeviceList().AddByAddr(1, 1, 1, 1, nil)
	assert.ErrorIs(t, err, ErrNoChannel)
}

func TestDeviceListTouch(t *testing.T) {
	list := NewDeviceList()
	_, err := list.AddByAddr(9, 1, 1, 1, &Channel{})
	require.NoError(t, err)

	at := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	assert.True(t, list.Touch(9, at))
	assert.False(t, list.Touch(10, at))

	node, _ := list.Lookup(9)
	assert.Equal(t, at, node.LastSeen)
}

func TestDeviceListConcurrent(t *testing.T) {
	list := NewDeviceList()
	ch := &Channel{}

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				addr := Addr(w*8 + i%8)
				_, _ = list.AddByAddr(addr, uint64(i), 0, 0, ch)
				list.IsInNetwork(addr)
				list.Nodes()
			}
		}(w)
	}
	wg.Wait()

	assert.Equal(t, MaxNodes, list.Len())
	seen := make(map[Addr]bool)
	for _, n := range list.Nodes() {
		assert.False(t, seen[n.Addr], "duplicate address %d", n.Addr)
		seen[n.Addr] = true
	}
}
