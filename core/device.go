package core

import (
	"errors"
	"sync"
	"time"
)

// MaxNodes is the capacity of the in-memory device table
const MaxNodes = 64

var (
	ErrTableFull = errors.New("device table full")
	ErrNoChannel = errors.New("channel is nil")
)

// Addr is a node's short network address
type Addr uint32

// Node is one registered radio device
type Node struct {
	Addr     Addr
	NodeID   uint64
	AppID    uint64
	Nonce    uint32
	Class    uint8
	LastSeen time.Time
	Channel  *Channel
}

// DeviceTable is the node table the MAC layer maintains. The gateway only
// reads nodes handed to it and issues add/remove requests.
type DeviceTable interface {
	IsInNetwork(addr Addr) bool
	Lookup(addr Addr) (Node, bool)
	Remove(addr Addr) bool
	AddByAddr(addr Addr, nodeID, appID uint64, nonce uint32, ch *Channel) (*Node, error)
	Touch(addr Addr, now time.Time) bool
	Nodes() []Node
	Len() int
}

// DeviceList is a fixed-capacity DeviceTable with a free list
type DeviceList struct {
	mu    sync.RWMutex
	nodes [MaxNodes]Node
	used  [MaxNodes]bool
	count int
	now   func() time.Time
}

// NewDeviceList creates an empty device table
func NewDeviceList() *DeviceList {
	return &DeviceList{now: time.Now}
}

// IsInNetwork reports whether a node holds addr
func (d *DeviceList) IsInNetwork(addr Addr) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.find(addr) >= 0
}

// Lookup returns a copy of the node holding addr
func (d *DeviceList) Lookup(addr Addr) (Node, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if i := d.find(addr); i >= 0 {
		return d.nodes[i], true
	}
	return Node{}, false
}

// Remove frees the slot holding addr
func (d *DeviceList) Remove(addr Addr) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	i := d.find(addr)
	if i < 0 {
		return false
	}
	d.used[i] = false
	d.nodes[i] = Node{}
	d.count--
	return true
}

// AddByAddr registers a node under addr. A node already holding addr is
// replaced, so the table never has two entries for one address.
func (d *DeviceList) AddByAddr(addr Addr, nodeID, appID uint64, nonce uint32, ch *Channel) (*Node, error) {
	if ch == nil {
		return nil, ErrNoChannel
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	slot := d.find(addr)
	if slot < 0 {
		for i := range d.used {
			if !d.used[i] {
				slot = i
				break
			}
		}
		if slot < 0 {
			return nil, ErrTableFull
		}
		d.used[slot] = true
		d.count++
	}

	d.nodes[slot] = Node{
		Addr:     addr,
		NodeID:   nodeID,
		AppID:    appID,
		Nonce:    nonce,
		LastSeen: d.now(),
		Channel:  ch,
	}
	node := d.nodes[slot]
	return &node, nil
}

// Touch records that addr was heard at now
func (d *DeviceList) Touch(addr Addr, now time.Time) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	i := d.find(addr)
	if i < 0 {
		return false
	}
	d.nodes[i].LastSeen = now
	return true
}

// Nodes returns a snapshot of all registered nodes in slot order
func (d *DeviceList) Nodes() []Node {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]Node, 0, d.count)
	for i := range d.used {
		if d.used[i] {
			out = append(out, d.nodes[i])
		}
	}
	return out
}

// Len returns the number of registered nodes
func (d *DeviceList) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.count
}

// find must be called with the lock held
func (d *DeviceList) find(addr Addr) int {
	for i := range d.used {
		if d.used[i] && d.nodes[i].Addr == addr {
			return i
		}
	}
	return -1
}
