package core

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync"

	"github.com/brocaar/lorawan"
	"go.uber.org/zap"
)

var (
	ErrNotConfigured = errors.New("gateway is not configured")
	ErrUnknownNode   = errors.New("no device with address")
)

// Identity is the gateway's persisted identity, read once at startup
type Identity struct {
	NodeID  lorawan.EUI64
	AppID   lorawan.EUI64
	JoinKey lorawan.AES128Key
}

// IsZero reports whether no node identity was configured
func (id Identity) IsZero() bool {
	return id.NodeID == lorawan.EUI64{}
}

// Settings are the operator-adjustable radio settings
type Settings struct {
	Region   int
	Channel  int
	DataRate DataRate
}

// SettingsStore persists Settings after a successful "set"
type SettingsStore interface {
	SaveSettings(s Settings) error
}

// Gateway bundles the state that MAC callbacks and command handlers share.
// It is passed by reference instead of living in package globals.
type Gateway struct {
	mu       sync.Mutex
	identity Identity
	settings Settings
	regions  *RegionTable
	channels []Channel

	Devices DeviceTable
	Events  EventHandler

	store          SettingsStore
	displayJoinKey bool
	logger         *zap.Logger
}

// GatewayOption configures a Gateway
type GatewayOption func(*Gateway)

// WithSettingsStore persists settings changes through s
func WithSettingsStore(s SettingsStore) GatewayOption {
	return func(g *Gateway) { g.store = s }
}

// WithDeviceTable replaces the in-memory device table
func WithDeviceTable(t DeviceTable) GatewayOption {
	return func(g *Gateway) { g.Devices = t }
}

// WithEvents sets the MAC event handler
func WithEvents(h EventHandler) GatewayOption {
	return func(g *Gateway) { g.Events = h }
}

// WithLogger sets the gateway logger
func WithLogger(l *zap.Logger) GatewayOption {
	return func(g *Gateway) { g.logger = l }
}

// WithJoinKeyDisplay shows the last two join key bytes in listconfig
func WithJoinKeyDisplay(enabled bool) GatewayOption {
	return func(g *Gateway) { g.displayJoinKey = enabled }
}

// NewGateway creates the gateway state with a single channel configured
// from settings.
func NewGateway(id Identity, settings Settings, regions *RegionTable, opts ...GatewayOption) (*Gateway, error) {
	if regions == nil || regions.Len() == 0 {
		return nil, errors.New("no regions available")
	}

	g := &Gateway{
		identity: id,
		regions:  regions,
		channels: make([]Channel, 1),
		Devices:  NewDeviceList(),
		Events:   NopEvents{},
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(g)
	}

	if err := g.validate(settings); err != nil {
		return nil, fmt.Errorf("invalid settings: %w", err)
	}
	g.settings = settings
	g.applyChannel()

	return g, nil
}

// Identity returns the gateway identity
func (g *Gateway) Identity() Identity {
	return g.identity
}

// NodeID returns the gateway network identity as an integer
func (g *Gateway) NodeID() uint64 {
	return binary.BigEndian.Uint64(g.identity.NodeID[:])
}

// Settings returns a copy of the current settings
func (g *Gateway) Settings() Settings {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.settings
}

// Regions returns the region table
func (g *Gateway) Regions() *RegionTable {
	return g.regions
}

// Channel returns channel i. The pointer stays valid for the gateway's life.
func (g *Gateway) Channel(i int) *Channel {
	if i < 0 || i >= len(g.channels) {
		return nil
	}
	return &g.channels[i]
}

// ChannelSnapshot returns a copy of channel i taken under the lock
func (g *Gateway) ChannelSnapshot(i int) (Channel, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if i < 0 || i >= len(g.channels) {
		return Channel{}, false
	}
	return g.channels[i], true
}

// NumChannels returns the number of channels
func (g *Gateway) NumChannels() int {
	return len(g.channels)
}

// Logger returns the gateway logger
func (g *Gateway) Logger() *zap.Logger {
	return g.logger
}

// SetDataRate validates and applies a new data rate to channel 0
func (g *Gateway) SetDataRate(dr int) error {
	if dr < 0 || dr > int(MaxDataRate) {
		return fmt.Errorf("%w: datarate value must be from 0 to %d", ErrInvalidArgument, MaxDataRate)
	}
	return g.update(func(s *Settings) { s.DataRate = DataRate(dr) })
}

// SetRegion validates and applies a new region. The channel falls back to 0
// when it does not exist in the new region.
func (g *Gateway) SetRegion(region int) error {
	r, ok := g.regions.Region(region)
	if !ok {
		return fmt.Errorf("%w: region value must be from 0 to %d", ErrInvalidArgument, g.regions.Len()-1)
	}
	return g.update(func(s *Settings) {
		s.Region = region
		if s.Channel >= len(r.Channels) {
			s.Channel = 0
		}
	})
}

// SetChannel validates and applies a channel of the current region
func (g *Gateway) SetChannel(ch int) error {
	region := g.Settings().Region
	r, _ := g.regions.Region(region)
	if ch < 0 || ch >= len(r.Channels) {
		return fmt.Errorf("%w: channel value must be from 0 to %d for this region", ErrInvalidArgument, len(r.Channels)-1)
	}
	return g.update(func(s *Settings) { s.Channel = ch })
}

// Kick removes the node holding addr and reports it to the event handler
func (g *Gateway) Kick(addr Addr) (Node, error) {
	node, ok := g.Devices.Lookup(addr)
	if !ok || !g.Devices.Remove(addr) {
		return Node{}, fmt.Errorf("%w: 0x%08X", ErrUnknownNode, uint32(addr))
	}
	g.Events.OnKicked(&node)
	return node, nil
}

// update applies fn to a copy of the settings, persists it and only then
// makes it current.
func (g *Gateway) update(fn func(s *Settings)) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	next := g.settings
	fn(&next)
	if err := g.validate(next); err != nil {
		return err
	}

	if g.store != nil {
		if err := g.store.SaveSettings(next); err != nil {
			return fmt.Errorf("save settings: %w", err)
		}
	}

	g.settings = next
	g.applyChannel()
	return nil
}

func (g *Gateway) validate(s Settings) error {
	if s.DataRate > MaxDataRate {
		return fmt.Errorf("%w: data rate %d", ErrInvalidArgument, s.DataRate)
	}
	if _, ok := g.regions.Frequency(s.Region, s.Channel); !ok {
		return fmt.Errorf("%w: region %d channel %d", ErrInvalidArgument, s.Region, s.Channel)
	}
	return nil
}

// applyChannel must be called with the lock held
func (g *Gateway) applyChannel() {
	freq, _ := g.regions.Frequency(g.settings.Region, g.settings.Channel)
	g.channels[0].DataRate = g.settings.DataRate
	g.channels[0].Frequency = freq
}
