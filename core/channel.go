package core

// DataRate is a LoRa data rate index, 0 is the slowest
type DataRate uint8

const (
	DR0 DataRate = iota
	DR1
	DR2
	DR3
	DR4
	DR5
	DR6

	MaxDataRate = DR6
)

// ChannelState describes what the radio on a channel is doing
type ChannelState uint8

const (
	ChannelIdle ChannelState = iota
	ChannelRx
	ChannelTx
)

func (s ChannelState) String() string {
	switch s {
	case ChannelIdle:
		return "idle"
	case ChannelRx:
		return "rx"
	case ChannelTx:
		return "tx"
	default:
		return "unknown"
	}
}

// Channel is one radio channel served by the gateway. The MAC layer owns its
// lifecycle; the gateway only reconfigures channel 0 on "set" commands.
type Channel struct {
	DataRate  DataRate
	Frequency uint32 // Hz
	LastRSSI  int16  // dBm of the last received frame
	State     ChannelState
}
