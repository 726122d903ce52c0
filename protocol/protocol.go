// Package protocol implements the gateway's line-oriented serial protocol
package protocol

// Version represents the loragate protocol version
const Version = "1.0.0"

// Framing constants
const (
	EOL        = '\r' // Inbound and outbound line terminator
	ReplyEnd   = '\n' // Trailing character of every reply line
	MaxLineLen = 255  // Line accumulator capacity, terminator excluded

	IngressCapacity = 255 // Receive ring size (one slot is reserved)
	ReplySlots      = 16  // Default reply queue depth
	MaxReplyLen     = 128 // Maximum reply length, newline included
)

// Reply tags, one character at the start of every outbound line
const (
	ReplyKick       = 'K'
	ReplyJoin       = 'J'
	ReplyData       = 'I'
	ReplyAck        = 'A'
	ReplyPendingReq = 'P'
)

// Fixed field widths (hex characters)
const (
	NodeIDWidth = 16
	RSSIWidth   = 4
	StatusWidth = 2

	// tag + node id + rssi + status + newline
	dataHeaderLen = 1 + NodeIDWidth + RSSIWidth + StatusWidth + 1
)
