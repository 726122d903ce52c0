package bridge

import (
	"encoding/hex"

	"go.uber.org/zap"

	"loragate/core"
	"loragate/protocol"
)

var _ core.EventHandler = (*Bridge)(nil)

// AcceptJoin admits every node that asks to join
func (b *Bridge) AcceptJoin(nodeID, appID uint64) bool {
	b.logger.Debug("join request",
		zap.String("node_id", protocol.FormatNodeID(nodeID)),
		zap.String("app_id", protocol.FormatNodeID(appID)))
	return true
}

// OnJoined reports a node that joined the network
func (b *Bridge) OnJoined(node *core.Node) {
	b.logger.Info("node joined",
		zap.String("node_id", protocol.FormatNodeID(node.NodeID)),
		zap.Uint32("addr", uint32(node.Addr)),
		zap.Int16("rssi", rssiOf(node, nil)))

	var buf [protocol.MaxReplyLen]byte
	b.emit("joined", protocol.AppendJoin(buf[:0], node.NodeID, node.Class))
}

// OnKicked reports a node removed from the network
func (b *Bridge) OnKicked(node *core.Node) {
	b.logger.Info("node kicked",
		zap.String("node_id", protocol.FormatNodeID(node.NodeID)),
		zap.Uint32("addr", uint32(node.Addr)))

	var buf [protocol.MaxReplyLen]byte
	b.emit("kicked", protocol.AppendKick(buf[:0], node.NodeID))
}

// OnData reports an uplink. Payloads beyond protocol.MaxDataPayload bytes
// are truncated on the wire.
func (b *Bridge) OnData(node *core.Node, ch *core.Channel, payload []byte, status uint8) {
	rssi := rssiOf(node, ch)
	b.logger.Info("data received",
		zap.String("node_id", protocol.FormatNodeID(node.NodeID)),
		zap.Int("len", len(payload)),
		zap.String("payload", hex.EncodeToString(payload)),
		zap.Int16("rssi", rssi))

	if len(payload) > protocol.MaxDataPayload() {
		b.logger.Warn("payload truncated",
			zap.Int("len", len(payload)),
			zap.Int("max", protocol.MaxDataPayload()))
	}

	var buf [protocol.MaxReplyLen]byte
	b.emit("data", protocol.AppendData(buf[:0], node.NodeID, rssi, status, payload))
}

// OnAck reports a confirmed downlink acknowledged by the node
func (b *Bridge) OnAck(node *core.Node, _ *core.Channel) {
	b.logger.Info("data acknowledged", zap.String("node_id", protocol.FormatNodeID(node.NodeID)))

	var buf [protocol.MaxReplyLen]byte
	b.emit("ack", protocol.AppendAck(buf[:0], node.NodeID))
}

// OnPendingRequest reports a node asking for its next pending frame
func (b *Bridge) OnPendingRequest(node *core.Node) {
	b.logger.Info("pending frame requested", zap.String("node_id", protocol.FormatNodeID(node.NodeID)))

	var buf [protocol.MaxReplyLen]byte
	b.emit("pending", protocol.AppendPendingRequest(buf[:0], node.NodeID))
}

func (b *Bridge) emit(kind string, line []byte) {
	b.metrics.IncrementEvent(kind)
	b.Enqueue(line)
}

func rssiOf(node *core.Node, ch *core.Channel) int16 {
	if ch == nil {
		ch = node.Channel
	}
	if ch == nil {
		return 0
	}
	return ch.LastRSSI
}
