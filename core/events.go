package core

// EventHandler receives node lifecycle and data events from the MAC layer.
// Methods may be called from any goroutine, concurrently, and must not block.
type EventHandler interface {
	AcceptJoin(nodeID, appID uint64) bool
	OnJoined(node *Node)
	OnKicked(node *Node)
	OnData(node *Node, ch *Channel, payload []byte, status uint8)
	OnAck(node *Node, ch *Channel)
	OnPendingRequest(node *Node)
}

// NopEvents discards every event and accepts every join
type NopEvents struct{}

func (NopEvents) AcceptJoin(uint64, uint64) bool { return true }
func (NopEvents) OnJoined(*Node) {}
func (NopEvents) OnKicked(*Node) {}
func (NopEvents) OnData(*Node, *Channel, []byte, uint8) {}
func (NopEvents) OnAck(*Node, *Channel) {}
func (NopEvents) OnPendingRequest(*Node) {}
