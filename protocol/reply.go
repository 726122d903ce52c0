package protocol

import "strconv"

const hexDigits = "0123456789ABCDEF"

// MaxDataPayload returns how many payload bytes fit in a data reply
func MaxDataPayload() int {
	return (MaxReplyLen - dataHeaderLen) / 2
}

// AppendKick appends a node kicked reply: K<nodeid>\n
func AppendKick(dst []byte, nodeID uint64) []byte {
	return appendIDReply(dst, ReplyKick, nodeID)
}

// AppendAck appends a data acknowledged reply: A<nodeid>\n
func AppendAck(dst []byte, nodeID uint64) []byte {
	return appendIDReply(dst, ReplyAck, nodeID)
}

// AppendPendingRequest appends a pending frame request reply: P<nodeid>\n
func AppendPendingRequest(dst []byte, nodeID uint64) []byte {
	return appendIDReply(dst, ReplyPendingReq, nodeID)
}

// AppendJoin appends a node joined reply: J<nodeid><class>\n,
// with the class in unpadded decimal.
func AppendJoin(dst []byte, nodeID uint64, class uint8) []byte {
	dst = append(dst, ReplyJoin)
	dst = appendNodeID(dst, nodeID)
	dst = strconv.AppendUint(dst, uint64(class), 10)
	return append(dst, ReplyEnd)
}

// AppendData appends a data received reply:
// I<nodeid><rssi:4><status:2><payload>\n
//
// The payload is truncated to whole bytes so the reply never exceeds
// MaxReplyLen.
func AppendData(dst []byte, nodeID uint64, rssi int16, status uint8, payload []byte) []byte {
	if limit := MaxDataPayload(); len(payload) > limit {
		payload = payload[:limit]
	}

	dst = append(dst, ReplyData)
	dst = appendNodeID(dst, nodeID)
	dst = appendHexUint(dst, uint64(uint16(rssi)), RSSIWidth)
	dst = appendHexUint(dst, uint64(status), StatusWidth)
	for _, b := range payload {
		dst = append(dst, hexDigits[b>>4], hexDigits[b&0x0F])
	}
	return append(dst, ReplyEnd)
}

func appendIDReply(dst []byte, tag byte, nodeID uint64) []byte {
	dst = append(dst, tag)
	dst = appendNodeID(dst, nodeID)
	return append(dst, ReplyEnd)
}

// appendNodeID writes the high 32 bits then the low 32 bits
func appendNodeID(dst []byte, nodeID uint64) []byte {
	dst = appendHexUint(dst, nodeID>>32, 8)
	return appendHexUint(dst, nodeID&0xFFFFFFFF, 8)
}

// appendHexUint writes the low width nibbles of v, most significant first
func appendHexUint(dst []byte, v uint64, width int) []byte {
	for shift := (width - 1) * 4; shift >= 0; shift -= 4 {
		dst = append(dst, hexDigits[(v>>uint(shift))&0x0F])
	}
	return dst
}

// FormatNodeID renders a node identity the way replies and logs show it
func FormatNodeID(nodeID uint64) string {
	return string(appendNodeID(make([]byte, 0, NodeIDWidth), nodeID))
}
