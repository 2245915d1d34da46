package transport

import (
	"encoding/binary"
	"fmt"
)

// HeaderSize is the fixed width of every message header (spec §4.9
// "Every message has a 8-byte header").
const HeaderSize = 8

// Magic identifies the protocol (as opposed to an unrelated TCP client
// hitting the port by accident). One byte: the header's 8 bytes are
// magic(1) || network(1) || version_max(1) || version_using(1) ||
// version_min(1) || message_type(1) || extensions(2 LE) — the single-byte
// magic is what makes the field list add up to the spec's declared 8-byte
// total.
const Magic byte = 'N'

// MessageType labels the payload that follows a header (spec §4.9
// "Message types").
type MessageType uint8

const (
	MessageInvalid MessageType = iota
	MessageKeepalive
	MessagePublish
	MessageConfirmReq
	MessageConfirmAck
	MessageBulkPull
	MessageBulkPullAccount
	MessageBulkPush
	MessageFrontierReq
	MessageTelemetryReq
	MessageTelemetryAck
	MessageNodeIDHandshake
	MessageAscPullReq
	MessageAscPullAck
)

func (t MessageType) String() string {
	switch t {
	case MessageKeepalive:
		return "keepalive"
	case MessagePublish:
		return "publish"
	case MessageConfirmReq:
		return "confirm_req"
	case MessageConfirmAck:
		return "confirm_ack"
	case MessageBulkPull:
		return "bulk_pull"
	case MessageBulkPullAccount:
		return "bulk_pull_account"
	case MessageBulkPush:
		return "bulk_push"
	case MessageFrontierReq:
		return "frontier_req"
	case MessageTelemetryReq:
		return "telemetry_req"
	case MessageTelemetryAck:
		return "telemetry_ack"
	case MessageNodeIDHandshake:
		return "node_id_handshake"
	case MessageAscPullReq:
		return "asc_pull_req"
	case MessageAscPullAck:
		return "asc_pull_ack"
	default:
		return "invalid"
	}
}

// Header is the fixed 8-byte frame preamble (spec §4.9).
type Header struct {
	Network      uint8
	VersionMax   uint8
	VersionUsing uint8
	VersionMin   uint8
	Type         MessageType
	Extensions   uint16
}

// Encode writes h as the 8-byte wire header.
func (h Header) Encode() [HeaderSize]byte {
	var buf [HeaderSize]byte
	buf[0] = Magic
	buf[1] = h.Network
	buf[2] = h.VersionMax
	buf[3] = h.VersionUsing
	buf[4] = h.VersionMin
	buf[5] = byte(h.Type)
	binary.LittleEndian.PutUint16(buf[6:8], h.Extensions)
	return buf
}

// DecodeHeader parses an 8-byte frame header, rejecting a bad magic
// up front.
func DecodeHeader(buf []byte) (Header, error) {
	if len(buf) < HeaderSize {
		return Header{}, fmt.Errorf("transport: short header (%d bytes)", len(buf))
	}
	if buf[0] != Magic {
		return Header{}, fmt.Errorf("transport: bad magic byte 0x%02x", buf[0])
	}
	return Header{
		Network:      buf[1],
		VersionMax:   buf[2],
		VersionUsing: buf[3],
		VersionMin:   buf[4],
		Type:         MessageType(buf[5]),
		Extensions:   binary.LittleEndian.Uint16(buf[6:8]),
	}, nil
}

// ExtensionsBlockType extracts the block-type sub-field the spec packs
// into Extensions for variable-size Publish payloads (spec §4.9
// "Extensions encode block type for variable-size payloads").
func ExtensionsBlockType(ext uint16) uint8 {
	return uint8(ext & 0x0f)
}

// ExtensionsCount extracts the batched-payload count sub-field.
func ExtensionsCount(ext uint16) uint16 {
	return ext >> 4
}

// MaxMessageSize bounds a single frame's payload (spec §8 "maximum message
// size").
const MaxMessageSize = 1024 * 1024

// ProtocolVersion is this node's negotiated wire version; ProtocolVersionMin
// is the oldest version it still accepts (spec §4.10 "validate
// magic/network/version window").
const (
	ProtocolVersion    = 20
	ProtocolVersionMin = 18
)
