package p2p

import (
	"encoding/binary"
	"fmt"
	"net/netip"

	"github.com/nanospec/nanocore/transport"
)

// KeepaliveSize is the fixed peer count a Keepalive message carries (spec
// §4.9 "Keepalive (8 peer endpoints for gossip)").
const KeepaliveSize = 8

const endpointWireSize = 16 + 2 // IPv6 address + port

// EncodeKeepalive packs up to KeepaliveSize endpoints into a Keepalive
// payload, zero-padding any unused slots.
func EncodeKeepalive(peers []transport.Endpoint) []byte {
	buf := make([]byte, KeepaliveSize*endpointWireSize)
	for i := 0; i < KeepaliveSize && i < len(peers); i++ {
		off := i * endpointWireSize
		b16 := peers[i].Addr.As16()
		copy(buf[off:off+16], b16[:])
		binary.BigEndian.PutUint16(buf[off+16:off+18], peers[i].Port)
	}
	return buf
}

// DecodeKeepalive parses a Keepalive payload, skipping all-zero (unused)
// slots.
func DecodeKeepalive(data []byte) ([]transport.Endpoint, error) {
	if len(data) != KeepaliveSize*endpointWireSize {
		return nil, fmt.Errorf("p2p: bad keepalive payload length %d", len(data))
	}
	var out []transport.Endpoint
	for i := 0; i < KeepaliveSize; i++ {
		off := i * endpointWireSize
		var raw [16]byte
		copy(raw[:], data[off:off+16])
		addr := netip.AddrFrom16(raw)
		port := binary.BigEndian.Uint16(data[off+16 : off+18])
		if addr.IsUnspecified() && port == 0 {
			continue
		}
		out = append(out, transport.Endpoint{Addr: addr, Port: port})
	}
	return out, nil
}
