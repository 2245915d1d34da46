// Package transport implements the framed TCP protocol of spec §4.9:
// handshake, channels and outbound token-bucket flow control; received
// frames go to handlers registered by the message pipeline (package p2p),
// which owns the inbound admission queue. Grounded on the teacher's
// network.Node/network.Peer (accept loop, length-prefixed connections,
// per-type handler registration), generalized from the teacher's plain
// length-prefixed JSON envelope into the spec's fixed 8-byte header plus
// cookie handshake.
package transport

import (
	"fmt"
	"net"
	"net/netip"
)

// Endpoint is an IPv6 socket address (IPv4 mapped), as spec §4.9 requires
// so every peer address has one canonical representation regardless of
// which family it arrived over.
type Endpoint struct {
	Addr netip.Addr
	Port uint16
}

// EndpointFromTCPAddr normalizes a net.TCPAddr into an Endpoint, mapping a
// v4 address into v6 space.
func EndpointFromTCPAddr(a *net.TCPAddr) Endpoint {
	addr, _ := netip.AddrFromSlice(a.IP.To16())
	return Endpoint{Addr: addr, Port: uint16(a.Port)}
}

func (e Endpoint) String() string {
	return fmt.Sprintf("[%s]:%d", e.Addr, e.Port)
}

// IP returns the endpoint's address with any IPv4-in-IPv6 mapping
// stripped, used as the per-IP key for cookie rate limiting and peer caps
// (spec §4.9 "Cookies are... rate-limited per IP").
func (e Endpoint) IP() netip.Addr {
	if e.Addr.Is4In6() {
		return netip.AddrFrom4(e.Addr.As4())
	}
	return e.Addr
}
