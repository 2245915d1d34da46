package transport

import (
	"context"
	"fmt"
	"io"
	"net"
	"sync"
	"time"
)

// ChannelMode is what a channel is being used for (spec §4.9 "Channels are
// either Bootstrap or Realtime").
type ChannelMode uint8

const (
	ModeUndefined ChannelMode = iota
	ModeBootstrap
	ModeRealtime
)

// readDeadline bounds how long a Channel.Receive waits for a frame, grounded
// on the teacher's Peer.Receive 30s deadline.
const readDeadline = 30 * time.Second

// Channel is one established, handshaken connection to a peer (spec §4.9).
// Grounded on the teacher's network.Peer, generalized from its
// length-prefixed JSON envelope to the spec's fixed header plus a
// per-traffic-type outbound bucket.
type Channel struct {
	ID       uint64
	Endpoint Endpoint
	NodeID   [32]byte // peer's ed25519 public key, set once the handshake completes
	Version  uint8
	Mode     ChannelMode

	conn    net.Conn
	limiter *Limiter

	mu           sync.Mutex
	closed       bool
	lastActivity time.Time
}

// NewChannel wraps an established connection. The channel starts in
// ModeUndefined until the handshake assigns it Bootstrap or Realtime.
func NewChannel(id uint64, endpoint Endpoint, conn net.Conn, limiter *Limiter) *Channel {
	return &Channel{
		ID:           id,
		Endpoint:     endpoint,
		conn:         conn,
		limiter:      limiter,
		lastActivity: time.Now(),
	}
}

// LastActivity reports when a frame was last sent or received, used to
// evict idle channels (spec §6 "peer.idle_timeout").
func (c *Channel) LastActivity() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastActivity
}

func (c *Channel) touch() {
	c.mu.Lock()
	c.lastActivity = time.Now()
	c.mu.Unlock()
}

// Send frames and writes a message, drawing n = len(payload)+HeaderSize
// bytes from typ's outbound bucket first. neverDrop selects whether Send
// blocks for tokens (ctx-free: callers needing cancellation use
// limiter.WaitNeverDrop directly before calling Send) or returns
// ErrBandwidthExceeded immediately (spec §4.9 "never drop vs drop").
func (c *Channel) Send(h Header, payload []byte, typ TrafficType, neverDrop bool) error {
	n := HeaderSize + len(payload)
	if neverDrop {
		if err := c.limiter.WaitNeverDrop(context.Background(), typ, n); err != nil {
			return fmt.Errorf("transport: bandwidth wait: %w", err)
		}
	} else if !c.limiter.AllowDrop(typ, n) {
		return ErrBandwidthExceeded
	}

	h.Extensions = h.Extensions&0x000f | uint16(len(payload))<<4
	hdr := h.Encode()

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return fmt.Errorf("transport: channel %d closed", c.ID)
	}
	if _, err := c.conn.Write(hdr[:]); err != nil {
		return err
	}
	if len(payload) > 0 {
		if _, err := c.conn.Write(payload); err != nil {
			return err
		}
	}
	c.lastActivity = time.Now()
	return nil
}

// Receive reads one frame: header, then its payload sized by Extensions'
// length sub-field (spec §4.9). A stalled peer is cut off by readDeadline.
func (c *Channel) Receive() (Header, []byte, error) {
	_ = c.conn.SetReadDeadline(time.Now().Add(readDeadline))

	var hbuf [HeaderSize]byte
	if _, err := io.ReadFull(c.conn, hbuf[:]); err != nil {
		return Header{}, nil, err
	}
	h, err := DecodeHeader(hbuf[:])
	if err != nil {
		return Header{}, nil, err
	}

	n := int(h.Extensions >> 4)
	if n > MaxMessageSize {
		return Header{}, nil, fmt.Errorf("transport: payload too large: %d bytes", n)
	}
	var payload []byte
	if n > 0 {
		payload = make([]byte, n)
		if _, err := io.ReadFull(c.conn, payload); err != nil {
			return Header{}, nil, err
		}
	}
	c.touch()
	return h, payload, nil
}

// Close terminates the underlying connection. Safe to call more than once.
func (c *Channel) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	return c.conn.Close()
}

// ErrBandwidthExceeded is returned by Send when a "drop" traffic type's
// bucket has no tokens available.
var ErrBandwidthExceeded = fmt.Errorf("transport: bandwidth exceeded")
