package transport

import (
	"fmt"
	"log"
	"net"
	"net/netip"
	"sync"
	"time"
)

// FrameHandler is called for each received frame on a channel.
type FrameHandler func(ch *Channel, h Header, payload []byte)

// RegistryConfig bounds how many channels a single source IP or /64 subnet
// may occupy, guarding against one host exhausting the peer table (spec §6
// "per-IP and per-subnet peer admission caps").
type RegistryConfig struct {
	MaxPeers       int
	MaxPerIP       int
	MaxPerSubnet   int
	BandwidthLimit map[TrafficType]BandwidthConfig
}

// Registry accepts inbound connections and dials outbound ones, runs the
// node-id handshake on each, and dispatches received frames to a type-keyed
// handler table. Grounded on the teacher's network.Node (accept loop,
// peer map, handler table keyed by message type), generalized from its
// length-prefixed JSON peers to handshaken, bandwidth-limited Channels.
type Registry struct {
	cfg        RegistryConfig
	handshaker *Handshaker

	mu       sync.RWMutex
	channels map[uint64]*Channel
	byIP     map[netip.Addr]int
	bySubnet map[netip.Prefix]int
	handlers map[MessageType]FrameHandler

	nextID   uint64
	listener net.Listener
	stopCh   chan struct{}
}

// NewRegistry creates a Registry that authenticates peers with handshaker.
func NewRegistry(cfg RegistryConfig, handshaker *Handshaker) *Registry {
	return &Registry{
		cfg:        cfg,
		handshaker: handshaker,
		channels:   make(map[uint64]*Channel),
		byIP:       make(map[netip.Addr]int),
		bySubnet:   make(map[netip.Prefix]int),
		handlers:   make(map[MessageType]FrameHandler),
		stopCh:     make(chan struct{}),
	}
}

// Handle registers the dispatch destination for a message type (spec §4.10's
// routing table: publish -> block processor, confirm_ack -> vote router,
// etc.). Overwrites are a programmer error and silently win-last, same as
// the teacher's Handle.
func (r *Registry) Handle(typ MessageType, h FrameHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[typ] = h
}

// Listen starts accepting inbound connections on addr.
func (r *Registry) Listen(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("transport: listen %s: %w", addr, err)
	}
	r.listener = ln
	go r.acceptLoop()
	return nil
}

// Stop closes the listener and every channel.
func (r *Registry) Stop() {
	close(r.stopCh)
	if r.listener != nil {
		r.listener.Close()
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, ch := range r.channels {
		ch.Close()
	}
}

// Dial connects out to addr, runs the initiator side of the handshake, and
// registers the resulting channel.
func (r *Registry) Dial(addr string) (*Channel, error) {
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("transport: dial %s: %w", addr, err)
	}
	ep := EndpointFromTCPAddr(conn.RemoteAddr().(*net.TCPAddr))
	if !r.admit(ep) {
		conn.Close()
		return nil, fmt.Errorf("transport: peer admission cap reached for %s", ep)
	}
	ch := r.register(ep, conn)

	query, ok := r.handshaker.IssueQuery(ch)
	if !ok {
		ch.Close()
		r.unregister(ch)
		return nil, fmt.Errorf("transport: cannot issue handshake cookie for %s", ep)
	}
	hdr := Header{Type: MessageNodeIDHandshake, Extensions: handshakeQueryFlag}
	if err := ch.Send(hdr, query.Encode(), TrafficGeneric, true); err != nil {
		ch.Close()
		r.unregister(ch)
		return nil, err
	}
	go r.readLoop(ch)
	return ch, nil
}

func (r *Registry) admit(ep Endpoint) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cfg.MaxPeers > 0 && len(r.channels) >= r.cfg.MaxPeers {
		return false
	}
	ip := ep.IP()
	if r.cfg.MaxPerIP > 0 && r.byIP[ip] >= r.cfg.MaxPerIP {
		return false
	}
	subnet := subnetOf(ip)
	if r.cfg.MaxPerSubnet > 0 && r.bySubnet[subnet] >= r.cfg.MaxPerSubnet {
		return false
	}
	return true
}

func subnetOf(ip netip.Addr) netip.Prefix {
	bits := 64
	if ip.Is4() {
		bits = 32
	}
	p, _ := ip.Prefix(bits)
	return p
}

func (r *Registry) register(ep Endpoint, conn net.Conn) *Channel {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	ch := NewChannel(r.nextID, ep, conn, NewLimiter(r.cfg.BandwidthLimit))
	r.channels[ch.ID] = ch
	r.byIP[ep.IP()]++
	r.bySubnet[subnetOf(ep.IP())]++
	return ch
}

func (r *Registry) unregister(ch *Channel) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.channels[ch.ID]; !ok {
		return
	}
	delete(r.channels, ch.ID)
	ip := ch.Endpoint.IP()
	if n := r.byIP[ip]; n > 1 {
		r.byIP[ip] = n - 1
	} else {
		delete(r.byIP, ip)
	}
	sub := subnetOf(ip)
	if n := r.bySubnet[sub]; n > 1 {
		r.bySubnet[sub] = n - 1
	} else {
		delete(r.bySubnet, sub)
	}
}

// Channels returns a snapshot of every registered channel.
func (r *Registry) Channels() []*Channel {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Channel, 0, len(r.channels))
	for _, ch := range r.channels {
		out = append(out, ch)
	}
	return out
}

// Broadcast sends a frame to every connected channel, dropping rather than
// blocking on any one slow peer (spec §4.10 "Publish fan-out never blocks on
// a single slow channel").
func (r *Registry) Broadcast(h Header, payload []byte, typ TrafficType) {
	for _, ch := range r.Channels() {
		if err := ch.Send(h, payload, typ, false); err != nil {
			log.Printf("[transport] broadcast to channel %d: %v", ch.ID, err)
		}
	}
}

func (r *Registry) acceptLoop() {
	for {
		conn, err := r.listener.Accept()
		if err != nil {
			select {
			case <-r.stopCh:
				return
			default:
				log.Printf("[transport] accept error: %v", err)
				time.Sleep(100 * time.Millisecond)
				continue
			}
		}
		ep := EndpointFromTCPAddr(conn.RemoteAddr().(*net.TCPAddr))
		if !r.admit(ep) {
			conn.Close()
			continue
		}
		ch := r.register(ep, conn)
		go r.readLoop(ch)
	}
}

func (r *Registry) readLoop(ch *Channel) {
	defer func() {
		if rec := recover(); rec != nil {
			log.Printf("[transport] readLoop panic on channel %d: %v", ch.ID, rec)
		}
		ch.Close()
		r.unregister(ch)
	}()
	for {
		h, payload, err := ch.Receive()
		if err != nil {
			return
		}
		if h.Type == MessageNodeIDHandshake {
			r.handleHandshakeFrame(ch, h, payload)
			continue
		}
		r.mu.RLock()
		handler, ok := r.handlers[h.Type]
		r.mu.RUnlock()
		if ok {
			handler(ch, h, payload)
		}
	}
}

func (r *Registry) handleHandshakeFrame(ch *Channel, h Header, payload []byte) {
	switch {
	case h.Extensions&handshakeQueryFlag != 0:
		q, err := DecodeHandshakeQuery(payload)
		if err != nil {
			log.Printf("[transport] bad handshake query from channel %d: %v", ch.ID, err)
			return
		}
		resp := r.handshaker.RespondTo(q)
		respHdr := Header{Type: MessageNodeIDHandshake, Extensions: handshakeResponseFlag}
		if err := ch.Send(respHdr, resp.Encode(), TrafficGeneric, true); err != nil {
			log.Printf("[transport] send handshake response on channel %d: %v", ch.ID, err)
		}
	case h.Extensions&handshakeResponseFlag != 0:
		resp, err := DecodeHandshakeResponse(payload)
		if err != nil {
			log.Printf("[transport] bad handshake response from channel %d: %v", ch.ID, err)
			return
		}
		if err := r.handshaker.Complete(ch, resp); err != nil {
			log.Printf("[transport] handshake failed on channel %d: %v", ch.ID, err)
			ch.Close()
			r.unregister(ch)
			return
		}
		ch.Mode = ModeRealtime
	}
}
