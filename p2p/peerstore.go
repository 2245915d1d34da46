package p2p

import (
	"sync"
	"time"

	"github.com/nanospec/nanocore/transport"
)

// PeerStore is the peer-gossip table Keepalive messages feed and dialing
// draws fresh addresses from (spec §4.10 "Keepalive | peer-gossip store;
// schedule outgoing handshake to new addresses under connection caps").
// No teacher equivalent (the teacher dials addresses supplied externally,
// never gossips); grounded on the `peers` store table named in spec §4.2,
// kept here as an in-memory front rather than persisted on every update.
type PeerStore struct {
	mu      sync.Mutex
	known   map[transport.Endpoint]time.Time
	maxSize int
}

// NewPeerStore creates a store retaining at most maxSize addresses.
func NewPeerStore(maxSize int) *PeerStore {
	return &PeerStore{known: make(map[transport.Endpoint]time.Time), maxSize: maxSize}
}

// Observe records (or refreshes) an endpoint learned via gossip.
func (s *PeerStore) Observe(ep transport.Endpoint) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, known := s.known[ep]; !known && len(s.known) >= s.maxSize {
		s.evictOldestLocked()
	}
	s.known[ep] = time.Now()
}

func (s *PeerStore) evictOldestLocked() {
	var oldestEP transport.Endpoint
	var oldestAt time.Time
	first := true
	for ep, at := range s.known {
		if first || at.Before(oldestAt) {
			oldestEP, oldestAt, first = ep, at, false
		}
	}
	if !first {
		delete(s.known, oldestEP)
	}
}

// Sample returns up to n known endpoints, for building an outgoing
// Keepalive's gossip list.
func (s *PeerStore) Sample(n int) []transport.Endpoint {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]transport.Endpoint, 0, n)
	for ep := range s.known {
		if len(out) >= n {
			break
		}
		out = append(out, ep)
	}
	return out
}
