// Package p2p is the message pipeline of spec §4.10: per-channel ingress
// (header validation, payload read, parse), a duplicate-publish filter, a
// priority-bounded admission queue, and the dispatch table routing each
// parsed message to the subsystem that owns it (block processor, vote
// router, peer-gossip store, or a vote reply from the local
// representative). Node-id handshake frames are handled in transport and
// never reach it.
// Grounded on the teacher's network.Node handler dispatch, generalized from
// a flat handler map into the layered admission-then-dispatch shape spec
// §4.10 describes.
package p2p

import (
	"encoding/binary"
	"sync"

	"github.com/holiman/bloomfilter/v2"

	"github.com/nanospec/nanocore/crypto"
)

// digestKey adapts a payload's Blake2b digest to bloomfilter.Hashable,
// which only needs a uint64 to index its bit array.
type digestKey uint64

func (k digestKey) Sum64() uint64 { return uint64(k) }

func keyFor(payload []byte) digestKey {
	sum := crypto.HashBytes(payload)
	return digestKey(binary.LittleEndian.Uint64(sum[:8]))
}

// DedupFilter drops duplicate Publish frames by payload digest before they
// reach parsing (spec §4.9 "duplicate publish frames... are dropped
// pre-parse"). A Bloom filter never forgets on its own, so two generations
// are kept and rotated: the older generation is discarded wholesale rather
// than aged entry-by-entry, trading a short re-admission window after each
// rotation for O(1) eviction.
type DedupFilter struct {
	maxElements uint64
	falsePosP   float64

	mu       sync.Mutex
	current  *bloomfilter.Filter
	previous *bloomfilter.Filter
	seen     uint64
}

// NewDedupFilter creates a filter sized for maxElements distinct payloads
// per generation at false-positive rate p (spec leaves the exact sizing
// unspecified; p=0.001 keeps accidental drops rare without an oversized
// bit array).
func NewDedupFilter(maxElements uint64) (*DedupFilter, error) {
	f, err := bloomfilter.NewOptimal(maxElements, 0.001)
	if err != nil {
		return nil, err
	}
	return &DedupFilter{maxElements: maxElements, falsePosP: 0.001, current: f}, nil
}

// Seen reports whether payload was already observed in the current or
// previous generation, recording it in the current generation either way.
func (d *DedupFilter) Seen(payload []byte) bool {
	key := keyFor(payload)

	d.mu.Lock()
	defer d.mu.Unlock()

	dup := d.current.Contains(key) || (d.previous != nil && d.previous.Contains(key))
	d.current.Add(key)
	d.seen++
	if d.seen >= d.maxElements {
		d.rotateLocked()
	}
	return dup
}

func (d *DedupFilter) rotateLocked() {
	fresh, err := bloomfilter.NewOptimal(d.maxElements, d.falsePosP)
	if err != nil {
		return // keep the over-full current generation rather than panic on a sizing error
	}
	d.previous = d.current
	d.current = fresh
	d.seen = 0
}
