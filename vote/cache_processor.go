package vote

import (
	"sync"

	"github.com/nanospec/nanocore/primitives"
)

// CacheProcessor batches newly-opened elections and replays their cached
// votes asynchronously, rather than synchronously on the election-creation
// path (SPEC_FULL.md supplemented feature, grounded on the original
// implementation's vote_cache_processor.rs: a deduplicating trigger queue
// decoupled from election creation so a burst of new elections doesn't
// stall on cache replay).
type CacheProcessor struct {
	cache   *Cache
	sink    ElectionSink
	weights WeightSource

	mu      sync.Mutex
	pending map[primitives.BlockHash]struct{}
	queue   []primitives.BlockHash
	notify  chan struct{}
	stopCh  chan struct{}
}

// NewCacheProcessor creates a CacheProcessor replaying votes from cache into
// elections reachable through sink.
func NewCacheProcessor(cache *Cache, weights WeightSource, sink ElectionSink) *CacheProcessor {
	return &CacheProcessor{
		cache:   cache,
		sink:    sink,
		weights: weights,
		pending: make(map[primitives.BlockHash]struct{}),
		notify:  make(chan struct{}, 1),
		stopCh:  make(chan struct{}),
	}
}

// Trigger enqueues hash for cache replay once its election exists. Repeated
// triggers for the same hash before it is processed collapse into one
// (spec supplemented feature: "deduplicating trigger queue").
func (p *CacheProcessor) Trigger(hash primitives.BlockHash) {
	p.mu.Lock()
	if _, dup := p.pending[hash]; dup {
		p.mu.Unlock()
		return
	}
	p.pending[hash] = struct{}{}
	p.queue = append(p.queue, hash)
	p.mu.Unlock()

	select {
	case p.notify <- struct{}{}:
	default:
	}
}

func (p *CacheProcessor) pop() (primitives.BlockHash, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.queue) == 0 {
		return primitives.BlockHash{}, false
	}
	h := p.queue[0]
	p.queue = p.queue[1:]
	delete(p.pending, h)
	return h, true
}

// Run drains the trigger queue, replaying each hash's cached votes into its
// election, until Stop is called. Intended to run on its own goroutine.
func (p *CacheProcessor) Run() {
	for {
		for {
			h, ok := p.pop()
			if !ok {
				break
			}
			p.replay(h)
		}
		select {
		case <-p.notify:
		case <-p.stopCh:
			return
		}
	}
}

func (p *CacheProcessor) replay(hash primitives.BlockHash) {
	for _, v := range p.cache.Take(hash) {
		weight := p.weights.Weight(v.Account)
		for _, h := range v.Hashes {
			p.sink.RouteVote(h, v.Account, weight, v.Timestamp, v.IsFinal())
		}
	}
}

// Stop halts Run.
func (p *CacheProcessor) Stop() {
	close(p.stopCh)
}
