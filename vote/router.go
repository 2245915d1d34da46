package vote

import (
	"sync"

	"github.com/nanospec/nanocore/primitives"
)

// ElectionSink is the subset of the election engine the router needs: look
// up the active election for a qualified root and hand it a vote. Defined
// here (rather than importing package election) so election can depend on
// vote without a cycle — election.Engine implements this interface.
type ElectionSink interface {
	// RouteVote delivers v's contribution to hash to the election for
	// hash's qualified root, if one is active. Returns false if no
	// election exists for that root (the router then caches the vote).
	RouteVote(hash primitives.BlockHash, voter primitives.Account, weight primitives.Amount, timestamp uint64, final bool) bool
}

// WeightSource resolves a representative's current delegated weight, used
// for tiering (spec §4.6).
type WeightSource interface {
	Weight(account primitives.Account) primitives.Amount
	OnlineStake() primitives.Amount
}

// RouterConfig bounds the admission queue per tier (spec §4.6, §6
// "vote_processor.max_queue, max_triggered").
type RouterConfig struct {
	MaxQueue     int
	MaxTriggered int
}

// Router receives raw votes, verifies and tiers them, and dispatches each
// covered hash either into an active election or into the Cache (spec
// §4.6 "Vote router").
type Router struct {
	cfg     RouterConfig
	cache   *Cache
	weights WeightSource
	sink    ElectionSink

	mu     sync.Mutex
	queued int
}

// NewRouter creates a Router over cache, using weights for tiering and
// sink to deliver votes to active elections.
func NewRouter(cfg RouterConfig, cache *Cache, weights WeightSource, sink ElectionSink) *Router {
	return &Router{cfg: cfg, cache: cache, weights: weights, sink: sink}
}

// Process verifies v, classifies its voter's tier, applies per-tier
// admission against the bounded queue (spec §4.6 "higher tiers survive
// overload"), then splits it across every covered hash.
func (r *Router) Process(v *Vote) error {
	if err := v.Verify(); err != nil {
		return err
	}

	weight := r.weights.Weight(v.Account)
	tier := TierFor(weight, r.weights.OnlineStake())
	if !r.admit(tier) {
		return nil // dropped under load; not an error, just backpressure
	}
	defer r.release()

	for _, h := range v.Hashes {
		if r.sink.RouteVote(h, v.Account, weight, v.Timestamp, v.IsFinal()) {
			continue
		}
		r.cache.Add(v)
	}
	return nil
}

// admit applies the tiered queue-depth thresholds: higher tiers are let in
// at higher queue occupancy than lower ones, so a flood of low-weight
// votes cannot starve high-weight ones out.
func (r *Router) admit(tier Tier) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	limit := r.cfg.MaxQueue
	switch tier {
	case Tier3:
		limit = r.cfg.MaxTriggered
	case Tier2:
		limit = r.cfg.MaxQueue * 3 / 4
	case Tier1:
		limit = r.cfg.MaxQueue / 2
	case Tier0:
		limit = r.cfg.MaxQueue / 4
	}
	if r.queued >= limit {
		return false
	}
	r.queued++
	return true
}

func (r *Router) release() {
	r.mu.Lock()
	r.queued--
	r.mu.Unlock()
}
