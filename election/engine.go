package election

import (
	"log"
	"math/big"
	"sync"
	"time"

	"github.com/nanospec/nanocore/events"
	"github.com/nanospec/nanocore/primitives"
	"github.com/nanospec/nanocore/vote"
)

// Confirmer is the cementation capability the election engine calls once a
// qualified root's election confirms a winner (spec §4.7 "the block's hash
// is handed to cementation"). Defined here as a narrow interface rather
// than importing package confirm directly, so confirm can depend on
// election without a cycle (spec §9 "weak capabilities").
type Confirmer interface {
	Cement(account primitives.Account, hash primitives.BlockHash) error
}

// EngineConfig bounds the active-election set and the quorum math (spec
// §4.7, §6 "active_elections.size").
type EngineConfig struct {
	MaxActive int

	// QuorumFractionPpm is quorum-delta as parts-per-million of trended
	// online stake (spec §9's scenario 6 uses 67% == 670000).
	QuorumFractionPpm int64
	// ConfirmationMinFractionPpm is the fallback "running tally alone"
	// bar, also a ppm fraction of trended online stake.
	ConfirmationMinFractionPpm int64
	// VotingInterval is how long a hash's running tally must stay above
	// ConfirmationMin before that path can confirm it without a
	// supermajority of final votes (spec §4.7).
	VotingInterval time.Duration

	// HintedWeightFractionPpm is the cached-vote weight (as a ppm fraction
	// of trended online stake) that triggers a hinted election before the
	// block itself has even arrived (spec §4.7 "hinted election").
	HintedWeightFractionPpm int64
}

// cooldownFor returns how long a representative of the given weight must wait
// before a changed (non-final) vote is honored again (spec §4.7
// "Cooldown... is a function of its weight").
func cooldownFor(weight, onlineStake primitives.Amount) time.Duration {
	if onlineStake.IsZero() {
		return 15 * time.Second
	}
	tier := TierPpm(weight, onlineStake)
	switch {
	case tier >= 50000: // >= 5%
		return 1 * time.Second
	case tier >= 10000: // >= 1%
		return 5 * time.Second
	default:
		return 15 * time.Second
	}
}

// TierPpm returns weight as parts-per-million of onlineStake, used by the
// cooldown rule above; the quorum-fraction math below uses ppmOf.
func TierPpm(weight, onlineStake primitives.Amount) int64 {
	if onlineStake.IsZero() {
		return 0
	}
	num := new(big.Int).Mul(weight.Big(), big.NewInt(1_000_000))
	return num.Div(num, onlineStake.Big()).Int64()
}

// ppmOf returns amount * fractionPpm / 1_000_000.
func ppmOf(amount primitives.Amount, fractionPpm int64) primitives.Amount {
	if amount.IsZero() || fractionPpm <= 0 {
		return primitives.ZeroAmount
	}
	num := new(big.Int).Mul(amount.Big(), big.NewInt(fractionPpm))
	num.Div(num, big.NewInt(1_000_000))
	return primitives.AmountFromBig(num)
}

// Engine is the node's active-election set: one Election per qualified
// root, admission-bounded, fed by the vote router and the block processor,
// and wired to cementation on confirmation (spec §4.7). Grounded on the
// teacher's consensus.PoA loop, reshaped from "one proposer" into "many
// concurrent conflicts tallied against quorum".
type Engine struct {
	cfg     EngineConfig
	weights ledgerWeights
	online  *OnlineTracker
	cache   *vote.Cache
	emitter *events.Emitter
	confirm Confirmer

	mu       sync.Mutex
	byRoot   map[QualifiedRoot]*Election
	byHash   map[primitives.BlockHash]QualifiedRoot
	cooldown map[primitives.Account]time.Time

	cacheTrigger func(primitives.BlockHash)
}

// SetCacheTrigger wires a vote.CacheProcessor's Trigger method in, so a
// newly-opened election's cache replay happens on the processor's own
// goroutine instead of synchronously inline in Start (SPEC_FULL.md
// supplemented feature: deduplicating trigger queue). Until this is set,
// Start replays synchronously.
func (eng *Engine) SetCacheTrigger(trigger func(primitives.BlockHash)) {
	eng.mu.Lock()
	eng.cacheTrigger = trigger
	eng.mu.Unlock()
}

// NewEngine creates an Engine. weights resolves a representative's
// delegated balance; online trends recent voting participation into a
// quorum denominator; cache supplies votes seen before an election opened;
// confirm is handed the winner once quorum is reached.
func NewEngine(cfg EngineConfig, weights ledgerWeights, online *OnlineTracker, cache *vote.Cache, emitter *events.Emitter, confirm Confirmer) *Engine {
	return &Engine{
		cfg:      cfg,
		weights:  weights,
		online:   online,
		cache:    cache,
		emitter:  emitter,
		confirm:  confirm,
		byRoot:   make(map[QualifiedRoot]*Election),
		byHash:   make(map[primitives.BlockHash]QualifiedRoot),
		cooldown: make(map[primitives.Account]time.Time),
	}
}

// Start opens (or reuses) the election for root, registers hash as one of
// its candidates, and replays any votes the cache collected for hash before
// the election existed (spec §4.6 "cached votes are replayed into it").
// Returns nil if the active-election set is already at its configured
// bound and root has no existing election (spec §6
// "active_elections.size").
func (eng *Engine) Start(root QualifiedRoot, hash primitives.BlockHash, account primitives.Account, height uint64) *Election {
	eng.mu.Lock()
	el, existed := eng.byRoot[root]
	if !existed {
		if len(eng.byRoot) >= eng.cfg.MaxActive {
			eng.mu.Unlock()
			log.Printf("[election] active set full (%d), dropping root %x", eng.cfg.MaxActive, root.Hash)
			return nil
		}
		el = NewElection(root)
		eng.byRoot[root] = el
	}
	eng.byHash[hash] = root
	eng.mu.Unlock()

	el.RegisterCandidate(hash, account, height)
	el.Activate()

	if !existed && eng.emitter != nil {
		eng.emitter.Emit(events.Event{Type: events.EventElectionStarted, Data: map[string]any{"root": root.Hash.Hex()}})
	}

	now := time.Now()
	stake := eng.onlineStake(now)

	eng.mu.Lock()
	trigger := eng.cacheTrigger
	eng.mu.Unlock()
	if trigger != nil {
		trigger(hash)
	} else {
		for _, v := range eng.cache.Take(hash) {
			w := eng.weights.Weight(v.Account)
			eng.online.Observe(v.Account, now)
			el.AddVote(hash, v.Account, w, v.IsFinal())
		}
	}
	eng.checkQuorum(el, stake)
	return el
}

// RouteVote implements vote.ElectionSink: delivers one hash's worth of a
// vote to its active election, if any, applying the per-voter cooldown
// (spec §4.7) first.
func (eng *Engine) RouteVote(hash primitives.BlockHash, voter primitives.Account, weight primitives.Amount, timestamp uint64, final bool) bool {
	eng.mu.Lock()
	root, ok := eng.byHash[hash]
	var el *Election
	if ok {
		el = eng.byRoot[root]
	}
	eng.mu.Unlock()
	if el == nil {
		return false
	}

	now := time.Now()
	stake := eng.onlineStake(now)

	if !final {
		if prevHash, had := el.VoterHash(voter); had && prevHash != hash {
			if !eng.allowChange(voter, weight, stake, now) {
				return true // accepted (consumed), but the change is rate-limited away
			}
		}
	}
	eng.online.Observe(voter, now)
	el.AddVote(hash, voter, weight, final)
	eng.checkQuorum(el, stake)
	return true
}

// allowChange enforces the weight-scaled cooldown between a voter's
// consecutive non-final vote changes.
func (eng *Engine) allowChange(voter primitives.Account, weight, onlineStake primitives.Amount, now time.Time) bool {
	eng.mu.Lock()
	defer eng.mu.Unlock()
	if until, ok := eng.cooldown[voter]; ok && now.Before(until) {
		return false
	}
	eng.cooldown[voter] = now.Add(cooldownFor(weight, onlineStake))
	return true
}

// onlineStake reads (and, incidentally, advances) the trended stake sample.
func (eng *Engine) onlineStake(now time.Time) primitives.Amount {
	return eng.online.Trended(now)
}

// OnlineStake implements vote.WeightSource for the router's tiering.
func (eng *Engine) OnlineStake() primitives.Amount {
	return eng.onlineStake(time.Now())
}

// Weight implements vote.WeightSource by delegating to the weight table.
func (eng *Engine) Weight(account primitives.Account) primitives.Amount {
	return eng.weights.Weight(account)
}

// checkQuorum evaluates el against the quorum math of spec §4.7 and, on a
// fresh confirmation, emits EventElectionConfirmed and hands the winner to
// cementation. An election left Confirmed by a failed Cement retries
// cementation on its next check; a Cemented election is left alone.
func (eng *Engine) checkQuorum(el *Election, onlineStake primitives.Amount) {
	quorumDelta := ppmOf(onlineStake, eng.cfg.QuorumFractionPpm)
	confirmationMin := ppmOf(onlineStake, eng.cfg.ConfirmationMinFractionPpm)

	el.mu.Lock()
	prior := el.State
	el.mu.Unlock()
	if prior == Cemented {
		return
	}

	winner, ok := el.CheckQuorum(quorumDelta, confirmationMin, func(h primitives.BlockHash) bool {
		return eng.heldFullInterval(el, h)
	})
	if !ok {
		return
	}
	if prior != Confirmed && eng.emitter != nil {
		eng.emitter.Emit(events.Event{Type: events.EventElectionConfirmed, Data: map[string]any{
			"root":    el.Root.Hash.Hex(),
			"winner":  winner.Hex(),
			"account": el.WinnerAccount.Hex(),
			"height":  el.WinnerHeight,
		}})
	}
	if eng.confirm != nil {
		if err := eng.confirm.Cement(el.WinnerAccount, winner); err != nil {
			log.Printf("[election] cement %s: %v", winner.Hex(), err)
			return
		}
	}
	el.MarkCemented()
}

// aboveSince tracks, per election+hash, when the running tally was first
// observed above confirmationMin, so heldFullInterval can measure a real
// elapsed duration instead of confirming on the very first sample.
var aboveSince sync.Map // map[*Election]map[primitives.BlockHash]time.Time, guarded per-election below

func (eng *Engine) heldFullInterval(el *Election, hash primitives.BlockHash) bool {
	v, _ := aboveSince.LoadOrStore(el, &sync.Map{})
	times := v.(*sync.Map)
	now := time.Now()
	first, loaded := times.LoadOrStore(hash, now)
	if !loaded {
		return false
	}
	return now.Sub(first.(time.Time)) >= eng.cfg.VotingInterval
}

// Get returns the active election for root, if any.
func (eng *Engine) Get(root QualifiedRoot) (*Election, bool) {
	eng.mu.Lock()
	defer eng.mu.Unlock()
	el, ok := eng.byRoot[root]
	return el, ok
}

// Active returns the number of elections currently tracked.
func (eng *Engine) Active() int {
	eng.mu.Lock()
	defer eng.mu.Unlock()
	return len(eng.byRoot)
}

// Hinted reports whether hash's cached votes alone already exceed the
// hinted-election weight threshold, before any election has opened for it
// (spec §4.7 "hinted election").
func (eng *Engine) Hinted(hash primitives.BlockHash) bool {
	now := time.Now()
	stake := eng.onlineStake(now)
	threshold := ppmOf(stake, eng.cfg.HintedWeightFractionPpm)
	total := primitives.ZeroAmount
	for _, v := range eng.cache.Peek(hash) {
		total = total.Add(eng.weights.Weight(v.Account))
	}
	return total.Cmp(threshold) > 0
}
