// Package election implements the per-conflict election state machine
// (spec §4.7): one election per qualified root, tallying representative
// votes until quorum confirms a winner, which is then handed to
// cementation. Grounded on the teacher's consensus.PoA propose/validate
// loop, reshaped from "one proposer produces the next block" into "many
// voters tally candidates for one root".
package election

import (
	"sync"

	"github.com/nanospec/nanocore/primitives"
)

// QualifiedRoot identifies the conflict an election resolves: the previous
// hash for a non-open candidate, the account for an open (spec §4.7).
type QualifiedRoot struct {
	IsAccount bool
	Hash      primitives.BlockHash
	Account   primitives.Account
}

func RootForPrevious(prev primitives.BlockHash) QualifiedRoot {
	return QualifiedRoot{Hash: prev}
}

func RootForAccount(account primitives.Account) QualifiedRoot {
	return QualifiedRoot{IsAccount: true, Account: account}
}

// State is the election's position in its lifecycle (spec §4.7).
type State uint8

const (
	Passive State = iota
	Active
	Confirmed
	Cemented
	Expired
)

func (s State) String() string {
	switch s {
	case Passive:
		return "passive"
	case Active:
		return "active"
	case Confirmed:
		return "confirmed"
	case Cemented:
		return "cemented"
	case Expired:
		return "expired"
	default:
		return "unknown"
	}
}

// voterRecord tracks a voter's latest non-final contribution so a changed
// vote can be un-tallied from its old hash (spec §4.7 "subtracting any
// previous contribution").
type voterRecord struct {
	hash   primitives.BlockHash
	weight primitives.Amount
	final  bool
}

// Election holds the running tally for every candidate hash at one
// qualified root.
type Election struct {
	mu sync.Mutex

	Root  QualifiedRoot
	State State

	tally      map[primitives.BlockHash]primitives.Amount
	finalTally map[primitives.BlockHash]primitives.Amount
	voters     map[primitives.Account]voterRecord

	// candidates records the (account, height) every candidate hash for
	// this root was registered with, so the winner's coordinates are known
	// once quorum picks it (spec §4.7, §4.8 "the winner's height on the
	// winner's account").
	candidates map[primitives.BlockHash]candidate

	Winner        primitives.BlockHash
	WinnerHeight  uint64
	WinnerAccount primitives.Account
}

type candidate struct {
	account primitives.Account
	height  uint64
}

// NewElection creates a Passive election at root.
func NewElection(root QualifiedRoot) *Election {
	return &Election{
		Root:       root,
		State:      Passive,
		tally:      make(map[primitives.BlockHash]primitives.Amount),
		finalTally: make(map[primitives.BlockHash]primitives.Amount),
		voters:     make(map[primitives.Account]voterRecord),
		candidates: make(map[primitives.BlockHash]candidate),
	}
}

// RegisterCandidate records the (account, height) of a candidate block so
// the winner's coordinates can be looked up once quorum is reached.
func (e *Election) RegisterCandidate(hash primitives.BlockHash, account primitives.Account, height uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.candidates[hash] = candidate{account: account, height: height}
}

// VoterHash returns voter's current non-final vote for this election, if
// any (spec §4.7 "Cooldown before a replaced voter may vote again").
func (e *Election) VoterHash(voter primitives.Account) (primitives.BlockHash, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	r, ok := e.voters[voter]
	if !ok || r.final {
		return primitives.BlockHash{}, false
	}
	return r.hash, true
}

// Activate transitions a Passive election to Active once it's scheduled
// for voting (spec §4.7).
func (e *Election) Activate() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.State == Passive {
		e.State = Active
	}
}

// AddVote applies voter's contribution to hash, replacing any earlier
// non-final contribution from the same voter (spec §4.7 "A vote updates
// the tally for the voter's chosen hash, subtracting any previous
// contribution"). A final vote can never be superseded.
func (e *Election) AddVote(hash primitives.BlockHash, voter primitives.Account, weight primitives.Amount, final bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if prev, ok := e.voters[voter]; ok {
		if prev.final {
			return // final votes irrevocably bind the voter
		}
		e.tally[prev.hash] = e.tally[prev.hash].Sub(prev.weight)
	}
	e.voters[voter] = voterRecord{hash: hash, weight: weight, final: final}
	e.tally[hash] = e.tally[hash].Add(weight)
	if final {
		e.finalTally[hash] = e.finalTally[hash].Add(weight)
	}
}

// Tally returns the running (non-final) tally for hash.
func (e *Election) Tally(hash primitives.BlockHash) primitives.Amount {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.tally[hash]
}

// FinalTally returns the final-vote tally for hash.
func (e *Election) FinalTally(hash primitives.BlockHash) primitives.Amount {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.finalTally[hash]
}

// CheckQuorum evaluates every candidate hash against the confirmation
// rule of spec §4.7: "confirmed when either its final-tally >= quorum-delta
// against online stake, or its running tally alone exceeds confirmation-min
// across a full voting interval". heldFullInterval reports, per hash,
// whether the running tally has been observed above confirmationMin for a
// full voting interval already (tracked by the caller, which knows wall
// time); this method only compares the instantaneous numbers.
func (e *Election) CheckQuorum(quorumDelta, confirmationMin primitives.Amount, heldFullInterval func(primitives.BlockHash) bool) (primitives.BlockHash, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.State == Confirmed || e.State == Cemented {
		return e.Winner, true
	}
	for hash, final := range e.finalTally {
		if final.Cmp(quorumDelta) >= 0 {
			e.confirmLocked(hash)
			return hash, true
		}
	}
	for hash, running := range e.tally {
		if running.Cmp(confirmationMin) > 0 && heldFullInterval(hash) {
			e.confirmLocked(hash)
			return hash, true
		}
	}
	return primitives.BlockHash{}, false
}

func (e *Election) confirmLocked(winner primitives.BlockHash) {
	e.State = Confirmed
	e.Winner = winner
	if c, ok := e.candidates[winner]; ok {
		e.WinnerAccount = c.account
		e.WinnerHeight = c.height
	}
}

// MarkCemented transitions Confirmed -> Cemented once the winner's account
// confirmation height reaches its height (spec §4.7).
func (e *Election) MarkCemented() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.State == Confirmed {
		e.State = Cemented
	}
}

// MarkExpired transitions a still-unconfirmed election to Expired.
func (e *Election) MarkExpired() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.State == Passive || e.State == Active {
		e.State = Expired
	}
}

// Density is the sum of every candidate's running tally, used by the
// active-election set to rank admission priority (spec §4.7 "admission
// priority is by prior vote-tally density").
func (e *Election) Density() primitives.Amount {
	e.mu.Lock()
	defer e.mu.Unlock()
	total := primitives.ZeroAmount
	for _, t := range e.tally {
		total = total.Add(t)
	}
	return total
}
