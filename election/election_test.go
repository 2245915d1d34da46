package election

import (
	"testing"

	"github.com/nanospec/nanocore/primitives"
)

func acct(b byte) primitives.Account {
	var a primitives.Account
	a[0] = b
	return a
}

func hash(b byte) primitives.BlockHash {
	var h primitives.BlockHash
	h[0] = b
	return h
}

// Scenario 6 (spec §8): reps R1=40%, R2=30%, R3=10% of online stake, quorum
// fraction 67%. With only R1 and R3 voting for H (50% combined), it remains
// active. Once R2 also votes for H (R1+R2 alone is 70%; with R3 the tally is
// 80%), the election confirms H.
func TestElectionQuorumConfirmation(t *testing.T) {
	onlineStake := primitives.AmountFromUint64(100)
	quorumDelta := ppmOf(onlineStake, 670000)       // 67%
	confirmationMin := ppmOf(onlineStake, 670000)   // same bar for the fallback path
	held := func(primitives.BlockHash) bool { return true }

	r1, r2, r3 := acct(1), acct(2), acct(3)
	w1 := primitives.AmountFromUint64(40)
	w2 := primitives.AmountFromUint64(30)
	w3 := primitives.AmountFromUint64(10)

	h := hash(0xAA)

	el := NewElection(RootForPrevious(hash(0x01)))
	el.RegisterCandidate(h, acct(0x99), 2)
	el.Activate()

	// Only R1 and R3 vote: 50% combined, short of the 67% bar.
	el.AddVote(h, r1, w1, false)
	el.AddVote(h, r3, w3, false)
	if _, confirmed := el.CheckQuorum(quorumDelta, confirmationMin, held); confirmed {
		t.Fatalf("election confirmed with only 50%% voting weight, want still active")
	}
	if el.State != Active {
		t.Fatalf("election state = %v, want Active", el.State)
	}

	// R2 also votes for H: R1 (40%) + R2 (30%) + R3 (10%) = 80%, clears the
	// 67% bar.
	el.AddVote(h, r2, w2, false)
	winner, confirmed := el.CheckQuorum(quorumDelta, confirmationMin, held)
	if !confirmed {
		t.Fatalf("election did not confirm with R1+R2+R3 = 80%% voting weight")
	}
	if winner != h {
		t.Fatalf("winner = %x, want %x", winner, h)
	}
	if el.State != Confirmed {
		t.Fatalf("election state = %v, want Confirmed", el.State)
	}
	if el.WinnerAccount != acct(0x99) || el.WinnerHeight != 2 {
		t.Fatalf("winner coordinates = (%x, %d), want (%x, 2)", el.WinnerAccount, el.WinnerHeight, acct(0x99))
	}
}

// A final vote irrevocably binds its voter: a later AddVote for a different
// hash from the same voter must not move its weight.
func TestElectionFinalVoteIrrevocable(t *testing.T) {
	el := NewElection(RootForAccount(acct(0x10)))
	h1, h2 := hash(1), hash(2)
	voter := acct(5)
	weight := primitives.AmountFromUint64(50)

	el.AddVote(h1, voter, weight, true)
	if el.Tally(h1).Cmp(weight) != 0 {
		t.Fatalf("tally(h1) = %v, want %v", el.Tally(h1), weight)
	}

	el.AddVote(h2, voter, weight, false)
	if !el.Tally(h2).IsZero() {
		t.Fatalf("final voter's weight moved to h2: tally(h2) = %v, want 0", el.Tally(h2))
	}
	if el.Tally(h1).Cmp(weight) != 0 {
		t.Fatalf("tally(h1) changed after a no-op vote from a final voter: got %v, want %v", el.Tally(h1), weight)
	}
}

// Applying the same (non-final) vote twice is idempotent: the tally must
// not double-count (spec §8 "Votes are idempotent").
func TestElectionVoteIdempotent(t *testing.T) {
	el := NewElection(RootForPrevious(hash(0x01)))
	h := hash(0xBB)
	voter := acct(7)
	weight := primitives.AmountFromUint64(20)

	el.AddVote(h, voter, weight, false)
	el.AddVote(h, voter, weight, false)
	if el.Tally(h).Cmp(weight) != 0 {
		t.Fatalf("tally after repeated identical vote = %v, want %v", el.Tally(h), weight)
	}
}
