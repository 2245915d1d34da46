// Package vote implements the vote cache and router (spec §4.6): votes
// arrive keyed by the block hashes they cover, get deduplicated per voter,
// tiered by representative weight, and either cached (no election yet) or
// routed to the matching election.
package vote

import (
	"fmt"
	"math/big"

	"github.com/nanospec/nanocore/crypto"
	"github.com/nanospec/nanocore/primitives"
)

// MaxHashesPerVote is the wire limit on how many block hashes one vote
// message may cover (spec §4.6).
const MaxHashesPerVote = 12

// FinalTimestamp is the reserved timestamp value marking a vote as final
// (spec §4.6 "distinguished by a reserved timestamp value").
const FinalTimestamp = ^uint64(0)

// Vote is a representative's signed statement about up to 12 candidate
// block hashes (spec §4.6).
type Vote struct {
	Account   primitives.Account
	Timestamp uint64
	Hashes    []primitives.BlockHash
	Signature primitives.Signature
}

// IsFinal reports whether v irrevocably binds the voter to its hashes.
func (v *Vote) IsFinal() bool { return v.Timestamp == FinalTimestamp }

// preimage is the concatenation the signature covers: timestamp then every
// hash in order.
func (v *Vote) preimage() []byte {
	buf := make([]byte, 8+len(v.Hashes)*32)
	putUint64(buf[:8], v.Timestamp)
	for i, h := range v.Hashes {
		copy(buf[8+i*32:8+(i+1)*32], h[:])
	}
	return buf
}

func putUint64(b []byte, v uint64) {
	for i := 7; i >= 0; i-- {
		b[i] = byte(v)
		v >>= 8
	}
}

// Verify checks v's structural limits and signature.
func (v *Vote) Verify() error {
	if len(v.Hashes) == 0 || len(v.Hashes) > MaxHashesPerVote {
		return fmt.Errorf("vote: hash count %d out of range", len(v.Hashes))
	}
	hash := crypto.HashBytes(v.preimage())
	var bh primitives.BlockHash
	copy(bh[:], hash)
	if crypto.Verify(crypto.KeyFromAccount(v.Account), bh, v.Signature) != nil {
		return fmt.Errorf("vote: bad signature from %s", v.Account.Hex())
	}
	return nil
}

// Tier is the representative-weight bracket used for admission priority
// under load (spec §4.6).
type Tier uint8

const (
	Tier0 Tier = iota // < 0.1%
	Tier1             // 0.1 - 1%
	Tier2             // 1 - 5%
	Tier3             // > 5%
)

// TierFor classifies a representative's weight as a fraction of online
// stake, in integer per-mille to avoid floating point on the hot path.
func TierFor(weight, onlineStake primitives.Amount) Tier {
	if onlineStake.IsZero() {
		return Tier0
	}
	w := weight.Big()
	s := onlineStake.Big()
	// per-mille = 1000 * w / s, so 0.1%/1%/5% become 1/10/50 in integer
	// math without ever going through a float.
	num := new(big.Int).Mul(w, big.NewInt(1000))
	permille := new(big.Int).Div(num, s).Int64()
	switch {
	case permille > 50:
		return Tier3
	case permille >= 10:
		return Tier2
	case permille >= 1:
		return Tier1
	default:
		return Tier0
	}
}
