package p2p

import (
	"github.com/nanospec/nanocore/crypto"
	"github.com/nanospec/nanocore/primitives"
	"github.com/nanospec/nanocore/vote"
)

// Representative signs ConfirmAck replies on this node's behalf when it
// runs as a voting representative (spec §4.10 "respond if local
// representative", "vote generator if local representative"). A node with
// no configured representative key leaves this nil; ConfirmReq handling
// then only submits a carried block to the block processor and sends no
// vote.
type Representative struct {
	key     crypto.PrivateKey
	account primitives.Account
	clock   func() uint64 // monotonic vote timestamp source; FinalTimestamp is reserved
}

// NewRepresentative creates a Representative voting as account with key,
// drawing non-final vote timestamps from clock.
func NewRepresentative(key crypto.PrivateKey, account primitives.Account, clock func() uint64) *Representative {
	return &Representative{key: key, account: account, clock: clock}
}

// VoteFor signs a non-final vote covering hashes.
func (r *Representative) VoteFor(hashes []primitives.BlockHash) *vote.Vote {
	return vote.NewVote(r.key, r.account, r.clock(), hashes)
}
