package vote

import (
	"github.com/nanospec/nanocore/crypto"
	"github.com/nanospec/nanocore/primitives"
)

// NewVote builds and signs a vote over hashes as account, using priv as the
// account's representative key. timestamp should be vote.FinalTimestamp for
// a final vote, or the caller's monotonic vote clock otherwise (spec §4.6).
func NewVote(priv crypto.PrivateKey, account primitives.Account, timestamp uint64, hashes []primitives.BlockHash) *Vote {
	v := &Vote{Account: account, Timestamp: timestamp, Hashes: hashes}
	hash := crypto.HashBytes(v.preimage())
	var bh primitives.BlockHash
	copy(bh[:], hash)
	v.Signature = crypto.Sign(priv, bh)
	return v
}
