package crypto

import (
	"golang.org/x/crypto/blake2b"

	"github.com/nanospec/nanocore/primitives"
)

// HashBlock returns the Blake2b-256 digest of a block's preimage bytes
// (spec §4.1: "Block hash = Blake2b-256 over a variant-specific preimage").
func HashBlock(preimage []byte) primitives.BlockHash {
	var h primitives.BlockHash
	sum := blake2b.Sum256(preimage)
	h = sum
	return h
}

// HashBytes returns the raw Blake2b-256 digest of data, used for anything
// that isn't a block preimage (vote preimages, node-id cookies' message
// digest).
func HashBytes(data []byte) []byte {
	h := blake2b.Sum256(data)
	return h[:]
}
