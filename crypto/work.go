package crypto

import (
	"encoding/binary"

	"golang.org/x/crypto/blake2b"

	"github.com/nanospec/nanocore/primitives"
)

// WorkSize is the width of a proof-of-work nonce.
const WorkSize = 8

// Work is a proof-of-work nonce, little-endian interpreted value per
// spec §4.1.
type Work [WorkSize]byte

// Threshold is the minimum acceptable work value for a given (epoch, kind)
// combination; see chainparams for the compile-time table.
type Threshold uint64

// Validate reports whether nonce is valid work for root (spec §4.1):
// Blake2b-8(nonce ‖ root), interpreted little-endian, must be >= threshold.
func (w Work) Validate(root []byte, threshold Threshold) bool {
	return w.Value(root) >= uint64(threshold)
}

// Value computes the little-endian work value for w against root, without
// comparing it to any threshold. Exposed so callers can log/inspect it.
func (w Work) Value(root []byte) uint64 {
	h, _ := blake2b.New(WorkSize, nil)
	h.Write(w[:])
	h.Write(root)
	sum := h.Sum(nil)
	return binary.LittleEndian.Uint64(sum)
}

// WorkRoot computes the PoW root for a block: previous hash for non-opens,
// account for opens (spec §4.1).
func WorkRoot(previous primitives.BlockHash, account primitives.Account) []byte {
	if !previous.IsZero() {
		return previous[:]
	}
	return account[:]
}
