// Package primitives defines the fixed-width wire types shared by every
// other package in this module: accounts, block hashes, signatures, 128-bit
// balances and the epoch ladder. Nothing in this package performs I/O.
package primitives

import (
	"encoding/hex"
	"fmt"
	"math/big"
)

// AccountSize is the width of an ed25519 public key used as an account
// identifier.
const AccountSize = 32

// Account identifies a participant on the ledger: a 32-byte ed25519 public
// key. The zero Account is the reserved "burn" account (spec §4.3.6).
type Account [AccountSize]byte

// IsZero reports whether a is the all-zero burn account.
func (a Account) IsZero() bool {
	return a == Account{}
}

// Hex returns the lower-case hex encoding of the raw key, used internally
// (store keys, logs). The module has no human-facing base-32 + checksum
// encoding.
func (a Account) Hex() string {
	return hex.EncodeToString(a[:])
}

func (a Account) String() string {
	return a.Hex()
}

// AccountFromHex decodes a hex-encoded 32-byte account.
func AccountFromHex(s string) (Account, error) {
	var a Account
	b, err := hex.DecodeString(s)
	if err != nil {
		return a, fmt.Errorf("invalid account hex: %w", err)
	}
	if len(b) != AccountSize {
		return a, fmt.Errorf("account must be %d bytes, got %d", AccountSize, len(b))
	}
	copy(a[:], b)
	return a, nil
}

// HashSize is the width of a Blake2b-256 block hash.
const HashSize = 32

// BlockHash is the Blake2b-256 hash of a block's preimage (spec §4.1).
type BlockHash [HashSize]byte

// IsZero reports whether h is the zero hash, used as "no previous" on open
// blocks and as "no source" on blocks without a link.
func (h BlockHash) IsZero() bool {
	return h == BlockHash{}
}

func (h BlockHash) Hex() string {
	return hex.EncodeToString(h[:])
}

func (h BlockHash) String() string {
	return h.Hex()
}

// BlockHashFromHex decodes a hex-encoded block hash.
func BlockHashFromHex(s string) (BlockHash, error) {
	var h BlockHash
	b, err := hex.DecodeString(s)
	if err != nil {
		return h, fmt.Errorf("invalid hash hex: %w", err)
	}
	if len(b) != HashSize {
		return h, fmt.Errorf("hash must be %d bytes, got %d", HashSize, len(b))
	}
	copy(h[:], b)
	return h, nil
}

// SignatureSize is the width of an ed25519 signature.
const SignatureSize = 64

// Signature is an ed25519 signature over a block or vote hash.
type Signature [SignatureSize]byte

func (s Signature) Hex() string { return hex.EncodeToString(s[:]) }

// AmountSize is the width of a 128-bit balance, big-endian on the wire and
// in hash preimages (spec §4.1).
const AmountSize = 16

// Amount is a 128-bit unsigned balance. Arithmetic is delegated to
// math/big.Int; no example repo in the retrieval pack ships a readable
// fixed-width uint128 type to imitate (EXCCoin-exccd's math/uint256 package
// is named in its go.mod but no source for it was retrieved), so this one
// leaf numeric type is built on the standard library — see DESIGN.md.
type Amount [AmountSize]byte

// ZeroAmount is the additive identity.
var ZeroAmount Amount

// Big returns amt as a *big.Int.
func (amt Amount) Big() *big.Int {
	return new(big.Int).SetBytes(amt[:])
}

// AmountFromBig encodes v as a big-endian 128-bit Amount. v must be
// non-negative and fit in 128 bits; callers in this module never construct
// out-of-range amounts because §3's conservation invariant bounds every
// balance by the genesis supply.
func AmountFromBig(v *big.Int) Amount {
	var amt Amount
	b := v.Bytes()
	if len(b) > AmountSize {
		panic("primitives: amount overflows 128 bits")
	}
	copy(amt[AmountSize-len(b):], b)
	return amt
}

// AmountFromUint64 is a convenience constructor for small amounts (genesis
// allocations, test fixtures).
func AmountFromUint64(v uint64) Amount {
	return AmountFromBig(new(big.Int).SetUint64(v))
}

// Add returns amt + other.
func (amt Amount) Add(other Amount) Amount {
	return AmountFromBig(new(big.Int).Add(amt.Big(), other.Big()))
}

// Sub returns amt - other. Panics on underflow: callers must check Cmp
// first (the validator never subtracts without having checked sufficiency).
func (amt Amount) Sub(other Amount) Amount {
	r := new(big.Int).Sub(amt.Big(), other.Big())
	if r.Sign() < 0 {
		panic("primitives: amount underflow")
	}
	return AmountFromBig(r)
}

// Cmp compares amt to other: -1, 0, or 1.
func (amt Amount) Cmp(other Amount) int {
	return amt.Big().Cmp(other.Big())
}

// IsZero reports whether amt is zero.
func (amt Amount) IsZero() bool {
	return amt == ZeroAmount
}

func (amt Amount) String() string {
	return amt.Big().String()
}
