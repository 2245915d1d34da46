// Package ledger implements the account-chain block graph: block variants
// and their hash preimages, the pure block validator (spec §4.3), the
// inserter that commits its instructions (spec §4.4), and the typed store
// that backs both (spec §4.2's blocks/accounts/pending/confirmation_height/
// frontiers tables).
package ledger

import (
	"github.com/nanospec/nanocore/crypto"
	"github.com/nanospec/nanocore/primitives"
)

// BlockType distinguishes the five on-wire variants (spec §3 "Block").
type BlockType uint8

const (
	BlockTypeInvalid BlockType = iota
	BlockTypeLegacySend
	BlockTypeLegacyReceive
	BlockTypeLegacyOpen
	BlockTypeLegacyChange
	BlockTypeState
)

func (t BlockType) String() string {
	switch t {
	case BlockTypeLegacySend:
		return "legacy_send"
	case BlockTypeLegacyReceive:
		return "legacy_receive"
	case BlockTypeLegacyOpen:
		return "legacy_open"
	case BlockTypeLegacyChange:
		return "legacy_change"
	case BlockTypeState:
		return "state"
	default:
		return "invalid"
	}
}

// StateSubtype is the derived kind of a state block (spec §3: "State-block
// subtype is derived: balance-decrease ⇒ send, balance-increase ⇒ receive,
// equal balance and link==epoch-marker ⇒ epoch upgrade, otherwise ⇒
// change").
type StateSubtype uint8

const (
	StateSubtypeSend StateSubtype = iota
	StateSubtypeReceive
	StateSubtypeChange
	StateSubtypeEpoch
)

// Block is the common interface every variant satisfies. Account and
// Signature/Work are carried by every variant so the validator and
// inserter never need a type switch just to read them.
type Block interface {
	Type() BlockType
	// Account returns the block's account. For legacy non-open blocks this
	// must be supplied by the caller from the frontier table, since the
	// legacy wire format does not carry it; LegacyBlock.WithAccount binds
	// it before Hash/Verify are meaningful.
	Account() primitives.Account
	Previous() primitives.BlockHash
	Signature() primitives.Signature
	Work() crypto.Work
	// Hash returns the Blake2b-256 hash of the block's preimage (spec
	// §4.1, §6: "hash preimage is the same fields in the same order" as
	// the wire serialization).
	Hash() primitives.BlockHash
}

// StateBlock is the unified variant introduced to replace the four legacy
// ones (spec §3). link carries destination, source, or an epoch marker
// depending on subtype, decided relative to the previous account state by
// Subtype().
type StateBlock struct {
	Acct           primitives.Account
	Prev           primitives.BlockHash
	Representative primitives.Account
	Balance        primitives.Amount
	Link           primitives.BlockHash
	Sig            primitives.Signature
	W              crypto.Work
}

func (b *StateBlock) Type() BlockType                 { return BlockTypeState }
func (b *StateBlock) Account() primitives.Account      { return b.Acct }
func (b *StateBlock) Previous() primitives.BlockHash    { return b.Prev }
func (b *StateBlock) Signature() primitives.Signature  { return b.Sig }
func (b *StateBlock) Work() crypto.Work                { return b.W }

// Hash computes Blake2b-256 over the big-endian concatenation of every
// field in declaration order up to Link, leaving out the signature and the
// work nonce (spec §6 "hash preimage is the same fields in
// the same order" as the state block's wire layout), preceded by a
// constant state-block marker so state-block hashes can never collide with
// a legacy block's hash space.
func (b *StateBlock) Hash() primitives.BlockHash {
	buf := make([]byte, 0, 1+32*5+16)
	buf = append(buf, stateBlockPreamble...)
	buf = append(buf, b.Acct[:]...)
	buf = append(buf, b.Prev[:]...)
	buf = append(buf, b.Representative[:]...)
	buf = append(buf, b.Balance[:]...)
	buf = append(buf, b.Link[:]...)
	return crypto.HashBlock(buf)
}

// stateBlockPreamble is a fixed single byte distinguishing the state block
// preimage namespace, matching the original implementation's use of a
// constant block-type preamble ahead of the state block fields.
var stateBlockPreamble = []byte{byte(BlockTypeState)}

// Subtype derives the state block's kind relative to the account's prior
// balance/representative/epoch (spec §3). oldBalance is the zero Amount for
// an open block.
func (b *StateBlock) Subtype(oldBalance primitives.Amount, epochLink primitives.Epoch) StateSubtype {
	cmp := b.Balance.Cmp(oldBalance)
	if cmp == 0 && epochLink != primitives.EpochInvalid {
		return StateSubtypeEpoch
	}
	if cmp < 0 {
		return StateSubtypeSend
	}
	if cmp > 0 {
		return StateSubtypeReceive
	}
	return StateSubtypeChange
}

// IsOpen reports whether this state block opens the account (zero previous).
func (b *StateBlock) IsOpen() bool { return b.Prev.IsZero() }

// LegacyBlock covers the four pre-"state" variants. Which fields are
// meaningful depends on Kind; unused fields stay zero.
type LegacyBlock struct {
	Kind BlockType // one of BlockTypeLegacySend..BlockTypeLegacyChange

	// account is resolved externally via the frontier table for
	// non-opens, and carried directly for opens; see WithAccount.
	account primitives.Account

	Prev           primitives.BlockHash // send, receive, change
	Destination    primitives.Account   // send
	Balance        primitives.Amount    // send, open
	Source         primitives.BlockHash // receive, open
	Representative primitives.Account   // open, change
	Sig            primitives.Signature
	W              crypto.Work
}

// WithAccount returns a copy of b bound to account, used once the frontier
// lookup (or the open block's own account field) resolves it.
func (b LegacyBlock) WithAccount(account primitives.Account) *LegacyBlock {
	b.account = account
	return &b
}

func (b *LegacyBlock) Type() BlockType                { return b.Kind }
func (b *LegacyBlock) Account() primitives.Account     { return b.account }
func (b *LegacyBlock) Signature() primitives.Signature { return b.Sig }
func (b *LegacyBlock) Work() crypto.Work               { return b.W }

func (b *LegacyBlock) Previous() primitives.BlockHash {
	if b.Kind == BlockTypeLegacyOpen {
		return primitives.BlockHash{}
	}
	return b.Prev
}

// Hash computes the variant-specific preimage (spec §6: "Block
// serialization is big-endian field concatenation in declaration order per
// variant; hash preimage is the same fields in the same order").
func (b *LegacyBlock) Hash() primitives.BlockHash {
	buf := make([]byte, 0, 1+32*3+16)
	buf = append(buf, byte(b.Kind))
	switch b.Kind {
	case BlockTypeLegacySend:
		buf = append(buf, b.Prev[:]...)
		buf = append(buf, b.Destination[:]...)
		buf = append(buf, b.Balance[:]...)
	case BlockTypeLegacyReceive:
		buf = append(buf, b.Prev[:]...)
		buf = append(buf, b.Source[:]...)
	case BlockTypeLegacyOpen:
		buf = append(buf, b.Source[:]...)
		buf = append(buf, b.Representative[:]...)
		buf = append(buf, b.account[:]...)
	case BlockTypeLegacyChange:
		buf = append(buf, b.Prev[:]...)
		buf = append(buf, b.Representative[:]...)
	}
	return crypto.HashBlock(buf)
}

// IsOpen reports whether this legacy block is an open block.
func (b *LegacyBlock) IsOpen() bool { return b.Kind == BlockTypeLegacyOpen }

// Link returns the block's link field in the generalized sense the
// validator needs. For a state block it is the Link field as-is
// (destination, source or epoch marker). For a legacy block it is the
// source block hash for receives/opens and the zero hash for sends and
// changes.
func Link(b Block) primitives.BlockHash {
	switch v := b.(type) {
	case *StateBlock:
		return v.Link
	case *LegacyBlock:
		if v.Kind == BlockTypeLegacyReceive || v.Kind == BlockTypeLegacyOpen {
			return v.Source
		}
	}
	return primitives.BlockHash{}
}
