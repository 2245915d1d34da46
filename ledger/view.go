package ledger

import "github.com/nanospec/nanocore/primitives"

// View is the read-only ledger snapshot the validator needs (spec §4.3
// "Input: candidate block, and a 'ledger view'..."). It is assembled by the
// caller (Store.ViewFor) from whatever the block references, and contains
// no live DB handle: Validate is a pure function over it.
type View struct {
	// BlockExists reports whether the candidate's own hash is already
	// present in the blocks table.
	BlockExists bool

	// Previous is the block referenced by the candidate's previous field,
	// or nil if the candidate is an open (previous is zero) or the
	// reference is unresolved.
	Previous Block
	// PreviousKnown distinguishes "previous is the zero hash" (an open)
	// from "previous was referenced but the frontier/block lookup
	// failed" — the latter is a GapPrevious, the former is not an error
	// at all.
	PreviousKnown bool

	// AccountInfo is the account's current row, or nil if unopened.
	AccountInfo *AccountInfo

	// LegacyFrontierAccount is the account the frontier table maps the
	// candidate's previous hash to, for legacy non-opens. Zero if absent.
	LegacyFrontierAccount primitives.Account
	LegacyFrontierExists  bool

	// Pending is the pending entry keyed by (this account, the
	// candidate's link), if any.
	Pending      *PendingEntry
	PendingExists bool
	// AnyPendingExists reports whether any pending entry at all exists
	// for the account, used by the epoch-open precheck (spec §4.3 rule
	// 14, "open-as-epoch requires a pending entry... on the account").
	AnyPendingExists bool

	// SourceBlockExists reports whether the link's source block exists
	// (or is recorded pruned) — spec §4.3 rule 10.
	SourceBlockExists bool

	// WallClockSeconds is the validator's notion of "now", threaded in so
	// Validate stays a pure function (spec §4.3 "wall-clock seconds").
	WallClockSeconds uint64
}
