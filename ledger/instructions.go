package ledger

import "github.com/nanospec/nanocore/primitives"

// InsertInstructions is the validator's successful output: everything the
// inserter needs to apply in one commit (spec §4.3 "Output: either
// InsertInstructions... or a typed error").
type InsertInstructions struct {
	Account     primitives.Account
	NewAccount  AccountInfo
	NewSideband Sideband
	Block       Block

	// DeletePending is the (destination, send hash) pending entry matched
	// by a receive/open, if any.
	DeletePending     *pendingKey
	// CreatePending is the new pending entry a send creates for its
	// destination, if any.
	CreatePending     *pendingKey
	CreatePendingValue PendingEntry

	IsEpochBlock bool

	// OldRepresentative/OldBalance describe the account's state before
	// this block, zero-valued for an open; the inserter uses them to
	// compute the paired representative-weight adjustment (spec §4.4).
	OldRepresentative primitives.Account
	OldBalance        primitives.Amount
}

// pendingKey is the (destination, send hash) pair identifying a pending
// row; unexported because only this package constructs one from validated
// block data.
type pendingKey struct {
	Destination primitives.Account
	SendHash    primitives.BlockHash
}
