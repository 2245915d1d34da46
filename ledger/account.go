package ledger

import "github.com/nanospec/nanocore/primitives"

// AccountInfo is the one-row-per-opened-account summary (spec §3 "Account
// info"). Head and Open are block hashes. An unopened account has no
// accounts row, which is why Store.ViewFor leaves View.AccountInfo nil for
// one.
type AccountInfo struct {
	Head               primitives.BlockHash
	Open               primitives.BlockHash
	Representative     primitives.Account
	Balance            primitives.Amount
	ModifiedTimestamp  uint64
	BlockCount         uint64
	Epoch              primitives.Epoch
}

// PendingEntry is a receivable awaiting a matching receive/open (spec §3
// "Pending entry"). The key half (destination, send hash) lives in the
// store key; this is the value half.
type PendingEntry struct {
	Source      primitives.Account
	Amount      primitives.Amount
	SourceEpoch primitives.Epoch
}

// ConfirmationHeight is the per-account cementation watermark (spec §3
// "Confirmation height"). Height is the highest cemented height: blocks at
// or below it are cemented, and Frontier is the block at Height.
type ConfirmationHeight struct {
	Height   uint64
	Frontier primitives.BlockHash
}
