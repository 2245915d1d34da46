package ledger

import "github.com/nanospec/nanocore/primitives"

// Details are the derived per-block flags (spec §3 "Sideband... detail
// flags (is_send, is_receive, is_epoch, epoch number)").
type Details struct {
	Epoch     primitives.Epoch
	IsSend    bool
	IsReceive bool
	IsEpoch   bool
}

// Sideband is per-block derived metadata computed at insert time and
// persisted alongside the block body; it is never re-derived from the
// network (spec §3).
type Sideband struct {
	Height      uint64
	Timestamp   uint64
	Successor   primitives.BlockHash
	Account     primitives.Account
	Balance     primitives.Amount
	Details     Details
	SourceEpoch primitives.Epoch
}
