package primitives

// WorkKind selects which entry of the (epoch, kind) threshold table
// (spec §4.1, §4.3.12) applies to a block: "Sufficient PoW against
// threshold selected by (epoch, is_receive, is_send, is_epoch)".
type WorkKind int8

const (
	// WorkKindNormal covers sends and changes: the base (higher)
	// difficulty.
	WorkKindNormal WorkKind = iota
	// WorkKindReceive covers receives and opens (legacy and state) and
	// epoch blocks: the relaxed (lower) difficulty introduced from Epoch1
	// onward.
	WorkKindReceive
)
