package primitives

// Epoch is a versioned upgrade to the block-processing rules on an account
// (spec §3, GLOSSARY). The ladder is closed and ordered; epochs may only
// advance sequentially on any given account (spec §4.3.14).
type Epoch int8

const (
	// EpochInvalid marks a block whose epoch link does not match any known
	// epoch marker, or an account whose epoch has not been determined yet.
	EpochInvalid Epoch = -1
	// EpochUnopened is the implicit epoch of an account with no blocks.
	EpochUnopened Epoch = 0
	Epoch0        Epoch = 1
	Epoch1        Epoch = 2
	Epoch2        Epoch = 3
)

// maxEpoch is the highest epoch this build understands.
const maxEpoch = Epoch2

func (e Epoch) String() string {
	switch e {
	case EpochInvalid:
		return "invalid"
	case EpochUnopened:
		return "unopened"
	case Epoch0:
		return "epoch_0"
	case Epoch1:
		return "epoch_1"
	case Epoch2:
		return "epoch_2"
	default:
		return "unknown"
	}
}

// IsSequential reports whether moving from "from" to "to" advances the
// epoch ladder by exactly one step, or leaves it unchanged. A receive that
// implicitly upgrades an account's epoch may not skip a rung (spec §4.3.14,
// decided explicitly in SPEC_FULL.md's Open Question #2).
func IsSequential(from, to Epoch) bool {
	if to == from {
		return true
	}
	return to == from+1 && to <= maxEpoch
}
