// Package chainparams holds the process-wide, immutable network selection
// described in spec §4.1, §6 and §9 ("Global singletons... initialized from
// the selected network at startup; pass by shared read-only handle rather
// than via ambient globals"). It plays the role the teacher's
// config.GenesisConfig plays for a single chain ID, generalized to the four
// compile-time networks spec §4.1 names.
package chainparams

import (
	"fmt"

	"github.com/nanospec/nanocore/crypto"
	"github.com/nanospec/nanocore/primitives"
)

// Network selects genesis, epoch signers, PoW thresholds and default ports
// (spec §6 config table, row "network").
type Network uint8

const (
	Live Network = iota
	Beta
	Dev
	Test
)

func (n Network) String() string {
	switch n {
	case Live:
		return "live"
	case Beta:
		return "beta"
	case Dev:
		return "dev"
	case Test:
		return "test"
	default:
		return "unknown"
	}
}

// workThresholds is the (epoch, kind) -> threshold table (spec §4.1).
type workThresholds map[primitives.Epoch]map[primitives.WorkKind]crypto.Threshold

// Params is the immutable bundle of network constants. A node holds one
// *Params for its lifetime; it is never mutated after Load returns (spec §9
// "Global singletons").
type Params struct {
	Network Network

	// GenesisAccount is the account that owns the genesis open block.
	GenesisAccount primitives.Account
	// GenesisBlockHash is the hash of the genesis open block, used as the
	// canonical root of the ledger.
	GenesisBlockHash primitives.BlockHash
	// GenesisAmount is the total supply created by the genesis block; the
	// conservation invariant (spec §3) ties every later balance to this.
	GenesisAmount primitives.Amount

	// EpochSigners maps each epoch above Epoch0 to the account whose key
	// must countersign that epoch's upgrade blocks (spec §3 "Epoch").
	EpochSigners map[primitives.Epoch]primitives.Account

	// EpochLinks maps each epoch above Epoch0 to its epoch-link marker hash
	// (spec §3 "Block... link (destination, or source, or epoch marker)").
	EpochLinks map[primitives.Epoch]primitives.BlockHash

	work workThresholds

	PeeringPort int
}

// EpochLinkFor returns the epoch a link hash marks, or EpochInvalid if link
// does not match any configured epoch marker.
func (p *Params) EpochLinkFor(link primitives.BlockHash) primitives.Epoch {
	for epoch, marker := range p.EpochLinks {
		if marker == link {
			return epoch
		}
	}
	return primitives.EpochInvalid
}

// Threshold returns the PoW threshold for (epoch, kind). Unconfigured
// combinations fall back to Epoch0's normal-kind threshold, which is always
// the highest bar in the table, so an unrecognized epoch never weakens
// acceptance.
func (p *Params) Threshold(epoch primitives.Epoch, kind primitives.WorkKind) crypto.Threshold {
	if byKind, ok := p.work[epoch]; ok {
		if t, ok := byKind[kind]; ok {
			return t
		}
	}
	return p.work[primitives.Epoch0][primitives.WorkKindNormal]
}

// Load returns the Params for the named network. It is called exactly once
// at startup (spec §6 "network" config option); the result is then threaded
// through every component as a read-only handle.
func Load(n Network) (*Params, error) {
	switch n {
	case Live:
		return liveParams(), nil
	case Beta:
		return betaParams(), nil
	case Dev:
		return devParams(), nil
	case Test:
		return testParams(), nil
	default:
		return nil, fmt.Errorf("chainparams: unknown network %d", n)
	}
}
