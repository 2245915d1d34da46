package ledger

import (
	"github.com/nanospec/nanocore/chainparams"
	"github.com/nanospec/nanocore/primitives"
	"github.com/nanospec/nanocore/store"
)

// SeedGenesis idempotently writes the network's genesis account directly
// into db, bypassing Validate/Apply entirely. Genesis is a network-wide
// constant fixed at compile time (spec §9 "Global singletons... initialized
// from the selected network at startup"), not a block that arrived from a
// peer, so it has no meaningful signature or work to verify against — the
// same way the original implementation special-cases its hardcoded genesis
// block instead of running it through ordinary block processing.
//
// Returns the seeded AccountInfo (freshly written, or the existing one if
// genesis was already seeded), so the caller can fold its balance into a
// freshly constructed WeightTable.
func SeedGenesis(db store.DB, params *chainparams.Params) (*AccountInfo, error) {
	lstore := NewStore(db)

	if info, err := lstore.GetAccountInfo(params.GenesisAccount); err == nil {
		return info, nil
	} else if err != store.ErrNotFound {
		return nil, err
	}

	hash := params.GenesisBlockHash
	blk := &StateBlock{
		Acct:           params.GenesisAccount,
		Representative: params.GenesisAccount,
		Balance:        params.GenesisAmount,
	}
	sb := Sideband{
		Height:  1,
		Account: params.GenesisAccount,
		Balance: params.GenesisAmount,
		Details: Details{Epoch: primitives.Epoch0},
	}
	blockBytes, err := EncodeBlock(blk)
	if err != nil {
		return nil, err
	}
	lstore.txn.Set(store.BlocksKey(hash), append(blockBytes, EncodeSideband(&sb)...))

	info := AccountInfo{
		Head:           hash,
		Open:           hash,
		Representative: params.GenesisAccount,
		Balance:        params.GenesisAmount,
		BlockCount:     1,
		Epoch:          primitives.Epoch0,
	}
	lstore.txn.Set(store.AccountsKey(params.GenesisAccount), EncodeAccountInfo(&info))

	// Genesis is cemented from birth: there is no prior state for anyone
	// to fork against, so spec §3's "cemented block is never... forked
	// past" invariant holds for it trivially from height 1 onward.
	lstore.SetConfirmationHeight(params.GenesisAccount, ConfirmationHeight{Height: 1, Frontier: hash})

	if err := lstore.Commit(); err != nil {
		return nil, err
	}
	return &info, nil
}
