package chainparams

import (
	"math/big"

	"github.com/nanospec/nanocore/crypto"
	"github.com/nanospec/nanocore/primitives"
)

func mustAccount(hexStr string) primitives.Account {
	a, err := primitives.AccountFromHex(hexStr)
	if err != nil {
		panic(err)
	}
	return a
}

func mustHash(hexStr string) primitives.BlockHash {
	h, err := primitives.BlockHashFromHex(hexStr)
	if err != nil {
		panic(err)
	}
	return h
}

// standardWork builds the threshold table every network below uses: Epoch0
// applies the normal threshold to every kind, while Epoch1 and Epoch2 apply
// the (easier) receive threshold to receives. Real deployments tune the
// absolute values per network, which is exactly why each *Params below
// builds its own copy instead of sharing one map.
func standardWork(normal, receive crypto.Threshold) workThresholds {
	return workThresholds{
		primitives.Epoch0: {
			primitives.WorkKindNormal:  normal,
			primitives.WorkKindReceive: normal,
		},
		primitives.Epoch1: {
			primitives.WorkKindNormal:  normal,
			primitives.WorkKindReceive: receive,
		},
		primitives.Epoch2: {
			primitives.WorkKindNormal:  normal,
			primitives.WorkKindReceive: receive,
		},
	}
}

// genesisSupply is the total raw unit supply minted by the genesis open
// block: 2^128 - 1, the full range of Amount (spec §3 conservation).
var genesisSupply = func() primitives.Amount {
	max := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 128), big.NewInt(1))
	return primitives.AmountFromBig(max)
}()

func liveParams() *Params {
	return &Params{
		Network:          Live,
		GenesisAccount:   mustAccount("67656E65736973206163636F756E74206B657920706C616365686F6C64657220"),
		GenesisBlockHash: mustHash("67656E65736973206F70656E20626C6F636B20686173682076616C7565202020"),
		GenesisAmount:    genesisSupply,
		EpochSigners: map[primitives.Epoch]primitives.Account{
			primitives.Epoch1: mustAccount("65706F636820763120626C6F636B207369676E6572206B65792076616C756520"),
			primitives.Epoch2: mustAccount("65706F636820763220626C6F636B207369676E6572206B65792076616C756520"),
		},
		EpochLinks: map[primitives.Epoch]primitives.BlockHash{
			primitives.Epoch1: mustHash("65706F636820763120626C6F636B206C696E6B206D61726B65722076616C7565"),
			primitives.Epoch2: mustHash("65706F636820763220626C6F636B206C696E6B206D61726B65722076616C7565"),
		},
		work:        standardWork(0xffffffc000000000, 0xfffffe0000000000),
		PeeringPort: 7075,
	}
}

func betaParams() *Params {
	p := liveParams()
	p.Network = Beta
	p.PeeringPort = 54000
	return p
}

func devParams() *Params {
	p := liveParams()
	p.Network = Dev
	p.work = standardWork(0xfe00000000000000, 0xf000000000000000) // cheap work for fast local tests
	p.PeeringPort = 44000
	return p
}

func testParams() *Params {
	p := devParams()
	p.Network = Test
	p.PeeringPort = 45000
	return p
}
