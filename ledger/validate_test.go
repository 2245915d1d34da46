package ledger

import (
	"encoding/binary"
	"testing"

	"github.com/nanospec/nanocore/chainparams"
	"github.com/nanospec/nanocore/crypto"
	"github.com/nanospec/nanocore/internal/testutil"
	"github.com/nanospec/nanocore/primitives"
)

// findWork brute-forces a nonce satisfying threshold against root. The test
// network's thresholds (chainparams.Test) are deliberately cheap so this
// terminates in a handful of iterations.
func findWork(t *testing.T, root []byte, threshold crypto.Threshold) crypto.Work {
	t.Helper()
	var w crypto.Work
	for n := uint64(0); n < 1_000_000; n++ {
		binary.LittleEndian.PutUint64(w[:], n)
		if w.Validate(root, threshold) {
			return w
		}
	}
	t.Fatalf("no work found under threshold %#x", uint64(threshold))
	return w
}

// fixture seeds a fresh store with a genesis account whose private key the
// test controls (chainparams hardcodes a placeholder genesis public key
// with no matching private key, so ordinary owner-signed spends from it
// can't be produced otherwise), plus a test-controlled Epoch1 signer
// keypair so epoch-upgrade scenarios can be exercised too.
type fixture struct {
	t      *testing.T
	db     *testutil.MemDB
	params *chainparams.Params

	genesisPriv    crypto.PrivateKey
	genesisHead    primitives.BlockHash
	genesisBalance primitives.Amount

	epoch1Priv crypto.PrivateKey
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	params, err := chainparams.Load(chainparams.Test)
	if err != nil {
		t.Fatalf("chainparams.Load: %v", err)
	}

	genesisPriv, genesisPub, err := crypto.GenerateKeyPair()
	if err != nil {
		t.Fatalf("GenerateKeyPair: %v", err)
	}
	params.GenesisAccount = genesisPub.Account()

	epoch1Priv, epoch1Pub, err := crypto.GenerateKeyPair()
	if err != nil {
		t.Fatalf("GenerateKeyPair: %v", err)
	}
	params.EpochSigners[primitives.Epoch1] = epoch1Pub.Account()

	db := testutil.NewMemDB()
	genesis, err := SeedGenesis(db, params)
	if err != nil {
		t.Fatalf("SeedGenesis: %v", err)
	}

	return &fixture{
		t:              t,
		db:             db,
		params:         params,
		genesisPriv:    genesisPriv,
		genesisHead:    genesis.Head,
		genesisBalance: genesis.Balance,
		epoch1Priv:     epoch1Priv,
	}
}

// apply runs block through Validate and, on success, Store.Apply+Commit, so
// later blocks in the same test see its effects.
func (f *fixture) apply(block Block) (*InsertInstructions, error) {
	f.t.Helper()
	s := NewStore(f.db)
	view, err := s.ViewFor(block, 1_000_000)
	if err != nil {
		f.t.Fatalf("ViewFor: %v", err)
	}
	instr, err := Validate(block, view, f.params)
	if err != nil {
		return nil, err
	}
	if err := s.Apply(instr); err != nil {
		f.t.Fatalf("Apply: %v", err)
	}
	if err := s.Commit(); err != nil {
		f.t.Fatalf("Commit: %v", err)
	}
	return instr, nil
}

// send issues a genesis-signed send of amount to dest, applying it and
// advancing the fixture's notion of the genesis frontier.
func (f *fixture) send(dest primitives.Account, amount primitives.Amount) *StateBlock {
	f.t.Helper()
	newBalance := f.genesisBalance.Sub(amount)
	blk := &StateBlock{
		Acct:           f.params.GenesisAccount,
		Prev:           f.genesisHead,
		Representative: f.params.GenesisAccount,
		Balance:        newBalance,
		Link:           primitives.BlockHash(dest),
	}
	blk.Sig = crypto.Sign(f.genesisPriv, blk.Hash())
	blk.W = findWork(f.t, crypto.WorkRoot(blk.Prev, blk.Acct), f.params.Threshold(primitives.Epoch0, primitives.WorkKindNormal))
	if _, err := f.apply(blk); err != nil {
		f.t.Fatalf("send rejected: %v", err)
	}
	f.genesisHead = blk.Hash()
	f.genesisBalance = newBalance
	return blk
}

// epochUpgrade upgrades genesis from its current epoch to target, signed by
// the matching epoch signer, leaving balance and representative unchanged.
func (f *fixture) epochUpgrade(target primitives.Epoch, signer crypto.PrivateKey) *StateBlock {
	f.t.Helper()
	blk := &StateBlock{
		Acct:           f.params.GenesisAccount,
		Prev:           f.genesisHead,
		Representative: f.params.GenesisAccount,
		Balance:        f.genesisBalance,
		Link:           f.params.EpochLinks[target],
	}
	blk.Sig = crypto.Sign(signer, blk.Hash())
	blk.W = findWork(f.t, crypto.WorkRoot(blk.Prev, blk.Acct), f.params.Threshold(target, primitives.WorkKindReceive))
	if _, err := f.apply(blk); err != nil {
		f.t.Fatalf("epoch upgrade to %v rejected: %v", target, err)
	}
	f.genesisHead = blk.Hash()
	return blk
}

// Scenario 1 (spec §8): upgrading genesis (Epoch0) to Epoch1 via a
// zero-balance-change, zero-rep-change state block signed by the Epoch1
// signer is accepted and records epoch=Epoch1, is_epoch=true,
// source_epoch=Epoch0.
func TestEpochUpgradeAccepted(t *testing.T) {
	f := newFixture(t)
	link := f.params.EpochLinks[primitives.Epoch1]
	blk := &StateBlock{
		Acct:           f.params.GenesisAccount,
		Prev:           f.genesisHead,
		Representative: f.params.GenesisAccount,
		Balance:        f.genesisBalance,
		Link:           link,
	}
	blk.Sig = crypto.Sign(f.epoch1Priv, blk.Hash())
	blk.W = findWork(t, crypto.WorkRoot(blk.Prev, blk.Acct), f.params.Threshold(primitives.Epoch1, primitives.WorkKindReceive))

	instr, err := f.apply(blk)
	if err != nil {
		t.Fatalf("expected epoch-1 upgrade to be accepted, got %v", err)
	}
	if instr.NewAccount.Epoch != primitives.Epoch1 {
		t.Errorf("account epoch = %v, want Epoch1", instr.NewAccount.Epoch)
	}
	if !instr.NewSideband.Details.IsEpoch {
		t.Errorf("sideband IsEpoch = false, want true")
	}
	if instr.NewSideband.SourceEpoch != primitives.Epoch0 {
		t.Errorf("sideband SourceEpoch = %v, want Epoch0", instr.NewSideband.SourceEpoch)
	}
}

// Scenario 2 (spec §8): a second epoch-1 block submitted on an account
// already at Epoch1 is rejected with BlockPosition, not silently accepted
// as a no-op.
func TestDoubleEpochUpgradeRejected(t *testing.T) {
	f := newFixture(t)
	f.epochUpgrade(primitives.Epoch1, f.epoch1Priv)

	link := f.params.EpochLinks[primitives.Epoch1]
	second := &StateBlock{
		Acct:           f.params.GenesisAccount,
		Prev:           f.genesisHead,
		Representative: f.params.GenesisAccount,
		Balance:        f.genesisBalance,
		Link:           link,
	}
	second.Sig = crypto.Sign(f.epoch1Priv, second.Hash())
	second.W = findWork(t, crypto.WorkRoot(second.Prev, second.Acct), f.params.Threshold(primitives.Epoch1, primitives.WorkKindReceive))

	_, err := f.apply(second)
	if err != BlockPosition {
		t.Fatalf("second epoch-1 upgrade error = %v, want BlockPosition", err)
	}
}

// Scenario 3 (spec §8): once an account's head is a state (epoch) block, a
// legacy receive can never extend it again.
func TestLegacyReceiveAfterEpochUpgradeRejected(t *testing.T) {
	f := newFixture(t)
	f.epochUpgrade(primitives.Epoch1, f.epoch1Priv)

	lr := (&LegacyBlock{Kind: BlockTypeLegacyReceive, Prev: f.genesisHead, Source: primitives.BlockHash{0x01}}).WithAccount(f.params.GenesisAccount)
	lr.Sig = crypto.Sign(f.genesisPriv, lr.Hash())
	lr.W = findWork(t, crypto.WorkRoot(lr.Prev, lr.Account()), f.params.Threshold(primitives.Epoch1, primitives.WorkKindReceive))

	_, err := f.apply(lr)
	if err != BlockPosition {
		t.Fatalf("legacy receive after upgrade error = %v, want BlockPosition", err)
	}
}

// Scenario 4 (spec §8): a receive against a pending entry recorded at a
// higher epoch than the receiver implicitly upgrades the receiver.
func TestReceiveUpgradesReceiverEpoch(t *testing.T) {
	f := newFixture(t)
	f.epochUpgrade(primitives.Epoch1, f.epoch1Priv)

	receiverPriv, receiverPub, err := crypto.GenerateKeyPair()
	if err != nil {
		t.Fatalf("GenerateKeyPair: %v", err)
	}
	receiver := receiverPub.Account()

	sendAmount := primitives.AmountFromUint64(10)
	sendBlk := f.send(receiver, sendAmount)

	open := &StateBlock{Acct: receiver, Representative: receiver, Balance: sendAmount, Link: sendBlk.Hash()}
	open.Sig = crypto.Sign(receiverPriv, open.Hash())
	open.W = findWork(t, crypto.WorkRoot(open.Prev, open.Acct), f.params.Threshold(primitives.Epoch0, primitives.WorkKindReceive))

	instr, err := f.apply(open)
	if err != nil {
		t.Fatalf("receive rejected: %v", err)
	}
	if instr.NewAccount.Epoch != primitives.Epoch1 {
		t.Errorf("receiver epoch = %v, want Epoch1", instr.NewAccount.Epoch)
	}
	if instr.NewSideband.SourceEpoch != primitives.Epoch1 {
		t.Errorf("receive sideband SourceEpoch = %v, want Epoch1", instr.NewSideband.SourceEpoch)
	}
}

// Scenario 5 (spec §8): two sends from the same account with the same
// previous fork; the first wins, the second is rejected.
func TestForkDetection(t *testing.T) {
	f := newFixture(t)
	_, destAPub, err := crypto.GenerateKeyPair()
	if err != nil {
		t.Fatalf("GenerateKeyPair: %v", err)
	}
	_, destBPub, err := crypto.GenerateKeyPair()
	if err != nil {
		t.Fatalf("GenerateKeyPair: %v", err)
	}

	originalPrev := f.genesisHead
	amount := primitives.AmountFromUint64(5)

	s1 := &StateBlock{Acct: f.params.GenesisAccount, Prev: originalPrev, Representative: f.params.GenesisAccount, Balance: f.genesisBalance.Sub(amount), Link: primitives.BlockHash(destAPub.Account())}
	s1.Sig = crypto.Sign(f.genesisPriv, s1.Hash())
	s1.W = findWork(t, crypto.WorkRoot(s1.Prev, s1.Acct), f.params.Threshold(primitives.Epoch0, primitives.WorkKindNormal))
	if _, err := f.apply(s1); err != nil {
		t.Fatalf("s1 rejected: %v", err)
	}

	s2 := &StateBlock{Acct: f.params.GenesisAccount, Prev: originalPrev, Representative: f.params.GenesisAccount, Balance: f.genesisBalance.Sub(amount), Link: primitives.BlockHash(destBPub.Account())}
	s2.Sig = crypto.Sign(f.genesisPriv, s2.Hash())
	s2.W = findWork(t, crypto.WorkRoot(s2.Prev, s2.Acct), f.params.Threshold(primitives.Epoch0, primitives.WorkKindNormal))
	_, err = f.apply(s2)
	if err != Fork {
		t.Fatalf("s2 error = %v, want Fork", err)
	}
}
