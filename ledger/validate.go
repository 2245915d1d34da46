package ledger

import (
	"github.com/nanospec/nanocore/chainparams"
	"github.com/nanospec/nanocore/crypto"
	"github.com/nanospec/nanocore/primitives"
)

// Validate decides whether block is a legal extension of the account
// history described by view, producing either InsertInstructions or one of
// the typed errors in errors.go (spec §4.3). It performs no I/O: every fact
// it needs about the rest of the ledger must already be in view.
//
// The fourteen checks run in the order spec §4.3 specifies; the first
// failure short-circuits the rest ("Tie-breaks: when two rules could fire,
// the order above is normative").
func Validate(block Block, view *View, params *chainparams.Params) (*InsertInstructions, error) {
	v := &validator{block: block, view: view, params: params}

	if err := v.epochPreChecks(); err != nil {
		return nil, err
	}
	if err := v.duplicate(); err != nil {
		return nil, err
	}
	if err := v.predecessorWellFormed(); err != nil {
		return nil, err
	}
	if err := v.frontierExists(); err != nil {
		return nil, err
	}
	if err := v.signature(); err != nil {
		return nil, err
	}
	if err := v.burnAccount(); err != nil {
		return nil, err
	}
	if err := v.accountExists(); err != nil {
		return nil, err
	}
	if err := v.noDoubleOpen(); err != nil {
		return nil, err
	}
	if err := v.previousIsHead(); err != nil {
		return nil, err
	}
	if err := v.openHasLink(); err != nil {
		return nil, err
	}
	if err := v.receiveCorrectness(); err != nil {
		return nil, err
	}
	if err := v.sufficientWork(); err != nil {
		return nil, err
	}
	if err := v.noNegativeSpend(); err != nil {
		return nil, err
	}
	if err := v.epochBlockConstraints(); err != nil {
		return nil, err
	}

	return v.buildInstructions(), nil
}

// validator carries the block, its ledger view and derived facts that the
// checks fill in as they run (link epoch in rule 5, old
// balance/representative in rule 7, subtype in rule 11) so later checks can
// read them instead of recomputing. It is discarded after one Validate call.
type validator struct {
	block  Block
	view   *View
	params *chainparams.Params

	oldBalance primitives.Amount
	oldRep     primitives.Account
	linkEpoch  primitives.Epoch // epoch the candidate's link marks, or EpochInvalid
	isEpoch    bool
	subtype    StateSubtype
}

func (v *validator) state() (*StateBlock, bool) {
	sb, ok := v.block.(*StateBlock)
	return sb, ok
}

func (v *validator) legacy() (*LegacyBlock, bool) {
	lb, ok := v.block.(*LegacyBlock)
	return lb, ok
}

// hasEpochLink reports whether the candidate's link equals a configured
// epoch marker, regardless of whether it is actually an epoch block (spec
// §4.3 rule 1 needs this before it knows the answer for sure).
func (v *validator) hasEpochLink() bool {
	sb, ok := v.state()
	if !ok {
		return false
	}
	return v.params.EpochLinkFor(sb.Link) != primitives.EpochInvalid
}

// 1. Epoch pre-checks.
func (v *validator) epochPreChecks() error {
	sb, ok := v.state()
	if !ok || !v.hasEpochLink() {
		return nil
	}
	if !sb.Prev.IsZero() && !v.view.PreviousKnown {
		return GapPrevious
	}
	ownerOK := crypto.Verify(crypto.KeyFromAccount(sb.Acct), sb.Hash(), sb.Sig) == nil
	signerOK := false
	epoch := v.params.EpochLinkFor(sb.Link)
	if signer, exists := v.params.EpochSigners[epoch]; exists {
		signerOK = crypto.Verify(crypto.KeyFromAccount(signer), sb.Hash(), sb.Sig) == nil
	}
	if !ownerOK && !signerOK {
		return BadSignature
	}
	return nil
}

// 2. Duplicate.
func (v *validator) duplicate() error {
	if v.view.BlockExists {
		return Old
	}
	return nil
}

// 3. Predecessor well-formedness.
func (v *validator) predecessorWellFormed() error {
	lb, ok := v.legacy()
	if !ok || lb.IsOpen() || v.view.Previous == nil {
		return nil
	}
	// Once an account's head is a state block, nothing legacy can extend
	// it again — every legacy variant is fixed to legacy predecessors
	// (spec §4.3 rule 3, "a legacy change may not follow a state block",
	// generalized to the whole legacy family rather than change alone).
	if _, isState := v.view.Previous.(*StateBlock); isState {
		return BlockPosition
	}
	return nil
}

// 4. Frontier existence for legacy non-opens.
func (v *validator) frontierExists() error {
	lb, ok := v.legacy()
	if !ok || lb.IsOpen() {
		return nil
	}
	if !v.view.LegacyFrontierExists {
		return GapPrevious
	}
	return nil
}

// 5. Signature.
func (v *validator) signature() error {
	sb, isState := v.state()
	if !isState {
		lb := v.block.(*LegacyBlock)
		if crypto.Verify(crypto.KeyFromAccount(lb.Account()), lb.Hash(), lb.Sig) != nil {
			return BadSignature
		}
		return nil
	}

	hash := sb.Hash()
	ownerOK := crypto.Verify(crypto.KeyFromAccount(sb.Acct), hash, sb.Sig) == nil

	epoch := v.params.EpochLinkFor(sb.Link)
	signerOK := false
	if epoch != primitives.EpochInvalid {
		if signer, exists := v.params.EpochSigners[epoch]; exists {
			signerOK = crypto.Verify(crypto.KeyFromAccount(signer), hash, sb.Sig) == nil
		}
	}

	switch {
	case signerOK:
		v.isEpoch = true
		v.linkEpoch = epoch
	case ownerOK:
		// Fine; not necessarily an epoch block even if the link matched a
		// marker, since the owner is always allowed to use any link value
		// (e.g. as a destination that happens to collide, vanishingly
		// unlikely in practice but not ruled out by this layer).
	default:
		return BadSignature
	}
	return nil
}

// 6. Burn account.
func (v *validator) burnAccount() error {
	if v.block.Account().IsZero() {
		return OpenedBurnAccount
	}
	return nil
}

// 7. Account existence for non-open blocks.
func (v *validator) accountExists() error {
	if v.isOpen() {
		return nil
	}
	if v.view.AccountInfo == nil {
		return GapPrevious
	}
	v.oldBalance = v.view.AccountInfo.Balance
	v.oldRep = v.view.AccountInfo.Representative
	return nil
}

func (v *validator) isOpen() bool {
	if sb, ok := v.state(); ok {
		return sb.IsOpen()
	}
	lb := v.block.(*LegacyBlock)
	return lb.IsOpen()
}

// 8. No double-open.
func (v *validator) noDoubleOpen() error {
	if v.isOpen() && v.view.AccountInfo != nil {
		return Fork
	}
	return nil
}

// 9. Previous == head for non-opens.
func (v *validator) previousIsHead() error {
	if v.isOpen() {
		return nil
	}
	if v.view.AccountInfo.Head != v.block.Previous() {
		return Fork
	}
	return nil
}

// 10. Open has link.
func (v *validator) openHasLink() error {
	if !v.isOpen() {
		return nil
	}
	link := Link(v.block)
	if link.IsZero() {
		return nil
	}
	if !v.view.SourceBlockExists {
		return GapSource
	}
	return nil
}

// 11. Receive correctness.
func (v *validator) receiveCorrectness() error {
	sb, isState := v.state()
	if isState {
		v.subtype = sb.Subtype(v.oldBalance, v.linkEpochForSubtype())
	}
	if !v.isReceiveLike() {
		return nil
	}
	if !v.view.PendingExists {
		return Unreceivable
	}
	pending := v.view.Pending
	var newBalance primitives.Amount
	if isState {
		newBalance = sb.Balance
	} else {
		newBalance = v.oldBalance.Add(pending.Amount)
	}
	expected := v.oldBalance.Add(pending.Amount)
	if newBalance.Cmp(expected) != 0 {
		return BalanceMismatch
	}
	return nil
}

// linkEpochForSubtype returns the epoch a state block's link marks, used
// only to tell Subtype() whether this is an epoch-marker link; receive
// detection itself is purely a balance comparison.
func (v *validator) linkEpochForSubtype() primitives.Epoch {
	sb, ok := v.state()
	if !ok {
		return primitives.EpochInvalid
	}
	return v.params.EpochLinkFor(sb.Link)
}

func (v *validator) isReceiveLike() bool {
	if sb, ok := v.state(); ok {
		if v.isEpoch {
			return false
		}
		return v.subtype == StateSubtypeReceive || (sb.IsOpen() && !sb.Link.IsZero())
	}
	lb := v.block.(*LegacyBlock)
	return lb.Kind == BlockTypeLegacyReceive || lb.Kind == BlockTypeLegacyOpen
}

func (v *validator) isSendLike() bool {
	if sb, ok := v.state(); ok {
		return !v.isEpoch && v.subtype == StateSubtypeSend
	}
	lb := v.block.(*LegacyBlock)
	return lb.Kind == BlockTypeLegacySend
}

// 12. Sufficient PoW.
func (v *validator) sufficientWork() error {
	root := crypto.WorkRoot(v.block.Previous(), v.block.Account())
	kind := primitives.WorkKindNormal
	if v.isReceiveLike() || v.isEpoch {
		kind = primitives.WorkKindReceive
	}
	epoch := v.resultingEpoch()
	if !v.block.Work().Validate(root, v.params.Threshold(epoch, kind)) {
		return InsufficientWork
	}
	return nil
}

// resultingEpoch is the epoch the account will be at after this block is
// applied, used to pick the PoW threshold and recorded into AccountInfo.
func (v *validator) resultingEpoch() primitives.Epoch {
	if v.isEpoch {
		return v.linkEpoch
	}
	if v.view.AccountInfo != nil {
		upgraded := v.view.AccountInfo.Epoch
		if v.view.PendingExists && v.view.Pending.SourceEpoch > upgraded {
			upgraded = v.view.Pending.SourceEpoch
		}
		return upgraded
	}
	if v.view.PendingExists {
		return v.view.Pending.SourceEpoch
	}
	return primitives.Epoch0
}

// 13. No negative amount on send.
func (v *validator) noNegativeSpend() error {
	if lb, ok := v.legacy(); ok {
		// Legacy has no derived subtype to lean on: its Kind tag is
		// declared directly by the block, so a legacy send's remaining
		// balance must be checked against the prior balance here or
		// nowhere.
		if lb.Kind == BlockTypeLegacySend && lb.Balance.Cmp(v.oldBalance) > 0 {
			return NegativeSpend
		}
		return nil
	}
	sb, ok := v.state()
	if !ok || v.isEpoch {
		return nil
	}
	// Subtype() (called from receiveCorrectness, rule 11, before this rule
	// runs) only classifies StateSubtypeSend when Balance compares strictly
	// less than oldBalance, so the increase arm below can never trigger for
	// a state block; kept as the direct statement of spec §4.3 rule 13
	// rather than relying silently on that derivation holding.
	if v.subtype == StateSubtypeSend && sb.Balance.Cmp(v.oldBalance) > 0 {
		return NegativeSpend
	}
	return nil
}

// 14. Epoch-block constraints, grounded on the original implementation's
// ensure_valid_epoch_block chain (representative unchanged, burn rep on
// open, pending entry required on open, sequential upgrade only, balance
// unchanged). A receive's implicit epoch carry on an existing account is
// held to the same one-rung step.
func (v *validator) epochBlockConstraints() error {
	if !v.isEpoch && v.view.AccountInfo != nil && v.isReceiveLike() &&
		!primitives.IsSequential(v.view.AccountInfo.Epoch, v.resultingEpoch()) {
		return BlockPosition
	}
	sb, ok := v.state()
	if !ok || !v.isEpoch {
		return nil
	}
	if v.view.AccountInfo != nil && sb.Representative != v.oldRep {
		return RepresentativeMismatch
	}
	if sb.IsOpen() && !sb.Representative.IsZero() {
		return RepresentativeMismatch
	}
	if sb.IsOpen() && !v.view.AnyPendingExists {
		return GapEpochOpenPending
	}
	if v.view.AccountInfo != nil {
		// An explicit epoch-signed block must strictly advance the rung:
		// IsSequential alone also accepts to==from, which is the rule a
		// receive's implicit epoch-carry needs (see resultingEpoch), not
		// what a dedicated upgrade block is for. Resubmitting the epoch
		// the account is already at is a position error, not a no-op.
		if v.linkEpoch == v.view.AccountInfo.Epoch || !primitives.IsSequential(v.view.AccountInfo.Epoch, v.linkEpoch) {
			return BlockPosition
		}
	}
	if sb.Balance.Cmp(v.oldBalance) != 0 {
		return BalanceMismatch
	}
	return nil
}

// buildInstructions assembles InsertInstructions from a block that passed
// every check above.
func (v *validator) buildInstructions() *InsertInstructions {
	epoch := v.resultingEpoch()
	height := uint64(1)
	openHash := v.block.Hash()
	if v.view.AccountInfo != nil {
		height = v.view.AccountInfo.BlockCount + 1
		openHash = v.view.AccountInfo.Open
	}

	newRep := v.oldRep
	newBalance := v.oldBalance
	if sb, ok := v.state(); ok {
		newRep = sb.Representative
		newBalance = sb.Balance
	} else {
		lb := v.block.(*LegacyBlock)
		switch lb.Kind {
		case BlockTypeLegacySend:
			newBalance = lb.Balance
		case BlockTypeLegacyOpen:
			newRep = lb.Representative
			newBalance = lb.Balance
		case BlockTypeLegacyChange:
			newRep = lb.Representative
		case BlockTypeLegacyReceive:
			newBalance = v.oldBalance.Add(v.view.Pending.Amount)
		}
	}

	instr := &InsertInstructions{
		Account: v.block.Account(),
		NewAccount: AccountInfo{
			Head:              v.block.Hash(),
			Open:              openHash,
			Representative:    newRep,
			Balance:           newBalance,
			ModifiedTimestamp: v.view.WallClockSeconds,
			BlockCount:        height,
			Epoch:             epoch,
		},
		NewSideband: Sideband{
			Height:    height,
			Timestamp: v.view.WallClockSeconds,
			Account:   v.block.Account(),
			Balance:   newBalance,
			Details: Details{
				Epoch:     epoch,
				IsSend:    v.isSendLike(),
				IsReceive: v.isReceiveLike(),
				IsEpoch:   v.isEpoch,
			},
		},
		Block:             v.block,
		IsEpochBlock:      v.isEpoch,
		OldRepresentative: v.oldRep,
		OldBalance:        v.oldBalance,
	}

	// An explicit epoch upgrade's source_epoch is the rung the account
	// upgraded from; a pending entry, when one backs the block (a receive,
	// or the rarer epoch-open matching a pending of that epoch), overrides
	// it with the pending's own source epoch.
	if v.isEpoch && v.view.AccountInfo != nil {
		instr.NewSideband.SourceEpoch = v.view.AccountInfo.Epoch
	}
	if v.view.PendingExists && (v.isReceiveLike() || v.isEpoch) {
		instr.NewSideband.SourceEpoch = v.view.Pending.SourceEpoch
		instr.DeletePending = &pendingKey{Destination: v.block.Account(), SendHash: Link(v.block)}
	}

	if v.isSendLike() {
		if sb, ok := v.state(); ok {
			instr.CreatePending = &pendingKey{Destination: primitives.Account(sb.Link), SendHash: v.block.Hash()}
			instr.CreatePendingValue = PendingEntry{
				Source:      v.block.Account(),
				Amount:      v.oldBalance.Sub(newBalance),
				SourceEpoch: epoch,
			}
		} else {
			lb := v.block.(*LegacyBlock)
			instr.CreatePending = &pendingKey{Destination: lb.Destination, SendHash: v.block.Hash()}
			instr.CreatePendingValue = PendingEntry{
				Source:      v.block.Account(),
				Amount:      v.oldBalance.Sub(newBalance),
				SourceEpoch: epoch,
			}
		}
	}

	return instr
}
