package ledger

import (
	"encoding/binary"
	"fmt"

	"github.com/nanospec/nanocore/primitives"
	"github.com/nanospec/nanocore/store"
)

// Store layers the blocks/accounts/pending/confirmation_height/frontiers
// tables of spec §4.2 on top of a generic store.DB, staging every mutation
// through a store.Txn so one block's worth of writes lands in one commit
// (spec §4.4 "All writes are observable to readers only after commit").
// Grounded on the teacher's StateDB: a dirty/deleted write buffer with
// Snapshot/RevertToSnapshot/Commit, generalized from one game-state
// namespace to this package's typed tables.
type Store struct {
	db  store.DB
	txn *store.Txn
}

// NewStore opens a Store backed by db with a fresh write buffer.
func NewStore(db store.DB) *Store {
	return &Store{db: db, txn: store.NewTxn(db)}
}

// ViewFor assembles the ledger View a block needs for Validate, reading
// through the in-flight Txn so an uncommitted earlier block in the same
// batch is visible to one that depends on it.
func (s *Store) ViewFor(block Block, now uint64) (*View, error) {
	v := &View{WallClockSeconds: now}

	hash := block.Hash()
	if _, err := s.txn.Get(store.BlocksKey(hash)); err == nil {
		v.BlockExists = true
	} else if err != store.ErrNotFound {
		return nil, err
	}

	prev := block.Previous()
	if !prev.IsZero() {
		if pb, err := s.GetBlock(prev); err == nil {
			v.Previous = pb
			v.PreviousKnown = true
		} else if err != store.ErrNotFound {
			return nil, err
		}
	}

	account := block.Account()
	if lb, ok := block.(*LegacyBlock); ok && !lb.IsOpen() {
		if acct, err := s.frontierAccount(prev); err == nil {
			v.LegacyFrontierExists = true
			v.LegacyFrontierAccount = acct
			account = acct
		} else if err != store.ErrNotFound {
			return nil, err
		}
	}

	if info, err := s.GetAccountInfo(account); err == nil {
		v.AccountInfo = info
	} else if err != store.ErrNotFound {
		return nil, err
	}

	link := Link(block)
	if !link.IsZero() {
		if pending, err := s.GetPending(account, link); err == nil {
			v.Pending = pending
			v.PendingExists = true
		} else if err != store.ErrNotFound {
			return nil, err
		}
		if _, err := s.GetBlock(link); err == nil {
			v.SourceBlockExists = true
		} else if _, perr := s.IsPruned(link); perr == nil {
			v.SourceBlockExists = true
		} else if err != store.ErrNotFound {
			return nil, err
		}
	}

	anyPending := false
	if err := s.txn.Iterate(store.PendingPrefixForAccount(account), func(k, val []byte) bool {
		anyPending = true
		return false
	}); err != nil {
		return nil, err
	}
	v.AnyPendingExists = anyPending

	return v, nil
}

// Apply commits instr's effects in one batch: block body + sideband,
// account info, pending create/delete, and frontier bookkeeping for legacy
// variants (spec §4.4). Representative-weight tallies are maintained by the
// caller (blockproc), since they need to be visible across many accounts at
// once rather than staged per-block.
func (s *Store) Apply(instr *InsertInstructions) error {
	hash := instr.Block.Hash()

	blockBytes, err := EncodeBlock(instr.Block)
	if err != nil {
		return fmt.Errorf("ledger: encode block: %w", err)
	}
	sidebandBytes := EncodeSideband(&instr.NewSideband)
	s.txn.Set(store.BlocksKey(hash), append(blockBytes, sidebandBytes...))

	prev := instr.Block.Previous()
	if !prev.IsZero() {
		if err := s.SetSuccessor(prev, hash); err != nil && err != store.ErrNotFound {
			return fmt.Errorf("ledger: set successor: %w", err)
		}
	}

	s.txn.Set(store.AccountsKey(instr.Account), EncodeAccountInfo(&instr.NewAccount))

	if instr.DeletePending != nil {
		s.txn.Delete(store.PendingKey(instr.DeletePending.Destination, instr.DeletePending.SendHash))
	}
	if instr.CreatePending != nil {
		s.txn.Set(store.PendingKey(instr.CreatePending.Destination, instr.CreatePending.SendHash), EncodePendingEntry(&instr.CreatePendingValue))
	}

	if lb, ok := instr.Block.(*LegacyBlock); ok {
		if !lb.Prev.IsZero() {
			s.txn.Delete(store.FrontiersKey(lb.Prev))
		}
		s.txn.Set(store.FrontiersKey(hash), instr.Account[:])
	}

	return nil
}

// Commit flushes every staged write to the underlying DB atomically.
func (s *Store) Commit() error { return s.txn.Commit() }

// Snapshot/RevertToSnapshot expose the Txn's rollback so a caller processing
// several blocks in one batch can unwind just the failing one.
func (s *Store) Snapshot() int                  { return s.txn.Snapshot() }
func (s *Store) RevertToSnapshot(id int) error   { return s.txn.RevertToSnapshot(id) }

func (s *Store) GetBlock(hash primitives.BlockHash) (Block, error) {
	data, err := s.txn.Get(store.BlocksKey(hash))
	if err != nil {
		return nil, err
	}
	return DecodeBlock(data)
}

// GetSideband reads just the sideband half of a blocks-table row.
func (s *Store) GetSideband(hash primitives.BlockHash) (Sideband, error) {
	data, err := s.txn.Get(store.BlocksKey(hash))
	if err != nil {
		return Sideband{}, err
	}
	if len(data) < 1 {
		return Sideband{}, fmt.Errorf("ledger: empty block row")
	}
	n := EncodedBlockSize(BlockType(data[0]))
	if len(data) < n {
		return Sideband{}, fmt.Errorf("ledger: block row shorter than its own tag implies")
	}
	return DecodeSideband(data[n:])
}

// SetSuccessor stages the successor-hash update on block prev's sideband,
// needed whenever a new block extends it (spec §3 "Sideband... successor
// hash").
func (s *Store) SetSuccessor(prev primitives.BlockHash, successor primitives.BlockHash) error {
	data, err := s.txn.Get(store.BlocksKey(prev))
	if err != nil {
		return err
	}
	if len(data) < 1 {
		return fmt.Errorf("ledger: empty block row")
	}
	n := EncodedBlockSize(BlockType(data[0]))
	sb, err := DecodeSideband(data[n:])
	if err != nil {
		return err
	}
	sb.Successor = successor
	out := append(append([]byte{}, data[:n]...), EncodeSideband(&sb)...)
	s.txn.Set(store.BlocksKey(prev), out)
	return nil
}

func (s *Store) GetAccountInfo(account primitives.Account) (*AccountInfo, error) {
	data, err := s.txn.Get(store.AccountsKey(account))
	if err != nil {
		return nil, err
	}
	info := DecodeAccountInfo(data)
	return &info, nil
}

func (s *Store) GetPending(destination primitives.Account, sendHash primitives.BlockHash) (*PendingEntry, error) {
	data, err := s.txn.Get(store.PendingKey(destination, sendHash))
	if err != nil {
		return nil, err
	}
	pe := DecodePendingEntry(data)
	return &pe, nil
}

func (s *Store) IsPruned(hash primitives.BlockHash) (bool, error) {
	_, err := s.txn.Get(store.PrunedKey(hash))
	if err != nil {
		if err == store.ErrNotFound {
			return false, store.ErrNotFound
		}
		return false, err
	}
	return true, nil
}

func (s *Store) frontierAccount(frontier primitives.BlockHash) (primitives.Account, error) {
	data, err := s.txn.Get(store.FrontiersKey(frontier))
	if err != nil {
		return primitives.Account{}, err
	}
	var a primitives.Account
	copy(a[:], data)
	return a, nil
}

// GetConfirmationHeight reads the account's cementation watermark, zero if
// never confirmed.
func (s *Store) GetConfirmationHeight(account primitives.Account) (ConfirmationHeight, error) {
	data, err := s.txn.Get(store.ConfirmationHeightKey(account))
	if err != nil {
		if err == store.ErrNotFound {
			return ConfirmationHeight{}, nil
		}
		return ConfirmationHeight{}, err
	}
	if len(data) < 8+32 {
		return ConfirmationHeight{}, fmt.Errorf("ledger: short confirmation_height row")
	}
	var ch ConfirmationHeight
	ch.Height = binary.BigEndian.Uint64(data[:8])
	copy(ch.Frontier[:], data[8:40])
	return ch, nil
}

// SetConfirmationHeight stages a new cementation watermark for account.
func (s *Store) SetConfirmationHeight(account primitives.Account, ch ConfirmationHeight) {
	buf := make([]byte, 8+32)
	binary.BigEndian.PutUint64(buf[:8], ch.Height)
	copy(buf[8:40], ch.Frontier[:])
	s.txn.Set(store.ConfirmationHeightKey(account), buf)
}
