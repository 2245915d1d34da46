// Package confirm implements cementation (spec §4.8): given a confirmed
// block hash, it raises the owning account's confirmation height toward
// that block, recursing into any source account a receive on the path
// depends on, and fans out a BlockCemented event per block it cements.
// Grounded on the original implementation's
// UnconfirmedReceiveAndSourcesCollector (a backward walk that switches to
// the source account on every receive/open it crosses), reshaped from its
// recursive-closures-over-a-transaction shape into an explicit stack so the
// walk never grows the native call stack no matter how deep a chain is
// (spec §4.8 "never recurse on the native call stack").
package confirm

import (
	"fmt"
	"sync"

	"github.com/nanospec/nanocore/events"
	"github.com/nanospec/nanocore/ledger"
	"github.com/nanospec/nanocore/primitives"
	"github.com/nanospec/nanocore/store"
)

// Triple is one (account, height, hash) cementation step, in the order
// spec §4.8's traversal yields them.
type Triple struct {
	Account primitives.Account
	Height  uint64
	Hash    primitives.BlockHash
}

// Confirmer raises confirmation heights over db. It shares the single-writer
// discipline with the block processor (spec §5 "a write-queue owned by the
// block processor and the cementation worker alternating ownership"); mu
// serializes concurrent Cement calls from this process so the one ledger.Store
// per call still commits exactly once.
type Confirmer struct {
	db      store.DB
	emitter *events.Emitter
	mu      sync.Mutex
}

// New creates a Confirmer over db, fanning BlockCemented events out via
// emitter.
func New(db store.DB, emitter *events.Emitter) *Confirmer {
	return &Confirmer{db: db, emitter: emitter}
}

// frame is one pending "raise this account up to this block" obligation on
// the explicit walk stack.
type frame struct {
	account    primitives.Account
	targetHash primitives.BlockHash
}

// step is one block on a frame's backward walk, annotated with whether it
// is a receive/open (and therefore depends on its source account).
type step struct {
	height     uint64
	hash       primitives.BlockHash
	isReceive  bool
	sourceHash primitives.BlockHash
}

// Cement raises account's confirmation height up to hash, inclusive,
// walking backward and recursing into any source account a receive/open on
// the path depends on (spec §4.8). It is idempotent: re-submitting a
// hash already at or below the current confirmation height is a no-op
// (spec §4.8 "re-submitting the same H is a no-op").
func (c *Confirmer) Cement(account primitives.Account, hash primitives.BlockHash) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	lstore := ledger.NewStore(c.db)
	var triples []Triple

	stack := []frame{{account: account, targetHash: hash}}
	for len(stack) > 0 {
		f := stack[len(stack)-1]

		ch, err := lstore.GetConfirmationHeight(f.account)
		if err != nil {
			return fmt.Errorf("confirm: read confirmation height for %s: %w", f.account.Hex(), err)
		}
		sb, err := lstore.GetSideband(f.targetHash)
		if err != nil {
			return fmt.Errorf("confirm: read sideband for %s: %w", f.targetHash.Hex(), err)
		}
		if sb.Height <= ch.Height {
			stack = stack[:len(stack)-1]
			continue
		}

		path, err := c.walkBack(lstore, f.targetHash, sb, ch.Height)
		if err != nil {
			return err
		}

		blockedAt := -1
		var depAccount primitives.Account
		var depHash primitives.BlockHash
		for i, st := range path {
			if !st.isReceive {
				continue
			}
			srcBlock, err := lstore.GetBlock(st.sourceHash)
			if err != nil {
				return fmt.Errorf("confirm: read source block %s: %w", st.sourceHash.Hex(), err)
			}
			srcAccount := srcBlock.Account()
			srcSb, err := lstore.GetSideband(st.sourceHash)
			if err != nil {
				return fmt.Errorf("confirm: read source sideband %s: %w", st.sourceHash.Hex(), err)
			}
			srcCh, err := lstore.GetConfirmationHeight(srcAccount)
			if err != nil {
				return fmt.Errorf("confirm: read source confirmation height for %s: %w", srcAccount.Hex(), err)
			}
			if srcSb.Height > srcCh.Height {
				blockedAt = i
				depAccount = srcAccount
				depHash = st.sourceHash
				break
			}
		}

		if blockedAt >= 0 {
			if blockedAt > 0 {
				commit(lstore, f.account, path[:blockedAt], &triples)
			}
			stack = append(stack, frame{account: depAccount, targetHash: depHash})
			continue
		}

		commit(lstore, f.account, path, &triples)
		stack = stack[:len(stack)-1]
	}

	if err := lstore.Commit(); err != nil {
		return fmt.Errorf("confirm: commit: %w", err)
	}
	for _, t := range triples {
		c.emitter.Emit(events.Event{Type: events.EventBlockCemented, Data: map[string]any{
			"account": t.Account.Hex(),
			"height":  t.Height,
			"hash":    t.Hash.Hex(),
		}})
	}
	return nil
}

// walkBack collects every block strictly above belowHeight on the chain
// ending at targetHash, in ascending height order.
func (c *Confirmer) walkBack(lstore *ledger.Store, targetHash primitives.BlockHash, targetSb ledger.Sideband, belowHeight uint64) ([]step, error) {
	var path []step
	curHash := targetHash
	curSb := targetSb
	for {
		if curSb.Height <= belowHeight {
			break
		}
		blk, err := lstore.GetBlock(curHash)
		if err != nil {
			return nil, fmt.Errorf("confirm: read block %s: %w", curHash.Hex(), err)
		}
		st := step{height: curSb.Height, hash: curHash}
		if curSb.Details.IsReceive {
			st.isReceive = true
			st.sourceHash = ledger.Link(blk)
		}
		path = append(path, st)

		prev := blk.Previous()
		if prev.IsZero() {
			break
		}
		curHash = prev
		curSb, err = lstore.GetSideband(curHash)
		if err != nil {
			return nil, fmt.Errorf("confirm: read sideband %s: %w", curHash.Hex(), err)
		}
	}
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path, nil
}

// commit raises account's confirmation height to the last (highest) step
// in path and records every step as a Triple for event emission, in order
// (spec §4.8 "Write new confirmation-height rows in one transaction. Emit a
// BlockCemented event per triple in order").
func commit(lstore *ledger.Store, account primitives.Account, path []step, triples *[]Triple) {
	if len(path) == 0 {
		return
	}
	for _, st := range path {
		*triples = append(*triples, Triple{Account: account, Height: st.height, Hash: st.hash})
	}
	last := path[len(path)-1]
	lstore.SetConfirmationHeight(account, ledger.ConfirmationHeight{Height: last.height, Frontier: last.hash})
}
