package blockproc

import (
	"sync"

	"github.com/nanospec/nanocore/ledger"
)

// maxUncheckedPerKey bounds how many blocks can wait on one dependency
// hash, so a single never-arriving dependency cannot grow the buffer
// without bound.
const maxUncheckedPerKey = 64

// UncheckedBuffer holds candidate blocks that failed validation with a Gap
// (spec §4.5 step 4), keyed by the dependency hash they're waiting on.
// Satisfy is called once that hash is itself successfully inserted.
type UncheckedBuffer struct {
	mu      sync.Mutex
	waiting map[string][]ledger.Block
}

// NewUncheckedBuffer creates an empty buffer.
func NewUncheckedBuffer() *UncheckedBuffer {
	return &UncheckedBuffer{waiting: make(map[string][]ledger.Block)}
}

// Add records block as waiting on dependencyHex.
func (u *UncheckedBuffer) Add(dependencyHex string, block ledger.Block) {
	u.mu.Lock()
	defer u.mu.Unlock()
	q := u.waiting[dependencyHex]
	if len(q) >= maxUncheckedPerKey {
		return
	}
	u.waiting[dependencyHex] = append(q, block)
}

// Satisfy removes and replays every block waiting on insertedHash via
// resubmit. Called once insertedHash itself clears the validator.
func (u *UncheckedBuffer) Satisfy(insertedHash interface{ Hex() string }, resubmit func(ledger.Block)) {
	key := insertedHash.Hex()
	u.mu.Lock()
	blocks := u.waiting[key]
	delete(u.waiting, key)
	u.mu.Unlock()
	for _, b := range blocks {
		resubmit(b)
	}
}
