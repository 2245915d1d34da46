package store

import (
	"fmt"
	"sort"
)

// snapshot is a deep copy of a Txn's write buffer at some point in time.
type snapshot struct {
	dirty   map[string][]byte
	deleted map[string]bool
}

// Txn is an in-memory write buffer over a DB, with snapshot/rollback and
// atomic commit. Block insertion (spec §4.4) stages the table mutations of
// a batch of blocks into one Txn and commits once in one batch;
// Snapshot/RevertToSnapshot let a caller discard writes staged after a
// point (ledger.Store exposes them; its insertion path does not call
// them). Modeled on the
// teacher's StateDB dirty/deleted buffer, generalized from a single
// game-state namespace to the node's multi-table layout.
type Txn struct {
	db        DB
	dirty     map[string][]byte
	deleted   map[string]bool
	snapshots []snapshot
}

// NewTxn opens a write buffer over db.
func NewTxn(db DB) *Txn {
	return &Txn{
		db:      db,
		dirty:   make(map[string][]byte),
		deleted: make(map[string]bool),
	}
}

// Get reads key, preferring the write buffer over the underlying DB so a
// transaction observes its own uncommitted writes.
func (t *Txn) Get(key []byte) ([]byte, error) {
	sk := string(key)
	if t.deleted[sk] {
		return nil, ErrNotFound
	}
	if v, ok := t.dirty[sk]; ok {
		return v, nil
	}
	return t.db.Get(key)
}

// Set stages a write.
func (t *Txn) Set(key, value []byte) {
	sk := string(key)
	delete(t.deleted, sk)
	cp := make([]byte, len(value))
	copy(cp, value)
	t.dirty[sk] = cp
}

// Delete stages a deletion.
func (t *Txn) Delete(key []byte) {
	sk := string(key)
	delete(t.dirty, sk)
	t.deleted[sk] = true
}

// Iterate walks the merged view (committed DB state overlaid with the
// write buffer) of every key matching prefix, in key order.
func (t *Txn) Iterate(prefix []byte, fn func(key, value []byte) bool) error {
	merged := make(map[string][]byte)
	it := t.db.NewIterator(prefix)
	for it.Next() {
		k := make([]byte, len(it.Key()))
		copy(k, it.Key())
		v := make([]byte, len(it.Value()))
		copy(v, it.Value())
		merged[string(k)] = v
	}
	err := it.Error()
	it.Release()
	if err != nil {
		return err
	}
	p := string(prefix)
	for k, v := range t.dirty {
		if len(k) >= len(p) && k[:len(p)] == p {
			merged[k] = v
		}
	}
	for k := range t.deleted {
		delete(merged, k)
	}
	keys := make([]string, 0, len(merged))
	for k := range merged {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if !fn([]byte(k), merged[k]) {
			break
		}
	}
	return nil
}

// Snapshot saves the current write buffer and returns a snapshot ID that
// RevertToSnapshot can later restore.
func (t *Txn) Snapshot() int {
	snap := snapshot{
		dirty:   make(map[string][]byte, len(t.dirty)),
		deleted: make(map[string]bool, len(t.deleted)),
	}
	for k, v := range t.dirty {
		cp := make([]byte, len(v))
		copy(cp, v)
		snap.dirty[k] = cp
	}
	for k, v := range t.deleted {
		snap.deleted[k] = v
	}
	t.snapshots = append(t.snapshots, snap)
	return len(t.snapshots) - 1
}

// RevertToSnapshot restores the write buffer to a previously saved
// snapshot, discarding every write staged since.
func (t *Txn) RevertToSnapshot(id int) error {
	if id < 0 || id >= len(t.snapshots) {
		return fmt.Errorf("store: invalid snapshot id %d", id)
	}
	snap := t.snapshots[id]
	dirty := make(map[string][]byte, len(snap.dirty))
	for k, v := range snap.dirty {
		cp := make([]byte, len(v))
		copy(cp, v)
		dirty[k] = cp
	}
	deleted := make(map[string]bool, len(snap.deleted))
	for k, v := range snap.deleted {
		deleted[k] = v
	}
	t.dirty = dirty
	t.deleted = deleted
	t.snapshots = t.snapshots[:id]
	return nil
}

// Commit atomically flushes the write buffer to the underlying DB via one
// Batch and clears it. Writes are observable to readers only after this
// returns (spec §4.4 "All writes are observable to readers only after
// commit").
func (t *Txn) Commit() error {
	batch := t.db.NewBatch()
	for k, v := range t.dirty {
		batch.Set([]byte(k), v)
	}
	for k := range t.deleted {
		batch.Delete([]byte(k))
	}
	if err := batch.Write(); err != nil {
		return err
	}
	t.dirty = make(map[string][]byte)
	t.deleted = make(map[string]bool)
	t.snapshots = nil
	return nil
}
