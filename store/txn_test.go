package store_test

import (
	"testing"

	"github.com/nanospec/nanocore/internal/testutil"
	"github.com/nanospec/nanocore/store"
)

func TestTxnSetGetPreferredOverDB(t *testing.T) {
	db := testutil.NewMemDB()
	if err := db.Set([]byte("k"), []byte("from-db")); err != nil {
		t.Fatalf("db.Set: %v", err)
	}
	txn := store.NewTxn(db)
	txn.Set([]byte("k"), []byte("from-txn"))

	v, err := txn.Get([]byte("k"))
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(v) != "from-txn" {
		t.Errorf("Get = %q, want staged write %q", v, "from-txn")
	}
}

func TestTxnFallsThroughToDB(t *testing.T) {
	db := testutil.NewMemDB()
	if err := db.Set([]byte("k"), []byte("from-db")); err != nil {
		t.Fatalf("db.Set: %v", err)
	}
	txn := store.NewTxn(db)
	v, err := txn.Get([]byte("k"))
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(v) != "from-db" {
		t.Errorf("Get = %q, want committed value %q", v, "from-db")
	}
}

func TestTxnDeleteShadowsDB(t *testing.T) {
	db := testutil.NewMemDB()
	if err := db.Set([]byte("k"), []byte("from-db")); err != nil {
		t.Fatalf("db.Set: %v", err)
	}
	txn := store.NewTxn(db)
	txn.Delete([]byte("k"))

	if _, err := txn.Get([]byte("k")); err != store.ErrNotFound {
		t.Errorf("Get after Delete = %v, want ErrNotFound", err)
	}
}

func TestTxnSnapshotRevert(t *testing.T) {
	db := testutil.NewMemDB()
	txn := store.NewTxn(db)
	txn.Set([]byte("a"), []byte("1"))

	snap := txn.Snapshot()
	txn.Set([]byte("a"), []byte("2"))
	txn.Set([]byte("b"), []byte("3"))

	if err := txn.RevertToSnapshot(snap); err != nil {
		t.Fatalf("RevertToSnapshot: %v", err)
	}
	v, err := txn.Get([]byte("a"))
	if err != nil || string(v) != "1" {
		t.Errorf("a after revert = %q, %v, want \"1\", nil", v, err)
	}
	if _, err := txn.Get([]byte("b")); err != store.ErrNotFound {
		t.Errorf("b after revert = %v, want ErrNotFound (never committed before snapshot)", err)
	}
}

func TestTxnRevertToInvalidSnapshotErrors(t *testing.T) {
	db := testutil.NewMemDB()
	txn := store.NewTxn(db)
	if err := txn.RevertToSnapshot(0); err == nil {
		t.Error("expected error reverting to a snapshot id that was never taken")
	}
}

func TestTxnCommitFlushesAndClears(t *testing.T) {
	db := testutil.NewMemDB()
	txn := store.NewTxn(db)
	txn.Set([]byte("a"), []byte("1"))
	txn.Delete([]byte("missing"))

	if err := txn.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	v, err := db.Get([]byte("a"))
	if err != nil || string(v) != "1" {
		t.Errorf("db state after commit = %q, %v, want \"1\", nil", v, err)
	}

	// Write buffer should be empty again.
	v2, err := txn.Get([]byte("a"))
	if err != nil || string(v2) != "1" {
		t.Errorf("txn.Get after commit should fall through to the now-committed DB: got %q, %v", v2, err)
	}
}

func TestTxnIterateMergesDBAndBuffer(t *testing.T) {
	db := testutil.NewMemDB()
	if err := db.Set([]byte("p/1"), []byte("db-1")); err != nil {
		t.Fatalf("db.Set: %v", err)
	}
	if err := db.Set([]byte("p/2"), []byte("db-2")); err != nil {
		t.Fatalf("db.Set: %v", err)
	}
	txn := store.NewTxn(db)
	txn.Set([]byte("p/2"), []byte("txn-2"))
	txn.Set([]byte("p/3"), []byte("txn-3"))
	txn.Delete([]byte("p/1"))

	got := make(map[string]string)
	err := txn.Iterate([]byte("p/"), func(k, v []byte) bool {
		got[string(k)] = string(v)
		return true
	})
	if err != nil {
		t.Fatalf("Iterate: %v", err)
	}

	want := map[string]string{"p/2": "txn-2", "p/3": "txn-3"}
	if len(got) != len(want) {
		t.Fatalf("Iterate result = %v, want %v", got, want)
	}
	for k, v := range want {
		if got[k] != v {
			t.Errorf("Iterate[%q] = %q, want %q", k, got[k], v)
		}
	}
}
