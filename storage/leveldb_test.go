package storage

import (
	"testing"

	"github.com/toddfratello/pyomcore/errs"
)

func TestLevelDBSetGetDelete(t *testing.T) {
	db, err := NewLevelDB(t.TempDir())
	if err != nil {
		t.Fatalf("NewLevelDB: %v", err)
	}
	defer db.Close()

	if err := db.Set([]byte("k1"), []byte("v1")); err != nil {
		t.Fatalf("Set: %v", err)
	}
	got, err := db.Get([]byte("k1"))
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(got) != "v1" {
		t.Errorf("Get: got %q want v1", got)
	}

	if err := db.Delete([]byte("k1")); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := db.Get([]byte("k1")); !errs.Is(err, errs.NotFound) {
		t.Errorf("Get after delete: got %v want NotFound", err)
	}
}

func TestLevelDBGetMissingKeyReturnsNotFound(t *testing.T) {
	db, err := NewLevelDB(t.TempDir())
	if err != nil {
		t.Fatalf("NewLevelDB: %v", err)
	}
	defer db.Close()

	if _, err := db.Get([]byte("missing")); !errs.Is(err, errs.NotFound) {
		t.Errorf("got %v want NotFound", err)
	}
}

func TestLevelDBIteratorWalksPrefix(t *testing.T) {
	db, err := NewLevelDB(t.TempDir())
	if err != nil {
		t.Fatalf("NewLevelDB: %v", err)
	}
	defer db.Close()

	for _, kv := range []struct{ k, v string }{
		{"tx:1", "a"}, {"tx:2", "b"}, {"other:1", "c"},
	} {
		if err := db.Set([]byte(kv.k), []byte(kv.v)); err != nil {
			t.Fatalf("Set(%s): %v", kv.k, err)
		}
	}

	it := db.NewIterator([]byte("tx:"))
	defer it.Release()
	count := 0
	for it.Next() {
		count++
	}
	if err := it.Error(); err != nil {
		t.Fatalf("iterator error: %v", err)
	}
	if count != 2 {
		t.Errorf("iterated %d keys want 2", count)
	}
}

func TestLevelDBBatchAppliesAtomically(t *testing.T) {
	db, err := NewLevelDB(t.TempDir())
	if err != nil {
		t.Fatalf("NewLevelDB: %v", err)
	}
	defer db.Close()

	b := db.NewBatch()
	b.Set([]byte("a"), []byte("1"))
	b.Set([]byte("b"), []byte("2"))
	if err := b.Write(); err != nil {
		t.Fatalf("Write: %v", err)
	}

	for k, want := range map[string]string{"a": "1", "b": "2"} {
		got, err := db.Get([]byte(k))
		if err != nil {
			t.Fatalf("Get(%s): %v", k, err)
		}
		if string(got) != want {
			t.Errorf("Get(%s): got %q want %q", k, got, want)
		}
	}
}
