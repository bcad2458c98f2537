package kvstore

import (
	"io"
	"log/slog"
	"testing"

	"github.com/dgraph-io/badger/v4"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// TestOpen_Persists проверяет, что данные переживают переоткрытие.
func TestOpen_Persists(t *testing.T) {
	dir := t.TempDir()

	db, err := Open(dir, testLogger())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	err = db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte("k"), []byte("v"))
	})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if err := db.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	db, err = Open(dir, testLogger())
	if err != nil {
		t.Fatalf("повторный Open: %v", err)
	}
	defer db.Close()

	var got []byte
	err = db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte("k"))
		if err != nil {
			return err
		}
		got, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		t.Fatalf("View: %v", err)
	}
	if string(got) != "v" {
		t.Errorf("ожидалось v, получено %q", got)
	}

	if _, err := CollectGarbage(db, 0.5); err != nil {
		t.Errorf("CollectGarbage: %v", err)
	}
}

// TestOpenInMemory проверяет, что GC в памяти ничего не делает.
func TestOpenInMemory(t *testing.T) {
	db, err := OpenInMemory(testLogger())
	if err != nil {
		t.Fatalf("OpenInMemory: %v", err)
	}
	defer db.Close()

	cycles, err := CollectGarbage(db, 0.5)
	if err != nil || cycles != 0 {
		t.Errorf("CollectGarbage: cycles=%d err=%v", cycles, err)
	}
}
