package testsupport

import (
	"context"
	"testing"

	"forager/internal/casedb"
	"forager/internal/config"
	"forager/internal/evidence"
)

// MustOpenStore opens a casedb.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *casedb.Store {
	t.Helper()

	store, err := casedb.Open(cfg)
	if err != nil {
		t.Fatalf("casedb.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// NewItem registers an item and returns its handle.
func NewItem(t testing.TB, store *casedb.Store, name string, ds evidence.Datasource) *casedb.Item {
	t.Helper()

	ctx := context.Background()
	info, err := store.AddItem(ctx, name, ds)
	if err != nil {
		t.Fatalf("store.AddItem: %v", err)
	}
	item, err := store.Item(ctx, info.ID)
	if err != nil {
		t.Fatalf("store.Item: %v", err)
	}
	return item
}

// AddRecords stores records for item in one transaction.
func AddRecords(t testing.TB, item evidence.Item, records ...*evidence.Record) {
	t.Helper()

	ctx := context.Background()
	tx, err := item.Begin(ctx)
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	defer tx.Rollback()
	for _, r := range records {
		if err := tx.Add(ctx, r); err != nil {
			t.Fatalf("Add %s: %v", r.Type, err)
		}
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}
}

// MustRecord builds a record of evidenceType with the given attributes.
func MustRecord(t testing.TB, evidenceType string, attrs map[string]any) *evidence.Record {
	t.Helper()

	r, err := evidence.NewRecord(evidenceType)
	if err != nil {
		t.Fatalf("NewRecord: %v", err)
	}
	if err := r.SetAll(attrs); err != nil {
		t.Fatalf("SetAll: %v", err)
	}
	return r
}
