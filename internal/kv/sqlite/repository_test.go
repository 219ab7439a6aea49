package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"splitledger/internal/kv"
)

func TestRepositoryGetSet(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "nested", "ledger.db")

	repo, err := NewRepository(dbPath, nil)
	if err != nil {
		t.Fatalf("new repository: %v", err)
	}
	defer repo.Close()

	if _, ok, err := repo.Get(ctx, kv.KeyTransactions); ok || err != nil {
		t.Fatalf("expected missing key, got ok=%v err=%v", ok, err)
	}

	if err := repo.Set(ctx, kv.KeyTransactions, `[{"id":"TX1"}]`); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := repo.Set(ctx, kv.KeyTransactions, `[{"id":"TX2"}]`); err != nil {
		t.Fatalf("overwrite: %v", err)
	}

	v, ok, err := repo.Get(ctx, kv.KeyTransactions)
	if err != nil || !ok || v != `[{"id":"TX2"}]` {
		t.Fatalf("unexpected get: v=%q ok=%v err=%v", v, ok, err)
	}
}

func TestRepositoryReopenKeepsData(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "ledger.db")

	repo, err := NewRepository(dbPath, nil)
	if err != nil {
		t.Fatalf("new repository: %v", err)
	}
	if err := repo.Set(ctx, kv.KeyUsers, `[]`); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := repo.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	// Migrations must be idempotent on reopen.
	repo, err = NewRepository(dbPath, nil)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer repo.Close()

	v, ok, err := repo.Get(ctx, kv.KeyUsers)
	if err != nil || !ok || v != `[]` {
		t.Fatalf("unexpected get after reopen: v=%q ok=%v err=%v", v, ok, err)
	}
}
