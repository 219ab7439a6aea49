package memory

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"splitledger/internal/kv"
)

func TestMemoryStoreGetSet(t *testing.T) {
	ctx := context.Background()
	s := New()

	if _, ok, err := s.Get(ctx, kv.KeyTransactions); ok || err != nil {
		t.Fatalf("expected missing key, got ok=%v err=%v", ok, err)
	}
	if err := s.Set(ctx, kv.KeyTransactions, "[]"); err != nil {
		t.Fatalf("set: %v", err)
	}
	v, ok, err := s.Get(ctx, kv.KeyTransactions)
	if err != nil || !ok || v != "[]" {
		t.Fatalf("unexpected get: v=%q ok=%v err=%v", v, ok, err)
	}
	if err := s.Set(ctx, kv.KeyUsers, "[]"); err != nil {
		t.Fatalf("set: %v", err)
	}
	if s.Writes() != 2 || s.KeyWrites(kv.KeyTransactions) != 1 || s.KeyWrites(kv.KeySettlements) != 0 {
		t.Fatalf("unexpected write counts: total=%d txs=%d", s.Writes(), s.KeyWrites(kv.KeyTransactions))
	}
}

func TestNewFromFilesSeeds(t *testing.T) {
	dir := t.TempDir()
	// No files -> empty store
	s := NewFromFiles(dir)
	if _, ok, _ := s.Get(context.Background(), kv.KeyTransactions); ok {
		t.Fatalf("expected no seed when files missing")
	}

	mustWrite := func(name, content string) {
		t.Helper()
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	mustWrite("txs.json", `[{"id":"TX1","owner":"a","date":"2025-01-01","cat":"food","det":"x","amt":1}]`+"\n")
	mustWrite("users.json", "\n\n")

	s = NewFromFiles(dir)
	v, ok, _ := s.Get(context.Background(), kv.KeyTransactions)
	if !ok || v == "" || v[0] != '[' {
		t.Fatalf("unexpected seed: %q ok=%v", v, ok)
	}
	if _, ok, _ := s.Get(context.Background(), kv.KeyUsers); ok {
		t.Fatalf("blank seed file should be skipped")
	}
}
