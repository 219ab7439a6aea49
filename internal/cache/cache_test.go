package cache

import (
	"context"
	"testing"
	"time"

	"splitledger/internal/core"
)

func TestLRUCacheEvictsLeastRecentlyUsed(t *testing.T) {
	c := NewLRUCache[int](2, 0)
	c.Set("a", 1)
	c.Set("b", 2)
	if _, ok := c.Get("a"); !ok {
		t.Fatal("expected a")
	}
	c.Set("c", 3)

	if _, ok := c.Get("b"); ok {
		t.Fatal("b should have been evicted")
	}
	if v, ok := c.Get("a"); !ok || v != 1 {
		t.Fatalf("unexpected a: %v %v", v, ok)
	}
	if c.Size() != 2 {
		t.Fatalf("size = %d", c.Size())
	}
}

func TestLRUCacheTTL(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewLRUCache[string](10, time.Minute)
	c.now = func() time.Time { return now }

	c.Set("a", "x")
	c.Set("b", "y")
	now = now.Add(30 * time.Second)
	if _, ok := c.Get("a"); !ok {
		t.Fatal("a should still be cached")
	}
	c.Set("b", "z")

	now = now.Add(45 * time.Second)
	if _, ok := c.Get("a"); ok {
		t.Fatal("a should have expired")
	}
	if removed := c.CleanExpired(); removed != 0 {
		t.Fatalf("CleanExpired removed %d, want 0", removed)
	}
	now = now.Add(time.Minute)
	if removed := c.CleanExpired(); removed != 1 {
		t.Fatalf("CleanExpired removed %d, want 1", removed)
	}
	if c.Size() != 0 {
		t.Fatalf("size = %d", c.Size())
	}
}

func TestLRUCacheDelete(t *testing.T) {
	c := NewLRUCache[int](0, 0)
	c.Set("a", 1)
	c.Delete("a")
	if _, ok := c.Get("a"); ok || c.Size() != 0 {
		t.Fatal("expected empty cache after delete")
	}
}

func TestReportCacheInvalidatedByAppend(t *testing.T) {
	c := NewReportCache(8, time.Hour, nil)
	calls := 0
	compute := func() []string {
		calls++
		return []string{"no anomalies found"}
	}

	c.Lines("alice", compute)
	c.Lines("bob", compute)
	got := c.Lines("alice", compute)
	if calls != 2 || len(got) != 1 {
		t.Fatalf("expected cached result, calls=%d got=%v", calls, got)
	}

	err := c.TransactionsAppended(context.Background(), []core.Transaction{{ID: "TX1", Owner: "alice"}}, nil)
	if err != nil {
		t.Fatalf("TransactionsAppended: %v", err)
	}
	c.Lines("alice", compute)
	c.Lines("bob", compute)
	if calls != 3 {
		t.Fatalf("only alice should be recomputed, calls=%d", calls)
	}
}

func TestReportCacheReturnsCopies(t *testing.T) {
	c := NewReportCache(8, 0, nil)
	first := c.Lines("alice", func() []string { return []string{"a"} })
	first[0] = "mutated"
	if got := c.Lines("alice", nil); got[0] != "a" {
		t.Fatalf("cache entry was mutated: %v", got)
	}
	c.Invalidate("alice")
	if c.Size() != 0 {
		t.Fatal("expected empty cache")
	}
}
