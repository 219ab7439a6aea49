// Package cache memoises per-owner reports between appends.
package cache

import (
	"context"
	"time"

	"splitledger/internal/core"
	"splitledger/internal/log"
)

// Cache defines a generic cache interface
type Cache[T any] interface {
	Get(key string) (T, bool)
	Set(key string, data T)
	Delete(key string)
	Size() int
}

var _ Cache[[]string] = (*LRUCache[[]string])(nil)

// ReportCache holds anomaly report lines per owner. Registered as a ledger
// observer it drops an owner's entry whenever that owner gets new
// transactions, so a cached report never predates the last append.
type ReportCache struct {
	lines  Cache[[]string]
	logger *log.Logger
}

// NewReportCache keeps at most size owners for ttl.
func NewReportCache(size int, ttl time.Duration, logger *log.Logger) *ReportCache {
	if logger == nil {
		logger = log.Nop()
	}
	return &ReportCache{
		lines:  NewLRUCache[[]string](size, ttl),
		logger: logger.WithComponent(log.ComponentCache),
	}
}

// Lines returns the cached lines for owner or computes and stores them.
func (c *ReportCache) Lines(owner string, compute func() []string) []string {
	if v, ok := c.lines.Get(owner); ok {
		c.logger.Debug("Report cache hit", log.FieldOwner, owner)
		return clone(v)
	}
	v := compute()
	c.lines.Set(owner, clone(v))
	return v
}

// Invalidate drops owner's entry.
func (c *ReportCache) Invalidate(owner string) {
	c.lines.Delete(owner)
}

// Size returns the number of cached owners.
func (c *ReportCache) Size() int { return c.lines.Size() }

// TransactionsAppended invalidates every owner in txs.
func (c *ReportCache) TransactionsAppended(ctx context.Context, txs []core.Transaction, _ []string) error {
	seen := map[string]struct{}{}
	for _, t := range txs {
		if _, ok := seen[t.Owner]; ok {
			continue
		}
		seen[t.Owner] = struct{}{}
		c.lines.Delete(t.Owner)
		c.logger.DebugContext(ctx, "Report cache invalidated", log.FieldOwner, t.Owner)
	}
	return nil
}

func clone(in []string) []string {
	return append([]string(nil), in...)
}
