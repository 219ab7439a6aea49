package settle

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/shopspring/decimal"

	"splitledger/internal/kv"
	"splitledger/internal/log"
)

// Book is the append-only settlement history, persisted under
// kv.KeySettlements and rewritten after every record.
type Book struct {
	mu      sync.RWMutex
	kv      kv.Store
	entries []Settlement
	logger  *log.Logger
}

// Open loads the history. A missing key or unreadable content starts an
// empty book; only backend errors are returned.
func Open(ctx context.Context, store kv.Store, logger *log.Logger) (*Book, error) {
	if logger == nil {
		logger = log.Nop()
	}
	b := &Book{kv: store, logger: logger.WithComponent(log.ComponentSettle)}

	raw, ok, err := store.Get(ctx, kv.KeySettlements)
	if err != nil {
		return nil, fmt.Errorf("load settlements: %w", err)
	}
	if !ok || strings.TrimSpace(raw) == "" {
		return b, nil
	}
	entries, skipped, err := DecodeSettlements(raw)
	if err != nil {
		b.logger.WarnContext(ctx, "Stored settlements unreadable, starting empty",
			log.FieldOperation, log.OpLoad,
			log.FieldError, err)
		return b, nil
	}
	if skipped > 0 {
		b.logger.WarnContext(ctx, "Skipped invalid stored settlements",
			log.FieldOperation, log.OpLoad,
			"skipped", skipped)
	}
	b.entries = entries
	return b, nil
}

// Record validates s and appends it. As with the ledger, a failed write is
// returned but the settlement stays in memory.
func (b *Book) Record(ctx context.Context, s Settlement) (Settlement, error) {
	s.Date = strings.TrimSpace(s.Date)
	s.From = strings.TrimSpace(s.From)
	s.To = strings.TrimSpace(s.To)
	if err := s.Validate(); err != nil {
		return Settlement{}, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.entries = append(b.entries, s)

	raw, err := EncodeSettlements(b.entries)
	if err != nil {
		return s, err
	}
	if err := b.kv.Set(ctx, kv.KeySettlements, raw); err != nil {
		log.LogError(ctx, b.logger, "Failed to flush settlements", err, log.OpFlush, log.NewFields().WithCount(len(b.entries)))
		return s, fmt.Errorf("flush settlements: %w", err)
	}

	b.logger.InfoContext(ctx, "Settlement recorded",
		log.FieldOperation, log.OpSettle,
		log.FieldOwner, s.From,
		log.FieldAmount, s.Amount.String())
	return s, nil
}

// History returns the settlements in recording order.
func (b *Book) History() []Settlement {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return slices.Clone(b.entries)
}

type record struct {
	Date   string          `json:"date"`
	From   string          `json:"from"`
	To     string          `json:"to"`
	Amount decimal.Decimal `json:"amt"`
}

// MarshalJSON writes the amount as a plain JSON number.
func (r record) MarshalJSON() ([]byte, error) {
	type plain record
	return json.Marshal(struct {
		plain
		Amount json.Number `json:"amt"`
	}{plain(r), json.Number(r.Amount.String())})
}

// EncodeSettlements serialises entries as a JSON array.
func EncodeSettlements(entries []Settlement) (string, error) {
	out := make([]record, len(entries))
	for i, s := range entries {
		out[i] = record(s)
	}
	b, err := json.Marshal(out)
	if err != nil {
		return "", fmt.Errorf("encode settlements: %w", err)
	}
	return string(b), nil
}

// DecodeSettlements parses a JSON array produced by EncodeSettlements,
// skipping and counting entries that fail validation.
func DecodeSettlements(s string) (entries []Settlement, skipped int, err error) {
	var in []record
	if err := json.Unmarshal([]byte(s), &in); err != nil {
		return nil, 0, fmt.Errorf("decode settlements: %w", err)
	}
	entries = make([]Settlement, 0, len(in))
	for _, r := range in {
		e := Settlement(r)
		if e.Validate() != nil {
			skipped++
			continue
		}
		entries = append(entries, e)
	}
	return entries, skipped, nil
}
