// Package ledger holds the in-memory transaction collection and the user
// list, backed by a key-value persistence collaborator.
//
// The store is loaded once when opened and flushed after every append. It
// only grows: there is no update or delete. Every owner or payer seen in an
// append is registered as a user.
package ledger

import (
	"context"
	"fmt"
	"iter"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"splitledger/internal/core"
	"splitledger/internal/kv"
	"splitledger/internal/log"
	"splitledger/internal/split"
)

// Observer is told about every appended batch, together with the category
// registry as it stands after the append.
type Observer interface {
	TransactionsAppended(ctx context.Context, txs []core.Transaction, categories []string) error
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(ctx context.Context, txs []core.Transaction, categories []string) error

func (f ObserverFunc) TransactionsAppended(ctx context.Context, txs []core.Transaction, categories []string) error {
	return f(ctx, txs, categories)
}

// Store is the single source of truth for transactions.
type Store struct {
	mu         sync.RWMutex
	kv         kv.Store
	txs        []core.Transaction
	ids        map[string]struct{}
	users      []core.User
	userNames  map[string]struct{}
	observers  []Observer
	newID      core.IDFunc
	logger     *log.Logger
	dirty      bool // last flush failed
	usersDirty bool // users changed since the last successful users write
}

// Option configures a Store.
type Option func(*Store)

// WithObserver registers o for append notifications.
func WithObserver(o Observer) Option {
	return func(s *Store) { s.observers = append(s.observers, o) }
}

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// WithIDFunc replaces the identifier generator.
func WithIDFunc(fn core.IDFunc) Option {
	return func(s *Store) { s.newID = fn }
}

// Open loads the ledger from persistence. A missing key or unreadable
// content starts an empty ledger; only backend errors are returned.
func Open(ctx context.Context, store kv.Store, opts ...Option) (*Store, error) {
	s := &Store{
		kv:        store,
		ids:       map[string]struct{}{},
		userNames: map[string]struct{}{},
		newID:     core.NewID,
		logger:    log.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.WithComponent(log.ComponentLedger)

	if err := s.loadUsers(ctx); err != nil {
		return nil, err
	}

	raw, ok, err := store.Get(ctx, kv.KeyTransactions)
	if err != nil {
		return nil, fmt.Errorf("load transactions: %w", err)
	}
	if !ok || strings.TrimSpace(raw) == "" {
		s.logger.InfoContext(ctx, "No stored transactions, starting empty", log.FieldOperation, log.OpLoad)
		return s, nil
	}

	txs, skipped, err := DecodeTransactions(raw)
	if err != nil {
		s.logger.WarnContext(ctx, "Stored transactions unreadable, starting empty",
			log.FieldOperation, log.OpLoad,
			log.FieldError, err)
		return s, nil
	}
	if skipped > 0 {
		s.logger.WarnContext(ctx, "Skipped invalid stored transactions",
			log.FieldOperation, log.OpLoad,
			"skipped", skipped)
	}
	s.txs = txs
	for _, t := range txs {
		s.ids[t.ID] = struct{}{}
	}
	// Owners missing from the user list are registered on the next flush.
	s.registerLocked(txs)

	s.logger.InfoContext(ctx, "Ledger loaded",
		log.FieldOperation, log.OpLoad,
		log.FieldCount, len(txs))
	return s, nil
}

func (s *Store) loadUsers(ctx context.Context) error {
	raw, ok, err := s.kv.Get(ctx, kv.KeyUsers)
	if err != nil {
		return fmt.Errorf("load users: %w", err)
	}
	if !ok || strings.TrimSpace(raw) == "" {
		return nil
	}
	users, skipped, err := DecodeUsers(raw)
	if err != nil {
		s.logger.WarnContext(ctx, "Stored users unreadable, starting empty",
			log.FieldOperation, log.OpLoad,
			log.FieldError, err)
		return nil
	}
	if skipped > 0 {
		s.logger.WarnContext(ctx, "Skipped invalid stored users",
			log.FieldOperation, log.OpLoad,
			"skipped", skipped)
	}
	s.users = users
	for _, u := range users {
		s.userNames[u.Name] = struct{}{}
	}
	return nil
}

// registerLocked adds every unknown owner and payer of txs to the user list.
func (s *Store) registerLocked(txs []core.Transaction) {
	for _, t := range txs {
		for _, name := range []string{t.Owner, t.Payer} {
			if name == "" {
				continue
			}
			if _, ok := s.userNames[name]; ok {
				continue
			}
			s.userNames[name] = struct{}{}
			s.users = append(s.users, core.User{Name: name})
			s.usersDirty = true
		}
	}
}

// Append adds one transaction.
func (s *Store) Append(ctx context.Context, t core.Transaction) error {
	return s.AppendBatch(ctx, []core.Transaction{t})
}

// Record is the normal entry path: it validates the amount, assigns a new
// identifier and appends the transaction.
func (s *Store) Record(ctx context.Context, owner, date, category, description string, amount float64) (core.Transaction, error) {
	amt, err := core.AmountFromFloat(amount)
	if err != nil {
		return core.Transaction{}, err
	}
	return s.RecordAmount(ctx, owner, date, category, description, amt)
}

// RecordAmount is Record for an amount already parsed, e.g. by core.ParseAmount.
func (s *Store) RecordAmount(ctx context.Context, owner, date, category, description string, amt decimal.Decimal) (core.Transaction, error) {
	t := core.Transaction{
		ID:          s.newID(),
		Owner:       strings.TrimSpace(owner),
		Date:        strings.TrimSpace(date),
		Category:    strings.TrimSpace(category),
		Description: strings.TrimSpace(description),
		Amount:      amt,
	}
	if err := s.Append(ctx, t); err != nil {
		return core.Transaction{}, err
	}
	return t, nil
}

// Split allocates a shared expense and appends every share, or none.
func (s *Store) Split(ctx context.Context, req split.Request) ([]core.Transaction, error) {
	txs, err := split.Allocator{NewID: s.newID}.Allocate(req)
	if err != nil {
		return nil, err
	}
	if err := s.AppendBatch(ctx, txs); err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "Expense split",
		log.FieldOperation, log.OpSplit,
		log.FieldMode, string(req.Mode.Kind),
		log.FieldCount, len(txs),
		log.FieldCategory, req.Category)
	return txs, nil
}

// AppendBatch validates every transaction before appending any of them.
//
// The batch is flushed once. A flush error is returned but the batch stays
// in memory; durability is up to the persistence backend.
func (s *Store) AppendBatch(ctx context.Context, txs []core.Transaction) error {
	if len(txs) == 0 {
		return nil
	}

	s.mu.Lock()
	batch := make(map[string]struct{}, len(txs))
	for _, t := range txs {
		if err := t.Validate(); err != nil {
			s.mu.Unlock()
			return err
		}
		_, stored := s.ids[t.ID]
		_, repeated := batch[t.ID]
		if stored || repeated {
			s.mu.Unlock()
			return core.Invalid("id", fmt.Errorf("%w: %s", core.ErrDuplicateID, t.ID))
		}
		batch[t.ID] = struct{}{}
	}

	for _, t := range txs {
		s.txs = append(s.txs, t)
		s.ids[t.ID] = struct{}{}
	}
	s.registerLocked(txs)
	flushErr := s.flushLocked(ctx)
	categories := s.categoriesLocked()
	s.mu.Unlock()

	for _, t := range txs {
		s.logger.DebugContext(ctx, "Transaction appended",
			log.NewFields().
				WithTransaction(t.ID, t.Owner, t.Date, t.Category, core.FormatAmount(t.Amount)).
				WithOperation(log.OpAppend).
				ToSlice()...)
	}

	s.notify(ctx, txs, categories)

	if flushErr != nil {
		return fmt.Errorf("flush ledger: %w", flushErr)
	}
	return nil
}

func (s *Store) flushLocked(ctx context.Context) error {
	start := time.Now()
	raw, err := EncodeTransactions(s.txs)
	if err != nil {
		return err
	}
	if err := s.kv.Set(ctx, kv.KeyTransactions, raw); err != nil {
		s.dirty = true
		log.LogError(ctx, s.logger, "Failed to flush ledger", err, log.OpFlush, log.NewFields().WithCount(len(s.txs)))
		return err
	}
	if s.usersDirty {
		rawUsers, err := EncodeUsers(s.users)
		if err != nil {
			return err
		}
		if err := s.kv.Set(ctx, kv.KeyUsers, rawUsers); err != nil {
			s.dirty = true
			log.LogError(ctx, s.logger, "Failed to flush users", err, log.OpFlush, log.NewFields().WithCount(len(s.users)))
			return err
		}
		s.usersDirty = false
	}
	s.dirty = false
	s.logger.DebugContext(ctx, "Ledger flushed",
		log.FieldOperation, log.OpFlush,
		log.FieldCount, len(s.txs),
		log.FieldDurationMs, time.Since(start).Milliseconds())
	return nil
}

func (s *Store) notify(ctx context.Context, txs []core.Transaction, categories []string) {
	for _, o := range s.observers {
		if err := o.TransactionsAppended(ctx, txs, categories); err != nil {
			s.logger.WarnContext(ctx, "Append observer failed",
				log.FieldError, err,
				log.FieldCount, len(txs))
		}
	}
}

// ListByOwner yields owner's transactions in insertion order. Each range
// over the result sees the ledger as it is when iteration starts.
func (s *Store) ListByOwner(owner string) iter.Seq[core.Transaction] {
	return func(yield func(core.Transaction) bool) {
		s.mu.RLock()
		snapshot := s.txs[:len(s.txs):len(s.txs)]
		s.mu.RUnlock()

		for _, t := range snapshot {
			if t.Owner != owner {
				continue
			}
			if !yield(t) {
				return
			}
		}
	}
}

// Transactions collects ListByOwner into a new slice.
func (s *Store) Transactions(owner string) []core.Transaction {
	var out []core.Transaction
	for t := range s.ListByOwner(owner) {
		out = append(out, t)
	}
	return out
}

// Shared returns every share of a paid expense, across owners, in
// insertion order.
func (s *Store) Shared() []core.Transaction {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []core.Transaction
	for _, t := range s.txs {
		if t.Shared() {
			out = append(out, t)
		}
	}
	return out
}

// Users returns the user list in registration order.
func (s *Store) Users() []core.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.users)
}

// Len returns the number of stored transactions.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.txs)
}

// Categories returns the distinct non-empty categories in first-seen order.
func (s *Store) Categories() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.categoriesLocked()
}

func (s *Store) categoriesLocked() []string {
	seen := map[string]struct{}{}
	out := make([]string, 0)
	for _, t := range s.txs {
		c := strings.TrimSpace(t.Category)
		if c == "" {
			continue
		}
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	return out
}

// Close retries the flush if the last one failed, and writes users
// registered from loaded transactions. A store whose appends were all
// flushed is not written again.
func (s *Store) Close(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dirty || s.usersDirty {
		if err := s.flushLocked(ctx); err != nil {
			return fmt.Errorf("final flush: %w", err)
		}
	}
	s.logger.InfoContext(ctx, "Ledger closed",
		log.FieldOperation, log.OpShutdown,
		log.FieldCount, len(s.txs))
	return nil
}
