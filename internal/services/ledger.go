package services

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"splitledger/internal/cache"
	"splitledger/internal/core"
	"splitledger/internal/detect"
	"splitledger/internal/export"
	"splitledger/internal/ledger"
	"splitledger/internal/log"
	"splitledger/internal/report"
	"splitledger/internal/settle"
	"splitledger/internal/split"
)

// ErrNoSettlementBook is returned by Settle when no settlement book is wired.
var ErrNoSettlementBook = errors.New("settlements not configured")

// Ledger is what the command line talks to. It composes the store with
// the detector, the formatter and the export collaborator.
type Ledger struct {
	store      *ledger.Store
	exporter   export.Exporter
	reports    *cache.ReportCache
	book       *settle.Book
	detectOpts []detect.Option
	closers    []io.Closer
	logger     *log.Logger
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithReportCache serves anomaly reports from c. c must also be registered
// as an observer of the store, otherwise cached reports go stale.
func WithReportCache(c *cache.ReportCache) Option {
	return func(l *Ledger) { l.reports = c }
}

// WithSettlements records and reads settlements through b.
func WithSettlements(b *settle.Book) Option {
	return func(l *Ledger) { l.book = b }
}

// WithDetectOptions passes opts to every anomaly scan.
func WithDetectOptions(opts ...detect.Option) Option {
	return func(l *Ledger) { l.detectOpts = append(l.detectOpts, opts...) }
}

// WithCloser registers a resource released by Close after the final flush.
func WithCloser(c io.Closer) Option {
	return func(l *Ledger) { l.closers = append(l.closers, c) }
}

func WithLogger(logger *log.Logger) Option {
	return func(l *Ledger) { l.logger = logger }
}

func NewLedger(store *ledger.Store, exporter export.Exporter, opts ...Option) *Ledger {
	l := &Ledger{store: store, exporter: exporter, logger: log.Nop()}
	for _, opt := range opts {
		opt(l)
	}
	l.logger = l.logger.WithComponent(log.ComponentApp)
	return l
}

// Record appends one transaction for owner.
func (l *Ledger) Record(ctx context.Context, owner, date, category, description string, amount decimal.Decimal) (core.Transaction, error) {
	t, err := l.store.RecordAmount(ctx, owner, date, category, description, amount)
	if err != nil {
		return t, fmt.Errorf("record transaction: %w", err)
	}
	return t, nil
}

// Split allocates a shared expense and records every share.
func (l *Ledger) Split(ctx context.Context, req split.Request) ([]core.Transaction, error) {
	txs, err := l.store.Split(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("split expense: %w", err)
	}
	return txs, nil
}

// Transactions returns owner's transactions, or a NotFoundError when there
// are none.
func (l *Ledger) Transactions(owner string) ([]core.Transaction, error) {
	txs := l.store.Transactions(owner)
	if len(txs) == 0 {
		return nil, &core.NotFoundError{Owner: owner}
	}
	return txs, nil
}

// Sorted returns owner's transactions ordered by key.
func (l *Ledger) Sorted(owner string, key report.SortKey) ([]core.Transaction, error) {
	txs, err := l.Transactions(owner)
	if err != nil {
		return nil, err
	}
	return report.SortBy(txs, key)
}

// Categories lists the category registry.
func (l *Ledger) Categories() []string {
	return l.store.Categories()
}

// Users lists every known user in registration order.
func (l *Ledger) Users() []core.User {
	return l.store.Users()
}

// Settle records that from paid to.
func (l *Ledger) Settle(ctx context.Context, date, from, to string, amount decimal.Decimal) (settle.Settlement, error) {
	if l.book == nil {
		return settle.Settlement{}, ErrNoSettlementBook
	}
	s, err := l.book.Record(ctx, settle.Settlement{Date: date, From: from, To: to, Amount: amount})
	if err != nil {
		return s, fmt.Errorf("record settlement: %w", err)
	}
	return s, nil
}

// Settlements returns the settlement history.
func (l *Ledger) Settlements() []settle.Settlement {
	if l.book == nil {
		return nil
	}
	return l.book.History()
}

// Balances nets every paid shared expense against the settlements.
func (l *Ledger) Balances() []settle.Balance {
	return settle.Balances(l.store.Shared(), l.Settlements())
}

// Suggestions proposes the payments that clear the current balances.
func (l *Ledger) Suggestions() []settle.Suggestion {
	return settle.Suggest(l.Balances())
}

// CSVReport renders owner's transactions. An owner without transactions
// gets the empty report, not an error.
func (l *Ledger) CSVReport(owner string) string {
	return report.FormatCSV(l.store.Transactions(owner))
}

// Anomalies returns the anomaly report lines for owner. It never fails:
// an owner without history gets detect.NoData.
func (l *Ledger) Anomalies(owner string) []string {
	compute := func() []string {
		txs, err := l.Transactions(owner)
		if errors.Is(err, core.ErrNotFound) {
			return []string{detect.NoData}
		}
		return detect.Detect(txs, l.detectOpts...)
	}
	if l.reports == nil {
		return compute()
	}
	return l.reports.Lines(owner, compute)
}

// Summary renders category, top expense and monthly totals for owner.
func (l *Ledger) Summary(owner string) (string, error) {
	txs, err := l.Transactions(owner)
	if err != nil {
		return "", err
	}
	return report.FormatSummary(txs), nil
}

// Export delivers the CSV report and the anomaly report for owner to the
// export collaborator. Both exports run concurrently; the first error is
// returned once both have finished.
func (l *Ledger) Export(ctx context.Context, owner string) error {
	if l.exporter == nil {
		return errors.New("no export target configured")
	}

	csv := l.CSVReport(owner)
	fraud := detect.Report(l.Anomalies(owner))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := l.exporter.Export(gctx, export.ReportFilename(owner), csv); err != nil {
			return fmt.Errorf("export report: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		if err := l.exporter.Export(gctx, export.FraudFilename(owner), fraud); err != nil {
			return fmt.Errorf("export anomalies: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		log.LogError(ctx, l.logger, "Export failed", err, log.OpExport, log.NewFields().WithOwner(owner))
		return err
	}

	l.logger.InfoContext(ctx, "Reports exported",
		log.FieldOperation, log.OpExport,
		log.FieldOwner, owner)
	return nil
}

// Close flushes the store and releases every registered resource.
func (l *Ledger) Close(ctx context.Context) error {
	var errs []error
	if err := l.store.Close(ctx); err != nil {
		errs = append(errs, fmt.Errorf("store: %w", err))
	}
	for _, c := range l.closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
