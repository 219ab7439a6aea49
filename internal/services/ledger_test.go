package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"splitledger/internal/cache"
	"splitledger/internal/core"
	"splitledger/internal/detect"
	"splitledger/internal/export"
	exportmem "splitledger/internal/export/memory"
	"splitledger/internal/kv/memory"
	"splitledger/internal/ledger"
	"splitledger/internal/report"
	"splitledger/internal/settle"
	"splitledger/internal/split"
)

func seqIDs() core.IDFunc {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("TX%d", n)
	}
}

func newTestLedger(t *testing.T, exporter export.Exporter, opts ...Option) *Ledger {
	t.Helper()
	reports := cache.NewReportCache(16, time.Hour, nil)
	store, err := ledger.Open(context.Background(), memory.New(),
		ledger.WithIDFunc(seqIDs()),
		ledger.WithObserver(reports))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	return NewLedger(store, exporter, append([]Option{WithReportCache(reports)}, opts...)...)
}

func record(t *testing.T, l *Ledger, owner, date, category, description, amount string) {
	t.Helper()
	if _, err := l.Record(context.Background(), owner, date, category, description, decimal.RequireFromString(amount)); err != nil {
		t.Fatalf("record: %v", err)
	}
}

func TestTransactionsNotFound(t *testing.T) {
	l := newTestLedger(t, nil)
	_, err := l.Transactions("nobody")
	var nf *core.NotFoundError
	if !errors.As(err, &nf) || nf.Owner != "nobody" || !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
	if _, err := l.Summary("nobody"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected NotFoundError from Summary, got %v", err)
	}
}

func TestAnomaliesFollowAppends(t *testing.T) {
	l := newTestLedger(t, nil)

	if got := l.Anomalies("alice"); len(got) != 1 || got[0] != detect.NoData {
		t.Fatalf("unexpected lines %v", got)
	}
	for i := 0; i < 3; i++ {
		record(t, l, "alice", "2025-01-0"+fmt.Sprint(i+1), "food", "", "1")
	}
	if got := l.Anomalies("alice"); got[0] != detect.NoAnomalies {
		t.Fatalf("unexpected lines %v", got)
	}

	record(t, l, "alice", "2025-01-20", "food", "feast", "30")
	got := l.Anomalies("alice")
	if len(got) != 1 || got[0] != "high spend warning: food 2025-01-20 30.00" {
		t.Fatalf("stale or wrong anomaly report: %v", got)
	}
}

func TestSplitThroughService(t *testing.T) {
	l := newTestLedger(t, nil)
	txs, err := l.Split(context.Background(), split.Request{
		Total:        10,
		Participants: []string{"Alice", "bob", "carol"},
		Mode:         split.Equal(),
		Date:         "2025-02-01",
		Category:     "dinner",
	})
	if err != nil {
		t.Fatalf("split: %v", err)
	}
	if len(txs) != 3 || txs[0].Owner != "Alice" || txs[0].Amount.String() != "3.33" {
		t.Fatalf("unexpected shares %+v", txs)
	}
	if got := l.Categories(); len(got) != 1 || got[0] != "dinner" {
		t.Fatalf("unexpected categories %v", got)
	}

	_, err = l.Split(context.Background(), split.Request{
		Total:        10,
		Participants: []string{"alice", "bob"},
		Mode:         split.Custom([]float64{1}),
		Date:         "2025-02-01",
		Category:     "dinner",
	})
	if !errors.Is(err, core.ErrCountMismatch) {
		t.Fatalf("expected count mismatch, got %v", err)
	}
}

func TestSorted(t *testing.T) {
	l := newTestLedger(t, nil)
	record(t, l, "alice", "2025-03-01", "b", "", "5")
	record(t, l, "alice", "2025-01-01", "a", "", "7")

	txs, err := l.Sorted("alice", report.SortByDate)
	if err != nil {
		t.Fatalf("sorted: %v", err)
	}
	if txs[0].Date != "2025-01-01" {
		t.Fatalf("unexpected order %+v", txs)
	}
	if _, err := l.Sorted("alice", "owner"); !errors.Is(err, report.ErrUnknownSortKey) {
		t.Fatalf("expected unknown key error, got %v", err)
	}
}

func TestExportWritesBothReports(t *testing.T) {
	out := exportmem.New()
	l := newTestLedger(t, out)
	record(t, l, "alice", "2025-01-02", "food", "lunch, with team", "12.5")

	if err := l.Export(context.Background(), "alice"); err != nil {
		t.Fatalf("export: %v", err)
	}

	csv, ok := out.Get("report_alice.csv")
	if !ok || !strings.Contains(csv, "TX1,2025-01-02,food,lunch  with team,12.50\n") {
		t.Fatalf("unexpected csv %q", csv)
	}
	fraud, ok := out.Get("fraud_alice.txt")
	if !ok || fraud != detect.NoAnomalies {
		t.Fatalf("unexpected fraud report %q", fraud)
	}
}

func TestExportEmptyOwner(t *testing.T) {
	out := exportmem.New()
	l := newTestLedger(t, out)

	if err := l.Export(context.Background(), "bob"); err != nil {
		t.Fatalf("export: %v", err)
	}
	if csv, _ := out.Get("report_bob.csv"); csv != "id,date,category,description,amount\n# no transactions\n" {
		t.Fatalf("unexpected csv %q", csv)
	}
	if fraud, _ := out.Get("fraud_bob.txt"); fraud != detect.NoData {
		t.Fatalf("unexpected fraud report %q", fraud)
	}
}

func TestExportError(t *testing.T) {
	boom := errors.New("disk full")
	l := newTestLedger(t, failingExporter{prefix: "fraud_", err: boom})
	if err := l.Export(context.Background(), "alice"); !errors.Is(err, boom) {
		t.Fatalf("expected export error, got %v", err)
	}

	if err := newTestLedger(t, nil).Export(context.Background(), "alice"); err == nil {
		t.Fatal("expected error without exporter")
	}
}

type failingExporter struct {
	prefix string
	err    error
}

func (f failingExporter) Export(_ context.Context, filename, _ string) error {
	if strings.HasPrefix(filename, f.prefix) {
		return f.err
	}
	return nil
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

func TestCloseJoinsErrors(t *testing.T) {
	closed := 0
	l := newTestLedger(t, nil,
		WithCloser(closerFunc(func() error { closed++; return nil })),
		WithCloser(closerFunc(func() error { closed++; return errors.New("amqp: gone") })))

	err := l.Close(context.Background())
	if err == nil || !strings.Contains(err.Error(), "amqp: gone") {
		t.Fatalf("expected joined error, got %v", err)
	}
	if closed != 2 {
		t.Fatalf("expected both closers to run, got %d", closed)
	}
}

func TestSplitOwnerCaseMatchesRecord(t *testing.T) {
	l := newTestLedger(t, nil)
	record(t, l, "Alice", "2025-02-01", "dinner", "", "4")
	if _, err := l.Split(context.Background(), split.Request{
		Total:        10,
		Participants: []string{"Alice", "Bob"},
		Mode:         split.Equal(),
		Date:         "2025-02-01",
		Category:     "dinner",
	}); err != nil {
		t.Fatalf("split: %v", err)
	}
	txs, err := l.Transactions("Alice")
	if err != nil || len(txs) != 2 {
		t.Fatalf("expected both records for Alice, got %+v err=%v", txs, err)
	}
	if got := l.Anomalies("alice"); got[0] != detect.NoData {
		t.Fatalf("owners are case sensitive, got %v", got)
	}
}

func TestSettleUp(t *testing.T) {
	ctx := context.Background()
	book, err := settle.Open(ctx, memory.New(), nil)
	if err != nil {
		t.Fatalf("open book: %v", err)
	}
	l := newTestLedger(t, nil, WithSettlements(book))

	if _, err := l.Split(ctx, split.Request{
		Total:        90,
		Participants: []string{"alice", "bob", "carol"},
		Payer:        "alice",
		Date:         "2025-05-01",
		Category:     "dinner",
	}); err != nil {
		t.Fatalf("split: %v", err)
	}
	record(t, l, "bob", "2025-05-01", "food", "", "12")

	if got := settle.FormatSuggestions(l.Suggestions()); got != "suggested settlements\nalice should receive 30.00 from bob\nalice should receive 30.00 from carol\n" {
		t.Fatalf("unexpected suggestions %q", got)
	}

	if _, err := l.Settle(ctx, "2025-05-02", "bob", "alice", decimal.NewFromInt(30)); err != nil {
		t.Fatalf("settle: %v", err)
	}
	if _, err := l.Settle(ctx, "2025-05-02", "bob", "bob", decimal.NewFromInt(1)); !errors.Is(err, core.ErrSelfSettlement) {
		t.Fatalf("expected self settlement error, got %v", err)
	}
	if got := settle.FormatBalances(l.Balances()); got != "current balances\nalice           : 30.00\nbob             : 0.00\ncarol           : -30.00\n" {
		t.Fatalf("unexpected balances %q", got)
	}
	if len(l.Settlements()) != 1 {
		t.Fatalf("unexpected history %+v", l.Settlements())
	}

	names := make([]string, 0)
	for _, u := range l.Users() {
		names = append(names, u.Name)
	}
	if fmt.Sprint(names) != "[alice bob carol]" {
		t.Fatalf("unexpected users %v", names)
	}
}

func TestSettleWithoutBook(t *testing.T) {
	l := newTestLedger(t, nil)
	if _, err := l.Settle(context.Background(), "2025-05-02", "bob", "alice", decimal.NewFromInt(1)); !errors.Is(err, ErrNoSettlementBook) {
		t.Fatalf("expected ErrNoSettlementBook, got %v", err)
	}
	if got := l.Suggestions(); len(got) != 0 {
		t.Fatalf("expected no suggestions, got %+v", got)
	}
}
