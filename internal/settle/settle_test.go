package settle

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"splitledger/internal/core"
	"splitledger/internal/kv"
	"splitledger/internal/kv/memory"
)

func share(owner, payer, amount string) core.Transaction {
	return core.Transaction{ID: "TX" + owner, Owner: owner, Payer: payer, Date: "2025-05-01", Category: "dinner", Amount: decimal.RequireFromString(amount)}
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestBalances(t *testing.T) {
	shares := []core.Transaction{
		share("alice", "alice", "30"),
		share("bob", "alice", "30"),
		share("carol", "alice", "30"),
		{ID: "TXp", Owner: "bob", Date: "2025-05-01", Category: "food", Amount: dec("99")},
	}
	settlements := []Settlement{{Date: "2025-05-02", From: "bob", To: "alice", Amount: dec("30")}}

	got := Balances(shares, settlements)
	want := []Balance{{"alice", dec("30")}, {"bob", dec("0")}, {"carol", dec("-30")}}
	if len(got) != len(want) {
		t.Fatalf("got %+v, want %+v", got, want)
	}
	sum := decimal.Zero
	for i := range want {
		if got[i].Member != want[i].Member || !got[i].Amount.Equal(want[i].Amount) {
			t.Fatalf("balance %d: got %+v, want %+v", i, got[i], want[i])
		}
		sum = sum.Add(got[i].Amount)
	}
	if !sum.IsZero() {
		t.Fatalf("balances must sum to zero, got %s", sum)
	}
}

func TestSuggest(t *testing.T) {
	cases := []struct {
		name     string
		balances []Balance
		want     []Suggestion
	}{
		{"empty", nil, nil},
		{"within a cent", []Balance{{"a", dec("0.01")}, {"b", dec("-0.01")}}, nil},
		{
			"one debtor",
			[]Balance{{"alice", dec("30")}, {"bob", dec("0")}, {"carol", dec("-30")}},
			[]Suggestion{{From: "carol", To: "alice", Amount: dec("30")}},
		},
		{
			"greedy pairing",
			[]Balance{{"a", dec("50")}, {"b", dec("10")}, {"c", dec("-20")}, {"d", dec("-40")}},
			[]Suggestion{
				{From: "c", To: "a", Amount: dec("20")},
				{From: "d", To: "a", Amount: dec("30")},
				{From: "d", To: "b", Amount: dec("10")},
			},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Suggest(tc.balances)
			if len(got) != len(tc.want) {
				t.Fatalf("got %+v, want %+v", got, tc.want)
			}
			for i := range tc.want {
				g, w := got[i], tc.want[i]
				if g.From != w.From || g.To != w.To || !g.Amount.Equal(w.Amount) {
					t.Fatalf("suggestion %d: got %+v, want %+v", i, g, w)
				}
			}
		})
	}
}

func TestFormat(t *testing.T) {
	if got := FormatBalances(nil); got != "no members\n" {
		t.Fatalf("unexpected empty balances %q", got)
	}
	got := FormatBalances([]Balance{{"alice", dec("30")}, {"carol", dec("-30.005")}})
	want := "current balances\n" +
		"alice           : 30.00\n" +
		"carol           : -30.01\n"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}

	if got := FormatSuggestions(nil); got != "balances already settled\n" {
		t.Fatalf("unexpected empty suggestions %q", got)
	}
	got = FormatSuggestions([]Suggestion{{From: "carol", To: "alice", Amount: dec("30")}})
	if got != "suggested settlements\nalice should receive 30.00 from carol\n" {
		t.Fatalf("unexpected suggestions %q", got)
	}

	if got := FormatHistory(nil); got != "no settlements\n" {
		t.Fatalf("unexpected empty history %q", got)
	}
	got = FormatHistory([]Settlement{{Date: "2025-05-02", From: "bob", To: "alice", Amount: dec("30")}})
	if got != "settlement history\n2025-05-02 bob paid alice 30.00\n" {
		t.Fatalf("unexpected history %q", got)
	}
}

func TestSettlementValidate(t *testing.T) {
	good := Settlement{Date: "2025-05-02", From: "bob", To: "alice", Amount: dec("5")}
	cases := []struct {
		name string
		mut  func(*Settlement)
		want error
	}{
		{"empty from", func(s *Settlement) { s.From = "" }, core.ErrEmptyOwner},
		{"empty to", func(s *Settlement) { s.To = " " }, core.ErrEmptyOwner},
		{"same member", func(s *Settlement) { s.To = "bob" }, core.ErrSelfSettlement},
		{"empty date", func(s *Settlement) { s.Date = "" }, core.ErrEmptyDate},
		{"zero amount", func(s *Settlement) { s.Amount = decimal.Zero }, core.ErrInvalidAmount},
		{"negative amount", func(s *Settlement) { s.Amount = dec("-1") }, core.ErrInvalidAmount},
	}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := good
			tc.mut(&s)
			err := s.Validate()
			if !errors.Is(err, tc.want) || !errors.Is(err, core.ErrValidation) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

type failingKV struct {
	getErr error
	setErr error
}

func (f failingKV) Get(context.Context, string) (string, bool, error) { return "", false, f.getErr }
func (f failingKV) Set(context.Context, string, string) error         { return f.setErr }

func TestBookRecordAndReopen(t *testing.T) {
	ctx := context.Background()
	backend := memory.New()
	b, err := Open(ctx, backend, nil)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	got, err := b.Record(ctx, Settlement{Date: " 2025-05-02 ", From: " bob", To: "alice", Amount: dec("12.345")})
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	if got.From != "bob" || got.Date != "2025-05-02" {
		t.Fatalf("fields not trimmed: %+v", got)
	}
	if _, err := b.Record(ctx, Settlement{Date: "2025-05-02", From: "bob", To: "bob", Amount: dec("1")}); !errors.Is(err, core.ErrSelfSettlement) {
		t.Fatalf("expected self settlement error, got %v", err)
	}

	raw, _, _ := backend.Get(ctx, kv.KeySettlements)
	if raw != `[{"date":"2025-05-02","from":"bob","to":"alice","amt":12.345}]` {
		t.Fatalf("unexpected stored settlements %s", raw)
	}

	reopened, err := Open(ctx, backend, nil)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	h := reopened.History()
	if len(h) != 1 || h[0].To != "alice" || !h[0].Amount.Equal(dec("12.345")) {
		t.Fatalf("unexpected history %+v", h)
	}
}

func TestBookOpen(t *testing.T) {
	ctx := context.Background()
	if _, err := Open(ctx, failingKV{getErr: errors.New("connection refused")}, nil); err == nil {
		t.Fatal("expected backend error")
	}

	backend := memory.New()
	if err := backend.Set(ctx, kv.KeySettlements, "{not json"); err != nil {
		t.Fatalf("seed: %v", err)
	}
	b, err := Open(ctx, backend, nil)
	if err != nil || len(b.History()) != 0 {
		t.Fatalf("expected empty book, got %+v err=%v", b, err)
	}

	if err := backend.Set(ctx, kv.KeySettlements, `[{"date":"d","from":"a","to":"b","amt":"2"},{"date":"d","from":"a","to":"a","amt":1}]`); err != nil {
		t.Fatalf("seed: %v", err)
	}
	b, err = Open(ctx, backend, nil)
	if err != nil || len(b.History()) != 1 {
		t.Fatalf("expected the valid entry only, got %+v err=%v", b.History(), err)
	}
}

func TestBookRecordFlushError(t *testing.T) {
	ctx := context.Background()
	b, err := Open(ctx, failingKV{setErr: errors.New("read-only")}, nil)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, err := b.Record(ctx, Settlement{Date: "d", From: "a", To: "b", Amount: dec("1")}); err == nil {
		t.Fatal("expected flush error")
	}
	if len(b.History()) != 1 {
		t.Fatal("settlement must stay in memory after a failed flush")
	}
}
