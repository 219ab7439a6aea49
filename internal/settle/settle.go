// Package settle derives who owes whom from paid shared expenses and
// recorded settlements, and suggests payments that square everyone up.
//
// A share of an expense paid by P and attributed to O moves the share
// amount from O to P: O's balance goes down, P's goes up. A settlement
// where F pays T moves the amount the other way. Balances always sum to
// zero. A positive balance is money the member is owed.
package settle

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"splitledger/internal/core"
)

// tolerance is the largest balance treated as settled.
var tolerance = decimal.New(1, -2)

// Settlement is a payment from one member to another.
type Settlement struct {
	Date   string
	From   string
	To     string
	Amount decimal.Decimal
}

// Validate checks a settlement before it is recorded.
func (s Settlement) Validate() error {
	if strings.TrimSpace(s.From) == "" {
		return core.Invalid("from", core.ErrEmptyOwner)
	}
	if strings.TrimSpace(s.To) == "" {
		return core.Invalid("to", core.ErrEmptyOwner)
	}
	if s.From == s.To {
		return core.Invalid("to", core.ErrSelfSettlement)
	}
	if strings.TrimSpace(s.Date) == "" {
		return core.Invalid("date", core.ErrEmptyDate)
	}
	if !s.Amount.IsPositive() {
		return core.Invalid("amount", core.ErrInvalidAmount)
	}
	return nil
}

// Balance is a member's net position.
type Balance struct {
	Member string
	Amount decimal.Decimal
}

// Suggestion is a payment From should make To.
type Suggestion struct {
	From   string
	To     string
	Amount decimal.Decimal
}

// Balances nets shares and settlements per member, in first-seen order.
// Transactions without a payer are ignored.
func Balances(shares []core.Transaction, settlements []Settlement) []Balance {
	index := make(map[string]int)
	var out []Balance
	add := func(member string, amount decimal.Decimal) {
		i, ok := index[member]
		if !ok {
			i = len(out)
			index[member] = i
			out = append(out, Balance{Member: member})
		}
		out[i].Amount = out[i].Amount.Add(amount)
	}

	for _, t := range shares {
		if !t.Shared() {
			continue
		}
		add(t.Payer, t.Amount)
		add(t.Owner, t.Amount.Neg())
	}
	for _, s := range settlements {
		add(s.From, s.Amount)
		add(s.To, s.Amount.Neg())
	}
	return out
}

// Suggest pairs members who are owed with members who owe, greedily in
// balance order, until one side runs out. Balances within one cent of zero
// are settled. An empty result means nothing is left to pay.
func Suggest(balances []Balance) []Suggestion {
	type open struct {
		member string
		amount decimal.Decimal
	}
	var creditors, debtors []open
	for _, b := range balances {
		switch {
		case b.Amount.GreaterThan(tolerance):
			creditors = append(creditors, open{b.Member, b.Amount})
		case b.Amount.LessThan(tolerance.Neg()):
			debtors = append(debtors, open{b.Member, b.Amount.Neg()})
		}
	}

	var out []Suggestion
	i, j := 0, 0
	for i < len(creditors) && j < len(debtors) {
		pay := decimal.Min(creditors[i].amount, debtors[j].amount)
		out = append(out, Suggestion{From: debtors[j].member, To: creditors[i].member, Amount: pay})
		creditors[i].amount = creditors[i].amount.Sub(pay)
		debtors[j].amount = debtors[j].amount.Sub(pay)
		if creditors[i].amount.LessThanOrEqual(tolerance) {
			i++
		}
		if debtors[j].amount.LessThanOrEqual(tolerance) {
			j++
		}
	}
	return out
}

func FormatBalances(balances []Balance) string {
	if len(balances) == 0 {
		return "no members\n"
	}
	var b strings.Builder
	b.WriteString("current balances\n")
	for _, bal := range balances {
		fmt.Fprintf(&b, "%-15s : %s\n", bal.Member, core.FormatAmount(bal.Amount))
	}
	return b.String()
}

func FormatSuggestions(suggestions []Suggestion) string {
	if len(suggestions) == 0 {
		return "balances already settled\n"
	}
	var b strings.Builder
	b.WriteString("suggested settlements\n")
	for _, s := range suggestions {
		fmt.Fprintf(&b, "%s should receive %s from %s\n", s.To, core.FormatAmount(s.Amount), s.From)
	}
	return b.String()
}

func FormatHistory(settlements []Settlement) string {
	if len(settlements) == 0 {
		return "no settlements\n"
	}
	var b strings.Builder
	b.WriteString("settlement history\n")
	for _, s := range settlements {
		fmt.Fprintf(&b, "%s %s paid %s %s\n", s.Date, s.From, s.To, core.FormatAmount(s.Amount))
	}
	return b.String()
}
