package report

import (
	"cmp"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/shopspring/decimal"

	"splitledger/internal/core"
)

// DefaultTop is the number of expenses listed by FormatSummary.
const DefaultTop = 5

// SortKey selects the field SortBy orders on.
type SortKey string

const (
	SortByID          SortKey = "id"
	SortByDate        SortKey = "date"
	SortByCategory    SortKey = "category"
	SortByDescription SortKey = "description"
	SortByAmount      SortKey = "amount"
)

var ErrUnknownSortKey = errors.New("unknown sort key")

// ParseSortKey maps user input to a SortKey.
func ParseSortKey(s string) (SortKey, error) {
	k := SortKey(strings.ToLower(strings.TrimSpace(s)))
	switch k {
	case SortByID, SortByDate, SortByCategory, SortByDescription, SortByAmount:
		return k, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownSortKey, s)
}

// SortBy returns a copy of txs ordered ascending by key. Ties keep their
// original order.
func SortBy(txs []core.Transaction, key SortKey) ([]core.Transaction, error) {
	var compare func(a, b core.Transaction) int
	switch key {
	case SortByID:
		compare = func(a, b core.Transaction) int { return cmp.Compare(a.ID, b.ID) }
	case SortByDate:
		compare = func(a, b core.Transaction) int { return cmp.Compare(a.Date, b.Date) }
	case SortByCategory:
		compare = func(a, b core.Transaction) int { return cmp.Compare(a.Category, b.Category) }
	case SortByDescription:
		compare = func(a, b core.Transaction) int { return cmp.Compare(a.Description, b.Description) }
	case SortByAmount:
		compare = func(a, b core.Transaction) int { return a.Amount.Cmp(b.Amount) }
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownSortKey, key)
	}
	out := slices.Clone(txs)
	slices.SortStableFunc(out, compare)
	return out, nil
}

// CategoryTotals sums amounts per category, in first-seen category order.
func CategoryTotals(txs []core.Transaction) []core.CategoryAmount {
	index := make(map[string]int)
	var out []core.CategoryAmount
	for _, t := range txs {
		i, ok := index[t.Category]
		if !ok {
			i = len(out)
			index[t.Category] = i
			out = append(out, core.CategoryAmount{Name: t.Category})
		}
		out[i].Amount = out[i].Amount.Add(t.Amount)
	}
	return out
}

// TopExpenses returns up to n transactions with the largest amounts,
// largest first. Equal amounts keep their original order. txs is not modified.
func TopExpenses(txs []core.Transaction, n int) []core.Transaction {
	if n <= 0 {
		return nil
	}
	out := slices.Clone(txs)
	slices.SortStableFunc(out, func(a, b core.Transaction) int { return b.Amount.Cmp(a.Amount) })
	if len(out) > n {
		out = out[:n]
	}
	return out
}

// MonthlyTotals sums amounts per YYYY-MM month, in first-seen month order.
func MonthlyTotals(txs []core.Transaction) []core.MonthTotal {
	index := make(map[string]int)
	var out []core.MonthTotal
	for _, t := range txs {
		m := t.Month()
		i, ok := index[m]
		if !ok {
			i = len(out)
			index[m] = i
			out = append(out, core.MonthTotal{Month: m})
		}
		out[i].Total = out[i].Total.Add(t.Amount)
	}
	return out
}

// Total is the sum of every amount.
func Total(txs []core.Transaction) decimal.Decimal {
	sum := decimal.Zero
	for _, t := range txs {
		sum = sum.Add(t.Amount)
	}
	return sum
}

// FormatSummary renders category totals, the top expenses and monthly
// totals as a plain text block.
func FormatSummary(txs []core.Transaction) string {
	var b strings.Builder

	b.WriteString("category totals\n")
	for _, c := range CategoryTotals(txs) {
		fmt.Fprintf(&b, "%-15s : %s\n", c.Name, core.FormatAmount(c.Amount))
	}

	fmt.Fprintf(&b, "\ntop %d expenses\n", DefaultTop)
	for _, t := range TopExpenses(txs, DefaultTop) {
		fmt.Fprintf(&b, "%-10s %-12s %-20s %s\n", t.Date, t.Category, t.Description, core.FormatAmount(t.Amount))
	}

	b.WriteString("\nmonthly summary\n")
	for _, m := range MonthlyTotals(txs) {
		fmt.Fprintf(&b, "%s : %s\n", m.Month, core.FormatAmount(m.Total))
	}

	fmt.Fprintf(&b, "\ntotal : %s\n", core.FormatAmount(Total(txs)))
	return b.String()
}
