// Package report renders an owner's transactions for export.
package report

import (
	"fmt"
	"strings"

	"splitledger/internal/core"
)

const (
	csvHeader      = "id,date,category,description,amount"
	noTransactions = "# no transactions"
)

// FormatCSV renders txs as CSV text, one line per transaction in the given
// order. Every line, the last one included, ends in a newline.
//
// Commas in descriptions are replaced with a space instead of being quoted;
// no other field is escaped.
func FormatCSV(txs []core.Transaction) string {
	var b strings.Builder
	b.WriteString(csvHeader)
	b.WriteByte('\n')
	if len(txs) == 0 {
		b.WriteString(noTransactions)
		b.WriteByte('\n')
		return b.String()
	}
	for _, t := range txs {
		fmt.Fprintf(&b, "%s,%s,%s,%s,%s\n",
			t.ID,
			t.Date,
			t.Category,
			strings.ReplaceAll(t.Description, ",", " "),
			core.FormatAmount(t.Amount))
	}
	return b.String()
}
