// Package detect flags transactions whose amount is far above the owner's
// usual spend in the same category and month.
//
// The baseline for a transaction is the mean amount of its peer group: the
// owner's transactions with the same category and the same YYYY-MM month,
// the transaction itself included. A transaction is flagged when the mean
// is positive and the amount is at least three times the mean. Because
// the subject is part of its own mean, a lone transaction in its
// category-month is never flagged.
package detect

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"splitledger/internal/core"
)

const (
	// NoData is the only line returned for an empty history.
	NoData = "no data for user"
	// NoAnomalies is the only line returned when nothing is flagged.
	NoAnomalies = "no anomalies found"
)

// threshold is the multiple of the peer-group mean that triggers a flag.
var threshold = decimal.NewFromInt(3)

// Flag is one detected anomaly.
type Flag struct {
	Transaction core.Transaction
	Reason      string
}

type peerKey struct {
	category string
	month    string
}

type peerStats struct {
	sum   decimal.Decimal
	count int64
}

// Option configures a scan.
type Option func(*config)

type config struct {
	duplicateMin int
}

// WithDuplicateScan also reports groups of at least min identical
// transactions (same date, category, description and amount). A group is
// reported once, at the position of its first member, after any high spend
// flag of that member. min below 2 disables the scan, which is the default.
func WithDuplicateScan(min int) Option {
	return func(c *config) { c.duplicateMin = min }
}

// Scan returns the flags for history in transaction order. History is one
// owner's transactions; mixing owners mixes their baselines.
func Scan(history []core.Transaction, opts ...Option) []Flag {
	var cfg config
	for _, opt := range opts {
		opt(&cfg)
	}

	peers := make(map[peerKey]*peerStats)
	for _, t := range history {
		k := peerKey{t.Category, t.Month()}
		st, ok := peers[k]
		if !ok {
			st = &peerStats{}
			peers[k] = st
		}
		st.sum = st.sum.Add(t.Amount)
		st.count++
	}

	var dups map[int]Flag
	if cfg.duplicateMin >= 2 {
		dups = duplicates(history, cfg.duplicateMin)
	}

	var flags []Flag
	for i, t := range history {
		st := peers[peerKey{t.Category, t.Month()}]
		// mean > 0 and amount >= 3*mean, cross-multiplied to stay exact
		if st.sum.IsPositive() && t.Amount.Mul(decimal.NewFromInt(st.count)).GreaterThanOrEqual(threshold.Mul(st.sum)) {
			flags = append(flags, Flag{
				Transaction: t,
				Reason:      fmt.Sprintf("high spend warning: %s %s %s", t.Category, t.Date, core.FormatAmount(t.Amount)),
			})
		}
		if f, ok := dups[i]; ok {
			flags = append(flags, f)
		}
	}
	return flags
}

// duplicates groups identical transactions and returns one flag per group,
// keyed by the position of the group's first member.
func duplicates(history []core.Transaction, min int) map[int]Flag {
	type dupKey struct {
		date, category, description, amount string
	}
	counts := make(map[dupKey]int)
	for _, t := range history {
		counts[dupKey{t.Date, t.Category, t.Description, t.Amount.String()}]++
	}

	flags := make(map[int]Flag)
	reported := make(map[dupKey]bool)
	for i, t := range history {
		k := dupKey{t.Date, t.Category, t.Description, t.Amount.String()}
		if counts[k] < min || reported[k] {
			continue
		}
		reported[k] = true
		flags[i] = Flag{
			Transaction: t,
			Reason: fmt.Sprintf("duplicate x%d warning: %s %s %s %s",
				counts[k], t.Category, t.Date, t.Description, core.FormatAmount(t.Amount)),
		}
	}
	return flags
}

// Detect runs Scan and returns the report lines. The result is never empty:
// NoData for an empty history, NoAnomalies when nothing is flagged.
func Detect(history []core.Transaction, opts ...Option) []string {
	if len(history) == 0 {
		return []string{NoData}
	}
	flags := Scan(history, opts...)
	if len(flags) == 0 {
		return []string{NoAnomalies}
	}
	out := make([]string, len(flags))
	for i, f := range flags {
		out[i] = f.Reason
	}
	return out
}

// Report joins lines into the text of an anomaly export.
func Report(lines []string) string {
	return strings.Join(lines, "\n")
}
