// Package split turns one shared expense into owner-attributed transactions.
//
// Equal mode rounds every share to two decimals independently (half away
// from zero) and does not redistribute the remainder, so the shares may sum
// to up to count*0.005 away from the total. Custom mode copies the supplied
// amounts verbatim and does not check them against the total.
package split

import (
	"strings"

	"github.com/shopspring/decimal"

	"splitledger/internal/core"
)

// Kind selects how the total is distributed.
type Kind string

const (
	KindEqual  Kind = "equal"
	KindCustom Kind = "custom"
)

// Mode is a split mode plus, for custom splits, the per-participant amounts.
type Mode struct {
	Kind    Kind
	Amounts []float64
}

// Equal splits the total evenly.
func Equal() Mode { return Mode{Kind: KindEqual} }

// Custom assigns amounts[i] to participants[i].
func Custom(amounts []float64) Mode { return Mode{Kind: KindCustom, Amounts: amounts} }

// Request describes one shared expense. Payer is optional; when set,
// every share records who paid, which is what balances are derived from.
type Request struct {
	Total        float64
	Participants []string
	Mode         Mode
	Date         string
	Category     string
	Description  string
	Payer        string
}

// Allocator builds split transactions with fresh identifiers.
// A nil NewID falls back to core.NewID.
type Allocator struct {
	NewID core.IDFunc
}

// Allocate validates req and returns one transaction per participant, in
// participant order. Nothing is returned unless every share is valid.
func (a Allocator) Allocate(req Request) ([]core.Transaction, error) {
	total, err := core.AmountFromFloat(req.Total)
	if err != nil {
		return nil, core.Invalid("total", core.ErrNonFiniteAmount)
	}
	participants, err := NormalizeParticipants(req.Participants)
	if err != nil {
		return nil, err
	}

	shares, err := shares(total, len(participants), req.Mode)
	if err != nil {
		return nil, err
	}

	newID := a.NewID
	if newID == nil {
		newID = core.NewID
	}

	out := make([]core.Transaction, len(participants))
	for i, p := range participants {
		out[i] = core.Transaction{
			ID:          newID(),
			Owner:       p,
			Date:        strings.TrimSpace(req.Date),
			Category:    strings.TrimSpace(req.Category),
			Description: strings.TrimSpace(req.Description),
			Amount:      shares[i],
			Payer:       strings.TrimSpace(req.Payer),
		}
		if err := out[i].Validate(); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// NormalizeParticipants trims names. Owners are opaque, so case is kept:
// "Alice" and "alice" are different owners. Duplicates are kept, each
// occurrence is an independent share.
func NormalizeParticipants(in []string) ([]string, error) {
	if len(in) == 0 {
		return nil, core.Invalid("participants", core.ErrNoParticipants)
	}
	out := make([]string, len(in))
	for i, p := range in {
		p = strings.TrimSpace(p)
		if p == "" {
			return nil, core.Invalid("participants", core.ErrEmptyOwner)
		}
		out[i] = p
	}
	return out, nil
}

// ParseParticipants splits a comma-separated participant list, dropping blanks.
func ParseParticipants(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func shares(total decimal.Decimal, count int, mode Mode) ([]decimal.Decimal, error) {
	switch mode.Kind {
	case KindEqual, "":
		each := total.DivRound(decimal.NewFromInt(int64(count)), 2)
		out := make([]decimal.Decimal, count)
		for i := range out {
			out[i] = each
		}
		return out, nil
	case KindCustom:
		if len(mode.Amounts) != count {
			return nil, core.Invalid("amounts", core.ErrCountMismatch)
		}
		out := make([]decimal.Decimal, count)
		for i, f := range mode.Amounts {
			d, err := core.AmountFromFloat(f)
			if err != nil {
				// Non-finite amounts reject the split; they are never dropped.
				return nil, core.Invalid("amounts", core.ErrCountMismatch)
			}
			out[i] = d
		}
		return out, nil
	default:
		return nil, core.Invalid("mode", core.ErrInvalidMode)
	}
}
