package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

type (
	// Transaction is the atomic ledger entry. Once created it is never mutated.
	Transaction struct {
		ID          string
		Owner       string // user the line is attributed to
		Date        string // YYYY-MM-DD
		Category    string
		Description string
		Amount      decimal.Decimal
		// Payer is who paid the shared expense this line is a share of.
		// Empty for personal entries.
		Payer string
	}

	// User is an identity record. The ledger relies on Name only; Attrs
	// holds the identity collaborator's other fields, stored verbatim.
	User struct {
		Name  string
		Attrs map[string]json.RawMessage
	}
)

var (
	// ErrValidation matches every ValidationError through errors.Is.
	ErrValidation = errors.New("validation error")
	// ErrNotFound matches every NotFoundError through errors.Is.
	ErrNotFound = errors.New("not found")

	ErrEmptyID         = errors.New("empty id")
	ErrEmptyOwner      = errors.New("empty owner")
	ErrEmptyDate       = errors.New("empty date")
	ErrEmptyCategory   = errors.New("empty category")
	ErrInvalidAmount   = errors.New("invalid amount")
	ErrNonFiniteAmount = errors.New("amount is not a finite number")
	ErrNoParticipants  = errors.New("no participants")
	ErrCountMismatch   = errors.New("participant/amount count mismatch")
	ErrDuplicateID     = errors.New("duplicate transaction id")
	ErrInvalidMode     = errors.New("unknown split mode")
	ErrSelfSettlement  = errors.New("cannot settle with the same member")
)

// ValidationError reports malformed input to append or split.
type ValidationError struct {
	Field string
	Err   error
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation: " + e.Err.Error()
	}
	return fmt.Sprintf("validation: %s: %v", e.Field, e.Err)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// Is lets errors.Is(err, ErrValidation) match any validation failure.
func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// Invalid builds a ValidationError for field.
func Invalid(field string, err error) error {
	return &ValidationError{Field: field, Err: err}
}

// NotFoundError is returned when an owner has no transactions.
type NotFoundError struct {
	Owner string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("no transactions for owner %q", e.Owner)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// Validate checks the fields every stored transaction must carry.
func (t Transaction) Validate() error {
	if strings.TrimSpace(t.ID) == "" {
		return Invalid("id", ErrEmptyID)
	}
	if strings.TrimSpace(t.Owner) == "" {
		return Invalid("owner", ErrEmptyOwner)
	}
	if strings.TrimSpace(t.Date) == "" {
		return Invalid("date", ErrEmptyDate)
	}
	if strings.TrimSpace(t.Category) == "" {
		return Invalid("category", ErrEmptyCategory)
	}
	return nil
}

// Shared reports whether t is a share of an expense paid by someone.
func (t Transaction) Shared() bool { return t.Payer != "" }

// Month returns the YYYY-MM prefix of the date, or "" when the date is too short.
func (t Transaction) Month() string {
	if len(t.Date) < 7 {
		return ""
	}
	return t.Date[:7]
}
