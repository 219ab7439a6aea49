package ledger

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"splitledger/internal/core"
)

// record is the persisted shape of a transaction. Field names are short to
// stay compatible with ledgers saved by the browser client.
type record struct {
	ID          string          `json:"id"`
	Owner       string          `json:"owner"`
	Date        string          `json:"date"`
	Category    string          `json:"cat"`
	Description string          `json:"det"`
	Amount      decimal.Decimal `json:"amt"`
	Payer       string          `json:"payer,omitempty"`
}

// MarshalJSON writes the amount as a plain JSON number, as earlier clients
// did. Decoding accepts both numbers and quoted strings.
func (r record) MarshalJSON() ([]byte, error) {
	type plain record
	return json.Marshal(struct {
		plain
		Amount json.Number `json:"amt"`
	}{plain(r), json.Number(r.Amount.String())})
}

func toRecord(t core.Transaction) record {
	return record{
		ID:          t.ID,
		Owner:       t.Owner,
		Date:        t.Date,
		Category:    t.Category,
		Description: t.Description,
		Amount:      t.Amount,
		Payer:       t.Payer,
	}
}

func (r record) transaction() core.Transaction {
	return core.Transaction{
		ID:          r.ID,
		Owner:       r.Owner,
		Date:        r.Date,
		Category:    r.Category,
		Description: r.Description,
		Amount:      r.Amount,
		Payer:       r.Payer,
	}
}

// EncodeTransactions serialises txs as a JSON array. A nil or empty list
// encodes as "[]".
func EncodeTransactions(txs []core.Transaction) (string, error) {
	out := make([]record, len(txs))
	for i, t := range txs {
		out[i] = toRecord(t)
	}
	b, err := json.Marshal(out)
	if err != nil {
		return "", fmt.Errorf("encode transactions: %w", err)
	}
	return string(b), nil
}

// DecodeTransactions parses a JSON array produced by EncodeTransactions.
//
// Records that fail validation or repeat an earlier id are skipped and
// counted in skipped; a malformed document is an error.
func DecodeTransactions(s string) (txs []core.Transaction, skipped int, err error) {
	var in []record
	if err := json.Unmarshal([]byte(s), &in); err != nil {
		return nil, 0, fmt.Errorf("decode transactions: %w", err)
	}
	seen := make(map[string]struct{}, len(in))
	txs = make([]core.Transaction, 0, len(in))
	for _, r := range in {
		t := r.transaction()
		if t.Validate() != nil {
			skipped++
			continue
		}
		if _, dup := seen[t.ID]; dup {
			skipped++
			continue
		}
		seen[t.ID] = struct{}{}
		txs = append(txs, t)
	}
	return txs, skipped, nil
}

// userNameKey is the browser client's attribute for the user name.
const userNameKey = "n"

// EncodeUsers serialises users as a JSON array of objects. Attrs are written
// back unchanged next to the name.
func EncodeUsers(users []core.User) (string, error) {
	out := make([]map[string]json.RawMessage, len(users))
	for i, u := range users {
		obj := make(map[string]json.RawMessage, len(u.Attrs)+1)
		for k, v := range u.Attrs {
			obj[k] = v
		}
		name, err := json.Marshal(u.Name)
		if err != nil {
			return "", fmt.Errorf("encode users: %w", err)
		}
		obj[userNameKey] = name
		out[i] = obj
	}
	b, err := json.Marshal(out)
	if err != nil {
		return "", fmt.Errorf("encode users: %w", err)
	}
	return string(b), nil
}

// DecodeUsers parses a JSON array produced by EncodeUsers or the browser
// client. Entries without a string name, or repeating an earlier name, are
// skipped and counted; a malformed document is an error.
func DecodeUsers(s string) (users []core.User, skipped int, err error) {
	var in []map[string]json.RawMessage
	if err := json.Unmarshal([]byte(s), &in); err != nil {
		return nil, 0, fmt.Errorf("decode users: %w", err)
	}
	seen := make(map[string]struct{}, len(in))
	users = make([]core.User, 0, len(in))
	for _, obj := range in {
		var name string
		if err := json.Unmarshal(obj[userNameKey], &name); err != nil || strings.TrimSpace(name) == "" {
			skipped++
			continue
		}
		if _, dup := seen[name]; dup {
			skipped++
			continue
		}
		seen[name] = struct{}{}
		delete(obj, userNameKey)
		u := core.User{Name: name}
		if len(obj) > 0 {
			u.Attrs = obj
		}
		users = append(users, u)
	}
	return users, skipped, nil
}
