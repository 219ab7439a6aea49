// Package kv defines the key-value persistence collaborator the ledger
// flushes to and loads from.
package kv

import "context"

// Fixed logical keys.
const (
	KeyUsers        = "users"
	KeyTransactions = "txs"
	KeySettlements  = "settlements"
)

// Store is a string key-value store. A missing key is reported with ok=false
// and a nil error; err is reserved for transport or backend failures.
type Store interface {
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string) error
}

// Closer is implemented by backends holding connections.
type Closer interface {
	Close() error
}
