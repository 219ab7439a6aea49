package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"splitledger/internal/kv"
	"splitledger/internal/log"

	_ "modernc.org/sqlite"
)

const (
	getQuery = `SELECT value FROM kv WHERE key = ?`
	setQuery = `INSERT INTO kv (key, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`
)

// Repository persists ledger blobs in a single sqlite kv table.
type Repository struct {
	db     *sql.DB
	logger *log.Logger
}

var (
	_ kv.Store  = (*Repository)(nil)
	_ kv.Closer = (*Repository)(nil)
)

func NewRepository(dbPath string, logger *log.Logger) (*Repository, error) {
	if logger == nil {
		logger = log.Nop()
	}
	if dir := filepath.Dir(dbPath); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// One writer; sqlite serialises writes anyway.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Repository{
		db:     db,
		logger: logger.WithComponent(log.ComponentStorage),
	}, nil
}

func (r *Repository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Get implements kv.Store
func (r *Repository) Get(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := r.db.QueryRowContext(ctx, getQuery, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get %s: %w", key, err)
	}
	return value, true, nil
}

// Set implements kv.Store
func (r *Repository) Set(ctx context.Context, key, value string) error {
	if _, err := r.db.ExecContext(ctx, setQuery, key, value); err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}

	r.logger.DebugContext(ctx, "Value saved to SQLite",
		log.FieldKey, key,
		log.FieldBytes, len(value))

	return nil
}
