// Package redis stores ledger blobs in Redis under a configurable key prefix.
package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"splitledger/internal/kv"
	"splitledger/internal/log"
)

const defaultPrefix = "ledger:"

// Config holds the connection settings.
type Config struct {
	Addr        string
	Password    string
	DB          int
	KeyPrefix   string
	DialTimeout time.Duration
}

// Store implements kv.Store on top of a go-redis client.
type Store struct {
	client *goredis.Client
	prefix string
	logger *log.Logger
}

var (
	_ kv.Store  = (*Store)(nil)
	_ kv.Closer = (*Store)(nil)
)

// New connects to Redis and verifies the connection with PING.
func New(ctx context.Context, cfg Config, logger *log.Logger) (*Store, error) {
	if strings.TrimSpace(cfg.Addr) == "" {
		return nil, errors.New("redis address is required")
	}
	if logger == nil {
		logger = log.Nop()
	}
	dialTimeout := cfg.DialTimeout
	if dialTimeout <= 0 {
		dialTimeout = 5 * time.Second
	}

	client := goredis.NewClient(&goredis.Options{
		Addr:        cfg.Addr,
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: dialTimeout,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis %s: %w", cfg.Addr, err)
	}

	return NewWithClient(client, cfg.KeyPrefix, logger), nil
}

// NewWithClient wraps an existing client.
func NewWithClient(client *goredis.Client, prefix string, logger *log.Logger) *Store {
	if prefix == "" {
		prefix = defaultPrefix
	}
	if logger == nil {
		logger = log.Nop()
	}
	return &Store{
		client: client,
		prefix: prefix,
		logger: logger.WithComponent(log.ComponentStorage),
	}
}

func (s *Store) key(k string) string {
	return s.prefix + k
}

// Get implements kv.Store
func (s *Store) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := s.client.Get(ctx, s.key(key)).Result()
	if errors.Is(err, goredis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("redis get %s: %w", key, err)
	}
	return v, true, nil
}

// Set implements kv.Store. Values never expire.
func (s *Store) Set(ctx context.Context, key, value string) error {
	if err := s.client.Set(ctx, s.key(key), value, 0).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	s.logger.DebugContext(ctx, "Value saved to Redis",
		log.FieldKey, s.key(key),
		log.FieldBytes, len(value))
	return nil
}

func (s *Store) Close() error {
	return s.client.Close()
}
