package memory

import (
	"bufio"
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"splitledger/internal/kv"
)

// Store keeps values in a map. It is the default backend and the one tests use.
type Store struct {
	mu     sync.Mutex
	values map[string]string
	writes map[string]int
}

var _ kv.Store = (*Store)(nil)

func New() *Store {
	return &Store{values: map[string]string{}, writes: map[string]int{}}
}

// NewFromFiles seeds the store from <base>/<key>.json files when present,
// e.g. data/txs.json. Missing or unreadable files are skipped.
func NewFromFiles(base string) *Store {
	s := New()
	for _, key := range []string{kv.KeyUsers, kv.KeyTransactions, kv.KeySettlements} {
		content, ok := readFile(filepath.Join(base, key+".json"))
		if ok {
			s.values[key] = content
		}
	}
	return s
}

// Get returns the value for key.
func (s *Store) Get(_ context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.values[key]
	return v, ok, nil
}

// Set stores value under key.
func (s *Store) Set(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
	s.writes[key]++
	return nil
}

// Writes reports how many Set calls the store has seen.
func (s *Store) Writes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, w := range s.writes {
		n += w
	}
	return n
}

// KeyWrites reports how many Set calls the store has seen for key.
func (s *Store) KeyWrites(key string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writes[key]
}

func readFile(path string) (string, bool) {
	f, err := os.Open(path)
	if err != nil {
		return "", false
	}
	defer f.Close()
	var b strings.Builder
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for sc.Scan() {
		b.WriteString(sc.Text())
		b.WriteByte('\n')
	}
	if sc.Err() != nil {
		return "", false
	}
	content := strings.TrimSpace(b.String())
	if content == "" {
		return "", false
	}
	return content, true
}
