package memory

import (
	"context"
	"sort"
	"sync"

	"splitledger/internal/export"
)

// Exporter keeps exported documents in memory, keyed by filename. A second
// export under the same name replaces the first.
type Exporter struct {
	mu   sync.Mutex
	docs map[string]string
}

var _ export.Exporter = (*Exporter)(nil)

func New() *Exporter {
	return &Exporter{docs: map[string]string{}}
}

func (e *Exporter) Export(_ context.Context, filename, content string) error {
	if err := export.CheckFilename(filename); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.docs[filename] = content
	return nil
}

// Get returns the document stored under filename.
func (e *Exporter) Get(filename string) (string, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	v, ok := e.docs[filename]
	return v, ok
}

// Names lists exported filenames in sorted order.
func (e *Exporter) Names() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]string, 0, len(e.docs))
	for k := range e.docs {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
