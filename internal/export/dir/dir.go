// Package dir writes exports as files in a local directory.
package dir

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"splitledger/internal/export"
	"splitledger/internal/log"
)

// Exporter writes each export to <Dir>/<filename>, replacing any previous file.
type Exporter struct {
	dir    string
	logger *log.Logger
}

var _ export.Exporter = (*Exporter)(nil)

// New returns an exporter for dir. The directory is created on first export.
func New(dir string, logger *log.Logger) *Exporter {
	if logger == nil {
		logger = log.Nop()
	}
	if dir == "" {
		dir = "."
	}
	return &Exporter{dir: dir, logger: logger.WithComponent(log.ComponentExport)}
}

// Export writes to a temporary file in the same directory and renames it
// into place, so readers never see a partial report.
func (e *Exporter) Export(ctx context.Context, filename, content string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := export.CheckFilename(filename); err != nil {
		return fmt.Errorf("%w: %q", err, filename)
	}
	if err := os.MkdirAll(e.dir, 0o755); err != nil {
		return fmt.Errorf("create export dir: %w", err)
	}

	tmp, err := os.CreateTemp(e.dir, "."+filename+".*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.WriteString(content); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", filename, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", filename, err)
	}
	path := filepath.Join(e.dir, filename)
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename %s: %w", filename, err)
	}

	e.logger.InfoContext(ctx, "Report exported",
		log.FieldOperation, log.OpExport,
		log.FieldFilename, path,
		log.FieldBytes, len(content))
	return nil
}
