package dir

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestExportWritesFile(t *testing.T) {
	base := filepath.Join(t.TempDir(), "out")
	e := New(base, nil)

	ctx := context.Background()
	if err := e.Export(ctx, "report_alice.csv", "first\n"); err != nil {
		t.Fatalf("Export: %v", err)
	}
	if err := e.Export(ctx, "report_alice.csv", "second\n"); err != nil {
		t.Fatalf("Export: %v", err)
	}

	b, err := os.ReadFile(filepath.Join(base, "report_alice.csv"))
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(b) != "second\n" {
		t.Fatalf("unexpected content %q", b)
	}

	entries, err := os.ReadDir(base)
	if err != nil {
		t.Fatalf("readdir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected only the report, found %d entries", len(entries))
	}
}

func TestExportRejectsPathEscape(t *testing.T) {
	e := New(t.TempDir(), nil)
	if err := e.Export(context.Background(), "../report.csv", "x"); err == nil {
		t.Fatal("expected error for path escape")
	}
}

func TestExportCanceledContext(t *testing.T) {
	e := New(t.TempDir(), nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := e.Export(ctx, "a.txt", "x"); err == nil {
		t.Fatal("expected context error")
	}
}
