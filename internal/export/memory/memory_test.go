package memory

import (
	"context"
	"testing"
)

func TestExporterReplacesByName(t *testing.T) {
	e := New()
	ctx := context.Background()
	if err := e.Export(ctx, "b.txt", "one"); err != nil {
		t.Fatalf("export: %v", err)
	}
	if err := e.Export(ctx, "a.csv", "x"); err != nil {
		t.Fatalf("export: %v", err)
	}
	if err := e.Export(ctx, "b.txt", "two"); err != nil {
		t.Fatalf("export: %v", err)
	}
	if got, ok := e.Get("b.txt"); !ok || got != "two" {
		t.Fatalf("unexpected doc %q (%v)", got, ok)
	}
	if names := e.Names(); len(names) != 2 || names[0] != "a.csv" {
		t.Fatalf("unexpected names %v", names)
	}
	if err := e.Export(ctx, "../x", "y"); err == nil {
		t.Fatalf("expected filename error")
	}
}
