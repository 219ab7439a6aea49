package export

import (
	"errors"
	"testing"
)

func TestFilenames(t *testing.T) {
	if got := ReportFilename("alice"); got != "report_alice.csv" {
		t.Fatalf("ReportFilename = %q", got)
	}
	if got := FraudFilename("alice"); got != "fraud_alice.txt" {
		t.Fatalf("FraudFilename = %q", got)
	}
}

func TestCheckFilename(t *testing.T) {
	for _, name := range []string{"report_alice.csv", "fraud_bob.smith.txt"} {
		if err := CheckFilename(name); err != nil {
			t.Fatalf("CheckFilename(%q) = %v", name, err)
		}
	}
	for _, name := range []string{"", " ", "..", "report_../x.csv", `a\b.csv`, "/etc/passwd"} {
		if err := CheckFilename(name); !errors.Is(err, ErrInvalidFilename) {
			t.Fatalf("CheckFilename(%q) = %v, want ErrInvalidFilename", name, err)
		}
	}
}
