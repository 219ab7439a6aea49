// Package export defines where finished reports are delivered.
package export

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
)

// Exporter receives a report as a named text document.
type Exporter interface {
	Export(ctx context.Context, filename, content string) error
}

var ErrInvalidFilename = errors.New("invalid export filename")

// ReportFilename is the CSV report name for owner.
func ReportFilename(owner string) string { return "report_" + owner + ".csv" }

// FraudFilename is the anomaly report name for owner.
func FraudFilename(owner string) string { return "fraud_" + owner + ".txt" }

// CheckFilename rejects names that are empty or would escape the target
// location. Owners are opaque strings, so the check happens here.
func CheckFilename(name string) error {
	if strings.TrimSpace(name) == "" || name == "." || name == ".." {
		return ErrInvalidFilename
	}
	if strings.ContainsAny(name, `/\`) || filepath.Base(name) != name {
		return ErrInvalidFilename
	}
	return nil
}
