// Package sheets exports reports to tabs of a Google Sheets spreadsheet.
package sheets

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"splitledger/internal/export"
	"splitledger/internal/log"
)

// Config selects the spreadsheet and the service account used to write it.
type Config struct {
	SpreadsheetID      string
	ServiceAccountJSON string
	ServiceAccountFile string
}

// Exporter writes each export to its own tab, named after the filename
// without extension. The tab is cleared before writing.
type Exporter struct {
	svc           *gsheet.Service
	spreadsheetID string
	logger        *log.Logger
}

var _ export.Exporter = (*Exporter)(nil)

// NewFromConfig creates a Sheets service with service account credentials.
func NewFromConfig(ctx context.Context, cfg Config, logger *log.Logger) (*Exporter, error) {
	if strings.TrimSpace(cfg.SpreadsheetID) == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	svc, err := newSheetsService(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}
	return New(svc, cfg.SpreadsheetID, logger), nil
}

// New wraps an existing service.
func New(svc *gsheet.Service, spreadsheetID string, logger *log.Logger) *Exporter {
	if logger == nil {
		logger = log.Nop()
	}
	return &Exporter{
		svc:           svc,
		spreadsheetID: spreadsheetID,
		logger:        logger.WithComponent(log.ComponentExport),
	}
}

// newSheetsService uses GOOGLE_SERVICE_ACCOUNT_JSON or GOOGLE_SERVICE_ACCOUNT_FILE,
// falling back to GOOGLE_APPLICATION_CREDENTIALS.
func newSheetsService(ctx context.Context, cfg Config) (*gsheet.Service, error) {
	serviceAccountJSON := strings.TrimSpace(cfg.ServiceAccountJSON)
	serviceAccountFile := strings.TrimSpace(cfg.ServiceAccountFile)
	if serviceAccountJSON == "" && serviceAccountFile == "" {
		serviceAccountFile = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	var credentialsJSON []byte
	switch {
	case serviceAccountJSON != "":
		credentialsJSON = []byte(serviceAccountJSON)
	case serviceAccountFile != "":
		b, err := os.ReadFile(serviceAccountFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		credentialsJSON = b
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}

	service, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return service, nil
}

// Export replaces the content of the tab for filename with content.
func (e *Exporter) Export(ctx context.Context, filename, content string) error {
	if e.svc == nil {
		return errors.New("sheets service not initialized")
	}
	if err := export.CheckFilename(filename); err != nil {
		return fmt.Errorf("%w: %q", err, filename)
	}

	title := SheetTitle(filename)
	if err := e.ensureSheet(ctx, title); err != nil {
		return err
	}

	rng := quoteTitle(title)
	_, err := e.svc.Spreadsheets.Values.Clear(e.spreadsheetID, rng, &gsheet.ClearValuesRequest{}).
		Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("clear sheet %s: %w", title, err)
	}

	rows := Rows(filename, content)
	vr := &gsheet.ValueRange{Values: rows}
	_, err = e.svc.Spreadsheets.Values.Update(e.spreadsheetID, rng+"!A1", vr).
		ValueInputOption("RAW").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("update sheet %s: %w", title, err)
	}

	e.logger.InfoContext(ctx, "Report exported to sheet",
		log.FieldOperation, log.OpExport,
		log.FieldSpreadsheet, e.spreadsheetID,
		log.FieldFilename, filename,
		log.FieldCount, len(rows))
	return nil
}

func (e *Exporter) ensureSheet(ctx context.Context, title string) error {
	ss, err := e.svc.Spreadsheets.Get(e.spreadsheetID).Fields("sheets.properties.title").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("read spreadsheet: %w", err)
	}
	for _, sh := range ss.Sheets {
		if sh.Properties != nil && sh.Properties.Title == title {
			return nil
		}
	}

	req := &gsheet.BatchUpdateSpreadsheetRequest{
		Requests: []*gsheet.Request{{
			AddSheet: &gsheet.AddSheetRequest{
				Properties: &gsheet.SheetProperties{Title: title},
			},
		}},
	}
	if _, err := e.svc.Spreadsheets.BatchUpdate(e.spreadsheetID, req).Context(ctx).Do(); err != nil {
		return fmt.Errorf("add sheet %s: %w", title, err)
	}
	e.logger.DebugContext(ctx, "Sheet created", log.FieldFilename, title)
	return nil
}

// SheetTitle derives the tab name from an export filename.
func SheetTitle(filename string) string {
	return strings.TrimSuffix(filename, filepath.Ext(filename))
}

// Rows splits content into sheet rows. CSV documents get one cell per
// field; anything else one cell per line. The trailing newline does not
// produce an empty row.
func Rows(filename, content string) [][]any {
	content = strings.TrimSuffix(content, "\n")
	if content == "" {
		return [][]any{}
	}
	csv := strings.EqualFold(filepath.Ext(filename), ".csv")
	lines := strings.Split(content, "\n")
	rows := make([][]any, 0, len(lines))
	for _, line := range lines {
		if !csv {
			rows = append(rows, []any{line})
			continue
		}
		fields := strings.Split(line, ",")
		row := make([]any, len(fields))
		for i, f := range fields {
			row[i] = f
		}
		rows = append(rows, row)
	}
	return rows
}

func quoteTitle(title string) string {
	return "'" + strings.ReplaceAll(title, "'", "''") + "'"
}
