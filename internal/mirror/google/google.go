// Package google keeps the Spreadsheet Mirror in a Google Sheets spreadsheet,
// one tab per section.
package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"saldo/internal/core"
	"saldo/internal/log"
	"saldo/internal/mirror"
)

var errNoService = errors.New("sheets service not initialized")

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	logger        *slog.Logger
	now           func() time.Time
}

var _ mirror.Mirror = (*Client)(nil)

// Options configures the client. When both credential fields are empty the
// GOOGLE_APPLICATION_CREDENTIALS file is used.
type Options struct {
	SpreadsheetID      string
	ServiceAccountJSON string
	ServiceAccountFile string
	// ClientOptions are appended after the credentials, e.g. a test endpoint.
	ClientOptions []goption.ClientOption
}

func New(ctx context.Context, opts Options, logger *slog.Logger) (*Client, error) {
	spreadsheetID := strings.TrimSpace(opts.SpreadsheetID)
	if spreadsheetID == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	logger = log.For(logger, log.ComponentMirror).With(log.FieldMirror, "sheets")

	svc, err := newSheetsService(ctx, opts, logger)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}
	return &Client{svc: svc, spreadsheetID: spreadsheetID, logger: logger, now: time.Now}, nil
}

// newSheetsService initializes a Sheets Service using Service Account credentials.
func newSheetsService(ctx context.Context, opts Options, logger *slog.Logger) (*gsheet.Service, error) {
	serviceAccountJSON := strings.TrimSpace(opts.ServiceAccountJSON)
	serviceAccountFile := strings.TrimSpace(opts.ServiceAccountFile)
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

	clientOpts := append([]goption.ClientOption{
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsScope),
	}, opts.ClientOptions...)

	service, err := gsheet.NewService(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	logger.InfoContext(ctx, "Google Sheets service created", "credentials_size", len(credentialsJSON))
	return service, nil
}

// Export writes every section tab in one batch and then clears leftover rows.
func (c *Client) Export(ctx context.Context, data core.AppData) error {
	if c.svc == nil {
		return errNoService
	}
	sections, err := mirror.Encode(data, c.now())
	if err != nil {
		return err
	}
	if err := c.ensureTabs(ctx); err != nil {
		return err
	}

	// Overwrite in place, then clear only the rows below the new data, so a
	// failed write leaves the previous mirror readable.
	stale := make([]string, 0, len(sections))
	batch := &gsheet.BatchUpdateValuesRequest{ValueInputOption: "RAW"}
	for _, s := range sections {
		batch.Data = append(batch.Data, &gsheet.ValueRange{
			Range:  fmt.Sprintf("%s!A1", s.Name),
			Values: s.Rows,
		})
		stale = append(stale, fmt.Sprintf("%s!A%d:Z", s.Name, len(s.Rows)+1))
	}

	if _, err := c.svc.Spreadsheets.Values.BatchUpdate(c.spreadsheetID, batch).Context(ctx).Do(); err != nil {
		return fmt.Errorf("write mirror tabs: %w", err)
	}
	if _, err := c.svc.Spreadsheets.Values.BatchClear(c.spreadsheetID, &gsheet.BatchClearValuesRequest{Ranges: stale}).Context(ctx).Do(); err != nil {
		return fmt.Errorf("clear stale mirror rows: %w", err)
	}
	c.logger.DebugContext(ctx, "Mirror exported", "spreadsheet", c.spreadsheetID, log.FieldVersion, data.Version)
	return nil
}

// ensureTabs adds any section tab the spreadsheet does not have yet.
func (c *Client) ensureTabs(ctx context.Context) error {
	ss, err := c.svc.Spreadsheets.Get(c.spreadsheetID).Fields("sheets.properties.title").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("read spreadsheet: %w", err)
	}
	have := map[string]bool{}
	for _, sh := range ss.Sheets {
		if sh.Properties != nil {
			have[sh.Properties.Title] = true
		}
	}
	var reqs []*gsheet.Request
	for _, name := range mirror.SectionNames {
		if !have[name] {
			reqs = append(reqs, &gsheet.Request{AddSheet: &gsheet.AddSheetRequest{
				Properties: &gsheet.SheetProperties{Title: name},
			}})
		}
	}
	if len(reqs) == 0 {
		return nil
	}
	_, err = c.svc.Spreadsheets.BatchUpdate(c.spreadsheetID, &gsheet.BatchUpdateSpreadsheetRequest{Requests: reqs}).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("add mirror tabs: %w", err)
	}
	return nil
}

// Import reads all three tabs. Any failure is logged and reported as nil, nil.
func (c *Client) Import(ctx context.Context) (*core.AppData, error) {
	data, err := c.read(ctx)
	if err != nil {
		c.logger.WarnContext(ctx, "Ignoring unreadable mirror", "spreadsheet", c.spreadsheetID, log.FieldError, err)
		return nil, nil
	}
	return data, nil
}

func (c *Client) read(ctx context.Context) (*core.AppData, error) {
	if c.svc == nil {
		return nil, errNoService
	}
	resp, err := c.svc.Spreadsheets.Values.BatchGet(c.spreadsheetID).
		Ranges(mirror.SectionNames...).
		ValueRenderOption("UNFORMATTED_VALUE").
		DateTimeRenderOption("SERIAL_NUMBER").
		Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("%w: read tabs: %w", core.ErrImportMalformed, err)
	}
	sections := make(map[string][][]string, len(resp.ValueRanges))
	for i, vr := range resp.ValueRanges {
		if i >= len(mirror.SectionNames) {
			break
		}
		rows := make([][]string, 0, len(vr.Values))
		for _, row := range vr.Values {
			rows = append(rows, mirror.ToStrings(row))
		}
		sections[mirror.SectionNames[i]] = rows
	}
	return mirror.Decode(sections)
}
