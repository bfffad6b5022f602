// Package google imports portfolio snapshots from Google Sheets.
package google

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"cdc/internal/log"
	ports "cdc/internal/sheets"
)

// DefaultRange reads the whole first sheet.
const DefaultRange = "Sheet1"

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	defaultRange  string
	logger        *log.Logger
}

// Ensure interface conformance
var _ ports.SnapshotSource = (*Client)(nil)

// Config selects the spreadsheet and the service account used to read it.
type Config struct {
	SpreadsheetID   string
	CredentialsJSON string
	CredentialsFile string
	DefaultRange    string
}

// New creates a Sheets client authenticated with a service account.
func New(ctx context.Context, cfg Config, logger *log.Logger) (*Client, error) {
	if strings.TrimSpace(cfg.SpreadsheetID) == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	creds, err := credentials(cfg)
	if err != nil {
		return nil, err
	}

	svc, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(creds),
		goption.WithScopes(gsheet.SpreadsheetsReadonlyScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return NewWithService(svc, cfg, logger), nil
}

// NewWithService wraps an existing service, e.g. one pointed at a test endpoint.
func NewWithService(svc *gsheet.Service, cfg Config, logger *log.Logger) *Client {
	if logger == nil {
		logger = log.Discard()
	}
	rng := strings.TrimSpace(cfg.DefaultRange)
	if rng == "" {
		rng = DefaultRange
	}
	return &Client{
		svc:           svc,
		spreadsheetID: strings.TrimSpace(cfg.SpreadsheetID),
		defaultRange:  rng,
		logger:        logger.WithComponent(log.ComponentSheets),
	}
}

// credentials resolves inline JSON first, then a key file.
func credentials(cfg Config) ([]byte, error) {
	switch {
	case strings.TrimSpace(cfg.CredentialsJSON) != "":
		return []byte(cfg.CredentialsJSON), nil
	case strings.TrimSpace(cfg.CredentialsFile) != "":
		data, err := os.ReadFile(cfg.CredentialsFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		return data, nil
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON or GOOGLE_SERVICE_ACCOUNT_FILE)")
	}
}

// ExportCSV reads rangeA1 (or the default range when blank) and returns it as CSV.
func (c *Client) ExportCSV(ctx context.Context, rangeA1 string) ([]byte, error) {
	if c.svc == nil {
		return nil, errors.New("sheets service not initialized")
	}
	rng := strings.TrimSpace(rangeA1)
	if rng == "" {
		rng = c.defaultRange
	}

	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).
		ValueRenderOption("UNFORMATTED_VALUE").
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", rng, err)
	}
	if len(resp.Values) == 0 {
		return nil, fmt.Errorf("read %s: range is empty", rng)
	}

	c.logger.DebugContext(ctx, "Read sheet range", log.FieldSheetRange, rng, log.FieldRows, len(resp.Values))
	return valuesToCSV(resp.Values)
}
