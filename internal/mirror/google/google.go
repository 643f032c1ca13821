package google

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"expensa/internal/log"
	"expensa/internal/mirror"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

var (
	_ mirror.Mirror        = (*Client)(nil)
	_ mirror.ExpenseLister = (*Client)(nil)
)

type Config struct {
	SpreadsheetID   string
	SheetName       string
	CredentialsFile string
	CredentialsJSON string
}

// Client mirrors expenses into one sheet of a Google spreadsheet, one row
// per expense keyed by the expense ID column.
type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheet         string
	logger        *log.Logger

	// Serializes find-then-write so two upserts cannot claim the same row.
	mu      sync.Mutex
	sheetID *int64
}

// New creates a Sheets client authenticated with service account credentials.
func New(ctx context.Context, cfg Config, logger *log.Logger) (*Client, error) {
	if strings.TrimSpace(cfg.SpreadsheetID) == "" {
		return nil, errors.New("missing spreadsheet id")
	}
	creds, err := credentials(cfg)
	if err != nil {
		return nil, err
	}
	svc, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(creds),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return NewWithService(svc, cfg.SpreadsheetID, cfg.SheetName, logger), nil
}

// NewWithService wraps an existing Sheets service.
func NewWithService(svc *gsheet.Service, spreadsheetID, sheet string, logger *log.Logger) *Client {
	if logger == nil {
		logger = log.Nop()
	}
	if sheet == "" {
		sheet = "Expenses"
	}
	return &Client{
		svc:           svc,
		spreadsheetID: spreadsheetID,
		sheet:         sheet,
		logger:        logger.WithComponent(log.ComponentMirror),
	}
}

func credentials(cfg Config) ([]byte, error) {
	switch {
	case strings.TrimSpace(cfg.CredentialsJSON) != "":
		return []byte(cfg.CredentialsJSON), nil
	case cfg.CredentialsFile != "":
		b, err := os.ReadFile(cfg.CredentialsFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		return b, nil
	}
	return nil, errors.New("missing service account credentials")
}

func (c *Client) locate(ctx context.Context, expenseID string) (int, int, error) {
	rng := fmt.Sprintf("%s!%s:%s", quoteSheet(c.sheet), idColumn, idColumn)
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return 0, 0, fmt.Errorf("read %s: %w", rng, err)
	}
	return findRow(resp.Values, expenseID), len(resp.Values), nil
}

func (c *Client) Upsert(ctx context.Context, r mirror.Row) (string, error) {
	if err := r.Validate(); err != nil {
		return "", fmt.Errorf("validation failed: %w", err)
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	row, used, err := c.locate(ctx, r.ExpenseID)
	if err != nil {
		return "", err
	}

	if used == 0 {
		hdr := &gsheet.ValueRange{Values: [][]any{header}}
		if _, err := c.svc.Spreadsheets.Values.Update(c.spreadsheetID, rowRange(c.sheet, 1), hdr).
			ValueInputOption("RAW").Context(ctx).Do(); err != nil {
			return "", fmt.Errorf("write header: %w", err)
		}
		used = 1
	}
	if row < 0 {
		row = used + 1
	}

	ref := rowRange(c.sheet, row)
	vr := &gsheet.ValueRange{Values: [][]any{toValues(r)}}
	if _, err := c.svc.Spreadsheets.Values.Update(c.spreadsheetID, ref, vr).
		ValueInputOption("USER_ENTERED").Context(ctx).Do(); err != nil {
		return "", fmt.Errorf("update %s: %w", ref, err)
	}

	c.logger.DebugContext(ctx, "Mirrored expense", log.FieldExpenseID, r.ExpenseID, "row_ref", ref)
	return ref, nil
}

func (c *Client) Delete(ctx context.Context, expenseID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	row, _, err := c.locate(ctx, expenseID)
	if err != nil {
		return err
	}
	if row < 0 {
		return nil
	}
	sheetID, err := c.resolveSheetID(ctx)
	if err != nil {
		return err
	}
	req := &gsheet.BatchUpdateSpreadsheetRequest{Requests: []*gsheet.Request{{
		DeleteDimension: &gsheet.DeleteDimensionRequest{Range: &gsheet.DimensionRange{
			SheetId:    sheetID,
			Dimension:  "ROWS",
			StartIndex: int64(row - 1),
			EndIndex:   int64(row),

			// The first sheet of a spreadsheet has ID 0.
			ForceSendFields: []string{"SheetId", "StartIndex"},
		}},
	}}}
	if _, err := c.svc.Spreadsheets.BatchUpdate(c.spreadsheetID, req).Context(ctx).Do(); err != nil {
		return fmt.Errorf("delete row %d: %w", row, err)
	}
	c.logger.DebugContext(ctx, "Removed mirrored expense", log.FieldExpenseID, expenseID, "row", row)
	return nil
}

// ExpenseIDs lists the expense IDs mirrored for the user.
func (c *Client) ExpenseIDs(ctx context.Context, userID string) ([]string, error) {
	rng := fmt.Sprintf("%s!%s:%s", quoteSheet(c.sheet), idColumn, lastColumn)
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", rng, err)
	}
	return idsForUser(resp.Values, userID), nil
}

func (c *Client) resolveSheetID(ctx context.Context) (int64, error) {
	if c.sheetID != nil {
		return *c.sheetID, nil
	}
	ss, err := c.svc.Spreadsheets.Get(c.spreadsheetID).Fields("sheets.properties").Context(ctx).Do()
	if err != nil {
		return 0, fmt.Errorf("read spreadsheet: %w", err)
	}
	for _, s := range ss.Sheets {
		if s.Properties != nil && s.Properties.Title == c.sheet {
			id := s.Properties.SheetId
			c.sheetID = &id
			return id, nil
		}
	}
	return 0, fmt.Errorf("sheet %q: %w", c.sheet, mirror.ErrSheetNotFound)
}
