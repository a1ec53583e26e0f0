// Package sheets wraps the Google Sheets API for run logging and
// processed-cursor persistence.
package sheets

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"google.golang.org/api/option"
	sheetsapi "google.golang.org/api/sheets/v4"
)

const valueInputRaw = "RAW"

// Client implements core.SheetsClient on top of the Sheets v4 API.
type Client struct {
	svc        *sheetsapi.Service
	logger     *zap.Logger
	retries    int
	retryDelay time.Duration
}

func NewClient(ctx context.Context, credentialsFile string, retries int, retryDelay time.Duration, logger *zap.Logger) (*Client, error) {
	svc, err := sheetsapi.NewService(ctx,
		option.WithCredentialsFile(credentialsFile),
		option.WithScopes(sheetsapi.SpreadsheetsScope),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheets service: %w", err)
	}

	return &Client{
		svc:        svc,
		logger:     logger,
		retries:    retries,
		retryDelay: retryDelay,
	}, nil
}

func (c *Client) ReadRange(ctx context.Context, spreadsheetID, readRange string) ([][]string, error) {
	resp, err := c.svc.Spreadsheets.Values.Get(spreadsheetID, readRange).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to read range %s: %w", readRange, err)
	}

	rows := make([][]string, 0, len(resp.Values))
	for _, raw := range resp.Values {
		row := make([]string, 0, len(raw))
		for _, cell := range raw {
			row = append(row, fmt.Sprint(cell))
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func (c *Client) AppendRows(ctx context.Context, spreadsheetID, rangeName string, rows [][]string) error {
	_, err := c.svc.Spreadsheets.Values.
		Append(spreadsheetID, rangeName, valueRange(rows)).
		ValueInputOption(valueInputRaw).
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("failed to append to %s: %w", rangeName, err)
	}
	return nil
}

func (c *Client) UpdateRange(ctx context.Context, spreadsheetID, rangeName string, rows [][]string) error {
	_, err := c.svc.Spreadsheets.Values.
		Update(spreadsheetID, rangeName, valueRange(rows)).
		ValueInputOption(valueInputRaw).
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("failed to update %s: %w", rangeName, err)
	}
	return nil
}

// SortSheet sorts all data rows (the header stays put) by the given
// zero-based column index.
func (c *Client) SortSheet(ctx context.Context, spreadsheetID, sheetName string, columnIndex int, descending bool) error {
	sheetID, err := c.sheetID(ctx, spreadsheetID, sheetName)
	if err != nil {
		return err
	}

	order := "ASCENDING"
	if descending {
		order = "DESCENDING"
	}

	req := &sheetsapi.BatchUpdateSpreadsheetRequest{
		Requests: []*sheetsapi.Request{{
			SortRange: &sheetsapi.SortRangeRequest{
				Range: &sheetsapi.GridRange{
					SheetId:       sheetID,
					StartRowIndex: 1,
				},
				SortSpecs: []*sheetsapi.SortSpec{{
					DimensionIndex: int64(columnIndex),
					SortOrder:      order,
				}},
			},
		}},
	}

	if _, err := c.svc.Spreadsheets.BatchUpdate(spreadsheetID, req).Context(ctx).Do(); err != nil {
		return fmt.Errorf("failed to sort sheet %s: %w", sheetName, err)
	}
	return nil
}

// EnsureSheet creates the named tab with a header row when it does not
// exist yet. Existing tabs are left untouched.
func (c *Client) EnsureSheet(ctx context.Context, spreadsheetID, sheetName string, headers []string) error {
	titles, err := c.ListSheetTitles(ctx, spreadsheetID)
	if err != nil {
		return err
	}
	for _, title := range titles {
		if title == sheetName {
			return nil
		}
	}

	req := &sheetsapi.BatchUpdateSpreadsheetRequest{
		Requests: []*sheetsapi.Request{{
			AddSheet: &sheetsapi.AddSheetRequest{
				Properties: &sheetsapi.SheetProperties{Title: sheetName},
			},
		}},
	}
	if _, err := c.svc.Spreadsheets.BatchUpdate(spreadsheetID, req).Context(ctx).Do(); err != nil {
		return fmt.Errorf("failed to add sheet %s: %w", sheetName, err)
	}

	if len(headers) > 0 {
		if err := c.UpdateRange(ctx, spreadsheetID, fmt.Sprintf("%s!A1", sheetName), [][]string{headers}); err != nil {
			return err
		}
	}

	c.logger.Info("Created sheet tab", zap.String("sheet", sheetName))
	return nil
}

func (c *Client) DeleteSheet(ctx context.Context, spreadsheetID, sheetName string) error {
	sheetID, err := c.sheetID(ctx, spreadsheetID, sheetName)
	if err != nil {
		return err
	}

	req := &sheetsapi.BatchUpdateSpreadsheetRequest{
		Requests: []*sheetsapi.Request{{
			DeleteSheet: &sheetsapi.DeleteSheetRequest{SheetId: sheetID},
		}},
	}
	if _, err := c.svc.Spreadsheets.BatchUpdate(spreadsheetID, req).Context(ctx).Do(); err != nil {
		return fmt.Errorf("failed to delete sheet %s: %w", sheetName, err)
	}
	return nil
}

func (c *Client) ListSheetTitles(ctx context.Context, spreadsheetID string) ([]string, error) {
	meta, err := c.svc.Spreadsheets.Get(spreadsheetID).Fields("sheets.properties.title").Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to get spreadsheet metadata: %w", err)
	}

	titles := make([]string, 0, len(meta.Sheets))
	for _, sheet := range meta.Sheets {
		if sheet.Properties != nil {
			titles = append(titles, sheet.Properties.Title)
		}
	}
	return titles, nil
}

// WaitReady polls spreadsheet metadata until it becomes fetchable. A
// freshly created spreadsheet can take a moment to propagate; the poll
// reports readiness explicitly instead of surfacing the last transient
// error.
func (c *Client) WaitReady(ctx context.Context, spreadsheetID string) bool {
	for attempt := 1; attempt <= c.retries; attempt++ {
		_, err := c.svc.Spreadsheets.Get(spreadsheetID).Fields("spreadsheetId").Context(ctx).Do()
		if err == nil {
			return true
		}

		c.logger.Warn("Waiting for spreadsheet to propagate",
			zap.Int("attempt", attempt),
			zap.Int("retries", c.retries))

		select {
		case <-ctx.Done():
			return false
		case <-time.After(c.retryDelay):
		}
	}
	return false
}

func (c *Client) sheetID(ctx context.Context, spreadsheetID, sheetName string) (int64, error) {
	meta, err := c.svc.Spreadsheets.Get(spreadsheetID).Fields("sheets.properties").Context(ctx).Do()
	if err != nil {
		return 0, fmt.Errorf("failed to get spreadsheet metadata: %w", err)
	}
	for _, sheet := range meta.Sheets {
		if sheet.Properties != nil && sheet.Properties.Title == sheetName {
			return sheet.Properties.SheetId, nil
		}
	}
	return 0, fmt.Errorf("sheet %s not found", sheetName)
}

func valueRange(rows [][]string) *sheetsapi.ValueRange {
	values := make([][]interface{}, 0, len(rows))
	for _, row := range rows {
		cells := make([]interface{}, 0, len(row))
		for _, cell := range row {
			cells = append(cells, cell)
		}
		values = append(values, cells)
	}
	return &sheetsapi.ValueRange{Values: values}
}
