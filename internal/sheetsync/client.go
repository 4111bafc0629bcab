package sheetsync

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

// ValueGrid abstracts the spreadsheet surface the writer needs. Row indexes
// are zero-based; implementations translate to the API's 1-based A1 notation.
type ValueGrid interface {
	Read(ctx context.Context) ([][]string, error)
	// WriteRow fills customer, product, size and quantity on one row.
	WriteRow(ctx context.Context, row int, customer, product, size string, quantity int) error
	// WriteSizeQuantity overwrites only the size and quantity cells.
	WriteSizeQuantity(ctx context.Context, row int, size string, quantity int) error
	// ClearRow blanks the service-owned cells of one row.
	ClearRow(ctx context.Context, row int) error
}

// SheetsGrid is the Google Sheets backed ValueGrid.
type SheetsGrid struct {
	svc           *sheets.Service
	spreadsheetID string
	sheetName     string
}

// NewSheetsGrid creates a grid over one tab of one spreadsheet.
func NewSheetsGrid(ctx context.Context, credentialsFile, spreadsheetID, sheetName string) (*SheetsGrid, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	svc, err := sheets.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheets service: %w", err)
	}
	return &SheetsGrid{
		svc:           svc,
		spreadsheetID: spreadsheetID,
		sheetName:     sheetName,
	}, nil
}

// Read fetches the full working range of the sheet.
func (g *SheetsGrid) Read(ctx context.Context) ([][]string, error) {
	rng := fmt.Sprintf("%s!%s", g.sheetName, readRange)
	resp, err := g.svc.Spreadsheets.Values.Get(g.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet range %s: %w", rng, err)
	}
	rows := make([][]string, len(resp.Values))
	for i, raw := range resp.Values {
		row := make([]string, len(raw))
		for j, cell := range raw {
			row[j] = strings.TrimSpace(fmt.Sprint(cell))
		}
		rows[i] = row
	}
	return rows, nil
}

// WriteRow fills columns D-G on one row.
func (g *SheetsGrid) WriteRow(ctx context.Context, row int, customer, product, size string, quantity int) error {
	rng := fmt.Sprintf("%s!D%d:G%d", g.sheetName, row+1, row+1)
	return g.update(ctx, rng, []interface{}{customer, product, size, quantity})
}

// WriteSizeQuantity overwrites columns F-G on one row.
func (g *SheetsGrid) WriteSizeQuantity(ctx context.Context, row int, size string, quantity int) error {
	rng := fmt.Sprintf("%s!F%d:G%d", g.sheetName, row+1, row+1)
	return g.update(ctx, rng, []interface{}{size, quantity})
}

// ClearRow blanks columns D-G on one row so it becomes reusable as empty.
func (g *SheetsGrid) ClearRow(ctx context.Context, row int) error {
	rng := fmt.Sprintf("%s!D%d:G%d", g.sheetName, row+1, row+1)
	_, err := g.svc.Spreadsheets.Values.Clear(g.spreadsheetID, rng, &sheets.ClearValuesRequest{}).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("failed to clear %s: %w", rng, err)
	}
	return nil
}

func (g *SheetsGrid) update(ctx context.Context, rng string, values []interface{}) error {
	body := &sheets.ValueRange{Values: [][]interface{}{values}}
	_, err := g.svc.Spreadsheets.Values.Update(g.spreadsheetID, rng, body).
		ValueInputOption("USER_ENTERED").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("failed to update %s: %w", rng, err)
	}
	return nil
}
