package sheetsync

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"order-sync-service/internal/apperrors"
)

// Zero-based column indexes within an A:G read. The planning sheet keeps
// columns A-C for manual bookkeeping; the service only ever touches D-G.
const (
	colCustomer = 3
	colProduct  = 4
	colSize     = 5
	colQuantity = 6
)

// readRange covers every column the writer reads or writes.
const readRange = "A:G"

var yearPattern = regexp.MustCompile(`\b\d{4}\b`)

// HeaderText renders a delivery date ("2006-01-02") the way the sheet's date
// headers are written, e.g. "Tuesday, February 17, 2026". The date is pinned
// to local noon so the rendered weekday never slips a day across DST edges.
func HeaderText(deliveryDate string) (string, error) {
	parsed, err := time.Parse("2006-01-02", deliveryDate)
	if err != nil {
		return "", fmt.Errorf("bad delivery date %q: %w", deliveryDate, err)
	}
	noon := time.Date(parsed.Year(), parsed.Month(), parsed.Day(), 12, 0, 0, 0, time.Local)
	return noon.Format("Monday, January 2, 2006"), nil
}

// isDateHeader reports whether a cell looks like any date header, matched
// loosely so differently formatted headers still terminate a block.
func isDateHeader(cell string) bool {
	return strings.Contains(cell, "day, ") && yearPattern.MatchString(cell)
}

// isBlockTerminator reports whether a customer-column cell ends the current
// delivery-date block.
func isBlockTerminator(cell string) bool {
	lower := strings.ToLower(cell)
	if strings.Contains(lower, "one-time") || strings.Contains(lower, "one time") {
		return true
	}
	return isDateHeader(cell)
}

func cellAt(rows [][]string, row, col int) string {
	if row < 0 || row >= len(rows) || col >= len(rows[row]) {
		return ""
	}
	return strings.TrimSpace(rows[row][col])
}

// rowEmpty reports whether the service-owned columns D-G are all blank.
func rowEmpty(rows [][]string, row int) bool {
	for col := colCustomer; col <= colQuantity; col++ {
		if cellAt(rows, row, col) != "" {
			return false
		}
	}
	return true
}

// FindDateHeader locates the row whose customer column equals the given
// date header after trimming. Annotated headers do not match: writing under
// a decorated copy of a header risks scattering rows across blocks.
func FindDateHeader(rows [][]string, header string) (int, error) {
	for i := range rows {
		if cellAt(rows, i, colCustomer) == header {
			return i, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", apperrors.ErrDateHeaderNotFound, header)
}

// BlockBounds returns the half-open row range [start, end) of the writable
// block under a date header. Rows start two below the header (the header's
// own row plus one layout row) and end at the next date header, the one-time
// section, or the end of the sheet.
func BlockBounds(rows [][]string, headerRow int) (start, end int) {
	start = headerRow + 2
	if start > len(rows) {
		start = len(rows)
	}
	for end = start; end < len(rows); end++ {
		if isBlockTerminator(cellAt(rows, end, colCustomer)) {
			return start, end
		}
	}
	return start, end
}

// MatchRow finds the first unclaimed row in [start, end) whose customer and
// product cells match, case-insensitively.
func MatchRow(rows [][]string, start, end int, customer, product string, claimed map[int]bool) (int, bool) {
	for i := start; i < end; i++ {
		if claimed[i] {
			continue
		}
		if strings.EqualFold(cellAt(rows, i, colCustomer), strings.TrimSpace(customer)) &&
			strings.EqualFold(cellAt(rows, i, colProduct), strings.TrimSpace(product)) {
			return i, true
		}
	}
	return 0, false
}

// FirstEmptyRow finds the first unclaimed blank row in [start, end).
func FirstEmptyRow(rows [][]string, start, end int, claimed map[int]bool) (int, bool) {
	for i := start; i < end; i++ {
		if claimed[i] {
			continue
		}
		if rowEmpty(rows, i) {
			return i, true
		}
	}
	return 0, false
}
