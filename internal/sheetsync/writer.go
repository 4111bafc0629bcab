package sheetsync

import (
	"context"
	"fmt"
	"strings"
	"time"

	"order-sync-service/internal/models"
	"order-sync-service/internal/util"

	"go.uber.org/zap"
)

// defaultSize is written when a line carries no variant code. The sheet's
// readers expect every filled row to have a size.
const defaultSize = "L"

// Writer mirrors accepted recurring proposals onto the shared planning
// spreadsheet. The sheet is a convenience view, not a system of record:
// per-line failures are logged and counted, never propagated, so a flaky
// spreadsheet can not block order processing.
type Writer struct {
	grid   ValueGrid
	logger *zap.Logger
}

// NewWriter creates a new sheet writer over a grid.
func NewWriter(grid ValueGrid) *Writer {
	return &Writer{
		grid:   grid,
		logger: util.GetLogger(),
	}
}

// SyncProposal mirrors one accepted proposal's changes onto the sheet.
// Non-recurring proposals are skipped. A missing date header is the one
// fatal condition: without it there is nowhere safe to write.
func (w *Writer) SyncProposal(ctx context.Context, event *models.ProposalAcceptedEvent) error {
	ctx, span := util.StartSpan(ctx, "Writer.SyncProposal")
	defer span.End()

	start := time.Now()
	defer func() {
		util.SheetSyncLatency.Observe(time.Since(start).Seconds())
	}()

	if !event.Recurring {
		w.logger.Debug("Skipping sheet sync for non-recurring proposal",
			zap.String("proposal_id", event.ProposalID))
		util.SheetSyncsTotal.WithLabelValues("skipped").Inc()
		return nil
	}

	rows, err := w.grid.Read(ctx)
	if err != nil {
		util.SheetSyncsTotal.WithLabelValues("failed").Inc()
		return err
	}

	// Cancellations purge the customer everywhere, not just under one date
	// header, so no stale rows survive under other delivery dates.
	if event.ProposalType == models.ProposalTypeCancelOrder || event.OrderStatus == models.OrderStatusCancelled {
		if err := w.clearCustomerRows(ctx, rows, event.CustomerName); err != nil {
			util.SheetSyncsTotal.WithLabelValues("failed").Inc()
			return err
		}
		util.SheetSyncsTotal.WithLabelValues("success").Inc()
		return nil
	}

	if event.DeliveryDate == nil || *event.DeliveryDate == "" {
		util.SheetSyncsTotal.WithLabelValues("failed").Inc()
		return fmt.Errorf("proposal %s has no delivery date to locate a sheet block", event.ProposalID)
	}

	header, err := HeaderText(*event.DeliveryDate)
	if err != nil {
		util.SheetSyncsTotal.WithLabelValues("failed").Inc()
		return err
	}

	headerRow, err := FindDateHeader(rows, header)
	if err != nil {
		util.SheetSyncsTotal.WithLabelValues("failed").Inc()
		return err
	}

	blockStart, blockEnd := BlockBounds(rows, headerRow)
	claimed := make(map[int]bool)

	for _, line := range event.Lines {
		if err := w.syncLine(ctx, rows, blockStart, blockEnd, event.CustomerName, line, claimed); err != nil {
			util.SheetCellWriteFailures.Inc()
			w.logger.Error("Sheet line write failed",
				zap.String("proposal_id", event.ProposalID),
				zap.String("item_name", line.ItemName),
				zap.String("change_type", line.ChangeType),
				zap.Error(err))
		}
	}

	util.SheetSyncsTotal.WithLabelValues("success").Inc()
	w.logger.Info("Sheet sync completed",
		zap.String("proposal_id", event.ProposalID),
		zap.String("order_id", event.OrderID),
		zap.Int("lines", len(event.Lines)))
	return nil
}

func (w *Writer) syncLine(ctx context.Context, rows [][]string, start, end int, customer string, line models.ChangeLineData, claimed map[int]bool) error {
	size := defaultSize
	if line.VariantCode != nil && *line.VariantCode != "" {
		size = *line.VariantCode
	}

	switch line.ChangeType {
	case models.ChangeTypeAdd:
		return w.upsertLine(ctx, rows, start, end, customer, line.ItemName, size, line.Quantity, claimed)

	case models.ChangeTypeModify:
		if row, ok := MatchRow(rows, start, end, customer, line.ItemName, claimed); ok {
			claimed[row] = true
			return w.grid.WriteSizeQuantity(ctx, row, size, line.Quantity)
		}
		// No matching row: treat the modify as an add so the sheet catches up.
		return w.upsertLine(ctx, rows, start, end, customer, line.ItemName, size, line.Quantity, claimed)

	case models.ChangeTypeRemove:
		row, ok := MatchRow(rows, start, end, customer, line.ItemName, claimed)
		if !ok {
			// Nothing to remove is success: the sheet already reflects it.
			return nil
		}
		claimed[row] = true
		return w.grid.ClearRow(ctx, row)

	default:
		return fmt.Errorf("unknown change type %q", line.ChangeType)
	}
}

// upsertLine overwrites a matching row, or fills the first empty row of the
// block. A full block is logged loudly but is not an error.
func (w *Writer) upsertLine(ctx context.Context, rows [][]string, start, end int, customer, product, size string, quantity int, claimed map[int]bool) error {
	if row, ok := MatchRow(rows, start, end, customer, product, claimed); ok {
		claimed[row] = true
		return w.grid.WriteSizeQuantity(ctx, row, size, quantity)
	}

	row, ok := FirstEmptyRow(rows, start, end, claimed)
	if !ok {
		w.logger.Error("No empty row left in sheet block, line not mirrored",
			zap.String("customer", customer),
			zap.String("product", product),
			zap.Int("block_start", start),
			zap.Int("block_end", end))
		return nil
	}
	claimed[row] = true
	return w.grid.WriteRow(ctx, row, customer, product, size, quantity)
}

// clearCustomerRows blanks every row on the whole sheet whose customer cell
// matches, case-insensitively.
func (w *Writer) clearCustomerRows(ctx context.Context, rows [][]string, customer string) error {
	target := strings.TrimSpace(customer)
	cleared := 0
	for i := range rows {
		if !strings.EqualFold(cellAt(rows, i, colCustomer), target) {
			continue
		}
		if err := w.grid.ClearRow(ctx, i); err != nil {
			util.SheetCellWriteFailures.Inc()
			w.logger.Error("Failed to clear sheet row for cancelled order",
				zap.Int("row", i),
				zap.Error(err))
			continue
		}
		cleared++
	}
	w.logger.Info("Cleared sheet rows for cancelled order",
		zap.String("customer", customer),
		zap.Int("rows", cleared))
	return nil
}
