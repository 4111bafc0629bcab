package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"order-sync-service/internal/apperrors"
	"order-sync-service/internal/models"
)

// CreateOrder inserts a new order and fills in generated columns.
func (s *Store) CreateOrder(ctx context.Context, order *models.Order) error {
	query := `
		INSERT INTO orders (organization_id, customer_id, customer_name, status, delivery_date, source_channel, total_amount, currency)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at, updated_at`

	return s.db.GetContext(ctx, order, query,
		order.OrganizationID, order.CustomerID, order.CustomerName, order.Status,
		order.DeliveryDate, order.SourceChannel, order.TotalAmount, order.Currency)
}

// GetOrder retrieves an order by ID
func (s *Store) GetOrder(ctx context.Context, id string) (*models.Order, error) {
	var order models.Order
	err := s.db.GetContext(ctx, &order, "SELECT * FROM orders WHERE id = $1", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// UpdateOrderStatus updates order status and refreshes updated_at.
func (s *Store) UpdateOrderStatus(ctx context.Context, orderID, status string) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE orders SET status = $1, updated_at = NOW() WHERE id = $2",
		status, orderID)
	return err
}

// TouchOrder refreshes an order's updated_at timestamp.
func (s *Store) TouchOrder(ctx context.Context, orderID string) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE orders SET updated_at = NOW() WHERE id = $1", orderID)
	return err
}

// CancelOrderTx cancels an order in one transaction: flips the status,
// soft-deletes every active line and appends the audit event.
func (s *Store) CancelOrderTx(ctx context.Context, orderID string, metadata models.JSONMap) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		"UPDATE orders SET status = $1, updated_at = NOW() WHERE id = $2",
		models.OrderStatusCancelled, orderID); err != nil {
		return fmt.Errorf("failed to cancel order: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		"UPDATE order_lines SET status = $1 WHERE order_id = $2 AND status = $3",
		models.LineStatusDeleted, orderID, models.LineStatusActive); err != nil {
		return fmt.Errorf("failed to soft-delete order lines: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		"INSERT INTO order_events (order_id, type, metadata) VALUES ($1, $2, $3)",
		orderID, models.OrderEventCancelled, metadata); err != nil {
		return fmt.Errorf("failed to insert cancel audit event: %w", err)
	}

	return tx.Commit()
}

// MaxLineNumber returns the highest line number ever assigned on an order,
// counting soft-deleted lines so numbers are never reused. Zero for an order
// with no lines.
func (s *Store) MaxLineNumber(ctx context.Context, orderID string) (int, error) {
	var max int
	err := s.db.GetContext(ctx, &max,
		"SELECT COALESCE(MAX(line_number), 0) FROM order_lines WHERE order_id = $1", orderID)
	return max, err
}

// GetOrderLines retrieves all lines for an order, deleted ones included.
func (s *Store) GetOrderLines(ctx context.Context, orderID string) ([]models.OrderLine, error) {
	var lines []models.OrderLine
	err := s.db.SelectContext(ctx, &lines,
		"SELECT * FROM order_lines WHERE order_id = $1 ORDER BY line_number", orderID)
	return lines, err
}

// InsertOrderLine inserts a new order line and fills in generated columns.
func (s *Store) InsertOrderLine(ctx context.Context, line *models.OrderLine) error {
	query := `
		INSERT INTO order_lines (order_id, line_number, product_name, quantity, item_id, item_variant_id, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at`

	return s.db.GetContext(ctx, line, query,
		line.OrderID, line.LineNumber, line.ProductName, line.Quantity,
		line.ItemID, line.ItemVariantID, line.Status)
}

// UpdateOrderLine updates a line's quantity and, when variantID is non-nil,
// its item variant. The line must belong to the given order.
func (s *Store) UpdateOrderLine(ctx context.Context, orderID, lineID string, quantity int, variantID *string) error {
	var res sql.Result
	var err error
	if variantID != nil {
		res, err = s.db.ExecContext(ctx,
			"UPDATE order_lines SET quantity = $1, item_variant_id = $2 WHERE id = $3 AND order_id = $4",
			quantity, *variantID, lineID, orderID)
	} else {
		res, err = s.db.ExecContext(ctx,
			"UPDATE order_lines SET quantity = $1 WHERE id = $2 AND order_id = $3",
			quantity, lineID, orderID)
	}
	if err != nil {
		return err
	}
	return lineAffected(res)
}

// SoftDeleteOrderLine marks a line deleted. The line must belong to the
// given order; the row itself is never removed.
func (s *Store) SoftDeleteOrderLine(ctx context.Context, orderID, lineID string) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE order_lines SET status = $1 WHERE id = $2 AND order_id = $3",
		models.LineStatusDeleted, lineID, orderID)
	if err != nil {
		return err
	}
	return lineAffected(res)
}

func lineAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return apperrors.ErrLineNotFound
	}
	return nil
}

// InsertOrderEvent appends an audit event to an order.
func (s *Store) InsertOrderEvent(ctx context.Context, event *models.OrderEvent) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO order_events (order_id, type, metadata) VALUES ($1, $2, $3)",
		event.OrderID, event.Type, event.Metadata)
	return err
}
