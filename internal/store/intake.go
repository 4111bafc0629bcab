package store

import (
	"context"
	"database/sql"
	"errors"

	"order-sync-service/internal/models"
)

// GetIntakeEvent retrieves an intake event by ID, nil when absent.
func (s *Store) GetIntakeEvent(ctx context.Context, id string) (*models.IntakeEvent, error) {
	var event models.IntakeEvent
	err := s.db.GetContext(ctx, &event, "SELECT * FROM intake_events WHERE id = $1", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &event, nil
}

// DetachIntakeOrder removes an intake event's order association so the next
// analysis pass treats it as a brand-new order.
func (s *Store) DetachIntakeOrder(ctx context.Context, intakeEventID string) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE intake_events SET order_id = NULL WHERE id = $1", intakeEventID)
	return err
}

// ReassignIntakeOrder re-points an intake event at a different order.
func (s *Store) ReassignIntakeOrder(ctx context.Context, intakeEventID, orderID string) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE intake_events SET order_id = $1 WHERE id = $2", orderID, intakeEventID)
	return err
}
