package store

import (
	"context"
	"database/sql"
	"errors"

	"order-sync-service/internal/models"
)

// FindItemByName looks up a catalog item by case-insensitive name match
// within one organization. Returns (nil, nil) when nothing matches: callers
// treat an unresolved item as best-effort, not an error.
func (s *Store) FindItemByName(ctx context.Context, organizationID, name string) (*models.Item, error) {
	var item models.Item
	err := s.db.GetContext(ctx, &item,
		"SELECT * FROM items WHERE organization_id = $1 AND name ILIKE $2 LIMIT 1",
		organizationID, name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// FindVariant looks up a variant by (item, variant code). Returns (nil, nil)
// when the pair is unknown.
func (s *Store) FindVariant(ctx context.Context, itemID, variantCode string) (*models.ItemVariant, error) {
	var variant models.ItemVariant
	err := s.db.GetContext(ctx, &variant,
		"SELECT * FROM item_variants WHERE item_id = $1 AND variant_code = $2",
		itemID, variantCode)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &variant, nil
}
