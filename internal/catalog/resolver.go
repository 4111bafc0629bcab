// Package catalog provides the item/variant resolution capability consumed
// by the change applier. Resolution is best-effort: an unknown name or code
// yields nil, never an error.
package catalog

import (
	"context"

	"order-sync-service/internal/models"
	"order-sync-service/internal/util"

	"go.uber.org/zap"
)

// Store is the slice of data access the resolver needs.
type Store interface {
	FindItemByName(ctx context.Context, organizationID, name string) (*models.Item, error)
	FindVariant(ctx context.Context, itemID, variantCode string) (*models.ItemVariant, error)
}

// Resolver maps free-text item names and size codes to catalog identities.
type Resolver struct {
	store  Store
	logger *zap.Logger
}

// NewResolver creates a catalog resolver backed by the relational store.
func NewResolver(store Store) *Resolver {
	return &Resolver{
		store:  store,
		logger: util.GetLogger(),
	}
}

// ResolveItemByName finds an item by case-insensitive name match within the
// organization's catalog. Returns nil when no item matches.
func (r *Resolver) ResolveItemByName(ctx context.Context, organizationID, name string) (*models.Item, error) {
	if name == "" {
		return nil, nil
	}
	item, err := r.store.FindItemByName(ctx, organizationID, name)
	if err != nil {
		return nil, err
	}
	if item == nil {
		r.logger.Debug("No catalog match for item name",
			zap.String("organization_id", organizationID),
			zap.String("item_name", name))
	}
	return item, nil
}

// ResolveVariant finds a variant by (item, code). Returns nil when the pair
// is unknown.
func (r *Resolver) ResolveVariant(ctx context.Context, itemID, variantCode string) (*models.ItemVariant, error) {
	if itemID == "" || variantCode == "" {
		return nil, nil
	}
	return r.store.FindVariant(ctx, itemID, variantCode)
}
