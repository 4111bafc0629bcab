package service

import (
	"context"
	"fmt"
	"time"

	"order-sync-service/internal/apperrors"
	"order-sync-service/internal/models"
	"order-sync-service/internal/util"

	"go.uber.org/zap"
)

// orderLockTTL bounds how long a crashed applier can keep an order locked.
const orderLockTTL = 30 * time.Second

// ChangeLine is one add/modify/remove operation in an apply request.
type ChangeLine struct {
	Action        string  `json:"action" binding:"required,oneof=add modify remove"`
	OrderLineID   *string `json:"order_line_id,omitempty"`
	ItemName      string  `json:"item_name"`
	ItemID        *string `json:"item_id,omitempty"`
	ItemVariantID *string `json:"item_variant_id,omitempty"`
	VariantCode   *string `json:"variant_code,omitempty"`
	Quantity      int     `json:"quantity" binding:"omitempty,min=1"`
}

// ApplyResult summarizes one ApplyChanges call.
type ApplyResult struct {
	Success bool   `json:"success"`
	Applied int    `json:"applied"`
	Message string `json:"message"`
}

// OrderStore is the slice of data access the change applier needs.
type OrderStore interface {
	GetOrder(ctx context.Context, id string) (*models.Order, error)
	MaxLineNumber(ctx context.Context, orderID string) (int, error)
	InsertOrderLine(ctx context.Context, line *models.OrderLine) error
	UpdateOrderLine(ctx context.Context, orderID, lineID string, quantity int, variantID *string) error
	SoftDeleteOrderLine(ctx context.Context, orderID, lineID string) error
	TouchOrder(ctx context.Context, orderID string) error
	CancelOrderTx(ctx context.Context, orderID string, metadata models.JSONMap) error
}

// CatalogResolver is the catalog capability consumed during line resolution.
type CatalogResolver interface {
	ResolveItemByName(ctx context.Context, organizationID, name string) (*models.Item, error)
	ResolveVariant(ctx context.Context, itemID, variantCode string) (*models.ItemVariant, error)
}

// OrderLocker serializes concurrent change applications per order.
type OrderLocker interface {
	AcquireOrderLock(ctx context.Context, orderID string, ttl time.Duration) (string, error)
	ReleaseOrderLock(ctx context.Context, orderID, token string) error
}

// ChangeApplier applies accepted line-level changes to the order store.
// Callers must have verified the principal's organization membership first.
type ChangeApplier struct {
	store   OrderStore
	catalog CatalogResolver
	locker  OrderLocker
	logger  *zap.Logger
}

// NewChangeApplier creates a new change applier
func NewChangeApplier(store OrderStore, catalog CatalogResolver, locker OrderLocker) *ChangeApplier {
	return &ChangeApplier{
		store:   store,
		catalog: catalog,
		locker:  locker,
		logger:  util.GetLogger(),
	}
}

// ApplyChanges applies the given changes to an order in supplied order.
// Each line write is atomic; a failure aborts the remaining lines and is
// surfaced with its position, leaving earlier writes in place. Line numbers
// for adds stay dense across the whole call.
func (a *ChangeApplier) ApplyChanges(ctx context.Context, orderID string, lines []ChangeLine) (*ApplyResult, error) {
	ctx, span := util.StartSpan(ctx, "ChangeApplier.ApplyChanges")
	defer span.End()

	token, err := a.locker.AcquireOrderLock(ctx, orderID, orderLockTTL)
	if err != nil {
		return nil, err
	}
	if token == "" {
		util.ChangesFailedTotal.WithLabelValues("order_locked").Inc()
		return nil, apperrors.ErrOrderLocked
	}
	defer func() {
		if err := a.locker.ReleaseOrderLock(ctx, orderID, token); err != nil {
			a.logger.Error("Failed to release order lock",
				zap.String("order_id", orderID),
				zap.Error(err))
		}
	}()

	order, err := a.store.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}

	maxLine, err := a.store.MaxLineNumber(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to read max line number: %w", err)
	}
	nextLineNumber := maxLine + 1

	for i, line := range lines {
		if err := a.applyLine(ctx, order, line, &nextLineNumber); err != nil {
			util.ChangesFailedTotal.WithLabelValues(line.Action).Inc()
			return nil, fmt.Errorf("change %d (%s %q): %w", i+1, line.Action, line.ItemName, err)
		}
		util.ChangesAppliedTotal.WithLabelValues(line.Action).Inc()
	}

	if err := a.store.TouchOrder(ctx, orderID); err != nil {
		return nil, fmt.Errorf("failed to refresh order timestamp: %w", err)
	}

	a.logger.Info("Order changes applied",
		zap.String("order_id", orderID),
		zap.Int("count", len(lines)))

	return &ApplyResult{
		Success: true,
		Applied: len(lines),
		Message: fmt.Sprintf("Applied %d change(s)", len(lines)),
	}, nil
}

func (a *ChangeApplier) applyLine(ctx context.Context, order *models.Order, line ChangeLine, nextLineNumber *int) error {
	switch line.Action {
	case models.ChangeTypeAdd:
		itemID, variantID, err := a.resolveIdentity(ctx, order.OrganizationID, line)
		if err != nil {
			return err
		}
		orderLine := &models.OrderLine{
			OrderID:       order.ID,
			LineNumber:    *nextLineNumber,
			ProductName:   line.ItemName,
			Quantity:      line.Quantity,
			ItemID:        itemID,
			ItemVariantID: variantID,
			Status:        models.LineStatusActive,
		}
		if err := a.store.InsertOrderLine(ctx, orderLine); err != nil {
			return fmt.Errorf("failed to insert order line: %w", err)
		}
		*nextLineNumber++
		return nil

	case models.ChangeTypeRemove:
		if line.OrderLineID == nil {
			return fmt.Errorf("%w: order_line_id is required for remove", apperrors.ErrLineNotFound)
		}
		return a.store.SoftDeleteOrderLine(ctx, order.ID, *line.OrderLineID)

	case models.ChangeTypeModify:
		if line.OrderLineID == nil {
			return fmt.Errorf("%w: order_line_id is required for modify", apperrors.ErrLineNotFound)
		}
		variantID, err := a.modifyVariant(ctx, line)
		if err != nil {
			return err
		}
		return a.store.UpdateOrderLine(ctx, order.ID, *line.OrderLineID, line.Quantity, variantID)

	default:
		return fmt.Errorf("%w: %q", apperrors.ErrInvalidAction, line.Action)
	}
}

// resolveIdentity fills in missing catalog references for an add. Resolution
// is best-effort: an unresolved line is still inserted with null references
// so it stays visible for manual follow-up.
func (a *ChangeApplier) resolveIdentity(ctx context.Context, organizationID string, line ChangeLine) (itemID, variantID *string, err error) {
	itemID = line.ItemID
	variantID = line.ItemVariantID

	if variantID == nil && itemID != nil && line.VariantCode != nil {
		variant, err := a.catalog.ResolveVariant(ctx, *itemID, *line.VariantCode)
		if err != nil {
			return nil, nil, err
		}
		if variant != nil {
			variantID = &variant.ID
		}
	}

	if itemID == nil && line.ItemName != "" {
		item, err := a.catalog.ResolveItemByName(ctx, organizationID, line.ItemName)
		if err != nil {
			return nil, nil, err
		}
		if item == nil {
			util.CatalogResolutionsTotal.WithLabelValues("miss").Inc()
			a.logger.Warn("No catalog item for product name, inserting unresolved line",
				zap.String("item_name", line.ItemName))
			return nil, variantID, nil
		}
		util.CatalogResolutionsTotal.WithLabelValues("hit").Inc()
		itemID = &item.ID
		if variantID == nil && line.VariantCode != nil {
			variant, err := a.catalog.ResolveVariant(ctx, item.ID, *line.VariantCode)
			if err != nil {
				return nil, nil, err
			}
			if variant != nil {
				variantID = &variant.ID
			}
		}
	}

	return itemID, variantID, nil
}

// modifyVariant decides the variant update for a modify: re-resolve only when
// an (item, code) pair was supplied, else take a directly supplied variant
// id, else leave the stored variant untouched (nil).
func (a *ChangeApplier) modifyVariant(ctx context.Context, line ChangeLine) (*string, error) {
	if line.ItemID != nil && line.VariantCode != nil {
		variant, err := a.catalog.ResolveVariant(ctx, *line.ItemID, *line.VariantCode)
		if err != nil {
			return nil, err
		}
		if variant != nil {
			return &variant.ID, nil
		}
		return nil, nil
	}
	if line.ItemVariantID != nil {
		return line.ItemVariantID, nil
	}
	return nil, nil
}

// CancelOrder cancels an order: status flips to cancelled, every active line
// is soft-deleted and one audit event is appended. Re-cancelling an already
// cancelled order is a no-op so the audit trail stays exact-once.
func (a *ChangeApplier) CancelOrder(ctx context.Context, orderID string, metadata models.JSONMap) error {
	ctx, span := util.StartSpan(ctx, "ChangeApplier.CancelOrder")
	defer span.End()

	token, err := a.locker.AcquireOrderLock(ctx, orderID, orderLockTTL)
	if err != nil {
		return err
	}
	if token == "" {
		return apperrors.ErrOrderLocked
	}
	defer func() {
		if err := a.locker.ReleaseOrderLock(ctx, orderID, token); err != nil {
			a.logger.Error("Failed to release order lock",
				zap.String("order_id", orderID),
				zap.Error(err))
		}
	}()

	order, err := a.store.GetOrder(ctx, orderID)
	if err != nil {
		return err
	}
	if order.Status == models.OrderStatusCancelled {
		a.logger.Info("Order already cancelled, skipping", zap.String("order_id", orderID))
		return nil
	}

	if err := a.store.CancelOrderTx(ctx, orderID, metadata); err != nil {
		return err
	}

	util.OrdersCancelledTotal.Inc()
	a.logger.Info("Order cancelled", zap.String("order_id", orderID))
	return nil
}
