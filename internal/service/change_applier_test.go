package service

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"order-sync-service/internal/apperrors"
	"order-sync-service/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeOrderStore struct {
	orders      map[string]*models.Order
	lines       []*models.OrderLine
	events      []*models.OrderEvent
	nextLineID  int
	touchCalls  int
	cancelCalls int
}

func newFakeOrderStore() *fakeOrderStore {
	return &fakeOrderStore{orders: map[string]*models.Order{}}
}

func (f *fakeOrderStore) addOrder(id, orgID, customer, status string) *models.Order {
	order := &models.Order{ID: id, OrganizationID: orgID, CustomerName: customer, Status: status}
	f.orders[id] = order
	return order
}

func (f *fakeOrderStore) addLine(orderID string, lineNumber int, product string, quantity int, status string) *models.OrderLine {
	f.nextLineID++
	line := &models.OrderLine{
		ID:          fmt.Sprintf("line-%d", f.nextLineID),
		OrderID:     orderID,
		LineNumber:  lineNumber,
		ProductName: product,
		Quantity:    quantity,
		Status:      status,
	}
	f.lines = append(f.lines, line)
	return line
}

func (f *fakeOrderStore) GetOrder(_ context.Context, id string) (*models.Order, error) {
	order, ok := f.orders[id]
	if !ok {
		return nil, apperrors.ErrOrderNotFound
	}
	copied := *order
	return &copied, nil
}

func (f *fakeOrderStore) MaxLineNumber(_ context.Context, orderID string) (int, error) {
	max := 0
	for _, l := range f.lines {
		if l.OrderID == orderID && l.LineNumber > max {
			max = l.LineNumber
		}
	}
	return max, nil
}

func (f *fakeOrderStore) InsertOrderLine(_ context.Context, line *models.OrderLine) error {
	f.nextLineID++
	line.ID = fmt.Sprintf("line-%d", f.nextLineID)
	copied := *line
	f.lines = append(f.lines, &copied)
	return nil
}

func (f *fakeOrderStore) UpdateOrderLine(_ context.Context, orderID, lineID string, quantity int, variantID *string) error {
	for _, l := range f.lines {
		if l.ID == lineID && l.OrderID == orderID {
			l.Quantity = quantity
			if variantID != nil {
				l.ItemVariantID = variantID
			}
			return nil
		}
	}
	return apperrors.ErrLineNotFound
}

func (f *fakeOrderStore) SoftDeleteOrderLine(_ context.Context, orderID, lineID string) error {
	for _, l := range f.lines {
		if l.ID == lineID && l.OrderID == orderID {
			l.Status = models.LineStatusDeleted
			return nil
		}
	}
	return apperrors.ErrLineNotFound
}

func (f *fakeOrderStore) TouchOrder(_ context.Context, orderID string) error {
	f.touchCalls++
	return nil
}

func (f *fakeOrderStore) CancelOrderTx(_ context.Context, orderID string, metadata models.JSONMap) error {
	f.cancelCalls++
	order, ok := f.orders[orderID]
	if !ok {
		return apperrors.ErrOrderNotFound
	}
	order.Status = models.OrderStatusCancelled
	for _, l := range f.lines {
		if l.OrderID == orderID && l.Status == models.LineStatusActive {
			l.Status = models.LineStatusDeleted
		}
	}
	f.events = append(f.events, &models.OrderEvent{
		OrderID:  orderID,
		Type:     models.OrderEventCancelled,
		Metadata: metadata,
	})
	return nil
}

func (f *fakeOrderStore) activeLines(orderID string) []*models.OrderLine {
	var active []*models.OrderLine
	for _, l := range f.lines {
		if l.OrderID == orderID && l.Status == models.LineStatusActive {
			active = append(active, l)
		}
	}
	return active
}

type fakeCatalog struct {
	items    map[string]*models.Item        // lowercase name -> item
	variants map[string]*models.ItemVariant // itemID|code -> variant
}

func newFakeCatalog() *fakeCatalog {
	return &fakeCatalog{
		items:    map[string]*models.Item{},
		variants: map[string]*models.ItemVariant{},
	}
}

func (f *fakeCatalog) addItem(id, name string) {
	f.items[strings.ToLower(name)] = &models.Item{ID: id, Name: name}
}

func (f *fakeCatalog) addVariant(id, itemID, code string) {
	f.variants[itemID+"|"+code] = &models.ItemVariant{ID: id, ItemID: itemID, VariantCode: code}
}

func (f *fakeCatalog) ResolveItemByName(_ context.Context, _, name string) (*models.Item, error) {
	return f.items[strings.ToLower(name)], nil
}

func (f *fakeCatalog) ResolveVariant(_ context.Context, itemID, code string) (*models.ItemVariant, error) {
	return f.variants[itemID+"|"+code], nil
}

type fakeLocker struct {
	contended bool
	releases  int
}

func (f *fakeLocker) AcquireOrderLock(_ context.Context, _ string, _ time.Duration) (string, error) {
	if f.contended {
		return "", nil
	}
	return "lock-token", nil
}

func (f *fakeLocker) ReleaseOrderLock(_ context.Context, _, _ string) error {
	f.releases++
	return nil
}

func strPtr(s string) *string { return &s }

func TestApplyChangesAddAssignsDenseLineNumbers(t *testing.T) {
	store := newFakeOrderStore()
	store.addOrder("order-1", "org-1", "Loco Taqueria", models.OrderStatusPushedToERP)
	store.addLine("order-1", 1, "Cilantro", 2, models.LineStatusActive)
	store.addLine("order-1", 2, "Basil", 1, models.LineStatusDeleted)

	applier := NewChangeApplier(store, newFakeCatalog(), &fakeLocker{})

	result, err := applier.ApplyChanges(context.Background(), "order-1", []ChangeLine{
		{Action: models.ChangeTypeAdd, ItemName: "Mint", Quantity: 1},
		{Action: models.ChangeTypeAdd, ItemName: "Parsley", Quantity: 4},
	})
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, 2, result.Applied)

	// Deleted line 2 keeps its number reserved, so new lines get 3 and 4.
	numbers := map[string]int{}
	for _, l := range store.lines {
		numbers[l.ProductName] = l.LineNumber
	}
	assert.Equal(t, 3, numbers["Mint"])
	assert.Equal(t, 4, numbers["Parsley"])
	assert.Equal(t, 1, store.touchCalls)
}

func TestApplyChangesModifyUpdatesQuantityOnly(t *testing.T) {
	store := newFakeOrderStore()
	store.addOrder("order-1", "org-1", "Loco Taqueria", models.OrderStatusPushedToERP)
	variantID := "variant-7"
	line := store.addLine("order-1", 1, "Cilantro", 2, models.LineStatusActive)
	line.ItemVariantID = &variantID

	applier := NewChangeApplier(store, newFakeCatalog(), &fakeLocker{})

	_, err := applier.ApplyChanges(context.Background(), "order-1", []ChangeLine{
		{Action: models.ChangeTypeModify, OrderLineID: &line.ID, ItemName: "Cilantro", Quantity: 5},
	})
	require.NoError(t, err)

	assert.Equal(t, 5, line.Quantity)
	// No variant hints supplied, so the stored variant stays put.
	require.NotNil(t, line.ItemVariantID)
	assert.Equal(t, "variant-7", *line.ItemVariantID)
}

func TestApplyChangesRemoveThenAdd(t *testing.T) {
	store := newFakeOrderStore()
	store.addOrder("order-1", "org-1", "Loco Taqueria", models.OrderStatusPushedToERP)
	existing := store.addLine("order-1", 1, "Cilantro", 2, models.LineStatusActive)

	applier := NewChangeApplier(store, newFakeCatalog(), &fakeLocker{})

	_, err := applier.ApplyChanges(context.Background(), "order-1", []ChangeLine{
		{Action: models.ChangeTypeRemove, OrderLineID: &existing.ID, ItemName: "Cilantro", Quantity: 1},
		{Action: models.ChangeTypeAdd, ItemName: "Basil", Quantity: 3},
	})
	require.NoError(t, err)

	assert.Equal(t, models.LineStatusDeleted, existing.Status)
	active := store.activeLines("order-1")
	require.Len(t, active, 1)
	assert.Equal(t, "Basil", active[0].ProductName)
	assert.Equal(t, 2, active[0].LineNumber)
}

func TestApplyChangesUnknownLineFailsWithPosition(t *testing.T) {
	store := newFakeOrderStore()
	store.addOrder("order-1", "org-1", "Loco Taqueria", models.OrderStatusPushedToERP)

	applier := NewChangeApplier(store, newFakeCatalog(), &fakeLocker{})

	_, err := applier.ApplyChanges(context.Background(), "order-1", []ChangeLine{
		{Action: models.ChangeTypeModify, OrderLineID: strPtr("no-such-line"), ItemName: "Cilantro", Quantity: 5},
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrLineNotFound)
	assert.Contains(t, err.Error(), "change 1")
}

func TestApplyChangesAbortsAfterFirstFailure(t *testing.T) {
	store := newFakeOrderStore()
	store.addOrder("order-1", "org-1", "Loco Taqueria", models.OrderStatusPushedToERP)

	applier := NewChangeApplier(store, newFakeCatalog(), &fakeLocker{})

	_, err := applier.ApplyChanges(context.Background(), "order-1", []ChangeLine{
		{Action: models.ChangeTypeAdd, ItemName: "Mint", Quantity: 1},
		{Action: models.ChangeTypeRemove, OrderLineID: strPtr("no-such-line"), ItemName: "Cilantro", Quantity: 1},
		{Action: models.ChangeTypeAdd, ItemName: "Parsley", Quantity: 2},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "change 2")

	// The add before the failure stays applied; the add after never ran.
	active := store.activeLines("order-1")
	require.Len(t, active, 1)
	assert.Equal(t, "Mint", active[0].ProductName)
	assert.Equal(t, 0, store.touchCalls)
}

func TestApplyChangesResolvesCatalogIdentity(t *testing.T) {
	store := newFakeOrderStore()
	store.addOrder("order-1", "org-1", "Loco Taqueria", models.OrderStatusPushedToERP)

	catalog := newFakeCatalog()
	catalog.addItem("item-9", "Cilantro")
	catalog.addVariant("variant-3", "item-9", "S")

	applier := NewChangeApplier(store, catalog, &fakeLocker{})

	_, err := applier.ApplyChanges(context.Background(), "order-1", []ChangeLine{
		{Action: models.ChangeTypeAdd, ItemName: "cilantro", VariantCode: strPtr("S"), Quantity: 2},
	})
	require.NoError(t, err)

	active := store.activeLines("order-1")
	require.Len(t, active, 1)
	require.NotNil(t, active[0].ItemID)
	assert.Equal(t, "item-9", *active[0].ItemID)
	require.NotNil(t, active[0].ItemVariantID)
	assert.Equal(t, "variant-3", *active[0].ItemVariantID)
}

func TestApplyChangesUnresolvedItemStillInserted(t *testing.T) {
	store := newFakeOrderStore()
	store.addOrder("order-1", "org-1", "Loco Taqueria", models.OrderStatusPushedToERP)

	applier := NewChangeApplier(store, newFakeCatalog(), &fakeLocker{})

	_, err := applier.ApplyChanges(context.Background(), "order-1", []ChangeLine{
		{Action: models.ChangeTypeAdd, ItemName: "Dragonfruit", Quantity: 1},
	})
	require.NoError(t, err)

	active := store.activeLines("order-1")
	require.Len(t, active, 1)
	assert.Nil(t, active[0].ItemID)
	assert.Nil(t, active[0].ItemVariantID)
}

func TestApplyChangesLockContention(t *testing.T) {
	store := newFakeOrderStore()
	store.addOrder("order-1", "org-1", "Loco Taqueria", models.OrderStatusPushedToERP)

	applier := NewChangeApplier(store, newFakeCatalog(), &fakeLocker{contended: true})

	_, err := applier.ApplyChanges(context.Background(), "order-1", []ChangeLine{
		{Action: models.ChangeTypeAdd, ItemName: "Mint", Quantity: 1},
	})
	assert.ErrorIs(t, err, apperrors.ErrOrderLocked)
}

func TestApplyChangesReleasesLock(t *testing.T) {
	store := newFakeOrderStore()
	store.addOrder("order-1", "org-1", "Loco Taqueria", models.OrderStatusPushedToERP)
	locker := &fakeLocker{}

	applier := NewChangeApplier(store, newFakeCatalog(), locker)

	_, err := applier.ApplyChanges(context.Background(), "order-1", []ChangeLine{
		{Action: models.ChangeTypeAdd, ItemName: "Mint", Quantity: 1},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, locker.releases)
}

func TestCancelOrderSoftDeletesActiveLines(t *testing.T) {
	store := newFakeOrderStore()
	store.addOrder("order-1", "org-1", "Loco Taqueria", models.OrderStatusPushedToERP)
	store.addLine("order-1", 1, "Cilantro", 2, models.LineStatusActive)
	store.addLine("order-1", 2, "Basil", 1, models.LineStatusActive)

	applier := NewChangeApplier(store, newFakeCatalog(), &fakeLocker{})

	err := applier.CancelOrder(context.Background(), "order-1", models.JSONMap{"cancelled_by": "user-1"})
	require.NoError(t, err)

	assert.Equal(t, models.OrderStatusCancelled, store.orders["order-1"].Status)
	assert.Empty(t, store.activeLines("order-1"))
	require.Len(t, store.events, 1)
	assert.Equal(t, models.OrderEventCancelled, store.events[0].Type)
}

func TestCancelOrderAlreadyCancelledIsNoOp(t *testing.T) {
	store := newFakeOrderStore()
	store.addOrder("order-1", "org-1", "Loco Taqueria", models.OrderStatusCancelled)

	applier := NewChangeApplier(store, newFakeCatalog(), &fakeLocker{})

	err := applier.CancelOrder(context.Background(), "order-1", nil)
	require.NoError(t, err)
	assert.Equal(t, 0, store.cancelCalls)
	assert.Empty(t, store.events)
}

func TestCancelOrderWithZeroLines(t *testing.T) {
	store := newFakeOrderStore()
	store.addOrder("order-1", "org-1", "Loco Taqueria", models.OrderStatusPushedToERP)

	applier := NewChangeApplier(store, newFakeCatalog(), &fakeLocker{})

	err := applier.CancelOrder(context.Background(), "order-1", nil)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusCancelled, store.orders["order-1"].Status)
	require.Len(t, store.events, 1)
}
