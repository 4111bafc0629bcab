package service

import (
	"context"
	"testing"

	"order-sync-service/internal/apperrors"
	"order-sync-service/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAcceptanceStore struct {
	*fakeOrderStore
	proposals     map[string]*models.Proposal
	proposalLines map[string][]models.ProposalLine
	acceptedTags  map[string]models.JSONMap
	acceptedMeta  map[string]models.JSONMap
	nextOrderID   int
}

func newFakeAcceptanceStore() *fakeAcceptanceStore {
	return &fakeAcceptanceStore{
		fakeOrderStore: newFakeOrderStore(),
		proposals:      map[string]*models.Proposal{},
		proposalLines:  map[string][]models.ProposalLine{},
		acceptedTags:   map[string]models.JSONMap{},
		acceptedMeta:   map[string]models.JSONMap{},
	}
}

func (f *fakeAcceptanceStore) GetProposal(_ context.Context, id string) (*models.Proposal, error) {
	p, ok := f.proposals[id]
	if !ok {
		return nil, apperrors.ErrProposalNotFound
	}
	return p, nil
}

func (f *fakeAcceptanceStore) GetProposalLines(_ context.Context, proposalID string) ([]models.ProposalLine, error) {
	return f.proposalLines[proposalID], nil
}

func (f *fakeAcceptanceStore) AcceptProposal(_ context.Context, proposalID, reviewedBy, orderID string, tags, metadata models.JSONMap) error {
	p, ok := f.proposals[proposalID]
	if !ok {
		return apperrors.ErrProposalNotFound
	}
	if !models.CanTransitionProposal(p.Status, models.ProposalStatusAccepted) {
		return apperrors.ErrProposalResolved
	}
	p.Status = models.ProposalStatusAccepted
	p.ReviewedBy = &reviewedBy
	p.OrderID = &orderID
	f.acceptedTags[proposalID] = tags
	f.acceptedMeta[proposalID] = metadata
	return nil
}

func (f *fakeAcceptanceStore) RejectProposal(_ context.Context, proposalID, reviewedBy string, notes *string) error {
	p, ok := f.proposals[proposalID]
	if !ok {
		return apperrors.ErrProposalNotFound
	}
	if !models.CanTransitionProposal(p.Status, models.ProposalStatusRejected) {
		return apperrors.ErrProposalResolved
	}
	p.Status = models.ProposalStatusRejected
	p.ReviewedBy = &reviewedBy
	p.Notes = notes
	return nil
}

func (f *fakeAcceptanceStore) CreateOrder(_ context.Context, order *models.Order) error {
	f.nextOrderID++
	order.ID = "order-new"
	f.orders[order.ID] = order
	return nil
}

func (f *fakeAcceptanceStore) InsertOrderEvent(_ context.Context, event *models.OrderEvent) error {
	f.events = append(f.events, event)
	return nil
}

func (f *fakeAcceptanceStore) GetOrganizationName(_ context.Context, _ string) (string, error) {
	return "Gotham Greens", nil
}

func (f *fakeAcceptanceStore) eventTypes(orderID string) []string {
	var types []string
	for _, e := range f.events {
		if e.OrderID == orderID {
			types = append(types, e.Type)
		}
	}
	return types
}

func newAcceptanceFixture(t *testing.T) (*fakeAcceptanceStore, *fakePublisher, *AcceptanceService) {
	t.Helper()
	store := newFakeAcceptanceStore()
	publisher := &fakePublisher{}
	applier := NewChangeApplier(store, newFakeCatalog(), &fakeLocker{})
	svc := NewAcceptanceService(store, applier, newFakeCatalog(), publisher)
	return store, publisher, svc
}

func changeProposal(id, orderID string, recurring bool) *models.Proposal {
	proposalType := models.ProposalTypeChangeOrder
	tags := models.JSONMap{}
	if recurring {
		tags["order_frequency"] = models.OrderFrequencyRecurring
	}
	return &models.Proposal{
		ID:            id,
		OrderID:       &orderID,
		Type:          &proposalType,
		Status:        models.ProposalStatusPending,
		Tags:          tags,
		IntakeEventID: "intake-1",
	}
}

func TestResolveAcceptChangeOrder(t *testing.T) {
	store, publisher, svc := newAcceptanceFixture(t)
	store.addOrder("order-1", "org-1", "Loco Taqueria", models.OrderStatusPushedToERP)
	line := store.addLine("order-1", 1, "Cilantro", 2, models.LineStatusActive)

	store.proposals["prop-1"] = changeProposal("prop-1", "order-1", true)
	store.proposalLines["prop-1"] = []models.ProposalLine{
		{
			ChangeType:     models.ChangeTypeModify,
			ItemName:       "Cilantro",
			OrderLineID:    &line.ID,
			ProposedValues: models.JSONMap{"quantity": float64(5), "original_quantity": float64(2)},
		},
	}

	result, err := svc.ResolveProposal(context.Background(), "prop-1", &ResolveRequest{
		Action: ResolveAccept,
		SubmittedLines: []SubmittedLine{
			{ChangeType: models.ChangeTypeModify, ItemName: "Cilantro", Quantity: 5, OrderLineID: &line.ID},
		},
	}, "user-1")
	require.NoError(t, err)
	assert.True(t, result.Success)

	assert.Equal(t, 5, line.Quantity)
	assert.Equal(t, models.ProposalStatusAccepted, store.proposals["prop-1"].Status)
	assert.Contains(t, store.eventTypes("order-1"), models.OrderEventChangeAccepted)

	// The reviewer confirmed the proposal as-is.
	meta := store.acceptedMeta["prop-1"]
	assert.Equal(t, false, meta["was_edited"])

	require.Len(t, publisher.accepted, 1)
	event := publisher.accepted[0]
	assert.Equal(t, "order-1", event.OrderID)
	assert.True(t, event.Recurring)
	assert.False(t, event.IsNewOrder)
	assert.Equal(t, "Gotham Greens", event.OrganizationName)
	require.Len(t, event.Lines, 1)
	require.NotNil(t, event.Lines[0].OriginalQuantity)
	assert.Equal(t, 2, *event.Lines[0].OriginalQuantity)
}

func TestResolveAcceptEditedChangeIsFlagged(t *testing.T) {
	store, _, svc := newAcceptanceFixture(t)
	store.addOrder("order-1", "org-1", "Loco Taqueria", models.OrderStatusPushedToERP)
	line := store.addLine("order-1", 1, "Cilantro", 2, models.LineStatusActive)

	store.proposals["prop-1"] = changeProposal("prop-1", "order-1", false)
	store.proposalLines["prop-1"] = []models.ProposalLine{
		{
			ChangeType:     models.ChangeTypeModify,
			ItemName:       "Cilantro",
			OrderLineID:    &line.ID,
			ProposedValues: models.JSONMap{"quantity": float64(5)},
		},
	}

	// The reviewer bumped the quantity from the proposed 5 to 7.
	_, err := svc.ResolveProposal(context.Background(), "prop-1", &ResolveRequest{
		Action: ResolveAccept,
		SubmittedLines: []SubmittedLine{
			{ChangeType: models.ChangeTypeModify, ItemName: "Cilantro", Quantity: 7, OrderLineID: &line.ID},
		},
	}, "user-1")
	require.NoError(t, err)

	assert.Equal(t, true, store.acceptedMeta["prop-1"]["was_edited"])
	assert.Equal(t, 7, line.Quantity)
}

func TestResolveAcceptNewOrder(t *testing.T) {
	store, publisher, svc := newAcceptanceFixture(t)

	proposalType := models.ProposalTypeNewOrder
	store.proposals["prop-1"] = &models.Proposal{
		ID:             "prop-1",
		OrganizationID: "org-1",
		Type:           &proposalType,
		Status:         models.ProposalStatusPending,
		Tags:           models.JSONMap{"order_frequency": models.OrderFrequencyRecurring},
		IntakeEventID:  "intake-1",
	}

	customer := "Loco Taqueria"
	delivery := "2026-02-17"
	result, err := svc.ResolveProposal(context.Background(), "prop-1", &ResolveRequest{
		Action:       ResolveAccept,
		CustomerName: &customer,
		DeliveryDate: &delivery,
		SubmittedLines: []SubmittedLine{
			{ChangeType: models.ChangeTypeAdd, ItemName: "Cilantro", Quantity: 2},
			{ChangeType: models.ChangeTypeAdd, ItemName: "Basil", Quantity: 3},
		},
	}, "user-1")
	require.NoError(t, err)
	require.NotNil(t, result.OrderID)

	order := store.orders[*result.OrderID]
	require.NotNil(t, order)
	assert.Equal(t, models.OrderStatusPushedToERP, order.Status)
	assert.Equal(t, "Loco Taqueria", order.CustomerName)

	active := store.activeLines(order.ID)
	require.Len(t, active, 2)
	assert.Equal(t, 1, active[0].LineNumber)
	assert.Equal(t, 2, active[1].LineNumber)

	types := store.eventTypes(order.ID)
	assert.Contains(t, types, models.OrderEventCreated)
	assert.Contains(t, types, models.OrderEventExported)

	require.Len(t, publisher.accepted, 1)
	assert.True(t, publisher.accepted[0].IsNewOrder)
}

func TestResolveAcceptCancelOrder(t *testing.T) {
	store, publisher, svc := newAcceptanceFixture(t)
	store.addOrder("order-1", "org-1", "Loco Taqueria", models.OrderStatusPushedToERP)
	store.addLine("order-1", 1, "Cilantro", 2, models.LineStatusActive)

	proposalType := models.ProposalTypeCancelOrder
	orderID := "order-1"
	store.proposals["prop-1"] = &models.Proposal{
		ID:            "prop-1",
		OrderID:       &orderID,
		Type:          &proposalType,
		Status:        models.ProposalStatusPending,
		Tags:          models.JSONMap{},
		IntakeEventID: "intake-1",
	}

	result, err := svc.ResolveProposal(context.Background(), "prop-1", &ResolveRequest{
		Action: ResolveAccept,
	}, "user-1")
	require.NoError(t, err)
	assert.True(t, result.Success)

	assert.Equal(t, models.OrderStatusCancelled, store.orders["order-1"].Status)
	assert.Empty(t, store.activeLines("order-1"))
	require.Len(t, publisher.cancelled, 1)
	require.Len(t, publisher.accepted, 1)
}

func TestResolveRecurringSetsPendingSyncTag(t *testing.T) {
	store, _, svc := newAcceptanceFixture(t)
	store.addOrder("order-1", "org-1", "Loco Taqueria", models.OrderStatusPushedToERP)
	line := store.addLine("order-1", 1, "Cilantro", 2, models.LineStatusActive)

	store.proposals["prop-1"] = changeProposal("prop-1", "order-1", true)

	_, err := svc.ResolveProposal(context.Background(), "prop-1", &ResolveRequest{
		Action: ResolveAccept,
		SubmittedLines: []SubmittedLine{
			{ChangeType: models.ChangeTypeModify, ItemName: "Cilantro", Quantity: 5, OrderLineID: &line.ID},
		},
	}, "user-1")
	require.NoError(t, err)

	assert.Equal(t, models.ERPSyncPending, store.acceptedTags["prop-1"]["erp_sync_status"])
}

func TestResolveRejectRecordsNotesAndAudit(t *testing.T) {
	store, publisher, svc := newAcceptanceFixture(t)
	store.addOrder("order-1", "org-1", "Loco Taqueria", models.OrderStatusPushedToERP)
	store.proposals["prop-1"] = changeProposal("prop-1", "order-1", false)

	notes := "customer called it off"
	result, err := svc.ResolveProposal(context.Background(), "prop-1", &ResolveRequest{
		Action: ResolveReject,
		Notes:  &notes,
	}, "user-1")
	require.NoError(t, err)
	assert.True(t, result.Success)

	p := store.proposals["prop-1"]
	assert.Equal(t, models.ProposalStatusRejected, p.Status)
	require.NotNil(t, p.Notes)
	assert.Equal(t, notes, *p.Notes)

	assert.Contains(t, store.eventTypes("order-1"), models.OrderEventChangeRejected)
	require.Len(t, publisher.rejected, 1)
	assert.Empty(t, publisher.accepted)
}

func TestResolveAlreadyResolvedProposal(t *testing.T) {
	store, _, svc := newAcceptanceFixture(t)
	store.addOrder("order-1", "org-1", "Loco Taqueria", models.OrderStatusPushedToERP)
	p := changeProposal("prop-1", "order-1", false)
	p.Status = models.ProposalStatusAccepted
	store.proposals["prop-1"] = p

	_, err := svc.ResolveProposal(context.Background(), "prop-1", &ResolveRequest{Action: ResolveReject}, "user-1")
	assert.ErrorIs(t, err, apperrors.ErrProposalResolved)
}

func TestResolveTypeFallsBackToIntentTag(t *testing.T) {
	store, publisher, svc := newAcceptanceFixture(t)
	store.addOrder("order-1", "org-1", "Loco Taqueria", models.OrderStatusPushedToERP)
	store.addLine("order-1", 1, "Cilantro", 2, models.LineStatusActive)

	orderID := "order-1"
	store.proposals["prop-1"] = &models.Proposal{
		ID:            "prop-1",
		OrderID:       &orderID,
		Status:        models.ProposalStatusPending,
		Tags:          models.JSONMap{"intent": models.ProposalTypeCancelOrder},
		IntakeEventID: "intake-1",
	}

	_, err := svc.ResolveProposal(context.Background(), "prop-1", &ResolveRequest{Action: ResolveAccept}, "user-1")
	require.NoError(t, err)

	assert.Equal(t, models.OrderStatusCancelled, store.orders["order-1"].Status)
	require.Len(t, publisher.accepted, 1)
	assert.Equal(t, models.ProposalTypeCancelOrder, publisher.accepted[0].ProposalType)
}
