package service

import (
	"context"
	"fmt"
	"time"

	"order-sync-service/internal/apperrors"
	"order-sync-service/internal/models"
	"order-sync-service/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Resolve actions
const (
	ResolveAccept = "accept"
	ResolveReject = "reject"
)

// SubmittedLine is one reviewed change as confirmed (and possibly edited) by
// the human before acceptance.
type SubmittedLine struct {
	ChangeType    string  `json:"change_type" binding:"required,oneof=add modify remove"`
	ItemName      string  `json:"item_name" binding:"required"`
	ItemID        *string `json:"item_id,omitempty"`
	ItemVariantID *string `json:"item_variant_id,omitempty"`
	Quantity      int     `json:"quantity"`
	VariantCode   *string `json:"variant_code,omitempty"`
	OrderLineID   *string `json:"order_line_id,omitempty"`
}

// ResolveRequest carries an accept/reject decision for one proposal.
type ResolveRequest struct {
	Action         string          `json:"action" binding:"required,oneof=accept reject"`
	SubmittedLines []SubmittedLine `json:"submitted_lines,omitempty"`
	CustomerName   *string         `json:"customer_name,omitempty"`
	CustomerID     *string         `json:"customer_id,omitempty"`
	DeliveryDate   *string         `json:"delivery_date,omitempty"`
	Notes          *string         `json:"notes,omitempty"`
}

// ResolveResult reports the outcome of a resolution.
type ResolveResult struct {
	Success bool    `json:"success"`
	OrderID *string `json:"order_id,omitempty"`
}

// ProposalEventPublisher publishes proposal lifecycle events.
type ProposalEventPublisher interface {
	PublishProposalAccepted(ctx context.Context, event *models.ProposalAcceptedEvent) error
	PublishProposalRejected(ctx context.Context, event *models.ProposalRejectedEvent) error
	PublishOrderCancelled(ctx context.Context, event *models.OrderCancelledEvent) error
}

// AcceptanceStore is the data access the acceptance orchestration needs on
// top of the change applier's.
type AcceptanceStore interface {
	GetProposal(ctx context.Context, id string) (*models.Proposal, error)
	GetProposalLines(ctx context.Context, proposalID string) ([]models.ProposalLine, error)
	AcceptProposal(ctx context.Context, proposalID, reviewedBy, orderID string, tags, metadata models.JSONMap) error
	RejectProposal(ctx context.Context, proposalID, reviewedBy string, notes *string) error
	GetOrder(ctx context.Context, id string) (*models.Order, error)
	CreateOrder(ctx context.Context, order *models.Order) error
	InsertOrderLine(ctx context.Context, line *models.OrderLine) error
	InsertOrderEvent(ctx context.Context, event *models.OrderEvent) error
	GetOrganizationName(ctx context.Context, organizationID string) (string, error)
}

// AcceptanceService resolves proposals. Accepting mutates the order store
// first (authoritative), then publishes the accepted event that drives the
// best-effort spreadsheet mirror and the notification sink.
type AcceptanceService struct {
	store     AcceptanceStore
	applier   *ChangeApplier
	catalog   CatalogResolver
	publisher ProposalEventPublisher
	logger    *zap.Logger
}

// NewAcceptanceService creates a new acceptance service
func NewAcceptanceService(
	store AcceptanceStore,
	applier *ChangeApplier,
	catalog CatalogResolver,
	publisher ProposalEventPublisher,
) *AcceptanceService {
	return &AcceptanceService{
		store:     store,
		applier:   applier,
		catalog:   catalog,
		publisher: publisher,
		logger:    util.GetLogger(),
	}
}

// ResolveProposal accepts or rejects a pending proposal.
func (s *AcceptanceService) ResolveProposal(ctx context.Context, proposalID string, req *ResolveRequest, actor string) (*ResolveResult, error) {
	ctx, span := util.StartSpan(ctx, "AcceptanceService.ResolveProposal")
	defer span.End()

	proposal, err := s.store.GetProposal(ctx, proposalID)
	if err != nil {
		return nil, err
	}
	if proposal.Status != models.ProposalStatusPending {
		return nil, fmt.Errorf("%w: proposal is %s", apperrors.ErrProposalResolved, proposal.Status)
	}

	originalLines, err := s.store.GetProposalLines(ctx, proposalID)
	if err != nil {
		return nil, fmt.Errorf("failed to load proposal lines: %w", err)
	}

	orgName, err := s.store.GetOrganizationName(ctx, proposal.OrganizationID)
	if err != nil {
		s.logger.Warn("Failed to resolve organization name", zap.Error(err))
		orgName = "Unknown Organization"
	}

	if req.Action == ResolveReject {
		return s.reject(ctx, proposal, req, actor)
	}
	return s.accept(ctx, proposal, req, originalLines, orgName, actor)
}

func (s *AcceptanceService) reject(ctx context.Context, proposal *models.Proposal, req *ResolveRequest, actor string) (*ResolveResult, error) {
	if err := s.store.RejectProposal(ctx, proposal.ID, actor, req.Notes); err != nil {
		return nil, err
	}
	util.ProposalsRejectedTotal.Inc()

	if proposal.OrderID != nil {
		event := &models.OrderEvent{
			OrderID: *proposal.OrderID,
			Type:    models.OrderEventChangeRejected,
			Metadata: models.JSONMap{
				"proposal_id": proposal.ID,
				"rejected_by": actor,
			},
		}
		if err := s.store.InsertOrderEvent(ctx, event); err != nil {
			s.logger.Error("Failed to insert rejection audit event", zap.Error(err))
		}
	}

	rejected := &models.ProposalRejectedEvent{
		BaseEvent:  newBaseEvent(models.EventTypeProposalRejected),
		ProposalID: proposal.ID,
		OrderID:    proposal.OrderID,
		RejectedBy: actor,
		Notes:      req.Notes,
	}
	if err := s.publisher.PublishProposalRejected(ctx, rejected); err != nil {
		s.logger.Error("Failed to publish ProposalRejected event", zap.Error(err))
	}

	s.logger.Info("Proposal rejected", zap.String("proposal_id", proposal.ID))
	return &ResolveResult{Success: true, OrderID: proposal.OrderID}, nil
}

func (s *AcceptanceService) accept(
	ctx context.Context,
	proposal *models.Proposal,
	req *ResolveRequest,
	originalLines []models.ProposalLine,
	orgName, actor string,
) (*ResolveResult, error) {
	proposalType := proposal.ResolvedType()

	switch proposalType {
	case models.ProposalTypeCancelOrder:
		return s.acceptCancel(ctx, proposal, originalLines, orgName, actor)
	case models.ProposalTypeNewOrder:
		return s.acceptNewOrder(ctx, proposal, req, originalLines, orgName, actor)
	case models.ProposalTypeChangeOrder:
		return s.acceptChange(ctx, proposal, req, originalLines, orgName, actor)
	default:
		return nil, fmt.Errorf("%w: unknown proposal type %q", apperrors.ErrInvalidAction, proposalType)
	}
}

func (s *AcceptanceService) acceptCancel(ctx context.Context, proposal *models.Proposal, originalLines []models.ProposalLine, orgName, actor string) (*ResolveResult, error) {
	if proposal.OrderID == nil {
		return nil, fmt.Errorf("cancel proposal %s has no order", proposal.ID)
	}
	orderID := *proposal.OrderID

	order, err := s.store.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}

	if err := s.applier.CancelOrder(ctx, orderID, models.JSONMap{
		"proposal_id":  proposal.ID,
		"cancelled_by": actor,
	}); err != nil {
		return nil, err
	}
	order.Status = models.OrderStatusCancelled

	tags := acceptedTags(proposal)
	if err := s.store.AcceptProposal(ctx, proposal.ID, actor, orderID, tags, nil); err != nil {
		return nil, err
	}
	util.ProposalsAcceptedTotal.WithLabelValues(models.ProposalTypeCancelOrder).Inc()

	cancelled := &models.OrderCancelledEvent{
		BaseEvent:    newBaseEvent(models.EventTypeOrderCancelled),
		OrderID:      orderID,
		CustomerName: order.CustomerName,
		CancelledBy:  actor,
	}
	if err := s.publisher.PublishOrderCancelled(ctx, cancelled); err != nil {
		s.logger.Error("Failed to publish OrderCancelled event", zap.Error(err))
	}

	s.publishAccepted(ctx, proposal, order, orgName, actor, false, linesFromProposal(originalLines))

	s.logger.Info("Cancel proposal accepted",
		zap.String("proposal_id", proposal.ID),
		zap.String("order_id", orderID))
	return &ResolveResult{Success: true, OrderID: &orderID}, nil
}

func (s *AcceptanceService) acceptNewOrder(ctx context.Context, proposal *models.Proposal, req *ResolveRequest, originalLines []models.ProposalLine, orgName, actor string) (*ResolveResult, error) {
	if len(req.SubmittedLines) == 0 {
		return nil, fmt.Errorf("no submitted lines for new order proposal %s", proposal.ID)
	}

	customerName := "Unknown Customer"
	if req.CustomerName != nil && *req.CustomerName != "" {
		customerName = *req.CustomerName
	}

	order := &models.Order{
		OrganizationID: proposal.OrganizationID,
		CustomerID:     req.CustomerID,
		CustomerName:   customerName,
		Status:         models.OrderStatusPushedToERP,
		DeliveryDate:   req.DeliveryDate,
		Currency:       "USD",
	}
	if err := s.store.CreateOrder(ctx, order); err != nil {
		return nil, fmt.Errorf("failed to create order: %w", err)
	}
	s.logger.Info("Order created from proposal",
		zap.String("proposal_id", proposal.ID),
		zap.String("order_id", order.ID))

	for _, eventType := range []string{models.OrderEventCreated, models.OrderEventExported} {
		event := &models.OrderEvent{
			OrderID: order.ID,
			Type:    eventType,
			Metadata: models.JSONMap{
				"proposal_id": proposal.ID,
				"source":      "approved_proposal",
				"line_count":  len(req.SubmittedLines),
			},
		}
		if err := s.store.InsertOrderEvent(ctx, event); err != nil {
			s.logger.Error("Failed to insert order audit event", zap.Error(err))
		}
	}

	// Lines on a brand-new order are numbered 1..n in submitted order.
	for i, line := range req.SubmittedLines {
		itemID := line.ItemID
		variantID := line.ItemVariantID
		if variantID == nil && itemID != nil && line.VariantCode != nil {
			variant, err := s.catalog.ResolveVariant(ctx, *itemID, *line.VariantCode)
			if err != nil {
				return nil, err
			}
			if variant != nil {
				variantID = &variant.ID
			}
		}
		orderLine := &models.OrderLine{
			OrderID:       order.ID,
			LineNumber:    i + 1,
			ProductName:   line.ItemName,
			Quantity:      line.Quantity,
			ItemID:        itemID,
			ItemVariantID: variantID,
			Status:        models.LineStatusActive,
		}
		if err := s.store.InsertOrderLine(ctx, orderLine); err != nil {
			return nil, fmt.Errorf("failed to insert order line %d: %w", i+1, err)
		}
	}

	tags := acceptedTags(proposal)
	metadata := buildAuditMetadata(req.SubmittedLines, originalLines, actor)
	if err := s.store.AcceptProposal(ctx, proposal.ID, actor, order.ID, tags, metadata); err != nil {
		return nil, err
	}
	util.ProposalsAcceptedTotal.WithLabelValues(models.ProposalTypeNewOrder).Inc()

	s.publishAccepted(ctx, proposal, order, orgName, actor, true, linesFromSubmitted(req.SubmittedLines, originalLines))

	return &ResolveResult{Success: true, OrderID: &order.ID}, nil
}

func (s *AcceptanceService) acceptChange(ctx context.Context, proposal *models.Proposal, req *ResolveRequest, originalLines []models.ProposalLine, orgName, actor string) (*ResolveResult, error) {
	if proposal.OrderID == nil {
		return nil, fmt.Errorf("change proposal %s has no order", proposal.ID)
	}
	if len(req.SubmittedLines) == 0 {
		return nil, fmt.Errorf("no submitted lines for change proposal %s", proposal.ID)
	}
	orderID := *proposal.OrderID

	changes := make([]ChangeLine, 0, len(req.SubmittedLines))
	for _, line := range req.SubmittedLines {
		changes = append(changes, ChangeLine{
			Action:        line.ChangeType,
			OrderLineID:   line.OrderLineID,
			ItemName:      line.ItemName,
			ItemID:        line.ItemID,
			ItemVariantID: line.ItemVariantID,
			VariantCode:   line.VariantCode,
			Quantity:      line.Quantity,
		})
	}

	if _, err := s.applier.ApplyChanges(ctx, orderID, changes); err != nil {
		return nil, err
	}

	order, err := s.store.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}

	tags := acceptedTags(proposal)
	metadata := buildAuditMetadata(req.SubmittedLines, originalLines, actor)
	if err := s.store.AcceptProposal(ctx, proposal.ID, actor, orderID, tags, metadata); err != nil {
		return nil, err
	}
	util.ProposalsAcceptedTotal.WithLabelValues(models.ProposalTypeChangeOrder).Inc()

	event := &models.OrderEvent{
		OrderID: orderID,
		Type:    models.OrderEventChangeAccepted,
		Metadata: models.JSONMap{
			"proposal_id": proposal.ID,
			"was_edited":  metadata["was_edited"],
			"line_count":  len(req.SubmittedLines),
		},
	}
	if err := s.store.InsertOrderEvent(ctx, event); err != nil {
		s.logger.Error("Failed to insert change audit event", zap.Error(err))
	}

	s.publishAccepted(ctx, proposal, order, orgName, actor, false, linesFromSubmitted(req.SubmittedLines, originalLines))

	return &ResolveResult{Success: true, OrderID: &orderID}, nil
}

func (s *AcceptanceService) publishAccepted(
	ctx context.Context,
	proposal *models.Proposal,
	order *models.Order,
	orgName, actor string,
	isNewOrder bool,
	lines []models.ChangeLineData,
) {
	event := &models.ProposalAcceptedEvent{
		BaseEvent:        newBaseEvent(models.EventTypeProposalAccepted),
		ProposalID:       proposal.ID,
		ProposalType:     proposal.ResolvedType(),
		OrderID:          order.ID,
		OrderStatus:      order.Status,
		OrganizationName: orgName,
		CustomerName:     order.CustomerName,
		DeliveryDate:     order.DeliveryDate,
		IsNewOrder:       isNewOrder,
		Recurring:        proposal.IsRecurring(),
		Lines:            lines,
		AcceptedBy:       actor,
	}
	if err := s.publisher.PublishProposalAccepted(ctx, event); err != nil {
		s.logger.Error("Failed to publish ProposalAccepted event",
			zap.String("proposal_id", proposal.ID),
			zap.Error(err))
	}
}

// acceptedTags returns the proposal tags to persist on acceptance. Recurring
// proposals gain a pending mirror-sync marker that the sheet-sync worker
// later resolves.
func acceptedTags(proposal *models.Proposal) models.JSONMap {
	tags := models.JSONMap{}
	for k, v := range proposal.Tags {
		tags[k] = v
	}
	if proposal.IsRecurring() {
		tags["erp_sync_status"] = models.ERPSyncPending
	}
	return tags
}

// buildAuditMetadata records what the human actually submitted and whether it
// differs from what the analyzer proposed.
func buildAuditMetadata(submitted []SubmittedLine, original []models.ProposalLine, actor string) models.JSONMap {
	lines := make([]map[string]interface{}, 0, len(submitted))
	for _, l := range submitted {
		lines = append(lines, map[string]interface{}{
			"change_type":   l.ChangeType,
			"item_name":     l.ItemName,
			"item_id":       l.ItemID,
			"quantity":      l.Quantity,
			"variant_code":  l.VariantCode,
			"order_line_id": l.OrderLineID,
		})
	}
	return models.JSONMap{
		"submitted_lines": lines,
		"was_edited":      detectEdits(submitted, original),
		"accepted_at":     time.Now().UTC().Format(time.RFC3339),
		"accepted_by":     actor,
	}
}

// detectEdits reports whether the submitted lines diverge from the
// analyzer's original proposal.
func detectEdits(submitted []SubmittedLine, original []models.ProposalLine) bool {
	if len(submitted) != len(original) {
		return true
	}
	for _, s := range submitted {
		found := false
		for i := range original {
			o := &original[i]
			if o.ItemName == s.ItemName && o.ChangeType == s.ChangeType && o.Quantity() == s.Quantity {
				found = true
				break
			}
		}
		if !found {
			return true
		}
	}
	return false
}

func linesFromSubmitted(submitted []SubmittedLine, original []models.ProposalLine) []models.ChangeLineData {
	lines := make([]models.ChangeLineData, 0, len(submitted))
	for _, l := range submitted {
		data := models.ChangeLineData{
			ChangeType:  l.ChangeType,
			ItemName:    l.ItemName,
			Quantity:    l.Quantity,
			VariantCode: l.VariantCode,
			OrderLineID: l.OrderLineID,
		}
		// Carry the pre-change quantity for modify lines so the notifier can
		// render a before/after diff.
		if l.ChangeType == models.ChangeTypeModify && l.OrderLineID != nil {
			for i := range original {
				o := &original[i]
				if o.OrderLineID != nil && *o.OrderLineID == *l.OrderLineID {
					if qty, ok := o.ProposedValues["original_quantity"].(float64); ok {
						orig := int(qty)
						data.OriginalQuantity = &orig
					}
					break
				}
			}
		}
		lines = append(lines, data)
	}
	return lines
}

func linesFromProposal(original []models.ProposalLine) []models.ChangeLineData {
	lines := make([]models.ChangeLineData, 0, len(original))
	for i := range original {
		o := &original[i]
		code := o.VariantCode()
		data := models.ChangeLineData{
			ChangeType:  o.ChangeType,
			ItemName:    o.ItemName,
			Quantity:    o.Quantity(),
			OrderLineID: o.OrderLineID,
		}
		if code != "" {
			data.VariantCode = &code
		}
		lines = append(lines, data)
	}
	return lines
}

func newBaseEvent(eventType string) models.BaseEvent {
	return models.BaseEvent{
		EventID:   uuid.New().String(),
		EventType: eventType,
		Timestamp: time.Now(),
	}
}
