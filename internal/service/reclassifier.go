package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"order-sync-service/internal/apperrors"
	"order-sync-service/internal/models"
	"order-sync-service/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Reclassify actions
const (
	ReclassifyConvertToNew  = "convert_to_new"
	ReclassifyReassignOrder = "reassign_to_order"
)

// ReclassifyResult is the action-specific response payload.
type ReclassifyResult struct {
	Action         string          `json:"action"`
	IntakeEventID  string          `json:"intake_event_id"`
	TargetOrderID  *string         `json:"target_order_id,omitempty"`
	AnalysisResult json.RawMessage `json:"analysis_result,omitempty"`
}

// ProposalStore is the slice of proposal data access the reclassifier needs.
type ProposalStore interface {
	GetProposal(ctx context.Context, id string) (*models.Proposal, error)
	RejectProposal(ctx context.Context, proposalID, reviewedBy string, notes *string) error
}

// IntakeStore mutates an intake event's order association.
type IntakeStore interface {
	DetachIntakeOrder(ctx context.Context, intakeEventID string) error
	ReassignIntakeOrder(ctx context.Context, intakeEventID, orderID string) error
}

// OrderGetter validates reassignment targets.
type OrderGetter interface {
	GetOrder(ctx context.Context, id string) (*models.Order, error)
}

// Analyzer is the out-of-scope intake analyzer, re-invoked when a proposal
// is converted to a new order.
type Analyzer interface {
	Reanalyze(ctx context.Context, intakeEventID string) (json.RawMessage, error)
}

// Reclassifier fixes misrouted proposals: the proposal is rejected first,
// then its originating intake message is either detached (and re-analyzed as
// a new order) or re-pointed at a different existing order.
type Reclassifier struct {
	proposals ProposalStore
	intake    IntakeStore
	orders    OrderGetter
	analyzer  Analyzer
	publisher ProposalEventPublisher
	logger    *zap.Logger
}

// NewReclassifier creates a new proposal reclassifier
func NewReclassifier(
	proposals ProposalStore,
	intake IntakeStore,
	orders OrderGetter,
	analyzer Analyzer,
	publisher ProposalEventPublisher,
) *Reclassifier {
	return &Reclassifier{
		proposals: proposals,
		intake:    intake,
		orders:    orders,
		analyzer:  analyzer,
		publisher: publisher,
		logger:    util.GetLogger(),
	}
}

// Reclassify rejects the proposal and reroutes its intake event.
// Reassignment deliberately does not re-trigger analysis: the human has
// already decided where the message belongs, and the caller re-reviews
// against the new target.
func (r *Reclassifier) Reclassify(ctx context.Context, proposalID, action string, targetOrderID *string, actor string) (*ReclassifyResult, error) {
	ctx, span := util.StartSpan(ctx, "Reclassifier.Reclassify")
	defer span.End()

	if action != ReclassifyConvertToNew && action != ReclassifyReassignOrder {
		return nil, fmt.Errorf("%w: %q", apperrors.ErrInvalidAction, action)
	}
	if action == ReclassifyReassignOrder && targetOrderID == nil {
		return nil, apperrors.ErrMissingTarget
	}

	proposal, err := r.proposals.GetProposal(ctx, proposalID)
	if err != nil {
		return nil, err
	}

	// Reject first, unconditionally, for both actions. The proposal stays
	// rejected even if rerouting fails afterwards: the human already ruled
	// it misclassified.
	if err := r.proposals.RejectProposal(ctx, proposalID, actor, nil); err != nil {
		return nil, err
	}
	util.ProposalsReclassifiedTotal.WithLabelValues(action).Inc()

	r.logger.Info("Proposal rejected for reclassification",
		zap.String("proposal_id", proposalID),
		zap.String("action", action))

	if r.publisher != nil {
		event := &models.ProposalRejectedEvent{
			BaseEvent: models.BaseEvent{
				EventID:   uuid.New().String(),
				EventType: models.EventTypeProposalRejected,
				Timestamp: time.Now(),
			},
			ProposalID: proposalID,
			OrderID:    proposal.OrderID,
			RejectedBy: actor,
		}
		if err := r.publisher.PublishProposalRejected(ctx, event); err != nil {
			r.logger.Error("Failed to publish ProposalRejected event", zap.Error(err))
		}
	}

	switch action {
	case ReclassifyConvertToNew:
		if err := r.intake.DetachIntakeOrder(ctx, proposal.IntakeEventID); err != nil {
			return nil, fmt.Errorf("failed to detach intake event: %w", err)
		}

		r.logger.Info("Re-analyzing intake event as new order",
			zap.String("intake_event_id", proposal.IntakeEventID))

		analysis, err := r.analyzer.Reanalyze(ctx, proposal.IntakeEventID)
		if err != nil {
			return nil, fmt.Errorf("re-analysis failed: %w", err)
		}

		return &ReclassifyResult{
			Action:         action,
			IntakeEventID:  proposal.IntakeEventID,
			AnalysisResult: analysis,
		}, nil

	default: // ReclassifyReassignOrder
		if _, err := r.orders.GetOrder(ctx, *targetOrderID); err != nil {
			return nil, fmt.Errorf("%w: %s", apperrors.ErrTargetNotFound, *targetOrderID)
		}

		if err := r.intake.ReassignIntakeOrder(ctx, proposal.IntakeEventID, *targetOrderID); err != nil {
			return nil, fmt.Errorf("failed to reassign intake event: %w", err)
		}

		r.logger.Info("Intake event reassigned",
			zap.String("intake_event_id", proposal.IntakeEventID),
			zap.String("target_order_id", *targetOrderID))

		return &ReclassifyResult{
			Action:        action,
			IntakeEventID: proposal.IntakeEventID,
			TargetOrderID: targetOrderID,
		}, nil
	}
}
