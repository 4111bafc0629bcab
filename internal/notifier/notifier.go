package notifier

import (
	"context"
	"fmt"
	"time"

	"order-sync-service/internal/models"
	"order-sync-service/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Publisher is the outbound message surface, satisfied by broker.Producer.
type Publisher interface {
	PublishEvent(ctx context.Context, key string, event interface{}) error
}

// Notifier hands acceptance notices to the downstream notification sink via
// the notification topic. Rendering the human-facing message is the sink's
// job; this side only ships the structured payload.
type Notifier struct {
	publisher Publisher
	logger    *zap.Logger
}

// NewNotifier creates a new notifier
func NewNotifier(publisher Publisher) *Notifier {
	return &Notifier{
		publisher: publisher,
		logger:    util.GetLogger(),
	}
}

// NotifyAccepted publishes the acceptance notice for one resolved proposal.
func (n *Notifier) NotifyAccepted(ctx context.Context, event *models.ProposalAcceptedEvent) error {
	notice := &models.AcceptanceNotice{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypeAcceptanceNotice,
			Timestamp: time.Now(),
		},
		ProposalID:       event.ProposalID,
		OrderID:          &event.OrderID,
		CustomerName:     event.CustomerName,
		DeliveryDate:     event.DeliveryDate,
		IsNewOrder:       event.IsNewOrder,
		Lines:            event.Lines,
		AcceptedBy:       event.AcceptedBy,
		OrganizationName: event.OrganizationName,
	}

	key := fmt.Sprintf("proposal-%s", event.ProposalID)
	if err := n.publisher.PublishEvent(ctx, key, notice); err != nil {
		return fmt.Errorf("failed to publish acceptance notice: %w", err)
	}

	n.logger.Info("Acceptance notice published",
		zap.String("proposal_id", event.ProposalID),
		zap.String("customer", event.CustomerName))
	return nil
}
