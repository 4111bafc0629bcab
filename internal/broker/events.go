package broker

import (
	"context"
	"encoding/json"
	"fmt"

	"order-sync-service/internal/models"
	"order-sync-service/internal/util"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// EventPublisher handles publishing domain events
type EventPublisher struct {
	producer *Producer
}

// NewEventPublisher creates a new event publisher
func NewEventPublisher(producer *Producer) *EventPublisher {
	return &EventPublisher{producer: producer}
}

// PublishProposalAccepted publishes ProposalAccepted event
func (ep *EventPublisher) PublishProposalAccepted(ctx context.Context, event *models.ProposalAcceptedEvent) error {
	key := fmt.Sprintf("order-%s", event.OrderID)
	return ep.producer.PublishEvent(ctx, key, event)
}

// PublishProposalRejected publishes ProposalRejected event
func (ep *EventPublisher) PublishProposalRejected(ctx context.Context, event *models.ProposalRejectedEvent) error {
	key := fmt.Sprintf("proposal-%s", event.ProposalID)
	return ep.producer.PublishEvent(ctx, key, event)
}

// PublishOrderCancelled publishes OrderCancelled event
func (ep *EventPublisher) PublishOrderCancelled(ctx context.Context, event *models.OrderCancelledEvent) error {
	key := fmt.Sprintf("order-%s", event.OrderID)
	return ep.producer.PublishEvent(ctx, key, event)
}

// PublishSheetSyncCompleted publishes SheetSyncCompleted event
func (ep *EventPublisher) PublishSheetSyncCompleted(ctx context.Context, event *models.SheetSyncCompletedEvent) error {
	key := fmt.Sprintf("order-%s", event.OrderID)
	return ep.producer.PublishEvent(ctx, key, event)
}

// EventHandler routes incoming proposal events to registered callbacks.
type EventHandler struct {
	logger             *zap.Logger
	onProposalAccepted func(context.Context, *models.ProposalAcceptedEvent) error
}

// NewEventHandler creates a new event handler
func NewEventHandler() *EventHandler {
	return &EventHandler{logger: util.GetLogger()}
}

// OnProposalAccepted registers a handler for ProposalAccepted events
func (eh *EventHandler) OnProposalAccepted(handler func(context.Context, *models.ProposalAcceptedEvent) error) {
	eh.onProposalAccepted = handler
}

// HandleMessage routes messages to appropriate handlers
func (eh *EventHandler) HandleMessage(ctx context.Context, msg kafka.Message) error {
	var baseEvent models.BaseEvent
	if err := json.Unmarshal(msg.Value, &baseEvent); err != nil {
		return fmt.Errorf("failed to unmarshal base event: %w", err)
	}

	eh.logger.Debug("Handling event",
		zap.String("type", baseEvent.EventType),
		zap.String("id", baseEvent.EventID))

	switch baseEvent.EventType {
	case models.EventTypeProposalAccepted:
		if eh.onProposalAccepted != nil {
			var event models.ProposalAcceptedEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal ProposalAccepted event: %w", err)
			}
			return eh.onProposalAccepted(ctx, &event)
		}

	default:
		eh.logger.Debug("Unhandled event type", zap.String("type", baseEvent.EventType))
	}

	return nil
}
