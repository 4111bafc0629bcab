package worker

import (
	"context"
	"time"

	"order-sync-service/internal/broker"
	"order-sync-service/internal/models"
	"order-sync-service/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// SheetSyncer mirrors an accepted proposal to the planning sheet.
type SheetSyncer interface {
	SyncProposal(ctx context.Context, event *models.ProposalAcceptedEvent) error
}

// SyncStatusStore records the mirror outcome back on the proposal's tags.
type SyncStatusStore interface {
	UpdateProposalSyncStatus(ctx context.Context, proposalID, status string) error
}

// AcceptanceNotifier ships the acceptance notice downstream.
type AcceptanceNotifier interface {
	NotifyAccepted(ctx context.Context, event *models.ProposalAcceptedEvent) error
}

// SheetSyncWorker consumes accepted-proposal events and runs the best-effort
// side effects: mirror the change to the spreadsheet (recurring orders only),
// record the sync outcome, then notify. A failed mirror never blocks the
// notice and never fails the message; the order store is already updated and
// the sheet can be reconciled manually.
type SheetSyncWorker struct {
	consumer     *broker.Consumer
	eventHandler *broker.EventHandler
	syncer       SheetSyncer
	store        SyncStatusStore
	notifier     AcceptanceNotifier
	publisher    *broker.EventPublisher
	logger       *zap.Logger
}

// NewSheetSyncWorker creates a new sheet sync worker
func NewSheetSyncWorker(
	consumer *broker.Consumer,
	syncer SheetSyncer,
	store SyncStatusStore,
	notifier AcceptanceNotifier,
	publisher *broker.EventPublisher,
) *SheetSyncWorker {
	w := &SheetSyncWorker{
		consumer:  consumer,
		syncer:    syncer,
		store:     store,
		notifier:  notifier,
		publisher: publisher,
		logger:    util.GetLogger(),
	}

	eventHandler := broker.NewEventHandler()
	eventHandler.OnProposalAccepted(w.handleProposalAccepted)
	w.eventHandler = eventHandler
	return w
}

// Start starts the worker loop; it blocks until the context is cancelled.
func (w *SheetSyncWorker) Start(ctx context.Context) error {
	w.logger.Info("Starting sheet sync worker")
	return w.consumer.StartConsuming(ctx, w.eventHandler.HandleMessage)
}

// Stop stops the worker
func (w *SheetSyncWorker) Stop() error {
	w.logger.Info("Stopping sheet sync worker")
	return w.consumer.Close()
}

func (w *SheetSyncWorker) handleProposalAccepted(ctx context.Context, event *models.ProposalAcceptedEvent) error {
	w.logger.Info("Processing accepted proposal",
		zap.String("proposal_id", event.ProposalID),
		zap.String("order_id", event.OrderID),
		zap.Bool("recurring", event.Recurring))

	if event.Recurring {
		w.runSheetSync(ctx, event)
	}

	if err := w.notifier.NotifyAccepted(ctx, event); err != nil {
		// Returning the error leaves the message uncommitted; at-least-once
		// redelivery retries the whole handler, and the sheet writes are
		// overwrite-idempotent.
		return err
	}
	return nil
}

func (w *SheetSyncWorker) runSheetSync(ctx context.Context, event *models.ProposalAcceptedEvent) {
	syncErr := w.syncer.SyncProposal(ctx, event)

	status := models.ERPSyncSynced
	if syncErr != nil {
		status = models.ERPSyncFailed
		w.logger.Error("Sheet sync failed",
			zap.String("proposal_id", event.ProposalID),
			zap.Error(syncErr))
	}

	if err := w.store.UpdateProposalSyncStatus(ctx, event.ProposalID, status); err != nil {
		w.logger.Error("Failed to record sheet sync status",
			zap.String("proposal_id", event.ProposalID),
			zap.Error(err))
	}

	completed := &models.SheetSyncCompletedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypeSheetSyncCompleted,
			Timestamp: time.Now(),
		},
		ProposalID: event.ProposalID,
		OrderID:    event.OrderID,
		Success:    syncErr == nil,
	}
	if syncErr != nil {
		completed.Error = syncErr.Error()
	}
	if err := w.publisher.PublishSheetSyncCompleted(ctx, completed); err != nil {
		w.logger.Error("Failed to publish SheetSyncCompleted event", zap.Error(err))
	}
}
