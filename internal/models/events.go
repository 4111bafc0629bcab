package models

import "time"

// Event types
const (
	EventTypeProposalAccepted     = "PROPOSAL_ACCEPTED"
	EventTypeProposalRejected     = "PROPOSAL_REJECTED"
	EventTypeProposalReclassified = "PROPOSAL_RECLASSIFIED"
	EventTypeOrderCancelled       = "ORDER_CANCELLED"
	EventTypeSheetSyncCompleted   = "SHEET_SYNC_COMPLETED"
	EventTypeAcceptanceNotice     = "ACCEPTANCE_NOTICE"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// ChangeLineData is a line change as carried inside events.
type ChangeLineData struct {
	ChangeType       string  `json:"change_type"`
	ItemName         string  `json:"item_name"`
	Quantity         int     `json:"quantity"`
	OriginalQuantity *int    `json:"original_quantity,omitempty"`
	VariantCode      *string `json:"variant_code,omitempty"`
	OrderLineID      *string `json:"order_line_id,omitempty"`
}

// ProposalAcceptedEvent is published after an accepted proposal's changes have
// been written to the order store. It carries everything the mirror writer and
// the notifier need so consumers do not have to read back the store.
type ProposalAcceptedEvent struct {
	BaseEvent
	ProposalID       string           `json:"proposal_id"`
	ProposalType     string           `json:"proposal_type"`
	OrderID          string           `json:"order_id"`
	OrderStatus      string           `json:"order_status"`
	OrganizationName string           `json:"organization_name"`
	CustomerName     string           `json:"customer_name"`
	DeliveryDate     *string          `json:"delivery_date,omitempty"`
	IsNewOrder       bool             `json:"is_new_order"`
	Recurring        bool             `json:"recurring"`
	Lines            []ChangeLineData `json:"lines"`
	AcceptedBy       string           `json:"accepted_by"`
}

// ProposalRejectedEvent is published when a proposal is rejected, whether by
// direct review or as the first step of a reclassification.
type ProposalRejectedEvent struct {
	BaseEvent
	ProposalID string  `json:"proposal_id"`
	OrderID    *string `json:"order_id,omitempty"`
	RejectedBy string  `json:"rejected_by"`
	Notes      *string `json:"notes,omitempty"`
}

// OrderCancelledEvent is published after a full-order cancellation.
type OrderCancelledEvent struct {
	BaseEvent
	OrderID      string `json:"order_id"`
	CustomerName string `json:"customer_name"`
	CancelledBy  string `json:"cancelled_by"`
}

// SheetSyncCompletedEvent records the outcome of one mirror pass.
type SheetSyncCompletedEvent struct {
	BaseEvent
	ProposalID string `json:"proposal_id"`
	OrderID    string `json:"order_id"`
	Success    bool   `json:"success"`
	Error      string `json:"error,omitempty"`
}

// AcceptanceNotice is the payload consumed by the downstream notification
// sink. Formatting of the outbound message is the sink's concern.
type AcceptanceNotice struct {
	BaseEvent
	ProposalID       string           `json:"proposal_id"`
	OrderID          *string          `json:"order_id,omitempty"`
	CustomerName     string           `json:"customer_name"`
	DeliveryDate     *string          `json:"delivery_date,omitempty"`
	IsNewOrder       bool             `json:"is_new_order"`
	Lines            []ChangeLineData `json:"lines"`
	AcceptedBy       string           `json:"accepted_by"`
	OrganizationName string           `json:"organization_name"`
}
