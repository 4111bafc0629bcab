package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// JSONMap is a jsonb column mapped to a plain map.
type JSONMap map[string]interface{}

// Value implements driver.Valuer.
func (m JSONMap) Value() (driver.Value, error) {
	if m == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(m)
}

// Scan implements sql.Scanner.
func (m *JSONMap) Scan(src interface{}) error {
	if src == nil {
		*m = JSONMap{}
		return nil
	}
	var raw []byte
	switch v := src.(type) {
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("unsupported jsonb source type %T", src)
	}
	return json.Unmarshal(raw, m)
}

// Order is a purchase order for one customer on one delivery date.
type Order struct {
	ID             string    `db:"id" json:"id"`
	OrganizationID string    `db:"organization_id" json:"organization_id"`
	CustomerID     *string   `db:"customer_id" json:"customer_id,omitempty"`
	CustomerName   string    `db:"customer_name" json:"customer_name"`
	Status         string    `db:"status" json:"status"`
	DeliveryDate   *string   `db:"delivery_date" json:"delivery_date,omitempty"`
	SourceChannel  *string   `db:"source_channel" json:"source_channel,omitempty"`
	TotalAmount    int64     `db:"total_amount" json:"total_amount"`
	Currency       string    `db:"currency" json:"currency"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
}

// OrderLine is one product line within an order. Removed lines are
// soft-deleted; line numbers are dense, 1-based and never reused.
type OrderLine struct {
	ID            string    `db:"id" json:"id"`
	OrderID       string    `db:"order_id" json:"order_id"`
	LineNumber    int       `db:"line_number" json:"line_number"`
	ProductName   string    `db:"product_name" json:"product_name"`
	Quantity      int       `db:"quantity" json:"quantity"`
	ItemID        *string   `db:"item_id" json:"item_id,omitempty"`
	ItemVariantID *string   `db:"item_variant_id" json:"item_variant_id,omitempty"`
	Status        string    `db:"status" json:"status"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
}

// Proposal is a reviewable set of line changes derived from one intake event.
type Proposal struct {
	ID             string     `db:"id" json:"id"`
	OrganizationID string     `db:"organization_id" json:"organization_id"`
	IntakeEventID  string     `db:"intake_event_id" json:"intake_event_id"`
	OrderID        *string    `db:"order_id" json:"order_id,omitempty"`
	Type           *string    `db:"type" json:"type,omitempty"`
	Status         string     `db:"status" json:"status"`
	Tags           JSONMap    `db:"tags" json:"tags"`
	Metadata       JSONMap    `db:"metadata" json:"metadata"`
	Notes          *string    `db:"notes" json:"notes,omitempty"`
	ReviewedBy     *string    `db:"reviewed_by" json:"reviewed_by,omitempty"`
	ReviewedAt     *time.Time `db:"reviewed_at" json:"reviewed_at,omitempty"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
}

// ResolvedType returns the proposal type column, falling back to tags.intent.
func (p *Proposal) ResolvedType() string {
	if p.Type != nil && *p.Type != "" {
		return *p.Type
	}
	if intent, ok := p.Tags["intent"].(string); ok {
		return intent
	}
	return ""
}

// IsRecurring reports whether the originating order repeats on a schedule and
// must therefore be mirrored to the standing spreadsheet.
func (p *Proposal) IsRecurring() bool {
	freq, _ := p.Tags["order_frequency"].(string)
	return freq == OrderFrequencyRecurring
}

// ProposalLine is one proposed change within a proposal.
type ProposalLine struct {
	ID             string  `db:"id" json:"id"`
	ProposalID     string  `db:"proposal_id" json:"proposal_id"`
	LineNumber     int     `db:"line_number" json:"line_number"`
	ChangeType     string  `db:"change_type" json:"change_type"`
	ItemName       string  `db:"item_name" json:"item_name"`
	ItemID         *string `db:"item_id" json:"item_id,omitempty"`
	OrderLineID    *string `db:"order_line_id" json:"order_line_id,omitempty"`
	ProposedValues JSONMap `db:"proposed_values" json:"proposed_values"`
}

// Quantity returns the proposed quantity, 0 when absent.
func (l *ProposalLine) Quantity() int {
	switch v := l.ProposedValues["quantity"].(type) {
	case float64:
		return int(v)
	case int:
		return v
	}
	return 0
}

// VariantCode returns the proposed variant code, "" when absent.
func (l *ProposalLine) VariantCode() string {
	code, _ := l.ProposedValues["variant_code"].(string)
	return code
}

// IntakeEvent is a raw inbound message recorded before interpretation.
// The reclassifier only ever touches its order association.
type IntakeEvent struct {
	ID             string    `db:"id" json:"id"`
	OrganizationID string    `db:"organization_id" json:"organization_id"`
	OrderID        *string   `db:"order_id" json:"order_id,omitempty"`
	Channel        string    `db:"channel" json:"channel"`
	RawContent     string    `db:"raw_content" json:"raw_content"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}

// Item is a catalog product identity.
type Item struct {
	ID             string `db:"id" json:"id"`
	OrganizationID string `db:"organization_id" json:"organization_id"`
	Name           string `db:"name" json:"name"`
	SKU            string `db:"sku" json:"sku"`
}

// ItemVariant is a size/packaging variant of a catalog item.
type ItemVariant struct {
	ID          string `db:"id" json:"id"`
	ItemID      string `db:"item_id" json:"item_id"`
	VariantCode string `db:"variant_code" json:"variant_code"`
}

// OrderEvent is an append-only audit record attached to an order.
type OrderEvent struct {
	ID        int64     `db:"id" json:"id"`
	OrderID   string    `db:"order_id" json:"order_id"`
	Type      string    `db:"type" json:"type"`
	Metadata  JSONMap   `db:"metadata" json:"metadata"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Order statuses
const (
	OrderStatusPending     = "pending"
	OrderStatusPushedToERP = "pushed_to_erp"
	OrderStatusCancelled   = "cancelled"
)

// Order line statuses
const (
	LineStatusActive  = "active"
	LineStatusDeleted = "deleted"
)

// Proposal statuses
const (
	ProposalStatusPending  = "pending"
	ProposalStatusAccepted = "accepted"
	ProposalStatusRejected = "rejected"
)

// Proposal types
const (
	ProposalTypeNewOrder    = "new_order"
	ProposalTypeChangeOrder = "change_order"
	ProposalTypeCancelOrder = "cancel_order"
)

// Change types
const (
	ChangeTypeAdd    = "add"
	ChangeTypeModify = "modify"
	ChangeTypeRemove = "remove"
)

// Order frequency tags
const (
	OrderFrequencyRecurring = "recurring"
	OrderFrequencyOneTime   = "one_time"
)

// ERP sync statuses carried in proposal tags
const (
	ERPSyncPending = "pending"
	ERPSyncSynced  = "synced"
	ERPSyncFailed  = "failed"
)

// Order event types
const (
	OrderEventCreated        = "created"
	OrderEventExported       = "exported"
	OrderEventCancelled      = "cancelled"
	OrderEventChangeAccepted = "change_accepted"
	OrderEventChangeRejected = "change_rejected"
)

// proposalTransitions is the only legal status graph for a proposal.
// Anything not listed here is an illegal transition.
var proposalTransitions = map[string][]string{
	ProposalStatusPending: {ProposalStatusAccepted, ProposalStatusRejected},
}

// CanTransitionProposal reports whether a proposal may move between statuses.
func CanTransitionProposal(from, to string) bool {
	for _, allowed := range proposalTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}
