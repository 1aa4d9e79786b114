package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type MovementType string

const (
	MovementSale MovementType = "SALE"
)

// StockMovement is the audit record written once per committed fulfillment.
// It is never mutated after creation.
type StockMovement struct {
	ID         string          `json:"id"`
	Type       MovementType    `json:"type"`
	OrderID    string          `json:"orderId"`
	Items      []MovementItem  `json:"items"`
	TotalValue decimal.Decimal `json:"totalValue"`
	CostValue  decimal.Decimal `json:"costValue"`
	ActorID    string          `json:"actorId"`
	ActorEmail string          `json:"actorEmail,omitempty"`
	CreatedAt  time.Time       `json:"createdAt"`
}

type MovementItem struct {
	ProductID string   `json:"productId"`
	Variant   string   `json:"variant,omitempty"`
	Quantity  int      `json:"quantity"`
	Serials   []string `json:"serials"`
	LotIDs    []string `json:"lotIds"`
}

// FulfillmentCompletedEvent is published after a fulfillment commits.
type FulfillmentCompletedEvent struct {
	EventID        string    `json:"eventId"`
	OrderID        string    `json:"orderId"`
	MovementID     string    `json:"movementId"`
	Serials        []string  `json:"serials"`
	TrackingNumber string    `json:"trackingNumber,omitempty"`
	ActorID        string    `json:"actorId"`
	OccurredAt     time.Time `json:"occurredAt"`
}
