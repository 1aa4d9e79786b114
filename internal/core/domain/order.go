package domain

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusPaid      OrderStatus = "paid"
	OrderStatusShipped   OrderStatus = "shipped"
	OrderStatusCancelled OrderStatus = "cancelled"
)

type FulfillmentStatus string

const (
	FulfillmentPending   FulfillmentStatus = "PENDING"
	FulfillmentCompleted FulfillmentStatus = "COMPLETED"
)

// Order is created upstream by the storefront. Only the fulfillment
// transaction mutates it afterwards.
type Order struct {
	ID                string            `json:"id"`
	Items             []LineItem        `json:"items"`
	Total             decimal.Decimal   `json:"total"`
	CustomerName      string            `json:"customerName,omitempty"`
	CustomerEmail     string            `json:"customerEmail,omitempty"`
	Status            OrderStatus       `json:"status"`
	FulfillmentStatus FulfillmentStatus `json:"fulfillmentStatus"`
	TrackingNumber    string            `json:"trackingNumber,omitempty"`
	SerialNumbers     []string          `json:"serialNumbers,omitempty"`
	StatusHistory     []StatusChange    `json:"statusHistory,omitempty"`
	FulfilledAt       *time.Time        `json:"fulfilledAt,omitempty"`
	CreatedAt         time.Time         `json:"createdAt"`
	UpdatedAt         time.Time         `json:"updatedAt"`
}

// IsFulfilled reports whether stock has already been committed for the order.
func (o Order) IsFulfilled() bool {
	return o.FulfillmentStatus == FulfillmentCompleted
}

type OrderItem struct {
	ProductID string          `json:"productId"`
	Name      string          `json:"name,omitempty"`
	Variant   string          `json:"variant,omitempty"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
}

// LineItem is one entry of an order's item list. Old storefront builds wrote
// bare product names instead of structured items; those decode into Legacy
// and Item stays nil.
type LineItem struct {
	Item   *OrderItem
	Legacy string
}

func (l LineItem) IsLegacy() bool {
	return l.Item == nil
}

func (l LineItem) MarshalJSON() ([]byte, error) {
	if l.Item == nil {
		return json.Marshal(l.Legacy)
	}
	return json.Marshal(l.Item)
}

func (l *LineItem) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '"' {
		l.Item = nil
		return json.Unmarshal(trimmed, &l.Legacy)
	}

	var item OrderItem
	if err := json.Unmarshal(trimmed, &item); err != nil {
		return err
	}
	l.Item = &item
	l.Legacy = ""
	return nil
}

// StatusChange is an append-only entry of an order's status log.
type StatusChange struct {
	Status    OrderStatus `json:"status"`
	Note      string      `json:"note,omitempty"`
	ActorID   string      `json:"actorId,omitempty"`
	ActorName string      `json:"actorName,omitempty"`
	At        time.Time   `json:"at"`
}

// Actor identifies the operator performing an action, as supplied by the
// identity provider.
type Actor struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

func (a Actor) DisplayName() string {
	if a.Email != "" {
		return a.Email
	}
	return a.ID
}
