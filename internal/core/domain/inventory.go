package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type LotStatus string

const (
	LotStatusInStock LotStatus = "IN_STOCK"
	LotStatusPartial LotStatus = "PARTIAL"
	LotStatusSold    LotStatus = "SOLD"
)

type UnitStatus string

const (
	UnitAvailable UnitStatus = "AVAILABLE"
	UnitReserved  UnitStatus = "RESERVED"
	UnitSold      UnitStatus = "SOLD"
)

// Lot is a purchased batch of one product/variant tracked as serialized units.
type Lot struct {
	ID             string          `json:"id"`
	ProductID      string          `json:"productId"`
	ProductName    string          `json:"productName,omitempty"`
	Variant        string          `json:"variant,omitempty"`
	PurchasePrice  decimal.Decimal `json:"purchasePrice"`
	QuantityBought int             `json:"quantityBought"`
	QuantitySold   int             `json:"quantitySold"`
	Status         LotStatus       `json:"status"`
	Units          []Unit          `json:"units"`
	PurchasedAt    time.Time       `json:"purchasedAt"`
	UpdatedAt      time.Time       `json:"updatedAt"`
}

type Unit struct {
	Serial    string     `json:"serial"`
	Status    UnitStatus `json:"status"`
	CreatedAt time.Time  `json:"createdAt"`
	SoldAt    *time.Time `json:"soldAt,omitempty"`
	OrderID   string     `json:"orderId,omitempty"`
}

// UnitIndex returns the position of the unit with the given serial, or -1.
// Serials compare case-insensitively.
func (l *Lot) UnitIndex(serial string) int {
	want := NormalizeSerial(serial)
	for i := range l.Units {
		if NormalizeSerial(l.Units[i].Serial) == want {
			return i
		}
	}
	return -1
}

// StatusFor derives the lot status from the sold count.
func (l *Lot) StatusFor(quantitySold int) LotStatus {
	if quantitySold >= l.QuantityBought {
		return LotStatusSold
	}
	if quantitySold == 0 {
		return LotStatusInStock
	}
	return LotStatusPartial
}

// MatchesVariant reports whether an order variant accepts units of this lot.
// An empty order variant accepts any lot variant.
func (l *Lot) MatchesVariant(orderVariant string) bool {
	want := NormalizeVariant(orderVariant)
	return want == "" || want == NormalizeVariant(l.Variant)
}

func NormalizeSerial(serial string) string {
	return strings.ToUpper(strings.TrimSpace(serial))
}

func NormalizeVariant(variant string) string {
	return strings.ToUpper(strings.TrimSpace(variant))
}
