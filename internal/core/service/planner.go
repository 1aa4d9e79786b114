package service

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rl1809/allshop-fulfillment/internal/core/domain"
)

// FulfillmentInput is the snapshot read inside the transaction plus the
// session state collected at scan time.
type FulfillmentInput struct {
	Order          domain.Order
	Lots           map[string]domain.Lot
	Items          []domain.NormalizedItem
	Scanned        []domain.ScannedItem
	Actor          domain.Actor
	TrackingNumber string
	MovementID     string
	Now            time.Time
}

// FulfillmentPlan is the write set computed from a validated snapshot.
type FulfillmentPlan struct {
	Lots        []domain.Lot
	Movement    domain.StockMovement
	OrderFields map[string]any
	History     domain.StatusChange
}

// PlanFulfillment validates the snapshot and computes every write the
// fulfillment needs. It has no side effects.
func PlanFulfillment(in FulfillmentInput) (*FulfillmentPlan, error) {
	if in.Order.IsFulfilled() {
		return nil, fmt.Errorf("%w: %s", ErrAlreadyFulfilled, in.Order.ID)
	}

	lotOrder := LotIDs(in.Scanned)
	lots := make(map[string]*domain.Lot, len(lotOrder))
	for _, id := range lotOrder {
		snap, ok := in.Lots[id]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrLotNotFound, id)
		}
		lot := snap
		lot.Units = append([]domain.Unit(nil), snap.Units...)
		lots[id] = &lot
	}

	drawn := make(map[string]int, len(lots))
	cost := decimal.Zero
	serials := make([]string, 0, len(in.Scanned))
	for _, si := range in.Scanned {
		lot := lots[si.LotID]
		idx := lot.UnitIndex(si.Serial)
		if idx < 0 {
			return nil, fmt.Errorf("%w: %s is no longer in lot %s", ErrStaleUnit, si.Serial, lot.ID)
		}

		unit := &lot.Units[idx]
		if unit.Status != domain.UnitAvailable {
			return nil, fmt.Errorf("%w: %s is %s", ErrStaleUnit, si.Serial, unit.Status)
		}

		soldAt := in.Now
		unit.Status = domain.UnitSold
		unit.SoldAt = &soldAt
		unit.OrderID = in.Order.ID

		drawn[lot.ID]++
		cost = cost.Add(lot.PurchasePrice)
		serials = append(serials, si.Serial)
	}

	plan := &FulfillmentPlan{Lots: make([]domain.Lot, 0, len(lotOrder))}
	for _, id := range lotOrder {
		lot := lots[id]
		sold := lot.QuantitySold + drawn[id]
		if sold > lot.QuantityBought {
			return nil, fmt.Errorf("%w: lot %s has %d bought, %d sold", ErrLotOverdrawn, id, lot.QuantityBought, sold)
		}
		lot.QuantitySold = sold
		lot.Status = lot.StatusFor(sold)
		lot.UpdatedAt = in.Now
		plan.Lots = append(plan.Lots, *lot)
	}

	plan.Movement = domain.StockMovement{
		ID:         in.MovementID,
		Type:       domain.MovementSale,
		OrderID:    in.Order.ID,
		Items:      movementItems(in.Items, in.Scanned),
		TotalValue: in.Order.Total,
		CostValue:  cost,
		ActorID:    in.Actor.ID,
		ActorEmail: in.Actor.Email,
		CreatedAt:  in.Now,
	}

	plan.History = domain.StatusChange{
		Status:    domain.OrderStatusShipped,
		Note:      shipNote(in.TrackingNumber),
		ActorID:   in.Actor.ID,
		ActorName: in.Actor.DisplayName(),
		At:        in.Now,
	}

	fields := map[string]any{
		"status":            domain.OrderStatusShipped,
		"fulfillmentStatus": domain.FulfillmentCompleted,
		"serialNumbers":     serials,
		"fulfilledAt":       in.Now,
		"updatedAt":         in.Now,
	}
	if in.TrackingNumber != "" {
		fields["trackingNumber"] = in.TrackingNumber
	}
	plan.OrderFields = fields

	return plan, nil
}

// LotIDs returns the distinct lot ids of the scanned items in first-seen order.
func LotIDs(scanned []domain.ScannedItem) []string {
	seen := make(map[string]bool)
	var ids []string
	for _, si := range scanned {
		if !seen[si.LotID] {
			seen[si.LotID] = true
			ids = append(ids, si.LotID)
		}
	}
	return ids
}

func movementItems(items []domain.NormalizedItem, scanned []domain.ScannedItem) []domain.MovementItem {
	out := make([]domain.MovementItem, 0, len(items))
	for _, it := range items {
		mi := domain.MovementItem{
			ProductID: it.ProductID,
			Variant:   it.Variant,
			Serials:   []string{},
			LotIDs:    []string{},
		}
		lotSeen := make(map[string]bool)
		for _, si := range scanned {
			if si.ItemKey != it.Key {
				continue
			}
			mi.Serials = append(mi.Serials, si.Serial)
			if !lotSeen[si.LotID] {
				lotSeen[si.LotID] = true
				mi.LotIDs = append(mi.LotIDs, si.LotID)
			}
		}
		mi.Quantity = len(mi.Serials)
		out = append(out, mi)
	}
	return out
}

func shipNote(tracking string) string {
	if tracking == "" {
		return "shipped"
	}
	return "shipped, tracking " + tracking
}
