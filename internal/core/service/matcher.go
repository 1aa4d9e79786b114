package service

import (
	"fmt"

	"github.com/rl1809/allshop-fulfillment/internal/core/domain"
)

// MatchScan assigns a scanned code to the first order item that still needs a
// unit of the owning lot's product and variant. The session is only modified
// on success.
func MatchScan(code string, s *domain.Session) (domain.ScannedItem, error) {
	serial := domain.NormalizeSerial(code)
	if serial == "" {
		return domain.ScannedItem{}, fmt.Errorf("%w: empty code", ErrSerialNotFound)
	}

	if s.HasSerial(serial) {
		return domain.ScannedItem{}, fmt.Errorf("%w: %s", ErrDuplicateScan, serial)
	}

	lot, unit := findUnit(s.Lots, serial)
	if lot == nil {
		return domain.ScannedItem{}, fmt.Errorf("%w: %s", ErrSerialNotFound, serial)
	}

	if unit.Status != domain.UnitAvailable {
		return domain.ScannedItem{}, fmt.Errorf("%w: %s is %s", ErrUnitUnavailable, serial, unit.Status)
	}

	item, ok := firstOpenItem(s, lot)
	if !ok {
		return domain.ScannedItem{}, fmt.Errorf("%w: %s belongs to %s %s",
			ErrNoMatchingLineItem, serial, lot.ProductID, describeVariant(lot.Variant))
	}

	scanned := domain.ScannedItem{
		Serial:  serial,
		ItemKey: item.Key,
		LotID:   lot.ID,
	}
	s.Scanned = append(s.Scanned, scanned)
	s.LastError = ""

	return scanned, nil
}

// AvailableUnitsFor lists units that could satisfy the item and are not yet
// claimed in this session.
func AvailableUnitsFor(s *domain.Session, itemKey string) ([]Candidate, error) {
	item, ok := s.Item(itemKey)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownLineItem, itemKey)
	}

	var candidates []Candidate
	for i := range s.Lots {
		lot := &s.Lots[i]
		if lot.ProductID != item.ProductID || !lot.MatchesVariant(item.Variant) {
			continue
		}
		for _, u := range lot.Units {
			if u.Status != domain.UnitAvailable || s.HasSerial(u.Serial) {
				continue
			}
			candidates = append(candidates, Candidate{
				Serial:  domain.NormalizeSerial(u.Serial),
				LotID:   lot.ID,
				Variant: lot.Variant,
			})
		}
	}
	return candidates, nil
}

// Candidate is a unit offered for manual selection.
type Candidate struct {
	Serial  string `json:"serial"`
	LotID   string `json:"lotId"`
	Variant string `json:"variant,omitempty"`
}

func findUnit(lots []domain.Lot, serial string) (*domain.Lot, *domain.Unit) {
	for i := range lots {
		if idx := lots[i].UnitIndex(serial); idx >= 0 {
			return &lots[i], &lots[i].Units[idx]
		}
	}
	return nil, nil
}

func firstOpenItem(s *domain.Session, lot *domain.Lot) (domain.NormalizedItem, bool) {
	for _, it := range s.Items {
		if it.ProductID != lot.ProductID || !lot.MatchesVariant(it.Variant) {
			continue
		}
		if s.ScannedCount(it.Key) < it.Needed {
			return it, true
		}
	}
	return domain.NormalizedItem{}, false
}

func describeVariant(v string) string {
	if v == "" {
		return "(no variant)"
	}
	return "(" + v + ")"
}
