package domain

import "time"

// NormalizedItem is an order line flattened to a (product, variant) key.
type NormalizedItem struct {
	Key       string `json:"key"`
	ProductID string `json:"productId"`
	Name      string `json:"name,omitempty"`
	Variant   string `json:"variant,omitempty"`
	Needed    int    `json:"needed"`
}

// ScannedItem binds a scanned serial to the line item it satisfies and the
// lot it was drawn from.
type ScannedItem struct {
	Serial  string `json:"serial"`
	ItemKey string `json:"itemKey"`
	LotID   string `json:"lotId"`
}

// Session holds the in-memory state of one fulfillment workflow. Nothing in
// it is persisted until commit.
type Session struct {
	ID        string
	OrderID   string
	Items     []NormalizedItem
	Lots      []Lot
	Scanned   []ScannedItem
	LastError string
	OpenedAt  time.Time
	TouchedAt time.Time
}

// HasSerial reports whether serial is already assigned in the session.
func (s *Session) HasSerial(serial string) bool {
	want := NormalizeSerial(serial)
	for _, si := range s.Scanned {
		if si.Serial == want {
			return true
		}
	}
	return false
}

// ScannedCount returns how many scans are assigned to itemKey.
func (s *Session) ScannedCount(itemKey string) int {
	n := 0
	for _, si := range s.Scanned {
		if si.ItemKey == itemKey {
			n++
		}
	}
	return n
}

// SerialsFor lists the serials assigned to itemKey, in scan order.
func (s *Session) SerialsFor(itemKey string) []string {
	var serials []string
	for _, si := range s.Scanned {
		if si.ItemKey == itemKey {
			serials = append(serials, si.Serial)
		}
	}
	return serials
}

// Item looks up a normalized item by key.
func (s *Session) Item(key string) (NormalizedItem, bool) {
	for _, it := range s.Items {
		if it.Key == key {
			return it, true
		}
	}
	return NormalizedItem{}, false
}

// Complete reports whether every normalized item has exactly its needed count.
func (s *Session) Complete() bool {
	for _, it := range s.Items {
		if s.ScannedCount(it.Key) != it.Needed {
			return false
		}
	}
	return true
}
