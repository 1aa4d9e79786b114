package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLot_StatusFor(t *testing.T) {
	lot := Lot{QuantityBought: 3}

	assert.Equal(t, LotStatusInStock, lot.StatusFor(0))
	assert.Equal(t, LotStatusPartial, lot.StatusFor(2))
	assert.Equal(t, LotStatusSold, lot.StatusFor(3))
}

func TestLot_MatchesVariant(t *testing.T) {
	lot := Lot{Variant: "Black"}

	assert.True(t, lot.MatchesVariant(""))
	assert.True(t, lot.MatchesVariant(" black "))
	assert.False(t, lot.MatchesVariant("white"))
	assert.False(t, (&Lot{}).MatchesVariant("black"))
}

func TestLot_UnitIndexIgnoresCase(t *testing.T) {
	lot := Lot{Units: []Unit{{Serial: "SN-1"}, {Serial: "sn-2"}}}

	assert.Equal(t, 1, lot.UnitIndex(" SN-2"))
	assert.Equal(t, -1, lot.UnitIndex("SN-3"))
}

func TestSession_Complete(t *testing.T) {
	s := &Session{
		Items: []NormalizedItem{{Key: "a", Needed: 2}, {Key: "b", Needed: 1}},
	}
	assert.False(t, s.Complete())

	s.Scanned = []ScannedItem{{Serial: "1", ItemKey: "a"}, {Serial: "2", ItemKey: "b"}}
	assert.False(t, s.Complete())

	s.Scanned = append(s.Scanned, ScannedItem{Serial: "3", ItemKey: "a"})
	assert.True(t, s.Complete())
	assert.Equal(t, []string{"1", "3"}, s.SerialsFor("a"))
	assert.True(t, s.HasSerial("3"))

	s.Scanned = append(s.Scanned, ScannedItem{Serial: "4", ItemKey: "b"})
	assert.False(t, s.Complete(), "over-scanned item")
}
