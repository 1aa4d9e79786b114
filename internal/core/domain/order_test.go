package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLineItem_DecodesMixedList(t *testing.T) {
	data := []byte(`[
		{"productId":"phone","variant":"Black","quantity":2,"price":"199.90"},
		"Old Charger",
		{"productId":"case","quantity":1,"price":"9"}
	]`)

	var items []LineItem
	require.NoError(t, json.Unmarshal(data, &items))
	require.Len(t, items, 3)

	assert.False(t, items[0].IsLegacy())
	assert.Equal(t, "phone", items[0].Item.ProductID)
	assert.Equal(t, 2, items[0].Item.Quantity)
	assert.Equal(t, "199.9", items[0].Item.Price.String())

	assert.True(t, items[1].IsLegacy())
	assert.Equal(t, "Old Charger", items[1].Legacy)
}

func TestLineItem_EncodesLegacyAsString(t *testing.T) {
	out, err := json.Marshal([]LineItem{{Legacy: "Gift wrap"}})
	require.NoError(t, err)
	assert.JSONEq(t, `["Gift wrap"]`, string(out))
}

func TestLineItem_RejectsGarbage(t *testing.T) {
	var li LineItem
	assert.Error(t, json.Unmarshal([]byte(`42`), &li))
}

func TestActor_DisplayName(t *testing.T) {
	assert.Equal(t, "ops@allshop.test", Actor{ID: "u1", Email: "ops@allshop.test"}.DisplayName())
	assert.Equal(t, "u1", Actor{ID: "u1"}.DisplayName())
}

func TestOrder_IsFulfilled(t *testing.T) {
	pending := Order{FulfillmentStatus: FulfillmentPending}
	done := Order{FulfillmentStatus: FulfillmentCompleted}

	assert.False(t, pending.IsFulfilled())
	assert.True(t, done.IsFulfilled())
	assert.True(t, Order{FulfillmentStatus: FulfillmentCompleted}.IsFulfilled())
}
