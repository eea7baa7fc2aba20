package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPreferencesMerge(t *testing.T) {
	base := Preferences{Style: "classic", Materials: []string{"Gold"}, BudgetMax: Float(300)}
	update := &Preferences{Style: "bold", Materials: []string{"gold", "platinum"}, Occasions: []string{"wedding"}}

	got := base.Merge(update)

	assert.Equal(t, "bold", got.Style)
	assert.Equal(t, []string{"Gold", "platinum"}, got.Materials)
	assert.Equal(t, []string{"wedding"}, got.Occasions)
	require.NotNil(t, got.BudgetMax)
	assert.Equal(t, 300.0, *got.BudgetMax)

	*got.BudgetMax = 1
	assert.Equal(t, 300.0, *base.BudgetMax)
}

func TestPreferencesIsEmpty(t *testing.T) {
	var nilPrefs *Preferences
	assert.True(t, nilPrefs.IsEmpty())
	assert.True(t, (&Preferences{}).IsEmpty())
	assert.False(t, (&Preferences{SkinTone: "warm"}).IsEmpty())
}

func TestFilterMatches(t *testing.T) {
	f := Filter{Materials: []string{"gold"}, PriceMax: Float(100), Category: "rings"}
	assert.True(t, f.Matches(Product{Material: "GOLD", Price: 99, Category: "Rings"}))
	assert.False(t, f.Matches(Product{Material: "silver", Price: 99, Category: "rings"}))
	assert.False(t, f.Matches(Product{Material: "gold", Price: 101, Category: "rings"}))
	assert.False(t, f.Matches(Product{Material: "gold", Price: 10, Category: "necklaces"}))
}
