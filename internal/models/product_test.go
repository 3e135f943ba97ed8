package models

import (
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProduct_UnmarshalPriceForms(t *testing.T) {
	tests := []struct {
		name     string
		payload  string
		expected float64
	}{
		{name: "plain number under price_usd", payload: `{"id":"a","price_usd":24.99}`, expected: 24.99},
		{name: "money object", payload: `{"id":"a","price_usd":{"currencyCode":"USD","units":19,"nanos":990000000}}`, expected: 19.99},
		{name: "camel case key", payload: `{"id":"a","priceUsd":{"units":5}}`, expected: 5},
		{name: "plain price key", payload: `{"id":"a","price":45.99}`, expected: 45.99},
		{name: "missing price", payload: `{"id":"a"}`, expected: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var p Product
			require.NoError(t, json.Unmarshal([]byte(tt.payload), &p))
			assert.InDelta(t, tt.expected, p.Price.Float64(), 1e-9)
			assert.Equal(t, "a", p.ID)
		})
	}
}

func TestProduct_UnmarshalCatalogList(t *testing.T) {
	payload := `[
		{"id":"A","name":"Jar","price_usd":{"units":5,"nanos":490000000},"eco_tags":["bamboo"],"carbon_score":25},
		{"id":"B","name":"Mug","priceUsd":12}
	]`

	var products []Product
	require.NoError(t, json.Unmarshal([]byte(payload), &products))

	require.Len(t, products, 2)
	assert.InDelta(t, 5.49, products[0].Price.Float64(), 1e-9)
	assert.Equal(t, []string{"bamboo"}, products[0].EcoTags)
	require.NotNil(t, products[0].CarbonScore)
	assert.Equal(t, 25.0, *products[0].CarbonScore)
	assert.InDelta(t, 12, products[1].Price.Float64(), 1e-9)
	assert.Nil(t, products[1].CarbonScore)
}

func TestProduct_UnmarshalRejectsBadPrice(t *testing.T) {
	var p Product
	assert.Error(t, json.Unmarshal([]byte(`{"id":"a","price_usd":"cheap"}`), &p))
}

func TestProduct_CarbonDefault(t *testing.T) {
	assert.Equal(t, DefaultCarbonScore, Product{}.Carbon())
	assert.Equal(t, 25.0, Product{CarbonScore: Float64Ptr(25)}.Carbon())
}

func TestProduct_MembershipIsCaseInsensitive(t *testing.T) {
	p := Product{Categories: []string{"Kitchen"}, EcoTags: []string{"Bamboo"}}
	assert.True(t, p.HasCategory("kitchen"))
	assert.True(t, p.HasAnyCategory("home", "KITCHEN"))
	assert.True(t, p.HasEcoTag("bamboo"))
	assert.False(t, p.HasAnyEcoTag("organic", "handmade"))
}

func TestProduct_CloneDoesNotAlias(t *testing.T) {
	orig := Product{ID: "x", EcoTags: []string{"bamboo"}, CarbonScore: Float64Ptr(20)}
	cp := orig.Clone()
	cp.EcoTags[0] = "plastic"
	*cp.CarbonScore = 99

	assert.Equal(t, "bamboo", orig.EcoTags[0])
	assert.Equal(t, 20.0, orig.Carbon())
}

func TestPreferences_MatchesEcoTag(t *testing.T) {
	var nilPrefs *Preferences
	assert.False(t, nilPrefs.MatchesEcoTag("bamboo"))
	assert.True(t, nilPrefs.IsZero())

	all := &Preferences{EcoPreference: true}
	assert.True(t, all.MatchesEcoTag("anything"))

	narrowed := &Preferences{EcoPreference: true, EcoTags: []string{"Bamboo"}}
	assert.True(t, narrowed.MatchesEcoTag("bamboo"))
	assert.False(t, narrowed.MatchesEcoTag("organic"))

	off := &Preferences{EcoTags: []string{"bamboo"}}
	assert.False(t, off.MatchesEcoTag("bamboo"))
	assert.Equal(t, "kitchen", (&Preferences{Category: "  Kitchen "}).NormalizedCategory())
}
