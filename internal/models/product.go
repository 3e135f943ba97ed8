// internal/models/product.go
package models

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/goccy/go-json"
)

// DefaultCarbonScore is assumed when a product carries no carbon score.
const DefaultCarbonScore = 100.0

// Product is a read-only catalog entry. Scoring and ranking never mutate it.
type Product struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Picture     string   `json:"picture,omitempty"`
	Price       Price    `json:"price_usd"`
	Categories  []string `json:"categories"`
	EcoTags     []string `json:"eco_tags"`

	// CarbonScore is 0-100, lower is better. Nil means unknown.
	CarbonScore *float64 `json:"carbon_score,omitempty"`

	// Popularity feeds the direct ranking preset; nil means unknown.
	Popularity *float64 `json:"popularity_score,omitempty"`

	// Attributes holds extra numeric attributes usable as ranking factors.
	Attributes map[string]float64 `json:"attributes,omitempty"`
}

// Carbon returns the carbon score, defaulting to DefaultCarbonScore.
func (p Product) Carbon() float64 {
	if p.CarbonScore == nil {
		return DefaultCarbonScore
	}
	return *p.CarbonScore
}

// HasCategory reports a case-insensitive category match.
func (p Product) HasCategory(category string) bool {
	return containsFold(p.Categories, category)
}

// HasEcoTag reports a case-insensitive eco tag match.
func (p Product) HasEcoTag(tag string) bool {
	return containsFold(p.EcoTags, tag)
}

// HasAnyCategory reports whether any of the given categories match.
func (p Product) HasAnyCategory(categories ...string) bool {
	for _, c := range categories {
		if p.HasCategory(c) {
			return true
		}
	}
	return false
}

// HasAnyEcoTag reports whether any of the given tags match.
func (p Product) HasAnyEcoTag(tags ...string) bool {
	for _, t := range tags {
		if p.HasEcoTag(t) {
			return true
		}
	}
	return false
}

// Clone returns a deep copy so enrichment never aliases catalog slices.
func (p Product) Clone() Product {
	out := p
	out.Categories = append([]string(nil), p.Categories...)
	out.EcoTags = append([]string(nil), p.EcoTags...)
	if p.CarbonScore != nil {
		c := *p.CarbonScore
		out.CarbonScore = &c
	}
	if p.Popularity != nil {
		v := *p.Popularity
		out.Popularity = &v
	}
	if p.Attributes != nil {
		out.Attributes = make(map[string]float64, len(p.Attributes))
		for k, v := range p.Attributes {
			out.Attributes[k] = v
		}
	}
	return out
}

// Fields renders the product as a flat record using its wire field names.
// Optional fields are omitted when unset.
func (p Product) Fields() map[string]interface{} {
	out := map[string]interface{}{
		"id":          p.ID,
		"name":        p.Name,
		"description": p.Description,
		"price_usd":   p.Price.Float64(),
		"categories":  nonNil(p.Categories),
		"eco_tags":    nonNil(p.EcoTags),
	}
	if p.Picture != "" {
		out["picture"] = p.Picture
	}
	if p.CarbonScore != nil {
		out["carbon_score"] = *p.CarbonScore
	}
	if p.Popularity != nil {
		out["popularity_score"] = *p.Popularity
	}
	if len(p.Attributes) > 0 {
		attrs := make(map[string]float64, len(p.Attributes))
		for k, v := range p.Attributes {
			attrs[k] = v
		}
		out["attributes"] = attrs
	}
	return out
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return append([]string(nil), values...)
}

// UnmarshalJSON accepts the price under price_usd, priceUsd or price.
func (p *Product) UnmarshalJSON(data []byte) error {
	type alias Product
	aux := struct {
		*alias
		PriceCamel *Price `json:"priceUsd"`
		PricePlain *Price `json:"price"`
	}{alias: (*alias)(p)}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if p.Price == 0 {
		switch {
		case aux.PriceCamel != nil:
			p.Price = *aux.PriceCamel
		case aux.PricePlain != nil:
			p.Price = *aux.PricePlain
		}
	}
	return nil
}

// Float64Ptr is a convenience for optional numeric fields.
func Float64Ptr(v float64) *float64 {
	return &v
}

func containsFold(values []string, needle string) bool {
	for _, v := range values {
		if strings.EqualFold(v, needle) {
			return true
		}
	}
	return false
}

// Price is a USD amount. On the wire it is either a plain number or a money
// object {"currencyCode","units","nanos"}.
type Price float64

// Float64 returns the amount as a float64.
func (p Price) Float64() float64 {
	return float64(p)
}

func (p *Price) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*p = 0
		return nil
	}

	if data[0] == '{' {
		var money struct {
			Units int64 `json:"units"`
			Nanos int64 `json:"nanos"`
		}
		if err := json.Unmarshal(data, &money); err != nil {
			return fmt.Errorf("price: %w", err)
		}
		*p = Price(float64(money.Units) + float64(money.Nanos)/1e9)
		return nil
	}

	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("price: %w", err)
	}
	*p = Price(f)
	return nil
}
