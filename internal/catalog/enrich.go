package catalog

import (
	"context"

	"sustainable-advisor/internal/models"
)

const defaultDemoCarbon = 60.0

type demoSustainability struct {
	ecoTags []string
	carbon  float64
}

// demoTable carries eco data for the demo storefront products, whose catalog
// entries lack it.
var demoTable = map[string]demoSustainability{
	"9SIQT8TOJO": {ecoTags: []string{"sustainable", "bamboo"}, carbon: 25},
	"0PUK6V6EV0": {ecoTags: []string{"handmade", "local"}, carbon: 35},
	"6E92ZMYYFZ": {ecoTags: []string{"recyclable"}, carbon: 45},
	"L9ECAV7KIM": {ecoTags: []string{}, carbon: 75},
	"2ZYFJ3GM2N": {ecoTags: []string{}, carbon: 85},
	"1YMWWN1N4O": {ecoTags: []string{}, carbon: 90},
}

// EnrichSustainability fills eco tags and carbon scores for products that
// carry neither. Known demo ids get their table entry, the rest get no tags
// and a carbon score of 60. The input is not modified.
func EnrichSustainability(products []models.Product) []models.Product {
	out := make([]models.Product, 0, len(products))
	for _, p := range products {
		if p.EcoTags != nil || p.CarbonScore != nil {
			out = append(out, p)
			continue
		}

		enriched := p.Clone()
		entry, ok := demoTable[p.ID]
		if !ok {
			entry = demoSustainability{ecoTags: []string{}, carbon: defaultDemoCarbon}
		}
		enriched.EcoTags = append([]string{}, entry.ecoTags...)
		enriched.CarbonScore = models.Float64Ptr(entry.carbon)
		out = append(out, enriched)
	}
	return out
}

// EnrichingProvider applies EnrichSustainability to another provider.
type EnrichingProvider struct {
	inner Provider
}

func NewEnrichingProvider(inner Provider) *EnrichingProvider {
	return &EnrichingProvider{inner: inner}
}

func (p *EnrichingProvider) Name() string {
	return p.inner.Name()
}

func (p *EnrichingProvider) GetProducts(ctx context.Context) ([]models.Product, error) {
	products, err := p.inner.GetProducts(ctx)
	if err != nil {
		return nil, err
	}
	return EnrichSustainability(products), nil
}
