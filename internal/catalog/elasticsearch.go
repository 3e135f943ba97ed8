package catalog

import (
	"bytes"
	"context"
	"fmt"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/goccy/go-json"

	commonErrors "sustainable-advisor/internal/common/errors"
	"sustainable-advisor/internal/models"
)

const defaultSearchSize = 100

// ElasticsearchProvider reads the catalog from a products index.
type ElasticsearchProvider struct {
	es    *elasticsearch.Client
	index string
	size  int
}

func NewElasticsearchProvider(es *elasticsearch.Client, index string) *ElasticsearchProvider {
	if index == "" {
		index = defaultTable
	}
	return &ElasticsearchProvider{es: es, index: index, size: defaultSearchSize}
}

func (p *ElasticsearchProvider) Name() string {
	return "elasticsearch"
}

// GetProducts returns up to 100 documents ordered by id.
func (p *ElasticsearchProvider) GetProducts(ctx context.Context) ([]models.Product, error) {
	return p.search(ctx, map[string]interface{}{
		"query": map[string]interface{}{"match_all": map[string]interface{}{}},
		"sort":  []interface{}{map[string]interface{}{"id": "asc"}},
	})
}

// Search runs a keyword query across name, description, categories and tags.
func (p *ElasticsearchProvider) Search(ctx context.Context, keywords string) ([]models.Product, error) {
	if keywords == "" {
		return p.GetProducts(ctx)
	}
	return p.search(ctx, map[string]interface{}{
		"query": map[string]interface{}{
			"multi_match": map[string]interface{}{
				"query":  keywords,
				"fields": []string{"name^3", "description^2", "categories", "eco_tags"},
				"type":   "best_fields",
			},
		},
	})
}

type searchResponse struct {
	Hits struct {
		Hits []struct {
			ID     string         `json:"_id"`
			Source models.Product `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

func (p *ElasticsearchProvider) search(ctx context.Context, query map[string]interface{}) ([]models.Product, error) {
	body, err := json.Marshal(query)
	if err != nil {
		return nil, commonErrors.NewSearchQueryFailedError(p.index, err)
	}

	res, err := p.es.Search(
		p.es.Search.WithContext(ctx),
		p.es.Search.WithIndex(p.index),
		p.es.Search.WithBody(bytes.NewReader(body)),
		p.es.Search.WithSize(p.size),
	)
	if err != nil {
		return nil, commonErrors.NewSearchQueryFailedError(p.index, err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, commonErrors.NewSearchQueryFailedError(p.index, fmt.Errorf("search failed: %s", res.Status()))
	}

	var decoded searchResponse
	if err := json.NewDecoder(res.Body).Decode(&decoded); err != nil {
		return nil, commonErrors.NewCatalogDecodeFailedError(p.index, err)
	}

	products := make([]models.Product, 0, len(decoded.Hits.Hits))
	for _, hit := range decoded.Hits.Hits {
		product := hit.Source
		if product.ID == "" {
			product.ID = hit.ID
		}
		products = append(products, product)
	}
	return products, nil
}
