// Package catalog loads product snapshots from the configured sources.
package catalog

import (
	"bytes"
	"context"
	"fmt"

	"github.com/goccy/go-json"

	commonErrors "sustainable-advisor/internal/common/errors"
	"sustainable-advisor/internal/common/logger"
	"sustainable-advisor/internal/common/metrics"
	"sustainable-advisor/internal/models"
)

// Provider returns the current catalog snapshot. An empty snapshot is not an
// error.
type Provider interface {
	GetProducts(ctx context.Context) ([]models.Product, error)
	Name() string
}

// Chain tries providers in order and returns the first non-empty snapshot.
type Chain struct {
	providers []Provider
	logger    logger.Logger
}

func NewChain(log logger.Logger, providers ...Provider) *Chain {
	return &Chain{
		providers: providers,
		logger:    logger.ForComponent(log, "catalog-chain"),
	}
}

func (c *Chain) Name() string {
	return "chain"
}

// GetProducts fails only when every provider failed. Providers answering
// with an empty catalog are skipped; if nothing better turns up the result
// is empty.
func (c *Chain) GetProducts(ctx context.Context) ([]models.Product, error) {
	var lastErr error
	failed := 0

	for _, p := range c.providers {
		products, err := p.GetProducts(ctx)
		if err != nil {
			failed++
			lastErr = err
			metrics.CatalogFetches.WithLabelValues(p.Name(), "error").Inc()
			c.logger.Warn("Catalog source failed", map[string]interface{}{
				"source": p.Name(),
				"error":  err.Error(),
			})
			if ctx.Err() != nil {
				break
			}
			continue
		}
		if len(products) == 0 {
			metrics.CatalogFetches.WithLabelValues(p.Name(), "empty").Inc()
			c.logger.Info("Catalog source returned no products", map[string]interface{}{
				"source": p.Name(),
			})
			continue
		}

		metrics.CatalogFetches.WithLabelValues(p.Name(), "ok").Inc()
		c.logger.Debug("Catalog loaded", map[string]interface{}{
			"source":   p.Name(),
			"products": len(products),
		})
		return products, nil
	}

	if failed > 0 && failed == len(c.providers) {
		return nil, commonErrors.NewCatalogUnavailableError(c.Name(), lastErr)
	}
	return []models.Product{}, nil
}

// decodeProducts accepts a JSON list of products or an object carrying them
// under "products".
func decodeProducts(body []byte) ([]models.Product, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("empty catalog document")
	}

	if trimmed[0] == '[' {
		var products []models.Product
		if err := json.Unmarshal(trimmed, &products); err != nil {
			return nil, err
		}
		return products, nil
	}

	var wrapper struct {
		Products *[]models.Product `json:"products"`
	}
	if err := json.Unmarshal(trimmed, &wrapper); err != nil {
		return nil, err
	}
	if wrapper.Products == nil {
		return nil, fmt.Errorf("catalog document has no products list")
	}
	return *wrapper.Products, nil
}
