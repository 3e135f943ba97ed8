package catalog

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"sustainable-advisor/internal/common/config"
	commonErrors "sustainable-advisor/internal/common/errors"
	commonhttp "sustainable-advisor/internal/common/http"
	"sustainable-advisor/internal/common/logger"
	"sustainable-advisor/internal/models"
)

const maxCatalogBytes = 20 << 20

// HTTPProvider reads the catalog from a storefront API. Listing endpoints
// are tried in order; when none answers, known product ids are fetched one
// by one from the product metadata path.
type HTTPProvider struct {
	cfg    config.HTTPCatalogConfig
	client *commonhttp.Client
	logger logger.Logger
}

func NewHTTPProvider(cfg config.HTTPCatalogConfig, client *commonhttp.Client, log logger.Logger) *HTTPProvider {
	if client == nil {
		client = commonhttp.NewClient(0)
	}
	if cfg.ProductMetaPath == "" {
		cfg.ProductMetaPath = "/product-meta/"
	}
	return &HTTPProvider{
		cfg:    cfg,
		client: client,
		logger: logger.ForComponent(log, "catalog-http"),
	}
}

func (p *HTTPProvider) Name() string {
	return "http"
}

func (p *HTTPProvider) GetProducts(ctx context.Context) ([]models.Product, error) {
	base := strings.TrimRight(p.cfg.BaseURL, "/")
	var lastErr error

	for _, endpoint := range p.cfg.Endpoints {
		target := base + endpoint
		products, err := p.fetchList(ctx, target)
		if err != nil {
			lastErr = err
			p.logger.Debug("Catalog endpoint failed", map[string]interface{}{
				"url":   target,
				"error": err.Error(),
			})
			continue
		}
		if len(products) > 0 {
			return products, nil
		}
	}

	if len(p.cfg.KnownIDs) > 0 {
		products := p.fetchKnown(ctx)
		if len(products) > 0 {
			return products, nil
		}
	}

	if lastErr == nil {
		return []models.Product{}, nil
	}
	return nil, commonErrors.NewCatalogUnavailableError(base, lastErr)
}

// GetProduct fetches one product from the metadata path.
func (p *HTTPProvider) GetProduct(ctx context.Context, id string) (models.Product, error) {
	target := strings.TrimRight(p.cfg.BaseURL, "/") + "/" +
		strings.Trim(p.cfg.ProductMetaPath, "/") + "/" + url.PathEscape(id)

	if p.cfg.MetaTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, config.GetDuration(p.cfg.MetaTimeout))
		defer cancel()
	}

	body, err := p.get(ctx, target)
	if err != nil {
		return models.Product{}, err
	}

	var wrapped struct {
		Product *models.Product `json:"product"`
	}
	if err := json.Unmarshal(body, &wrapped); err == nil && wrapped.Product != nil {
		return *wrapped.Product, nil
	}

	var product models.Product
	if err := json.Unmarshal(body, &product); err != nil {
		return models.Product{}, commonErrors.NewCatalogDecodeFailedError(target, err)
	}
	if product.ID == "" {
		product.ID = id
	}
	return product, nil
}

func (p *HTTPProvider) fetchKnown(ctx context.Context) []models.Product {
	products := make([]models.Product, 0, len(p.cfg.KnownIDs))
	for _, id := range p.cfg.KnownIDs {
		product, err := p.GetProduct(ctx, id)
		if err != nil {
			p.logger.Debug("Product metadata fetch failed", map[string]interface{}{
				"productId": id,
				"error":     err.Error(),
			})
			continue
		}
		products = append(products, product)
	}
	return products
}

func (p *HTTPProvider) fetchList(ctx context.Context, target string) ([]models.Product, error) {
	if p.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, config.GetDuration(p.cfg.Timeout))
		defer cancel()
	}

	body, err := p.get(ctx, target)
	if err != nil {
		return nil, err
	}
	products, err := decodeProducts(body)
	if err != nil {
		return nil, commonErrors.NewCatalogDecodeFailedError(target, err)
	}
	return products, nil
}

func (p *HTTPProvider) get(ctx context.Context, target string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, commonErrors.NewCatalogUnavailableError(target, err)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := p.client.Do(req)
	if err != nil {
		return nil, commonErrors.NewCatalogUnavailableError(target, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxCatalogBytes))
	if err != nil {
		return nil, commonErrors.NewCatalogUnavailableError(target, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, commonErrors.NewCatalogUnavailableError(target, fmt.Errorf("unexpected status %d", resp.StatusCode))
	}

	p.logger.Debug("Catalog request completed", map[string]interface{}{
		"url":      target,
		"duration": time.Since(start).String(),
		"bytes":    len(body),
	})
	return body, nil
}
