package catalog

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sustainable-advisor/internal/common/config"
	commonErrors "sustainable-advisor/internal/common/errors"
	commonhttp "sustainable-advisor/internal/common/http"
	"sustainable-advisor/internal/common/logger"
	"sustainable-advisor/internal/models"
)

// ==========================
// Helpers
// ==========================

const catalogJSON = `[
	{"id":"9SIQT8TOJO","name":"Bamboo Glass Jar","description":"Kitchen storage","price_usd":{"units":5,"nanos":490000000},"categories":["kitchen"]},
	{"id":"OLJCESPC7Z","name":"Sunglasses","description":"Add a modern touch","priceUsd":19.99,"categories":["accessories"]}
]`

type stubProvider struct {
	name     string
	products []models.Product
	err      error
	calls    int
}

func (s *stubProvider) Name() string { return s.name }

func (s *stubProvider) GetProducts(context.Context) ([]models.Product, error) {
	s.calls++
	return s.products, s.err
}

func writeCatalog(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "products.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

// ==========================
// Chain
// ==========================

func TestChain_GetProducts(t *testing.T) {
	tests := []struct {
		name           string
		providers      []*stubProvider
		expectErr      bool
		expectIDs      []string
		validateOutput func(t *testing.T, providers []*stubProvider)
	}{
		{
			name: "first provider wins",
			providers: []*stubProvider{
				{name: "a", products: []models.Product{{ID: "1"}}},
				{name: "b", products: []models.Product{{ID: "2"}}},
			},
			expectIDs: []string{"1"},
			validateOutput: func(t *testing.T, providers []*stubProvider) {
				assert.Zero(t, providers[1].calls)
			},
		},
		{
			name: "failure falls through",
			providers: []*stubProvider{
				{name: "a", err: errors.New("boom")},
				{name: "b", products: []models.Product{{ID: "2"}}},
			},
			expectIDs: []string{"2"},
		},
		{
			name: "empty falls through",
			providers: []*stubProvider{
				{name: "a", products: []models.Product{}},
				{name: "b", products: []models.Product{{ID: "3"}}},
			},
			expectIDs: []string{"3"},
		},
		{
			name: "empty and failed is empty",
			providers: []*stubProvider{
				{name: "a", err: errors.New("boom")},
				{name: "b"},
			},
			expectIDs: []string{},
		},
		{
			name: "all failed is an error",
			providers: []*stubProvider{
				{name: "a", err: errors.New("boom")},
				{name: "b", err: errors.New("bang")},
			},
			expectErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			providers := make([]Provider, 0, len(tt.providers))
			for _, p := range tt.providers {
				providers = append(providers, p)
			}

			products, err := NewChain(logger.NewTestLogger(t), providers...).GetProducts(context.Background())

			if tt.expectErr {
				require.Error(t, err)
				assert.True(t, commonErrors.HasCode(err, commonErrors.ErrCodeCatalogUnavailable))
				return
			}
			require.NoError(t, err)
			ids := make([]string, 0, len(products))
			for _, p := range products {
				ids = append(ids, p.ID)
			}
			assert.Equal(t, tt.expectIDs, ids)
			if tt.validateOutput != nil {
				tt.validateOutput(t, tt.providers)
			}
		})
	}
}

// ==========================
// File
// ==========================

func TestFileProvider(t *testing.T) {
	products, err := NewFileProvider(writeCatalog(t, catalogJSON)).GetProducts(context.Background())

	require.NoError(t, err)
	require.Len(t, products, 2)
	assert.InDelta(t, 5.49, products[0].Price.Float64(), 1e-9)
	assert.InDelta(t, 19.99, products[1].Price.Float64(), 1e-9)
	assert.Nil(t, products[0].CarbonScore)
}

func TestFileProvider_WrappedDocument(t *testing.T) {
	path := writeCatalog(t, `{"products":[{"id":"x","price":3}]}`)

	products, err := NewFileProvider(path).GetProducts(context.Background())

	require.NoError(t, err)
	require.Len(t, products, 1)
	assert.Equal(t, 3.0, products[0].Price.Float64())
}

func TestFileProvider_Errors(t *testing.T) {
	_, err := NewFileProvider(filepath.Join(t.TempDir(), "missing.json")).GetProducts(context.Background())
	assert.True(t, commonErrors.HasCode(err, commonErrors.ErrCodeCatalogUnavailable))

	_, err = NewFileProvider(writeCatalog(t, `{"items":[]}`)).GetProducts(context.Background())
	assert.True(t, commonErrors.HasCode(err, commonErrors.ErrCodeCatalogDecodeFailed))
}

// ==========================
// HTTP
// ==========================

func TestHTTPProvider_TriesEndpoints(t *testing.T) {
	var paths []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		if r.URL.Path != "/products" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(catalogJSON))
	}))
	defer server.Close()

	provider := NewHTTPProvider(config.HTTPCatalogConfig{
		BaseURL:   server.URL + "/",
		Endpoints: []string{"/api/products", "/products", "/catalog"},
		Timeout:   2000,
	}, commonhttp.NewClient(2*time.Second), logger.NewTestLogger(t))

	products, err := provider.GetProducts(context.Background())

	require.NoError(t, err)
	assert.Len(t, products, 2)
	assert.Equal(t, []string{"/api/products", "/products"}, paths)
}

func TestHTTPProvider_FallsBackToProductMeta(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/product-meta/9SIQT8TOJO":
			_, _ = w.Write([]byte(`{"product":{"id":"9SIQT8TOJO","name":"Bamboo Glass Jar","price_usd":5.49}}`))
		case "/product-meta/66VCHSJNUP":
			_, _ = w.Write([]byte(`{"name":"Tank Top","price_usd":18.99}`))
		default:
			w.WriteHeader(http.StatusServiceUnavailable)
		}
	}))
	defer server.Close()

	provider := NewHTTPProvider(config.HTTPCatalogConfig{
		BaseURL:     server.URL,
		Endpoints:   []string{"/api/products"},
		MetaTimeout: 2000,
		KnownIDs:    []string{"9SIQT8TOJO", "MISSING", "66VCHSJNUP"},
	}, nil, logger.NewTestLogger(t))

	products, err := provider.GetProducts(context.Background())

	require.NoError(t, err)
	require.Len(t, products, 2)
	assert.Equal(t, "Bamboo Glass Jar", products[0].Name)
	assert.Equal(t, "66VCHSJNUP", products[1].ID)
}

func TestHTTPProvider_Unavailable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	provider := NewHTTPProvider(config.HTTPCatalogConfig{
		BaseURL:   server.URL,
		Endpoints: []string{"/products"},
	}, nil, logger.NewTestLogger(t))

	_, err := provider.GetProducts(context.Background())

	assert.True(t, commonErrors.HasCode(err, commonErrors.ErrCodeCatalogUnavailable))
}

// ==========================
// Enrichment
// ==========================

func TestEnrichSustainability(t *testing.T) {
	input := []models.Product{
		{ID: "9SIQT8TOJO"},
		{ID: "L9ECAV7KIM"},
		{ID: "UNKNOWN"},
		{ID: "tagged", EcoTags: []string{"organic"}},
	}

	out := EnrichSustainability(input)

	require.Len(t, out, 4)
	assert.Equal(t, []string{"sustainable", "bamboo"}, out[0].EcoTags)
	assert.Equal(t, 25.0, *out[0].CarbonScore)
	assert.Equal(t, []string{}, out[1].EcoTags)
	assert.Equal(t, 75.0, *out[1].CarbonScore)
	assert.Equal(t, []string{}, out[2].EcoTags)
	assert.Equal(t, 60.0, *out[2].CarbonScore)
	assert.Equal(t, []string{"organic"}, out[3].EcoTags)
	assert.Nil(t, out[3].CarbonScore)

	assert.Nil(t, input[0].EcoTags, "input must not change")
	assert.Nil(t, input[0].CarbonScore)
}

func TestEnrichingProvider(t *testing.T) {
	inner := &stubProvider{name: "file", products: []models.Product{{ID: "0PUK6V6EV0"}}}

	products, err := NewEnrichingProvider(inner).GetProducts(context.Background())

	require.NoError(t, err)
	assert.Equal(t, []string{"handmade", "local"}, products[0].EcoTags)
	assert.Equal(t, "file", NewEnrichingProvider(inner).Name())
}

// ==========================
// Factory
// ==========================

func TestNewFromConfig(t *testing.T) {
	path := writeCatalog(t, `[{"id":"6E92ZMYYFZ","name":"Mug"}]`)

	provider, err := NewFromConfig(config.CatalogConfig{
		Sources:    []string{"file"},
		FilePath:   path,
		EnrichDemo: true,
	}, Dependencies{}, logger.NewTestLogger(t))
	require.NoError(t, err)

	products, err := provider.GetProducts(context.Background())
	require.NoError(t, err)
	require.Len(t, products, 1)
	assert.Equal(t, []string{"recyclable"}, products[0].EcoTags)
}

func TestNewFromConfig_Errors(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.CatalogConfig
	}{
		{name: "no sources", cfg: config.CatalogConfig{}},
		{name: "unknown source", cfg: config.CatalogConfig{Sources: []string{"ftp"}}},
		{name: "postgres without client", cfg: config.CatalogConfig{Sources: []string{"postgres"}}},
		{name: "elasticsearch without client", cfg: config.CatalogConfig{Sources: []string{"elasticsearch"}}},
		{
			name: "cache without redis",
			cfg: config.CatalogConfig{
				Sources: []string{"file"},
				Cache:   config.CatalogCacheConfig{Enabled: true},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewFromConfig(tt.cfg, Dependencies{}, logger.NewNoOpLogger())
			assert.Error(t, err)
		})
	}
}
