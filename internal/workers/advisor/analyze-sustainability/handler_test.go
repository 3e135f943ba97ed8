// internal/workers/advisor/analyze-sustainability/handler_test.go
package analyzesustainability

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	commonErrors "sustainable-advisor/internal/common/errors"
	"sustainable-advisor/internal/common/logger"
	"sustainable-advisor/internal/models"
	"sustainable-advisor/internal/sustainability"
)

// ==========================
// Test Helper Functions
// ==========================

var fixedNow = time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC)

type stubCatalog struct {
	products []models.Product
	err      error
}

func (s stubCatalog) Name() string { return "stub" }

func (s stubCatalog) GetProducts(context.Context) ([]models.Product, error) {
	return s.products, s.err
}

func createTestConfig() *Config {
	return &Config{
		MaxItems: 10,
		Timeout:  3 * time.Second,
	}
}

func createTestHandler(t *testing.T, provider stubCatalog, withCatalog bool) *Handler {
	t.Helper()
	log := logger.NewTestLogger(t)
	scorer := sustainability.NewScorer(sustainability.DefaultRules(), log)

	var h *Handler
	if withCatalog {
		h = NewHandler(createTestConfig(), scorer, provider, log)
	} else {
		h = NewHandler(createTestConfig(), scorer, nil, log)
	}
	h.now = func() time.Time { return fixedNow }
	return h
}

func createTestProducts() []models.Product {
	return []models.Product{
		{ID: "A", Name: "Jar", Price: 10, EcoTags: []string{"bamboo", "sustainable"}, CarbonScore: models.Float64Ptr(15)},
		{ID: "B", Name: "Widget", Price: 30},
		{ID: "C", Name: "Mug", Price: 60, Categories: []string{"kitchen"}, CarbonScore: models.Float64Ptr(40)},
	}
}

func productIDs(scored []sustainability.Scored) []string {
	out := make([]string, 0, len(scored))
	for _, s := range scored {
		out = append(out, s.Product.ID)
	}
	return out
}

// ==========================
// Execute
// ==========================

func TestHandler_Execute(t *testing.T) {
	tests := []struct {
		name           string
		input          *Input
		catalog        stubCatalog
		withCatalog    bool
		expectedIDs    []string
		expectedTotal  int
		expectedCode   commonErrors.ErrorCode
		validateOutput func(t *testing.T, out *Output)
	}{
		{
			name:          "products from the job",
			input:         &Input{Products: createTestProducts()},
			expectedIDs:   []string{"A", "C"},
			expectedTotal: 3,
			validateOutput: func(t *testing.T, out *Output) {
				assert.Equal(t, 2, out.TotalSustainable)
				assert.Equal(t, 66.67, out.Stats.SustainabilityRate)
				assert.Equal(t, fixedNow, out.Stats.GeneratedAt)
				assert.Equal(t, 100.0, out.SustainableProducts[0].Analysis.Score)
			},
		},
		{
			name:          "falls back to the catalog",
			input:         &Input{},
			catalog:       stubCatalog{products: createTestProducts()},
			withCatalog:   true,
			expectedIDs:   []string{"A", "C"},
			expectedTotal: 3,
		},
		{
			name:          "limit keeps the best products",
			input:         &Input{Products: createTestProducts(), Limit: 1},
			expectedIDs:   []string{"A"},
			expectedTotal: 3,
			validateOutput: func(t *testing.T, out *Output) {
				assert.Equal(t, 2, out.TotalSustainable)
			},
		},
		{
			name:          "no sustainable products",
			input:         &Input{Products: createTestProducts()[1:2]},
			expectedIDs:   []string{},
			expectedTotal: 1,
		},
		{
			name:         "nil input",
			input:        nil,
			expectedCode: commonErrors.ErrCodeInvalidInput,
		},
		{
			name:         "negative limit",
			input:        &Input{Products: createTestProducts(), Limit: -1},
			expectedCode: commonErrors.ErrCodeInvalidInput,
		},
		{
			name:         "no products and no catalog",
			input:        &Input{},
			expectedCode: commonErrors.ErrCodeInvalidInput,
		},
		{
			name:          "catalog failure analyzes an empty snapshot",
			input:         &Input{},
			catalog:       stubCatalog{err: commonErrors.NewCatalogUnavailableError("stub", errors.New("down"))},
			withCatalog:   true,
			expectedIDs:   []string{},
			expectedTotal: 0,
			validateOutput: func(t *testing.T, out *Output) {
				assert.Equal(t, 0, out.TotalSustainable)
				assert.Equal(t, 0, out.Stats.TotalAnalyzed)
				assert.Equal(t, 0.0, out.Stats.SustainabilityRate)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := createTestHandler(t, tt.catalog, tt.withCatalog)

			out, err := h.Execute(context.Background(), tt.input)

			if tt.expectedCode != "" {
				require.Error(t, err)
				assert.Nil(t, out)
				assert.True(t, commonErrors.HasCode(err, tt.expectedCode), "got %v", err)
				return
			}

			require.NoError(t, err)
			require.NotNil(t, out)
			assert.Equal(t, tt.expectedIDs, productIDs(out.SustainableProducts))
			assert.Equal(t, tt.expectedTotal, out.TotalAnalyzed)
			if tt.validateOutput != nil {
				tt.validateOutput(t, out)
			}
		})
	}
}

func TestHandler_Execute_DoesNotModifyProducts(t *testing.T) {
	h := createTestHandler(t, stubCatalog{}, false)
	products := createTestProducts()

	_, err := h.Execute(context.Background(), &Input{Products: products})

	require.NoError(t, err)
	assert.Equal(t, createTestProducts(), products)
}

func TestLoadConfig(t *testing.T) {
	cfg := LoadConfig()

	assert.Equal(t, 10, cfg.MaxItems)
	assert.Equal(t, 30*time.Second, cfg.Timeout)
}
