package app

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sustainable-advisor/internal/common/config"
	"sustainable-advisor/internal/common/logger"
	"sustainable-advisor/internal/crossservice"
)

// ==========================
// Test Helpers
// ==========================

const catalogJSON = `[
	{"id": "A", "name": "Jar", "price_usd": 10, "eco_tags": ["bamboo", "sustainable"], "carbon_score": 15},
	{"id": "B", "name": "Widget", "price_usd": 30}
]`

func localConfig(t *testing.T) *config.Config {
	t.Helper()
	path := filepath.Join(t.TempDir(), "products.json")
	require.NoError(t, os.WriteFile(path, []byte(catalogJSON), 0o600))

	return &config.Config{
		CrossService: config.CrossServiceConfig{Mode: "local", MaxRetries: 1},
		Catalog: config.CatalogConfig{
			Sources:  []string{"file"},
			FilePath: path,
		},
		Explain: config.ExplainConfig{Provider: "none"},
	}
}

func fastOptions() Options {
	return Options{ConnectRetries: 1, ConnectDelay: time.Millisecond}
}

// ==========================
// Build
// ==========================

func TestBuild_LocalPipeline(t *testing.T) {
	c, err := Build(context.Background(), localConfig(t), logger.NewTestLogger(t), fastOptions())
	require.NoError(t, err)
	defer c.Close()

	assert.Equal(t, "local", c.Transport.Name())

	recs, err := c.Advisor.Recommend(context.Background(), nil, 0)
	require.NoError(t, err)
	assert.Equal(t, crossservice.StateDone, recs.RankingState)
	require.Len(t, recs.Products, 1)
	assert.Equal(t, "A", recs.Products[0].Product.ID)
	assert.Equal(t, 2, recs.TotalAnalyzed)
}

func TestBuild_WithCache(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := localConfig(t)
	cfg.Catalog.Cache = config.CatalogCacheConfig{Enabled: true, Key: "catalog:test", TTL: 60000}
	cfg.Database.Redis = config.RedisConfig{Address: mr.Addr()}

	c, err := Build(context.Background(), cfg, logger.NewTestLogger(t), fastOptions())
	require.NoError(t, err)
	defer c.Close()

	products, err := c.Catalog.GetProducts(context.Background())
	require.NoError(t, err)
	assert.Len(t, products, 2)
	assert.True(t, mr.Exists("catalog:test"))
}

func TestBuild_Errors(t *testing.T) {
	tests := []struct {
		name   string
		modify func(cfg *config.Config)
	}{
		{
			name:   "no catalog sources",
			modify: func(cfg *config.Config) { cfg.Catalog.Sources = nil },
		},
		{
			name:   "unknown catalog source",
			modify: func(cfg *config.Config) { cfg.Catalog.Sources = []string{"ftp"} },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := localConfig(t)
			tt.modify(cfg)

			c, err := Build(context.Background(), cfg, logger.NewTestLogger(t), fastOptions())

			assert.Error(t, err)
			assert.Nil(t, c)
		})
	}
}

func TestBuild_UnknownExplainProviderUsesTemplates(t *testing.T) {
	cfg := localConfig(t)
	cfg.Explain.Provider = "carrier-pigeon"

	c, err := Build(context.Background(), cfg, logger.NewTestLogger(t), fastOptions())
	require.NoError(t, err)
	defer c.Close()

	out, err := c.Advisor.Explain(context.Background(), "A")
	require.NoError(t, err)
	assert.Equal(t, "template", out.Source)
}

func TestNewTransport_Remote(t *testing.T) {
	cfg := localConfig(t)
	cfg.CrossService.Mode = "remote"
	cfg.CrossService.Endpoints = []string{"http://localhost:5001/rank"}

	transport := NewTransport(cfg, NewRankingEngine(cfg, logger.NewNoOpLogger()), logger.NewNoOpLogger())

	assert.Equal(t, "http", transport.Name())
}

// ==========================
// RetryWithBackoff
// ==========================

func TestRetryWithBackoff(t *testing.T) {
	tests := []struct {
		name        string
		failures    int
		maxRetries  int
		expectErr   bool
		expectCalls int
	}{
		{name: "first try", failures: 0, maxRetries: 3, expectCalls: 1},
		{name: "succeeds after failures", failures: 2, maxRetries: 3, expectCalls: 3},
		{name: "gives up", failures: 5, maxRetries: 3, expectErr: true, expectCalls: 3},
		{name: "zero retries still tries once", failures: 5, maxRetries: 0, expectErr: true, expectCalls: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			err := RetryWithBackoff(context.Background(), func() error {
				calls++
				if calls <= tt.failures {
					return errors.New("connection refused")
				}
				return nil
			}, tt.maxRetries, time.Millisecond, logger.NewTestLogger(t), "test op")

			assert.Equal(t, tt.expectCalls, calls)
			if tt.expectErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), "test op failed after")
				assert.Contains(t, err.Error(), "connection refused")
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestRetryWithBackoff_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	err := RetryWithBackoff(ctx, func() error {
		calls++
		return errors.New("down")
	}, 5, time.Hour, logger.NewTestLogger(t), "test op")

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}
