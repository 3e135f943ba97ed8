// test/e2e/e2e_test.go
package e2e

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sustainable-advisor/internal/app"
	"sustainable-advisor/internal/common/config"
	"sustainable-advisor/internal/common/logger"
	"sustainable-advisor/internal/crossservice"
	"sustainable-advisor/internal/models"
	"sustainable-advisor/internal/recommender"

	analyzesustainability "sustainable-advisor/internal/workers/advisor/analyze-sustainability"
	explainrecommendation "sustainable-advisor/internal/workers/advisor/explain-recommendation"
	rankrecommendations "sustainable-advisor/internal/workers/advisor/rank-recommendations"
)

// ==========================
// Test Environment
// ==========================

const catalogJSON = `[
	{"id": "A", "name": "Bamboo Jar", "price_usd": 10, "eco_tags": ["bamboo", "sustainable"], "carbon_score": 15},
	{"id": "B", "name": "Plastic Widget", "price_usd": 30},
	{"id": "C", "name": "Kitchen Mug", "price_usd": 60, "categories": ["kitchen"], "carbon_score": 40}
]`

// recommenderAgent runs the ranking collaborator behind an httptest server
// and counts the requests it receives.
type recommenderAgent struct {
	server *httptest.Server
	hits   atomic.Int32
}

func startRecommender(t *testing.T, handler http.Handler) *recommenderAgent {
	t.Helper()
	agent := &recommenderAgent{}
	agent.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			agent.hits.Add(1)
		}
		handler.ServeHTTP(w, r)
	}))
	t.Cleanup(agent.server.Close)
	return agent
}

func (a *recommenderAgent) rankURL() string {
	return a.server.URL + "/rank"
}

func healthyRecommender(t *testing.T) *recommenderAgent {
	t.Helper()
	cfg := &config.Config{Ranking: config.RankingConfig{Seed: 11}}
	engine := app.NewRankingEngine(cfg, logger.NewTestLogger(t))
	return startRecommender(t, recommender.NewServer(engine, logger.NewTestLogger(t)).Handler())
}

func downRecommender(t *testing.T) *recommenderAgent {
	t.Helper()
	return startRecommender(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "maintenance", http.StatusServiceUnavailable)
	}))
}

func advisorConfig(t *testing.T, endpoints ...string) *config.Config {
	t.Helper()
	path := filepath.Join(t.TempDir(), "products.json")
	require.NoError(t, os.WriteFile(path, []byte(catalogJSON), 0o600))

	return &config.Config{
		CrossService: config.CrossServiceConfig{
			Mode:       "remote",
			Endpoints:  endpoints,
			Timeout:    5000,
			MaxRetries: 3,
			RetryDelay: 1,
		},
		Catalog: config.CatalogConfig{
			Sources:  []string{"file"},
			FilePath: path,
		},
		Explain: config.ExplainConfig{Provider: "none"},
	}
}

func buildAdvisor(t *testing.T, cfg *config.Config) *app.Components {
	t.Helper()
	opts := app.DefaultOptions()
	opts.ConnectRetries = 1
	c, err := app.Build(context.Background(), cfg, logger.NewTestLogger(t), opts)
	require.NoError(t, err)
	t.Cleanup(c.Close)
	return c
}

func productIDs(products []crossservice.RankedProduct) []string {
	ids := make([]string, 0, len(products))
	for _, p := range products {
		ids = append(ids, p.Product.ID)
	}
	return ids
}

// ==========================
// Advisor to recommender over HTTP
// ==========================

func TestRecommend_RankedByCollaborator(t *testing.T) {
	agent := healthyRecommender(t)
	c := buildAdvisor(t, advisorConfig(t, agent.rankURL()))

	recs, err := c.Advisor.Recommend(context.Background(), nil, 10)
	require.NoError(t, err)

	assert.Equal(t, crossservice.StateDone, recs.RankingState)
	assert.Equal(t, 1, recs.Attempts)
	assert.Equal(t, 3, recs.TotalAnalyzed)
	assert.Equal(t, 2, recs.TotalSustainable)
	assert.ElementsMatch(t, []string{"A", "C"}, productIDs(recs.Products))
	assert.NotContains(t, productIDs(recs.Products), "B")
	assert.Equal(t, int32(1), agent.hits.Load())

	for _, p := range recs.Products {
		require.NotNil(t, p.Provenance)
		assert.Equal(t, crossservice.RankedByCollaborator, p.Provenance.RankedBy)
		assert.False(t, p.IsFallback())
		assert.Greater(t, p.FinalScore(), 0.0)
	}
}

func TestRecommend_SustainabilityOnlyWeights(t *testing.T) {
	agent := healthyRecommender(t)
	c := buildAdvisor(t, advisorConfig(t, agent.rankURL()))

	prefs := &models.Preferences{Weights: map[string]float64{
		"sustainability": 1,
		"promotion":      0,
		"preference":     0,
		"popularity":     0,
		"trend":          0,
	}}

	recs, err := c.Advisor.Recommend(context.Background(), prefs, 10)
	require.NoError(t, err)

	require.Equal(t, crossservice.StateDone, recs.RankingState)
	assert.Equal(t, []string{"A", "C"}, productIDs(recs.Products))
	assert.Equal(t, 100.0, recs.Products[0].FinalScore())
	assert.Equal(t, 80.0, recs.Products[1].FinalScore())
}

func TestRecommend_FallbackAfterRetries(t *testing.T) {
	agent := downRecommender(t)
	c := buildAdvisor(t, advisorConfig(t, agent.rankURL()))

	recs, err := c.Advisor.Recommend(context.Background(), nil, 10)
	require.NoError(t, err)

	assert.Equal(t, crossservice.StateFallback, recs.RankingState)
	assert.Equal(t, 3, recs.Attempts)
	assert.Equal(t, int32(3), agent.hits.Load())
	require.Equal(t, []string{"A", "C"}, productIDs(recs.Products))

	top := recs.Products[0]
	assert.True(t, top.IsFallback())
	assert.Equal(t, crossservice.RankedByFallback, top.Provenance.RankedBy)
	assert.Equal(t, 15.0, top.DiscountPercent())
	assert.NotEmpty(t, top.Provenance.LastError)
}

func TestRecommend_SecondEndpointAnswers(t *testing.T) {
	down := downRecommender(t)
	healthy := healthyRecommender(t)
	c := buildAdvisor(t, advisorConfig(t, down.rankURL(), healthy.rankURL()))

	recs, err := c.Advisor.Recommend(context.Background(), nil, 10)
	require.NoError(t, err)

	assert.Equal(t, crossservice.StateDone, recs.RankingState)
	assert.Equal(t, 1, recs.Attempts)
	assert.Equal(t, int32(1), down.hits.Load())
	assert.Equal(t, int32(1), healthy.hits.Load())
}

func TestHealth_RemoteRecommender(t *testing.T) {
	agent := healthyRecommender(t)
	c := buildAdvisor(t, advisorConfig(t, agent.rankURL()))

	remote, ok := c.Transport.(*crossservice.HTTPTransport)
	require.True(t, ok)
	assert.NoError(t, remote.Health(context.Background()))

	down := downRecommender(t)
	c = buildAdvisor(t, advisorConfig(t, down.rankURL()))
	remote, ok = c.Transport.(*crossservice.HTTPTransport)
	require.True(t, ok)
	assert.Error(t, remote.Health(context.Background()))
}

// ==========================
// Worker chain
// ==========================

func TestWorkers_AnalyzeRankExplain(t *testing.T) {
	agent := healthyRecommender(t)
	c := buildAdvisor(t, advisorConfig(t, agent.rankURL()))
	log := logger.NewTestLogger(t)
	ctx := context.Background()

	analyzed, err := analyzesustainability.NewHandler(analyzesustainability.LoadConfig(), c.Scorer, c.Catalog, log).
		Execute(ctx, &analyzesustainability.Input{})
	require.NoError(t, err)
	assert.Equal(t, 3, analyzed.TotalAnalyzed)
	require.Len(t, analyzed.SustainableProducts, 2)

	ranked, err := rankrecommendations.NewHandler(rankrecommendations.LoadConfig(), c.Ranker, log).
		Execute(ctx, &rankrecommendations.Input{
			SustainableProducts: analyzed.SustainableProducts,
			UserPreferences:     &models.Preferences{Category: "kitchen"},
		})
	require.NoError(t, err)
	assert.Equal(t, crossservice.StateDone, ranked.RankingState)
	assert.Equal(t, crossservice.RankedByCollaborator, ranked.RankedBy)
	require.Len(t, ranked.RankedProducts, 2)

	top := ranked.RankedProducts[0].Product
	explained, err := explainrecommendation.NewHandler(explainrecommendation.LoadConfig(), c.Scorer, c.Explainer, log).
		Execute(ctx, &explainrecommendation.Input{Product: &top})
	require.NoError(t, err)
	assert.Equal(t, top.ID, explained.ProductID)
	assert.Equal(t, "template", explained.GeneratedBy)
	assert.Contains(t, explained.Explanation, "/100 for sustainability")
}
