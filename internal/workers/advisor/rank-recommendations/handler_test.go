// internal/workers/advisor/rank-recommendations/handler_test.go
package rankrecommendations

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	commonErrors "sustainable-advisor/internal/common/errors"
	"sustainable-advisor/internal/common/logger"
	"sustainable-advisor/internal/crossservice"
	"sustainable-advisor/internal/models"
	"sustainable-advisor/internal/promotion"
	"sustainable-advisor/internal/ranking"
	"sustainable-advisor/internal/sustainability"
)

// ==========================
// Test Helper Functions
// ==========================

var fixedNow = time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC)

type downTransport struct{ calls int }

func (d *downTransport) Name() string { return "down" }

func (d *downTransport) Rank(context.Context, crossservice.RankRequest) ([]byte, error) {
	d.calls++
	return nil, errors.New("connection refused")
}

func createTestConfig() *Config {
	return &Config{
		MaxItems: 10,
		Timeout:  3 * time.Second,
	}
}

func createTestHandler(t *testing.T, transport crossservice.Transport) *Handler {
	t.Helper()
	log := logger.NewTestLogger(t)

	if transport == nil {
		cfg := ranking.DefaultConfig()
		cfg.Seed = 7
		engine := ranking.NewEngine(cfg, promotion.NewEngine(promotion.Config{}, log), log)
		transport = crossservice.NewLocalTransport(engine)
	}

	ranker := crossservice.NewRanker(transport, crossservice.DefaultConfig(), log,
		crossservice.WithClock(func() time.Time { return fixedNow }),
		crossservice.WithSleep(func(context.Context, time.Duration) error { return nil }),
	)
	return NewHandler(createTestConfig(), ranker, log)
}

func createTestScored(t *testing.T) []sustainability.Scored {
	t.Helper()
	scorer := sustainability.NewScorer(sustainability.DefaultRules(), logger.NewTestLogger(t))
	return scorer.FilterSustainable([]models.Product{
		{ID: "A", Name: "Jar", Price: 10, EcoTags: []string{"bamboo", "sustainable"}, CarbonScore: models.Float64Ptr(15)},
		{ID: "B", Name: "Widget", Price: 30},
		{ID: "C", Name: "Mug", Price: 60, Categories: []string{"kitchen"}, CarbonScore: models.Float64Ptr(40)},
	})
}

func rankedIDs(products []crossservice.RankedProduct) []string {
	out := make([]string, 0, len(products))
	for _, p := range products {
		out = append(out, p.Product.ID)
	}
	return out
}

// ==========================
// Execute
// ==========================

func TestHandler_Execute_Collaborator(t *testing.T) {
	h := createTestHandler(t, nil)

	out, err := h.Execute(context.Background(), &Input{SustainableProducts: createTestScored(t)})

	require.NoError(t, err)
	assert.Equal(t, crossservice.StateDone, out.RankingState)
	assert.Equal(t, 1, out.Attempts)
	assert.Equal(t, crossservice.RankedByCollaborator, out.RankedBy)
	assert.Empty(t, out.LastError)
	assert.Equal(t, []string{"A", "C"}, rankedIDs(out.RankedProducts))
	assert.EqualValues(t, 1, out.RankedProducts[0].Ranking["rank_position"])
}

func TestHandler_Execute_Fallback(t *testing.T) {
	transport := &downTransport{}
	h := createTestHandler(t, transport)

	out, err := h.Execute(context.Background(), &Input{
		SustainableProducts: createTestScored(t),
		UserPreferences:     &models.Preferences{Category: "kitchen"},
	})

	require.NoError(t, err)
	assert.Equal(t, 3, transport.calls)
	assert.Equal(t, crossservice.StateFallback, out.RankingState)
	assert.Equal(t, crossservice.RankedByFallback, out.RankedBy)
	assert.Contains(t, out.LastError, "connection refused")
	assert.Equal(t, []string{"A", "C"}, rankedIDs(out.RankedProducts))
	for _, p := range out.RankedProducts {
		assert.True(t, p.IsFallback())
		assert.Equal(t, 15.0, p.DiscountPercent())
	}
}

func TestHandler_Execute_Limit(t *testing.T) {
	h := createTestHandler(t, &downTransport{})

	out, err := h.Execute(context.Background(), &Input{SustainableProducts: createTestScored(t), Limit: 1})

	require.NoError(t, err)
	assert.Equal(t, []string{"A"}, rankedIDs(out.RankedProducts))
}

func TestHandler_Execute_EmptyInput(t *testing.T) {
	transport := &downTransport{}
	h := createTestHandler(t, transport)

	out, err := h.Execute(context.Background(), &Input{})

	require.NoError(t, err)
	assert.Empty(t, out.RankedProducts)
	assert.Equal(t, crossservice.StateDone, out.RankingState)
	assert.Zero(t, transport.calls)
}

func TestHandler_Execute_InvalidInput(t *testing.T) {
	tests := []struct {
		name  string
		input *Input
	}{
		{name: "nil input", input: nil},
		{name: "negative limit", input: &Input{Limit: -2}},
		{name: "negative budget", input: &Input{UserPreferences: &models.Preferences{Budget: -5}}},
		{name: "negative weight", input: &Input{UserPreferences: &models.Preferences{Weights: map[string]float64{"price": -1}}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			transport := &downTransport{}
			h := createTestHandler(t, transport)

			out, err := h.Execute(context.Background(), tt.input)

			assert.Nil(t, out)
			assert.True(t, commonErrors.HasCode(err, commonErrors.ErrCodeInvalidInput), "got %v", err)
			assert.Zero(t, transport.calls)
		})
	}
}
