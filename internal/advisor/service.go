package advisor

import (
	"context"
	"fmt"
	"time"

	"sustainable-advisor/internal/catalog"
	commonErrors "sustainable-advisor/internal/common/errors"
	"sustainable-advisor/internal/common/logger"
	"sustainable-advisor/internal/crossservice"
	"sustainable-advisor/internal/explain"
	"sustainable-advisor/internal/models"
	"sustainable-advisor/internal/ranking"
	"sustainable-advisor/internal/sustainability"
)

const DefaultLimit = 10

// Recommendations is the result of the full pipeline for one request.
type Recommendations struct {
	Products         []crossservice.RankedProduct `json:"recommendations"`
	TotalAnalyzed    int                          `json:"total_products_analyzed"`
	TotalSustainable int                          `json:"total_sustainable_products"`
	RankingState     crossservice.State           `json:"ranking_state"`
	Attempts         int                          `json:"ranking_attempts"`
	GeneratedAt      time.Time                    `json:"generated_at"`
}

// Service runs catalog, scoring, filtering and ranking for one request at a
// time. It keeps no per-request state.
type Service struct {
	catalog   catalog.Provider
	scorer    *sustainability.Scorer
	engine    *ranking.Engine
	ranker    *crossservice.Ranker
	explainer *explain.Service
	now       func() time.Time
	logger    logger.Logger
}

type Option func(*Service)

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(
	provider catalog.Provider,
	scorer *sustainability.Scorer,
	engine *ranking.Engine,
	ranker *crossservice.Ranker,
	explainer *explain.Service,
	log logger.Logger,
	opts ...Option,
) *Service {
	s := &Service{
		catalog:   provider,
		scorer:    scorer,
		engine:    engine,
		ranker:    ranker,
		explainer: explainer,
		now:       time.Now,
		logger:    logger.ForComponent(log, "advisor"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// loadCatalog tolerates provider failure by returning an empty snapshot.
func (s *Service) loadCatalog(ctx context.Context) []models.Product {
	products, err := s.catalog.GetProducts(ctx)
	if err != nil {
		s.logger.Warn("Catalog unavailable, continuing with an empty snapshot", map[string]interface{}{
			"provider": s.catalog.Name(),
			"error":    err.Error(),
		})
		return []models.Product{}
	}
	return products
}

// Analyze scores every catalog product in catalog order.
func (s *Service) Analyze(ctx context.Context) []sustainability.Scored {
	return s.scorer.Analyze(s.loadCatalog(ctx))
}

// GetSustainableProducts returns at most limit sustainable products, best
// first. A non-positive limit means DefaultLimit.
func (s *Service) GetSustainableProducts(ctx context.Context, limit int) []sustainability.Scored {
	sustainable := s.scorer.FilterSustainable(s.loadCatalog(ctx))
	return truncate(sustainable, limit)
}

// Recommend runs the whole pipeline and ranks the sustainable products
// through the cross-service ranker. Collaborator failures end in the
// fallback ordering; only an unexpected pipeline failure is returned.
func (s *Service) Recommend(ctx context.Context, prefs *models.Preferences, limit int) (out *Recommendations, err error) {
	var productCount int
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Recommendation pipeline panicked", map[string]interface{}{
				"panic":        fmt.Sprint(r),
				"productCount": productCount,
			})
			out = nil
			err = commonErrors.NewRecommendationFailedError(productCount, prefs, fmt.Errorf("panic: %v", r))
		}
	}()

	analyzed := s.scorer.Analyze(s.loadCatalog(ctx))
	productCount = len(analyzed)
	sustainable := sustainability.KeepSustainable(analyzed)

	outcome := s.ranker.Rank(ctx, sustainable, prefs)
	if outcome.State == crossservice.StateFallback {
		s.logger.Warn("Ranking collaborator unavailable, fallback ordering used", map[string]interface{}{
			"attempts":  outcome.Attempts,
			"lastError": errorString(outcome.LastError),
		})
	}

	s.logger.Info("Recommendations generated", map[string]interface{}{
		"analyzed":    productCount,
		"sustainable": len(sustainable),
		"state":       string(outcome.State),
		"durationMs":  outcome.Duration.Milliseconds(),
	})

	return &Recommendations{
		Products:         truncate(outcome.Products, limit),
		TotalAnalyzed:    productCount,
		TotalSustainable: len(sustainable),
		RankingState:     outcome.State,
		Attempts:         outcome.Attempts,
		GeneratedAt:      s.now(),
	}, nil
}

// RankDirect ranks the sustainable products with the direct factor preset.
func (s *Service) RankDirect(ctx context.Context, weights map[string]float64, factors []string, limit int) []ranking.Result {
	sustainable := s.scorer.FilterSustainable(s.loadCatalog(ctx))
	results := s.engine.RankByFactors(ranking.CandidatesFromScored(sustainable), weights, factors)
	return truncate(results, limit)
}

// Explain scores one catalog product and explains the score.
func (s *Service) Explain(ctx context.Context, productID string) (explain.Explanation, error) {
	for _, p := range s.loadCatalog(ctx) {
		if p.ID == productID {
			analysis := s.scorer.Score(p)
			return s.explainer.Explain(ctx, p, analysis.Score), nil
		}
	}
	return explain.Explanation{}, commonErrors.NewInvalidInputError(fmt.Sprintf("unknown product %q", productID))
}

// ExplainProduct explains a product supplied by the caller.
func (s *Service) ExplainProduct(ctx context.Context, p models.Product, score *float64) explain.Explanation {
	value := s.scorer.Score(p).Score
	if score != nil {
		value = *score
	}
	return s.explainer.Explain(ctx, p, value)
}

// Stats summarises the current catalog snapshot.
func (s *Service) Stats(ctx context.Context) sustainability.Stats {
	analyzed := s.scorer.Analyze(s.loadCatalog(ctx))
	analyses := make([]sustainability.Analysis, 0, len(analyzed))
	for _, sc := range analyzed {
		analyses = append(analyses, sc.Analysis)
	}
	return sustainability.ComputeStats(analyses, s.now())
}

func truncate[T any](items []T, limit int) []T {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if len(items) > limit {
		return items[:limit]
	}
	return items
}

func errorString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
