// Package ranking blends sustainability, promotion, preference, popularity
// and trend signals into one composite score and orders products by it.
package ranking

import (
	"fmt"
	"math"
	"math/rand"
	"sort"
	"strings"
	"time"

	"sustainable-advisor/internal/common/logger"
	"sustainable-advisor/internal/common/metrics"
	"sustainable-advisor/internal/models"
	"sustainable-advisor/internal/promotion"
	"sustainable-advisor/internal/sustainability"
)

const (
	neutralValue      = 50.0
	defaultPopularity = 75.0
	availabilityValue = 90.0

	ProfileCrossService = "cross_service"
	ProfileDirect       = "direct"
)

var popularCategories = []string{"kitchen", "home", "decor"}

// Candidate is a product with its precomputed sustainability score. A nil
// score is treated as neutral.
type Candidate struct {
	Product models.Product
	Score   *float64
}

// NewCandidate pairs a product with a known score.
func NewCandidate(p models.Product, score float64) Candidate {
	return Candidate{Product: p, Score: models.Float64Ptr(score)}
}

// CandidatesFromScored converts scorer output into ranking input.
func CandidatesFromScored(scored []sustainability.Scored) []Candidate {
	out := make([]Candidate, 0, len(scored))
	for _, s := range scored {
		out = append(out, NewCandidate(s.Product, s.Analysis.Score))
	}
	return out
}

// SustainabilityScore returns the candidate score or the neutral value.
func (c Candidate) SustainabilityScore() float64 {
	if c.Score == nil {
		return neutralValue
	}
	return *c.Score
}

// Component is one weighted factor of a final score.
type Component struct {
	Value        float64 `json:"value"`
	Weight       float64 `json:"weight"`
	Contribution float64 `json:"contribution"`
}

// PreferenceMatch summarises how a product matched the user's preferences.
type PreferenceMatch struct {
	Matches    bool     `json:"matches"`
	MatchCount int      `json:"match_count"`
	Details    []string `json:"details,omitempty"`
}

// Result is one ranked product.
type Result struct {
	Product             models.Product       `json:"product"`
	SustainabilityScore float64              `json:"sustainability_score"`
	FinalScore          float64              `json:"final_score"`
	Components          map[Factor]Component `json:"components"`
	Tier                Tier                 `json:"tier"`
	Position            int                  `json:"rank_position"`
	IsPrimary           bool                 `json:"is_primary_recommendation"`
	HasPromotion        bool                 `json:"has_promotion"`
	DiscountPercent     float64              `json:"discount_percent"`
	PromotionReason     string               `json:"promotion_reason,omitempty"`
	PreferenceMatch     PreferenceMatch      `json:"preference_match"`
	Reasons             []string             `json:"recommendation_reasons"`
}

// Options tune one Rank call.
type Options struct {
	// Weights override the configured table key by key.
	Weights  map[string]float64
	Strategy promotion.Strategy
	// Rand replaces the engine's random source for this call.
	Rand *rand.Rand
}

// Engine ranks products. It keeps no state between calls.
type Engine struct {
	cfg        Config
	promotions *promotion.Engine
	logger     logger.Logger
}

func NewEngine(cfg Config, promotions *promotion.Engine, log logger.Logger) *Engine {
	if len(cfg.Trends) == 0 {
		cfg.Trends = DefaultTrends()
	}
	if cfg.PrimaryCount <= 0 {
		cfg.PrimaryCount = 3
	}
	if promotions == nil {
		promotions = promotion.NewEngine(promotion.Config{}, log)
	}
	return &Engine{
		cfg:        cfg,
		promotions: promotions,
		logger:     logger.ForComponent(log, "ranking-engine"),
	}
}

// Config returns the engine configuration.
func (e *Engine) Config() Config {
	return e.cfg
}

// Trends returns the trend table used by the trend component.
func (e *Engine) Trends() []Trend {
	return append([]Trend(nil), e.cfg.Trends...)
}

// Promotions exposes the promotion engine used for the promotion component.
func (e *Engine) Promotions() *promotion.Engine {
	return e.promotions
}

func (e *Engine) newRand() *rand.Rand {
	seed := e.cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return rand.New(rand.NewSource(seed))
}

// Rank scores candidates with the cross-service profile. Preferences may be
// nil. The strategy in opts wins over the one in prefs.
func (e *Engine) Rank(candidates []Candidate, prefs *models.Preferences, opts Options) []Result {
	if len(candidates) == 0 {
		return []Result{}
	}

	weights := e.cfg.Weights
	if prefs != nil {
		weights = weights.Merge(prefs.Weights)
	}
	weights = weights.Merge(opts.Weights)

	strategy := opts.Strategy
	if strategy == promotion.StrategyNone && prefs != nil {
		strategy = promotion.ParseStrategy(prefs.Strategy)
	}

	rng := opts.Rand
	if rng == nil {
		rng = e.newRand()
	}

	results := make([]Result, 0, len(candidates))
	for _, c := range candidates {
		score := c.SustainabilityScore()
		eval := e.promotions.Evaluate(c.Product, score, strategy)
		match := matchPreferences(c.Product, prefs)

		values := map[Factor]float64{
			FactorSustainability: score,
			FactorPromotion:      eval.DiscountFraction * 100,
			FactorPreference:     preferenceScore(c.Product, prefs),
			FactorPopularity:     popularityScore(c.Product, rng),
			FactorTrend:          trendScore(e.cfg.Trends, c.Product),
		}

		r := e.buildResult(c, values, CrossServiceFactors, weights)
		r.HasPromotion = eval.HasPromotion
		r.DiscountPercent = eval.DiscountPercent
		if eval.HasPromotion {
			r.PromotionReason = eval.Reason
		}
		r.PreferenceMatch = match
		results = append(results, r)
	}

	e.order(results)
	for i := range results {
		results[i].Reasons = reasons(results[i])
	}

	metrics.RankingRuns.WithLabelValues(ProfileCrossService).Inc()
	e.logger.Debug("Ranked products", map[string]interface{}{
		"profile":  ProfileCrossService,
		"count":    len(results),
		"strategy": string(strategy),
	})
	return results
}

// RankByFactors scores candidates with the direct preset. Empty factors fall
// back to the configured defaults; unknown factor names take the product
// attribute of that name or a neutral 50.
func (e *Engine) RankByFactors(candidates []Candidate, weights map[string]float64, factors []string) []Result {
	if len(candidates) == 0 {
		return []Result{}
	}

	merged := e.cfg.DirectWeights.Merge(weights)

	active := make([]Factor, 0, len(factors))
	seen := make(map[Factor]bool, len(factors))
	for _, name := range factors {
		f := ParseFactor(name)
		if f == "" || seen[f] {
			continue
		}
		seen[f] = true
		active = append(active, f)
	}
	if len(active) == 0 {
		active = append(active, e.cfg.DefaultFactors...)
	}

	results := make([]Result, 0, len(candidates))
	for _, c := range candidates {
		values := make(map[Factor]float64, len(active))
		for _, f := range active {
			values[f] = directValue(c, f)
		}
		results = append(results, e.buildResult(c, values, active, merged))
	}

	e.order(results)
	for i := range results {
		results[i].Reasons = reasons(results[i])
	}

	metrics.RankingRuns.WithLabelValues(ProfileDirect).Inc()
	e.logger.Debug("Ranked products", map[string]interface{}{
		"profile": ProfileDirect,
		"count":   len(results),
		"factors": active,
	})
	return results
}

func (e *Engine) buildResult(c Candidate, values map[Factor]float64, factors []Factor, weights Weights) Result {
	components := make(map[Factor]Component, len(factors))
	var total float64
	for _, f := range factors {
		w := weights.Get(f)
		contribution := values[f] * w
		total += contribution
		components[f] = Component{
			Value:        sustainability.Round2(values[f]),
			Weight:       w,
			Contribution: sustainability.Round2(contribution),
		}
	}
	return Result{
		Product:             c.Product,
		SustainabilityScore: c.SustainabilityScore(),
		FinalScore:          sustainability.Round2(total),
		Components:          components,
	}
}

// order sorts by final score keeping input order on ties, then assigns
// positions, the primary flag and the tier.
func (e *Engine) order(results []Result) {
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].FinalScore > results[j].FinalScore
	})
	for i := range results {
		results[i].Position = i + 1
		results[i].IsPrimary = i < e.cfg.PrimaryCount
		results[i].Tier = e.cfg.TierFor(results[i].FinalScore)
	}
}

func directValue(c Candidate, f Factor) float64 {
	switch f {
	case FactorSustainability:
		return c.SustainabilityScore()
	case FactorPrice:
		return math.Max(0, math.Min(100, 100-c.Product.Price.Float64()/2))
	case FactorPopularity:
		if c.Product.Popularity != nil {
			return *c.Product.Popularity
		}
		return defaultPopularity
	case FactorAvailability:
		return availabilityValue
	default:
		if v, ok := c.Product.Attributes[string(f)]; ok {
			return v
		}
		return neutralValue
	}
}

func preferenceScore(p models.Product, prefs *models.Preferences) float64 {
	if prefs.IsZero() {
		return 0
	}
	var score float64
	if cat := prefs.NormalizedCategory(); cat != "" && p.HasCategory(cat) {
		score += 30
	}
	for _, tag := range p.EcoTags {
		if prefs.MatchesEcoTag(tag) {
			score += 10
		}
	}
	if prefs.Budget > 0 && p.Price.Float64() <= prefs.Budget {
		score += 20
	}
	return score
}

func matchPreferences(p models.Product, prefs *models.Preferences) PreferenceMatch {
	var m PreferenceMatch
	if prefs.IsZero() {
		return m
	}
	if cat := prefs.NormalizedCategory(); cat != "" && p.HasCategory(cat) {
		m.MatchCount++
		m.Details = append(m.Details, "Preferred category: "+cat)
	}
	var tags []string
	for _, tag := range p.EcoTags {
		if prefs.MatchesEcoTag(tag) {
			tags = append(tags, tag)
		}
	}
	if len(tags) > 0 {
		m.MatchCount++
		m.Details = append(m.Details, "Eco-friendly: "+strings.Join(tags, ", "))
	}
	if prefs.Budget > 0 && p.Price.Float64() <= prefs.Budget {
		m.MatchCount++
		m.Details = append(m.Details, fmt.Sprintf("Within budget: $%.2f <= $%.2f", p.Price.Float64(), prefs.Budget))
	}
	m.Matches = m.MatchCount > 0
	return m
}

func popularityScore(p models.Product, rng *rand.Rand) float64 {
	score := float64(len(p.EcoTags)) * 8
	if carbon := p.Carbon(); carbon < 50 {
		score += (50 - carbon) * 0.8
	}
	if p.HasAnyCategory(popularCategories...) {
		score += 15
	}
	return score + 5 + rng.Float64()*10
}

func reasons(r Result) []string {
	var out []string

	switch s := r.SustainabilityScore; {
	case s > 80:
		out = append(out, fmt.Sprintf("Excellent sustainability score (%s/100)", formatScore(s)))
	case s > 60:
		out = append(out, fmt.Sprintf("Good sustainability score (%s/100)", formatScore(s)))
	}
	if r.HasPromotion {
		out = append(out, fmt.Sprintf("%s%% discount - %s", formatScore(r.DiscountPercent), r.PromotionReason))
	}
	if len(r.Product.EcoTags) > 0 {
		out = append(out, "Eco-friendly features: "+strings.Join(r.Product.EcoTags, ", "))
	}
	if r.Product.CarbonScore != nil && *r.Product.CarbonScore < 50 {
		out = append(out, fmt.Sprintf("Low carbon footprint (score: %s/100)", formatScore(*r.Product.CarbonScore)))
	}
	if r.PreferenceMatch.Matches {
		out = append(out, "Matches your preferences")
	}
	if len(out) == 0 {
		out = append(out, "Recommended based on overall analysis")
	}
	return out
}

func formatScore(v float64) string {
	v = sustainability.Round2(v)
	if v == math.Trunc(v) {
		return fmt.Sprintf("%.0f", v)
	}
	return fmt.Sprintf("%.2f", v)
}
