// Package sustainability computes heuristic sustainability scores for catalog
// products and derives filters, statistics and explanations from them.
package sustainability

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"sustainable-advisor/internal/common/logger"
	"sustainable-advisor/internal/models"
)

// ContributionKind identifies which rule produced a score delta.
type ContributionKind string

const (
	KindEcoTag   ContributionKind = "eco_tag"
	KindCarbon   ContributionKind = "carbon_score"
	KindKeywords ContributionKind = "keywords"
	KindCategory ContributionKind = "category_bonus"
)

// Contribution is one scoring rule that fired for a product.
type Contribution struct {
	Kind     ContributionKind `json:"type"`
	Label    string           `json:"label"`
	Delta    float64          `json:"score_added"`
	Reason   string           `json:"reason"`
	Keywords []string         `json:"keywords,omitempty"`
}

// Analysis is the result of scoring one product.
type Analysis struct {
	ProductID     string         `json:"product_id"`
	ProductName   string         `json:"product_name"`
	Score         float64        `json:"sustainability_score"`
	IsSustainable bool           `json:"is_sustainable"`
	CarbonScore   float64        `json:"carbon_score"`
	EcoTags       []string       `json:"eco_tags"`
	Categories    []string       `json:"categories"`
	Contributions []Contribution `json:"analysis_details"`
	AnalyzedAt    time.Time      `json:"analyzed_at"`
}

// Scored pairs a product with its analysis. The product is never modified.
type Scored struct {
	Product  models.Product `json:"product"`
	Analysis Analysis       `json:"sustainability_analysis"`
}

// Scorer applies a fixed set of Rules. It is safe for concurrent use.
type Scorer struct {
	rules  Rules
	now    func() time.Time
	logger logger.Logger
}

// Option configures a Scorer.
type Option func(*Scorer)

// WithClock injects the time source used for AnalyzedAt.
func WithClock(now func() time.Time) Option {
	return func(s *Scorer) { s.now = now }
}

// NewScorer copies rules so later changes by the caller have no effect.
func NewScorer(rules Rules, log logger.Logger, opts ...Option) *Scorer {
	s := &Scorer{
		rules:  rules.clone(),
		now:    func() time.Time { return time.Now().UTC() },
		logger: logger.ForComponent(log, "sustainability-scorer"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Rules returns a copy of the rules in effect.
func (s *Scorer) Rules() Rules {
	return s.rules.clone()
}

// Score computes the sustainability analysis of a single product. Missing
// fields default safely; it never fails.
func (s *Scorer) Score(p models.Product) Analysis {
	r := s.rules
	score := r.BaseScore
	var contributions []Contribution

	for _, tag := range distinctFold(p.EcoTags) {
		cat, ok := r.EcoCategories[strings.ToLower(tag)]
		if !ok {
			continue
		}
		delta := cat.Weight * 100
		score += delta
		contributions = append(contributions, Contribution{
			Kind:   KindEcoTag,
			Label:  tag,
			Delta:  delta,
			Reason: fmt.Sprintf("%s: %s", titleCase(tag), cat.Reason),
		})
	}

	carbon := p.Carbon()
	if carbon < r.CarbonThreshold {
		delta := (r.CarbonThreshold - carbon) * 2
		score += delta
		contributions = append(contributions, Contribution{
			Kind:   KindCarbon,
			Label:  "carbon",
			Delta:  delta,
			Reason: fmt.Sprintf("Low carbon footprint: score %s/100", formatNumber(carbon)),
		})
	}

	text := strings.ToLower(p.Name + " " + p.Description)
	var found []string
	for _, kw := range r.Keywords {
		if kw != "" && strings.Contains(text, kw) && !contains(found, kw) {
			found = append(found, kw)
		}
	}
	if len(found) > 0 {
		delta := float64(len(found)) * r.KeywordBonus
		score += delta
		contributions = append(contributions, Contribution{
			Kind:     KindKeywords,
			Label:    "keywords",
			Delta:    delta,
			Reason:   "Sustainable keywords found: " + strings.Join(found, ", "),
			Keywords: found,
		})
	}

	for _, category := range distinctFold(p.Categories) {
		bonus, ok := r.CategoryBonus[strings.ToLower(category)]
		if !ok {
			continue
		}
		delta := bonus * 100
		score += delta
		contributions = append(contributions, Contribution{
			Kind:   KindCategory,
			Label:  category,
			Delta:  delta,
			Reason: "Sustainable category: " + category,
		})
	}

	score = Round2(clamp(score, 0, 100))

	analysis := Analysis{
		ProductID:     p.ID,
		ProductName:   p.Name,
		Score:         score,
		IsSustainable: score >= r.SustainabilityThreshold,
		CarbonScore:   carbon,
		EcoTags:       append([]string(nil), p.EcoTags...),
		Categories:    append([]string(nil), p.Categories...),
		Contributions: contributions,
		AnalyzedAt:    s.now(),
	}

	s.logger.Debug("Product scored", map[string]interface{}{
		"productId":     p.ID,
		"score":         analysis.Score,
		"isSustainable": analysis.IsSustainable,
	})
	return analysis
}

// Analyze scores every product, keeping input order.
func (s *Scorer) Analyze(products []models.Product) []Scored {
	out := make([]Scored, 0, len(products))
	for _, p := range products {
		out = append(out, Scored{Product: p, Analysis: s.Score(p)})
	}
	return out
}

// FilterSustainable keeps the products whose score reaches the threshold,
// ordered by score descending. Ties keep input order.
func (s *Scorer) FilterSustainable(products []models.Product) []Scored {
	return KeepSustainable(s.Analyze(products))
}

// KeepSustainable filters already-scored products and stable-sorts them by
// score descending.
func KeepSustainable(scored []Scored) []Scored {
	out := make([]Scored, 0, len(scored))
	for _, sc := range scored {
		if sc.Analysis.IsSustainable {
			out = append(out, sc)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Analysis.Score > out[j].Analysis.Score
	})
	return out
}

// Round2 rounds half away from zero to two decimals.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func distinctFold(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		key := strings.ToLower(strings.TrimSpace(v))
		if key == "" {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, v)
	}
	return out
}

func contains(values []string, needle string) bool {
	for _, v := range values {
		if v == needle {
			return true
		}
	}
	return false
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
