package crossservice

import (
	"time"

	"github.com/goccy/go-json"

	"sustainable-advisor/internal/models"
	"sustainable-advisor/internal/sustainability"
)

const (
	RankedByCollaborator = "RecommenderAgent"
	RankedByFallback     = "SustainableAdvisorAgent_Fallback"
	FallbackReason       = "RecommenderAgent_communication_failed"
)

// Provenance records who ranked a product and when.
type Provenance struct {
	RankedBy                    string    `json:"ranked_by"`
	RankingTimestamp            time.Time `json:"ranking_timestamp"`
	OriginalSustainabilityScore float64   `json:"original_sustainability_score"`
	FallbackReason              string    `json:"fallback_reason,omitempty"`
	FallbackRank                int       `json:"fallback_rank,omitempty"`
	LastError                   string    `json:"last_error,omitempty"`
}

// RankedProduct is an original product plus the ranking fields the
// collaborator (or the fallback) attached to it.
type RankedProduct struct {
	Product    models.Product
	Analysis   sustainability.Analysis
	Ranking    map[string]interface{}
	Provenance *Provenance
}

// Record merges product fields, ranking fields and provenance into one flat
// map. Ranking fields override product fields of the same name.
func (r RankedProduct) Record() map[string]interface{} {
	out := r.Product.Fields()
	out["sustainability_analysis"] = r.Analysis
	for k, v := range r.Ranking {
		out[k] = v
	}
	if p := r.Provenance; p != nil {
		out["ranked_by"] = p.RankedBy
		out["ranking_timestamp"] = p.RankingTimestamp.UTC().Format(time.RFC3339)
		out["original_sustainability_score"] = p.OriginalSustainabilityScore
		if p.FallbackReason != "" {
			out["fallback_reason"] = p.FallbackReason
			out["fallback_rank"] = p.FallbackRank
		}
		if p.LastError != "" {
			out["last_error"] = p.LastError
		}
	}
	return out
}

func (r RankedProduct) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.Record())
}

// IsFallback reports whether the product was ordered by the fallback path.
func (r RankedProduct) IsFallback() bool {
	return r.Provenance != nil && r.Provenance.FallbackReason != ""
}

// FinalScore returns the collaborator's final score, 0 when absent.
func (r RankedProduct) FinalScore() float64 {
	return r.number("final_score")
}

// DiscountPercent returns the discount attached by the collaborator or the
// fallback tiering.
func (r RankedProduct) DiscountPercent() float64 {
	return r.number("discount_percent")
}

// Reasons returns the recommendation reasons, if any were attached.
func (r RankedProduct) Reasons() []string {
	raw, ok := r.Ranking["recommendation_reasons"].([]interface{})
	if !ok {
		if s, ok := r.Ranking["recommendation_reasons"].([]string); ok {
			return s
		}
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func (r RankedProduct) number(key string) float64 {
	switch v := r.Ranking[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case json.Number:
		f, _ := v.Float64()
		return f
	default:
		return 0
	}
}

// Records flattens ranked products, keeping order.
func Records(products []RankedProduct) []map[string]interface{} {
	out := make([]map[string]interface{}, 0, len(products))
	for _, p := range products {
		out = append(out, p.Record())
	}
	return out
}
