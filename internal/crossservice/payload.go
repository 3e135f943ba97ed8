package crossservice

import (
	"fmt"
	"math"
	"time"

	"github.com/goccy/go-json"

	"sustainable-advisor/internal/common/validation"
	"sustainable-advisor/internal/models"
	"sustainable-advisor/internal/sustainability"
)

// ProductPayload is the minimal product view sent to the collaborator.
type ProductPayload struct {
	ID                  string   `json:"id"`
	Name                string   `json:"name"`
	Description         string   `json:"description"`
	Categories          []string `json:"categories"`
	Price               float64  `json:"price_usd"`
	SustainabilityScore float64  `json:"sustainability_score"`
	EcoTags             []string `json:"eco_tags"`
	CarbonScore         float64  `json:"carbon_score"`
}

// CarbonRange is the min/max carbon score of a request.
type CarbonRange struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// SustainabilityContext summarises the products of a request.
type SustainabilityContext struct {
	AverageScore float64     `json:"avg_sustainability_score"`
	HasEcoTags   bool        `json:"has_eco_tags"`
	CarbonRange  CarbonRange `json:"carbon_range"`
}

type RequestMetadata struct {
	Timestamp             string                `json:"timestamp"`
	TotalProducts         int                   `json:"total_products"`
	AgentID               string                `json:"agent_id"`
	RequestType           string                `json:"request_type"`
	SustainabilityContext SustainabilityContext `json:"sustainability_context"`
}

// RankRequest is the body posted to the ranking collaborator.
type RankRequest struct {
	Products        []ProductPayload    `json:"products"`
	UserPreferences *models.Preferences `json:"user_preferences"`
	RequestMetadata RequestMetadata     `json:"request_metadata"`
}

// BuildRequest derives the collaborator payload from scored products.
func BuildRequest(scored []sustainability.Scored, prefs *models.Preferences, agentID, requestType string, now time.Time) RankRequest {
	req := RankRequest{
		Products:        make([]ProductPayload, 0, len(scored)),
		UserPreferences: prefs,
		RequestMetadata: RequestMetadata{
			Timestamp:     now.UTC().Format(time.RFC3339),
			TotalProducts: len(scored),
			AgentID:       agentID,
			RequestType:   requestType,
		},
	}
	if req.UserPreferences == nil {
		req.UserPreferences = &models.Preferences{}
	}

	var sum float64
	minCarbon, maxCarbon := math.Inf(1), math.Inf(-1)
	for _, s := range scored {
		p := s.Product
		carbon := p.Carbon()
		req.Products = append(req.Products, ProductPayload{
			ID:                  p.ID,
			Name:                p.Name,
			Description:         p.Description,
			Categories:          nonNil(p.Categories),
			Price:               p.Price.Float64(),
			SustainabilityScore: s.Analysis.Score,
			EcoTags:             nonNil(p.EcoTags),
			CarbonScore:         carbon,
		})
		sum += s.Analysis.Score
		minCarbon = math.Min(minCarbon, carbon)
		maxCarbon = math.Max(maxCarbon, carbon)
		if len(p.EcoTags) > 0 {
			req.RequestMetadata.SustainabilityContext.HasEcoTags = true
		}
	}

	if n := len(scored); n > 0 {
		req.RequestMetadata.SustainabilityContext.AverageScore = sustainability.Round2(sum / float64(n))
		req.RequestMetadata.SustainabilityContext.CarbonRange = CarbonRange{Min: minCarbon, Max: maxCarbon}
	}
	return req
}

// Candidates turns a decoded request back into products and scores.
func (r RankRequest) Candidates() ([]models.Product, []float64) {
	products := make([]models.Product, 0, len(r.Products))
	scores := make([]float64, 0, len(r.Products))
	for _, p := range r.Products {
		products = append(products, models.Product{
			ID:          p.ID,
			Name:        p.Name,
			Description: p.Description,
			Price:       models.Price(p.Price),
			Categories:  p.Categories,
			EcoTags:     p.EcoTags,
			CarbonScore: models.Float64Ptr(p.CarbonScore),
		})
		scores = append(scores, p.SustainabilityScore)
	}
	return products, scores
}

// ParseResponse accepts a flat list of ranked products or an object carrying
// them under ranked_products or products. Anything else is malformed.
func ParseResponse(body []byte) ([]map[string]interface{}, error) {
	if err := validation.ValidateRankResponse(body); err != nil {
		return nil, err
	}

	var raw interface{}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("decode ranking response: %w", err)
	}

	var list []interface{}
	switch v := raw.(type) {
	case []interface{}:
		list = v
	case map[string]interface{}:
		if rp, ok := v["ranked_products"].([]interface{}); ok {
			list = rp
		} else if p, ok := v["products"].([]interface{}); ok {
			list = p
		} else {
			return nil, fmt.Errorf("response object carries no ranked_products or products list")
		}
	default:
		return nil, fmt.Errorf("unexpected response type %T", raw)
	}

	items := make([]map[string]interface{}, 0, len(list))
	for i, it := range list {
		m, ok := it.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("item %d is %T, not an object", i, it)
		}
		items = append(items, m)
	}
	return items, nil
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
