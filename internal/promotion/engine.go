// Package promotion decides which discount, if any, applies to a product.
package promotion

import (
	"sort"
	"strings"

	"sustainable-advisor/internal/common/config"
	"sustainable-advisor/internal/common/logger"
	"sustainable-advisor/internal/models"
	"sustainable-advisor/internal/sustainability"
)

// Strategy selects the rule used for products without an active promotion.
type Strategy string

const (
	StrategyNone                  Strategy = ""
	StrategySustainabilityFocused Strategy = "sustainability_focused"
	StrategyPriceCompetitive      Strategy = "price_competitive"
)

// ParseStrategy normalises a strategy name. Unknown names are returned as-is
// and evaluate to "no promotion".
func ParseStrategy(s string) Strategy {
	return Strategy(strings.ToLower(strings.TrimSpace(s)))
}

const noPromotionReason = "No promotion applicable"

// Source tells where a granted promotion came from.
type Source string

const (
	SourceNone     Source = ""
	SourceActive   Source = "active"
	SourceStrategy Source = "strategy"
)

// Active is a pre-configured promotion for one product id.
type Active struct {
	ProductID string  `json:"product_id"`
	Discount  float64 `json:"discount"`
	Reason    string  `json:"reason"`
}

// Config holds the promotion table and strategy thresholds.
type Config struct {
	Active                   []Active
	SustainabilityMinScore   float64
	SustainabilityDiscount   float64
	PriceCompetitiveMinPrice float64
	PriceCompetitiveDiscount float64
}

// DefaultConfig returns the built-in promotion table.
func DefaultConfig() Config {
	return Config{
		Active: []Active{
			{ProductID: "0PUK6V6EV0", Discount: 0.20, Reason: "Featured handmade product"},
			{ProductID: "9SIQT8TOJO", Discount: 0.15, Reason: "Eco-friendly week special"},
			{ProductID: "6E92ZMYYFZ", Discount: 0.10, Reason: "Kitchen essentials discount"},
			{ProductID: "L9ECAV7KIM", Discount: 0.25, Reason: "Fashion summer sale"},
			{ProductID: "2ZYFJ3GM2N", Discount: 0.12, Reason: "Beauty & care promotion"},
		},
		SustainabilityMinScore:   70,
		SustainabilityDiscount:   0.15,
		PriceCompetitiveMinPrice: 50,
		PriceCompetitiveDiscount: 0.10,
	}
}

// ConfigFromSettings overlays loaded settings on the defaults. A configured
// active list replaces the built-in table.
func ConfigFromSettings(cfg config.PromotionsConfig) Config {
	c := DefaultConfig()
	if len(cfg.Active) > 0 {
		c.Active = make([]Active, 0, len(cfg.Active))
		for _, a := range cfg.Active {
			c.Active = append(c.Active, Active{ProductID: a.ProductID, Discount: a.Discount, Reason: a.Reason})
		}
	}
	if cfg.SustainabilityMinScore != 0 {
		c.SustainabilityMinScore = cfg.SustainabilityMinScore
	}
	if cfg.SustainabilityDiscount != 0 {
		c.SustainabilityDiscount = cfg.SustainabilityDiscount
	}
	if cfg.PriceCompetitiveMinPrice != 0 {
		c.PriceCompetitiveMinPrice = cfg.PriceCompetitiveMinPrice
	}
	if cfg.PriceCompetitiveDiscount != 0 {
		c.PriceCompetitiveDiscount = cfg.PriceCompetitiveDiscount
	}
	return c
}

// Evaluation is the outcome of evaluating one product.
type Evaluation struct {
	ProductID        string  `json:"product_id"`
	HasPromotion     bool    `json:"has_promotion"`
	DiscountFraction float64 `json:"discount_fraction"`
	DiscountPercent  float64 `json:"discount_percent"`
	OriginalPrice    float64 `json:"original_price"`
	DiscountAmount   float64 `json:"discount_amount"`
	DiscountedPrice  float64 `json:"discounted_price"`
	Reason           string  `json:"reason"`
	Source           Source  `json:"source,omitempty"`
}

// Engine evaluates promotions. It is read-only after construction.
type Engine struct {
	cfg    Config
	active map[string]Active
	logger logger.Logger
}

func NewEngine(cfg Config, log logger.Logger) *Engine {
	active := make(map[string]Active, len(cfg.Active))
	for _, a := range cfg.Active {
		active[a.ProductID] = a
	}
	cfg.Active = append([]Active(nil), cfg.Active...)
	return &Engine{
		cfg:    cfg,
		active: active,
		logger: logger.ForComponent(log, "promotion-engine"),
	}
}

// Evaluate applies the active table first; without an active promotion the
// strategy rule decides. Unknown strategies grant nothing.
func (e *Engine) Evaluate(p models.Product, score float64, strategy Strategy) Evaluation {
	price := p.Price.Float64()

	if a, ok := e.active[p.ID]; ok {
		return newEvaluation(p.ID, price, a.Discount, a.Reason, SourceActive)
	}

	switch strategy {
	case StrategySustainabilityFocused:
		if score >= e.cfg.SustainabilityMinScore {
			return newEvaluation(p.ID, price, e.cfg.SustainabilityDiscount, "Sustainable product discount", SourceStrategy)
		}
	case StrategyPriceCompetitive:
		if price > e.cfg.PriceCompetitiveMinPrice {
			return newEvaluation(p.ID, price, e.cfg.PriceCompetitiveDiscount, "Price competitive discount", SourceStrategy)
		}
	case StrategyNone:
	default:
		e.logger.Debug("Unknown promotion strategy, no promotion applied", map[string]interface{}{
			"strategy":  string(strategy),
			"productId": p.ID,
		})
	}

	return Evaluation{
		ProductID:       p.ID,
		OriginalPrice:   price,
		DiscountedPrice: sustainability.Round2(price),
		Reason:          noPromotionReason,
	}
}

// Lookup returns the active promotion for a product id.
func (e *Engine) Lookup(productID string) (Active, bool) {
	a, ok := e.active[productID]
	return a, ok
}

func newEvaluation(id string, price, fraction float64, reason string, source Source) Evaluation {
	amount := sustainability.Round2(price * fraction)
	return Evaluation{
		ProductID:        id,
		HasPromotion:     fraction > 0,
		DiscountFraction: fraction,
		DiscountPercent:  sustainability.Round2(fraction * 100),
		OriginalPrice:    price,
		DiscountAmount:   amount,
		DiscountedPrice:  sustainability.Round2(price - amount),
		Reason:           reason,
		Source:           source,
	}
}

// Item is a product with the sustainability score the strategies look at.
type Item struct {
	Product models.Product
	Score   float64
}

// BatchResult is the outcome of Apply.
type BatchResult struct {
	Evaluations        []Evaluation `json:"evaluations"`
	PromotedCount      int          `json:"promoted_count"`
	TotalDiscountValue float64      `json:"total_discount_value"`
}

// Apply evaluates every item with the same strategy.
func (e *Engine) Apply(items []Item, strategy Strategy) BatchResult {
	res := BatchResult{Evaluations: make([]Evaluation, 0, len(items))}
	for _, it := range items {
		ev := e.Evaluate(it.Product, it.Score, strategy)
		if ev.HasPromotion {
			res.PromotedCount++
			res.TotalDiscountValue += ev.DiscountAmount
		}
		res.Evaluations = append(res.Evaluations, ev)
	}
	res.TotalDiscountValue = sustainability.Round2(res.TotalDiscountValue)
	return res
}

// Summary describes the active promotion table.
type Summary struct {
	Promotions      []Active `json:"promotions"`
	Count           int      `json:"count"`
	MaxDiscount     float64  `json:"max_discount"`
	MinDiscount     float64  `json:"min_discount"`
	AverageDiscount float64  `json:"average_discount"`
}

// Summary lists active promotions ordered by product id.
func (e *Engine) Summary() Summary {
	list := append([]Active(nil), e.cfg.Active...)
	sort.Slice(list, func(i, j int) bool { return list[i].ProductID < list[j].ProductID })

	s := Summary{Promotions: list, Count: len(list)}
	if len(list) == 0 {
		return s
	}

	s.MinDiscount = list[0].Discount
	var sum float64
	for _, a := range list {
		sum += a.Discount
		if a.Discount > s.MaxDiscount {
			s.MaxDiscount = a.Discount
		}
		if a.Discount < s.MinDiscount {
			s.MinDiscount = a.Discount
		}
	}
	s.AverageDiscount = sustainability.Round2(sum/float64(len(list))*100) / 100
	return s
}
