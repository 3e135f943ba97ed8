package ranking

import (
	"sort"
	"strings"

	"sustainable-advisor/internal/common/config"
)

// Factor names one scoring component.
type Factor string

const (
	FactorSustainability Factor = "sustainability"
	FactorPromotion      Factor = "promotion"
	FactorPreference     Factor = "preference"
	FactorPopularity     Factor = "popularity"
	FactorTrend          Factor = "trend"
	FactorPrice          Factor = "price"
	FactorAvailability   Factor = "availability"
)

// CrossServiceFactors is the canonical component set used by Rank.
var CrossServiceFactors = []Factor{
	FactorSustainability, FactorPromotion, FactorPreference, FactorPopularity, FactorTrend,
}

// Weights maps a factor to its weight. A factor without a weight contributes 0.
type Weights map[Factor]float64

// CrossServiceWeights is the default table of the canonical profile.
func CrossServiceWeights() Weights {
	return Weights{
		FactorSustainability: 0.40,
		FactorPromotion:      0.25,
		FactorPreference:     0.20,
		FactorPopularity:     0.10,
		FactorTrend:          0.05,
	}
}

// DirectWeights is the default table of the direct preset.
func DirectWeights() Weights {
	return Weights{
		FactorSustainability: 0.4,
		FactorPrice:          0.3,
		FactorPopularity:     0.2,
		FactorAvailability:   0.1,
	}
}

// DefaultFactors are used by RankByFactors when the caller names none.
func DefaultFactors() []Factor {
	return []Factor{FactorSustainability, FactorPrice, FactorPopularity}
}

// Merge returns a new table: overrides win key by key, absent keys keep the
// receiver's value. Keys are matched case-insensitively.
func (w Weights) Merge(overrides map[string]float64) Weights {
	out := make(Weights, len(w)+len(overrides))
	for f, v := range w {
		out[f] = v
	}
	for name, v := range overrides {
		out[ParseFactor(name)] = v
	}
	return out
}

// Get returns the weight of f, 0 when absent.
func (w Weights) Get(f Factor) float64 {
	return w[f]
}

// ToMap renders the table with plain string keys.
func (w Weights) ToMap() map[string]float64 {
	out := make(map[string]float64, len(w))
	for f, v := range w {
		out[string(f)] = v
	}
	return out
}

// Factors lists the factors of the table in name order.
func (w Weights) Factors() []Factor {
	out := make([]Factor, 0, len(w))
	for f := range w {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// ParseFactor normalises a factor name.
func ParseFactor(name string) Factor {
	return Factor(strings.ToLower(strings.TrimSpace(name)))
}

// Tier buckets a final score.
type Tier string

const (
	TierTop   Tier = "top"
	TierMid   Tier = "mid"
	TierLow   Tier = "low"
	TierBasic Tier = "basic"
)

// Config is the immutable ranking configuration.
type Config struct {
	Weights        Weights
	DirectWeights  Weights
	DefaultFactors []Factor
	TopTier        float64
	MidTier        float64
	LowTier        float64
	PrimaryCount   int
	Seed           int64
	Trends         []Trend
}

// DefaultConfig returns the built-in ranking configuration.
func DefaultConfig() Config {
	return Config{
		Weights:        CrossServiceWeights(),
		DirectWeights:  DirectWeights(),
		DefaultFactors: DefaultFactors(),
		TopTier:        85,
		MidTier:        70,
		LowTier:        50,
		PrimaryCount:   3,
		Trends:         DefaultTrends(),
	}
}

// ConfigFromSettings overlays loaded settings on the defaults.
func ConfigFromSettings(cfg config.RankingConfig) Config {
	c := DefaultConfig()
	c.Weights = c.Weights.Merge(cfg.Weights)
	c.DirectWeights = c.DirectWeights.Merge(cfg.DirectWeights)
	if len(cfg.DefaultFactors) > 0 {
		c.DefaultFactors = make([]Factor, 0, len(cfg.DefaultFactors))
		for _, f := range cfg.DefaultFactors {
			c.DefaultFactors = append(c.DefaultFactors, ParseFactor(f))
		}
	}
	if cfg.TopTier != 0 {
		c.TopTier = cfg.TopTier
	}
	if cfg.MidTier != 0 {
		c.MidTier = cfg.MidTier
	}
	if cfg.LowTier != 0 {
		c.LowTier = cfg.LowTier
	}
	if cfg.PrimaryCount != 0 {
		c.PrimaryCount = cfg.PrimaryCount
	}
	c.Seed = cfg.Seed
	return c
}

// TierFor buckets a score against the configured thresholds.
func (c Config) TierFor(score float64) Tier {
	switch {
	case score >= c.TopTier:
		return TierTop
	case score >= c.MidTier:
		return TierMid
	case score >= c.LowTier:
		return TierLow
	default:
		return TierBasic
	}
}
