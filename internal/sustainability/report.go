package sustainability

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Describe renders a multi-line, human-readable explanation of an analysis.
func Describe(a Analysis) string {
	var b strings.Builder

	name := a.ProductName
	if name == "" {
		name = a.ProductID
	}
	fmt.Fprintf(&b, "%s\n", name)
	fmt.Fprintf(&b, "Sustainability score: %s/100 (grade %s)\n\n", formatNumber(a.Score), Grade(a.Score))

	if len(a.Contributions) > 0 {
		b.WriteString("Why this product is sustainable:\n")
		for _, c := range a.Contributions {
			fmt.Fprintf(&b, "- %s\n", c.Reason)
		}
	} else {
		b.WriteString("No sustainability rule matched this product.\n")
	}

	fmt.Fprintf(&b, "\nCarbon footprint: %s/100 (lower is better)\n", formatNumber(a.CarbonScore))
	if len(a.EcoTags) > 0 {
		fmt.Fprintf(&b, "Eco tags: %s\n", strings.Join(a.EcoTags, ", "))
	}
	fmt.Fprintf(&b, "Analyzed at: %s", a.AnalyzedAt.Format(time.RFC3339))
	return b.String()
}

// Grade maps a score onto a letter grade.
func Grade(score float64) string {
	switch {
	case score >= 90:
		return "A+"
	case score >= 80:
		return "A"
	case score >= 70:
		return "B"
	case score >= 60:
		return "C"
	case score >= 50:
		return "D"
	default:
		return "F"
	}
}

// TagCount is an eco tag with the number of sustainable products carrying it.
type TagCount struct {
	Tag   string `json:"tag"`
	Count int    `json:"count"`
}

// CarbonDistribution buckets sustainable products by carbon score.
type CarbonDistribution struct {
	Excellent int `json:"excellent"` // < 30
	Good      int `json:"good"`      // 30-49
	Fair      int `json:"fair"`      // 50-69
	Poor      int `json:"poor"`      // >= 70
}

// Stats summarises a catalog snapshot.
type Stats struct {
	TotalSustainable   int                `json:"total_sustainable_products"`
	TotalAnalyzed      int                `json:"total_products_analyzed"`
	SustainabilityRate float64            `json:"sustainability_rate"`
	AverageScore       float64            `json:"average_sustainability_score"`
	TopEcoTags         []TagCount         `json:"top_eco_tags"`
	CarbonDistribution CarbonDistribution `json:"carbon_score_distribution"`
	GeneratedAt        time.Time          `json:"generated_at"`
}

const topTagLimit = 5

// ComputeStats derives catalog statistics from every analysis of a snapshot.
// Averages, tag counts and the carbon distribution cover sustainable products
// only; the rate is sustainable over analysed.
func ComputeStats(analyses []Analysis, now time.Time) Stats {
	stats := Stats{
		TotalAnalyzed: len(analyses),
		TopEcoTags:    []TagCount{},
		GeneratedAt:   now,
	}

	var scoreSum float64
	counts := make(map[string]int)
	var order []string

	for _, a := range analyses {
		if !a.IsSustainable {
			continue
		}
		stats.TotalSustainable++
		scoreSum += a.Score

		for _, tag := range a.EcoTags {
			if _, seen := counts[tag]; !seen {
				order = append(order, tag)
			}
			counts[tag]++
		}

		switch c := a.CarbonScore; {
		case c < 30:
			stats.CarbonDistribution.Excellent++
		case c < 50:
			stats.CarbonDistribution.Good++
		case c < 70:
			stats.CarbonDistribution.Fair++
		default:
			stats.CarbonDistribution.Poor++
		}
	}

	if stats.TotalSustainable == 0 {
		return stats
	}

	stats.SustainabilityRate = Round2(float64(stats.TotalSustainable) / float64(stats.TotalAnalyzed) * 100)
	stats.AverageScore = Round2(scoreSum / float64(stats.TotalSustainable))

	sort.SliceStable(order, func(i, j int) bool { return counts[order[i]] > counts[order[j]] })
	if len(order) > topTagLimit {
		order = order[:topTagLimit]
	}
	for _, tag := range order {
		stats.TopEcoTags = append(stats.TopEcoTags, TagCount{Tag: tag, Count: counts[tag]})
	}
	return stats
}
