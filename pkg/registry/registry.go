// pkg/registry/registry.go
package registry

import (
	"fmt"
	"os"
	"time"

	"github.com/goccy/go-json"
)

// LoadRegistry reads a registry file and validates it.
func LoadRegistry(path string) (*ActivityRegistry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var reg ActivityRegistry
	if err := json.Unmarshal(data, &reg); err != nil {
		return nil, fmt.Errorf("failed to parse registry %s: %w", path, err)
	}
	if err := reg.Validate(); err != nil {
		return nil, err
	}
	return &reg, nil
}

// Default is the registry of the advisor's built-in service tasks.
func Default() *ActivityRegistry {
	return &ActivityRegistry{
		Version:     "1.0.0",
		LastUpdated: "2025-03-14",
		Activities: []Activity{
			{
				ID:          "analyze-sustainability",
				DisplayName: "Analyze Sustainability",
				Description: "Score catalog products and keep the sustainable ones, best first.",
				Category:    "advisor",
				Version:     "1.0.0",
				TaskType:    "analyze-sustainability",
				Inputs:      []string{"products", "limit"},
				Outputs:     []string{"sustainableProducts", "totalAnalyzed", "totalSustainable", "stats"},
				ErrorCodes:  []string{"INVALID_INPUT", "CATALOG_UNAVAILABLE", "CATALOG_DECODE_FAILED"},
				Timeout:     "30s",
				Retries:     3,
				Tags:        []string{"scoring", "catalog"},
			},
			{
				ID:          "rank-recommendations",
				DisplayName: "Rank Recommendations",
				Description: "Rank sustainable products through the recommender, falling back to score order.",
				Category:    "advisor",
				Version:     "1.0.0",
				TaskType:    "rank-recommendations",
				Inputs:      []string{"sustainableProducts", "userPreferences", "limit"},
				Outputs:     []string{"rankedProducts", "rankingState", "attempts", "rankedBy", "lastError"},
				ErrorCodes:  []string{"INVALID_INPUT"},
				Timeout:     "60s",
				Retries:     3,
				Tags:        []string{"ranking", "cross-service"},
			},
			{
				ID:          "explain-recommendation",
				DisplayName: "Explain Recommendation",
				Description: "Write a short sustainability explanation for one product.",
				Category:    "advisor",
				Version:     "1.0.0",
				TaskType:    "explain-recommendation",
				Inputs:      []string{"product", "sustainabilityScore"},
				Outputs:     []string{"productId", "sustainabilityScore", "grade", "explanation", "keyFactors", "generatedBy"},
				ErrorCodes:  []string{"INVALID_INPUT"},
				Timeout:     "15s",
				Retries:     3,
				Tags:        []string{"explanation", "llm"},
			},
		},
	}
}

// Validate rejects activities without a task type, duplicated task types and
// unparsable timeouts.
func (r *ActivityRegistry) Validate() error {
	seen := make(map[string]bool, len(r.Activities))
	for i, a := range r.Activities {
		if a.TaskType == "" {
			return fmt.Errorf("activity %d (%s) has no taskType", i, a.ID)
		}
		if seen[a.TaskType] {
			return fmt.Errorf("duplicate taskType %q", a.TaskType)
		}
		seen[a.TaskType] = true
		if a.Timeout != "" {
			if _, err := time.ParseDuration(a.Timeout); err != nil {
				return fmt.Errorf("activity %s: invalid timeout %q: %w", a.TaskType, a.Timeout, err)
			}
		}
	}
	return nil
}

// Find returns the activity serving a task type.
func (r *ActivityRegistry) Find(taskType string) (Activity, bool) {
	for _, a := range r.Activities {
		if a.TaskType == taskType {
			return a, true
		}
	}
	return Activity{}, false
}

// TimeoutFor returns the activity timeout, or fallback when the task type is
// unknown or has none.
func (r *ActivityRegistry) TimeoutFor(taskType string, fallback time.Duration) time.Duration {
	a, ok := r.Find(taskType)
	if !ok || a.Timeout == "" {
		return fallback
	}
	d, err := time.ParseDuration(a.Timeout)
	if err != nil {
		return fallback
	}
	return d
}
