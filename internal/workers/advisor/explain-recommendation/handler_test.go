// internal/workers/advisor/explain-recommendation/handler_test.go
package explainrecommendation

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	commonErrors "sustainable-advisor/internal/common/errors"
	"sustainable-advisor/internal/common/logger"
	"sustainable-advisor/internal/explain"
	"sustainable-advisor/internal/models"
	"sustainable-advisor/internal/sustainability"
)

// ==========================
// Test Helper Functions
// ==========================

type stubGenerator struct {
	text string
	err  error
}

func (s stubGenerator) Explain(context.Context, models.Product, float64) (string, error) {
	return s.text, s.err
}

func createTestHandler(t *testing.T, generator explain.Generator) *Handler {
	t.Helper()
	log := logger.NewTestLogger(t)
	return NewHandler(
		&Config{Timeout: 3 * time.Second},
		sustainability.NewScorer(sustainability.DefaultRules(), log),
		explain.NewService(generator, log),
		log,
	)
}

func mug() *models.Product {
	return &models.Product{ID: "C", Name: "Mug", Price: 60, Categories: []string{"kitchen"}, CarbonScore: models.Float64Ptr(40)}
}

// ==========================
// Execute
// ==========================

func TestHandler_Execute(t *testing.T) {
	tests := []struct {
		name           string
		generator      explain.Generator
		input          *Input
		expectedScore  float64
		expectedGrade  string
		expectedSource string
		validateOutput func(t *testing.T, out *Output)
	}{
		{
			name:           "scores the product when no score is given",
			input:          &Input{Product: mug()},
			expectedScore:  80,
			expectedGrade:  "A",
			expectedSource: explain.SourceTemplate,
			validateOutput: func(t *testing.T, out *Output) {
				assert.Equal(t, "This product scores 80/100 for sustainability based on eco-friendly features and materials.", out.Explanation)
				assert.Equal(t, []string{"materials", "production_method", "environmental_impact"}, out.KeyFactors)
			},
		},
		{
			name:           "uses the supplied score",
			input:          &Input{Product: mug(), SustainabilityScore: models.Float64Ptr(42)},
			expectedScore:  42,
			expectedGrade:  "F",
			expectedSource: explain.SourceTemplate,
		},
		{
			name:           "generator text",
			generator:      stubGenerator{text: "Low carbon production and renewable material."},
			input:          &Input{Product: mug()},
			expectedScore:  80,
			expectedGrade:  "A",
			expectedSource: explain.SourceLLM,
			validateOutput: func(t *testing.T, out *Output) {
				assert.Equal(t, "Low carbon production and renewable material.", out.Explanation)
				assert.Equal(t, []string{"material", "production", "carbon", "renewable"}, out.KeyFactors)
			},
		},
		{
			name:           "generator failure falls back to the template",
			generator:      stubGenerator{err: errors.New("rate limited")},
			input:          &Input{Product: mug()},
			expectedScore:  80,
			expectedGrade:  "A",
			expectedSource: explain.SourceTemplate,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := createTestHandler(t, tt.generator)

			out, err := h.Execute(context.Background(), tt.input)

			require.NoError(t, err)
			assert.Equal(t, "C", out.ProductID)
			assert.Equal(t, tt.expectedScore, out.SustainabilityScore)
			assert.Equal(t, tt.expectedGrade, out.Grade)
			assert.Equal(t, tt.expectedSource, out.GeneratedBy)
			if tt.validateOutput != nil {
				tt.validateOutput(t, out)
			}
		})
	}
}

func TestHandler_Execute_InvalidInput(t *testing.T) {
	tests := []struct {
		name  string
		input *Input
	}{
		{name: "nil input", input: nil},
		{name: "missing product", input: &Input{}},
		{name: "score above range", input: &Input{Product: mug(), SustainabilityScore: models.Float64Ptr(101)}},
		{name: "negative score", input: &Input{Product: mug(), SustainabilityScore: models.Float64Ptr(-1)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := createTestHandler(t, nil).Execute(context.Background(), tt.input)

			assert.Nil(t, out)
			assert.True(t, commonErrors.HasCode(err, commonErrors.ErrCodeInvalidInput), "got %v", err)
		})
	}
}
