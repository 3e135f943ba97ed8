package explain

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"

	"sustainable-advisor/internal/common/config"
	commonErrors "sustainable-advisor/internal/common/errors"
	"sustainable-advisor/internal/common/logger"
	"sustainable-advisor/internal/models"
)

var (
	ErrEmptyExplanation = errors.New("EMPTY_EXPLANATION")
	ErrMissingAPIKey    = errors.New("MISSING_API_KEY")
)

// Generator produces free-text explanations for a scored product.
type Generator interface {
	Explain(ctx context.Context, product models.Product, score float64) (string, error)
}

// Config tunes the language model call.
type Config struct {
	Provider    string
	BaseURL     string
	Model       string
	APIKey      string
	Timeout     time.Duration
	Temperature float64
	MaxTokens   int
}

func DefaultConfig() Config {
	return Config{
		Provider:    "none",
		Model:       "gpt-4o-mini",
		Timeout:     10 * time.Second,
		Temperature: 0.3,
		MaxTokens:   200,
	}
}

// ConfigFromSettings overlays non-zero settings on DefaultConfig.
func ConfigFromSettings(cfg config.ExplainConfig) Config {
	out := DefaultConfig()
	if cfg.Provider != "" {
		out.Provider = strings.ToLower(cfg.Provider)
	}
	out.BaseURL = cfg.BaseURL
	out.APIKey = cfg.APIKey
	if cfg.Model != "" {
		out.Model = cfg.Model
	}
	if cfg.Timeout > 0 {
		out.Timeout = config.GetDuration(cfg.Timeout)
	}
	if cfg.Temperature > 0 {
		out.Temperature = cfg.Temperature
	}
	if cfg.MaxTokens > 0 {
		out.MaxTokens = cfg.MaxTokens
	}
	return out
}

// LLMExplainer asks a langchaingo model for a short explanation.
type LLMExplainer struct {
	model  llms.Model
	cfg    Config
	logger logger.Logger
}

func NewLLMExplainer(model llms.Model, cfg Config, log logger.Logger) *LLMExplainer {
	return &LLMExplainer{
		model:  model,
		cfg:    cfg,
		logger: logger.ForComponent(log, "llm-explainer"),
	}
}

// NewOpenAIExplainer builds an explainer backed by any OpenAI-compatible
// chat endpoint.
func NewOpenAIExplainer(cfg Config, log logger.Logger) (*LLMExplainer, error) {
	if cfg.APIKey == "" {
		return nil, ErrMissingAPIKey
	}

	opts := []openai.Option{
		openai.WithModel(cfg.Model),
		openai.WithToken(cfg.APIKey),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
	}

	llm, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create openai client: %w", err)
	}
	return NewLLMExplainer(llm, cfg, log), nil
}

// NewFromConfig returns nil without error when no provider is configured.
func NewFromConfig(cfg Config, log logger.Logger) (Generator, error) {
	switch cfg.Provider {
	case "", "none":
		return nil, nil
	case "openai":
		e, err := NewOpenAIExplainer(cfg, log)
		if err != nil {
			return nil, err
		}
		return e, nil
	default:
		return nil, fmt.Errorf("unknown explanation provider %q", cfg.Provider)
	}
}

func (e *LLMExplainer) Explain(ctx context.Context, product models.Product, score float64) (string, error) {
	if e.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.cfg.Timeout)
		defer cancel()
	}

	opts := []llms.CallOption{llms.WithTemperature(e.cfg.Temperature)}
	if e.cfg.MaxTokens > 0 {
		opts = append(opts, llms.WithMaxTokens(e.cfg.MaxTokens))
	}

	text, err := llms.GenerateFromSinglePrompt(ctx, e.model, BuildPrompt(product, score), opts...)
	if err != nil {
		return "", commonErrors.NewExplanationFailedError(err)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", commonErrors.NewExplanationFailedError(ErrEmptyExplanation)
	}
	return text, nil
}

// BuildPrompt is the single prompt sent to the model.
func BuildPrompt(product models.Product, score float64) string {
	name := product.Name
	if name == "" {
		name = "this product"
	}

	parts := []string{
		fmt.Sprintf("Explain why %s has a sustainability score of %s/100.", name, formatScore(score)),
	}
	if product.Description != "" {
		parts = append(parts, fmt.Sprintf("Context: %s", product.Description))
	}
	if len(product.EcoTags) > 0 {
		parts = append(parts, fmt.Sprintf("Eco tags: %s", strings.Join(product.EcoTags, ", ")))
	}
	if product.CarbonScore != nil {
		parts = append(parts, fmt.Sprintf("Carbon footprint score: %s/100 (lower is better)", formatScore(*product.CarbonScore)))
	}
	parts = append(parts, "Provide a concise explanation focusing on environmental benefits and sustainability factors.")
	return strings.Join(parts, "\n")
}

// Template is the explanation used when no model is available.
func Template(score float64) string {
	return fmt.Sprintf("This product scores %s/100 for sustainability based on eco-friendly features and materials.", formatScore(score))
}

func formatScore(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
