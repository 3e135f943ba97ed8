// internal/common/config/config.go
package config

import "fmt"

// Config is the main application configuration struct.
type Config struct {
	App          AppConfig               `mapstructure:"app"`
	Logging      LoggingConfig           `mapstructure:"logging"`
	Scoring      ScoringConfig           `mapstructure:"scoring"`
	Ranking      RankingConfig           `mapstructure:"ranking"`
	Promotions   PromotionsConfig        `mapstructure:"promotions"`
	CrossService CrossServiceConfig      `mapstructure:"cross_service"`
	Catalog      CatalogConfig           `mapstructure:"catalog"`
	Explain      ExplainConfig           `mapstructure:"explain"`
	Database     DatabaseConfig          `mapstructure:"database"`
	Camunda      CamundaConfig           `mapstructure:"camunda"`
	Workers      map[string]WorkerConfig `mapstructure:"workers"`
	Server       ServerConfig            `mapstructure:"server"`
}

// --- Core App/Infrastructure Config ---
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type CamundaConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	BrokerAddress  string `mapstructure:"broker_address"`
	MaxJobsActive  int    `mapstructure:"max_jobs_active"`
	Timeout        int    `mapstructure:"timeout"`         // milliseconds
	RequestTimeout int    `mapstructure:"request_timeout"` // milliseconds
}

// WorkerConfig holds the core settings applicable to every worker.
type WorkerConfig struct {
	Enabled       bool `mapstructure:"enabled"`
	MaxJobsActive int  `mapstructure:"max_jobs_active"`
	Timeout       int  `mapstructure:"timeout"` // milliseconds
	MaxRetries    int  `mapstructure:"max_retries"`
}

// ServerConfig configures the HTTP listeners of the binaries.
type ServerConfig struct {
	Address        string `mapstructure:"address"`
	MetricsAddress string `mapstructure:"metrics_address"`
	ReadTimeout    int    `mapstructure:"read_timeout"`  // milliseconds
	WriteTimeout   int    `mapstructure:"write_timeout"` // milliseconds
}

// --- Domain Configuration ---

// ScoringConfig holds the sustainability rules. Zero values mean "use the
// built-in default".
type ScoringConfig struct {
	BaseScore               float64            `mapstructure:"base_score"`
	CarbonThreshold         float64            `mapstructure:"carbon_threshold"`
	SustainabilityThreshold float64            `mapstructure:"sustainability_threshold"`
	KeywordBonus            float64            `mapstructure:"keyword_bonus"`
	EcoCategories           map[string]float64 `mapstructure:"eco_categories"`
	Keywords                []string           `mapstructure:"keywords"`
	CategoryBonus           map[string]float64 `mapstructure:"category_bonus"`
}

// RankingConfig holds weight overrides and tiering for the ranking engine.
type RankingConfig struct {
	Weights        map[string]float64 `mapstructure:"weights"`
	DirectWeights  map[string]float64 `mapstructure:"direct_weights"`
	DefaultFactors []string           `mapstructure:"default_factors"`
	TopTier        float64            `mapstructure:"top_tier"`
	MidTier        float64            `mapstructure:"mid_tier"`
	LowTier        float64            `mapstructure:"low_tier"`
	PrimaryCount   int                `mapstructure:"primary_count"`
	Seed           int64              `mapstructure:"seed"`
}

// ActivePromotion is a pre-configured promotion for a single product id.
// Product ids are case-sensitive so they are kept in a list, not a map.
type ActivePromotion struct {
	ProductID string  `mapstructure:"product_id"`
	Discount  float64 `mapstructure:"discount"`
	Reason    string  `mapstructure:"reason"`
}

type PromotionsConfig struct {
	Strategy                 string            `mapstructure:"strategy"`
	Active                   []ActivePromotion `mapstructure:"active"`
	SustainabilityMinScore   float64           `mapstructure:"sustainability_min_score"`
	SustainabilityDiscount   float64           `mapstructure:"sustainability_discount"`
	PriceCompetitiveMinPrice float64           `mapstructure:"price_competitive_min_price"`
	PriceCompetitiveDiscount float64           `mapstructure:"price_competitive_discount"`
}

// BreakerConfig tunes the circuit breaker in front of the remote ranker.
type BreakerConfig struct {
	Enabled          bool   `mapstructure:"enabled"`
	MaxRequests      uint32 `mapstructure:"max_requests"`
	Interval         int    `mapstructure:"interval"` // milliseconds
	Timeout          int    `mapstructure:"timeout"`  // milliseconds
	FailureThreshold uint32 `mapstructure:"failure_threshold"`
}

// CrossServiceConfig configures the ranking collaborator.
type CrossServiceConfig struct {
	Mode        string        `mapstructure:"mode"` // "remote" or "local"
	Endpoints   []string      `mapstructure:"endpoints"`
	Timeout     int           `mapstructure:"timeout"` // milliseconds
	MaxRetries  int           `mapstructure:"max_retries"`
	RetryDelay  int           `mapstructure:"retry_delay"` // milliseconds
	AgentID     string        `mapstructure:"agent_id"`
	RequestType string        `mapstructure:"request_type"`
	UserAgent   string        `mapstructure:"user_agent"`
	Breaker     BreakerConfig `mapstructure:"breaker"`
}

type HTTPCatalogConfig struct {
	BaseURL         string   `mapstructure:"base_url"`
	Endpoints       []string `mapstructure:"endpoints"`
	Timeout         int      `mapstructure:"timeout"` // milliseconds
	ProductMetaPath string   `mapstructure:"product_meta_path"`
	MetaTimeout     int      `mapstructure:"meta_timeout"` // milliseconds
	KnownIDs        []string `mapstructure:"known_ids"`
}

type CatalogCacheConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Key     string `mapstructure:"key"`
	TTL     int    `mapstructure:"ttl"` // milliseconds
}

// CatalogConfig lists catalog sources in the order they are tried.
type CatalogConfig struct {
	Sources    []string           `mapstructure:"sources"`
	HTTP       HTTPCatalogConfig  `mapstructure:"http"`
	FilePath   string             `mapstructure:"file_path"`
	Table      string             `mapstructure:"table"`
	Index      string             `mapstructure:"index"`
	Cache      CatalogCacheConfig `mapstructure:"cache"`
	EnrichDemo bool               `mapstructure:"enrich_demo"`
}

// ExplainConfig configures the text-explanation collaborator.
type ExplainConfig struct {
	Provider    string  `mapstructure:"provider"` // "openai" or "none"
	BaseURL     string  `mapstructure:"base_url"`
	Model       string  `mapstructure:"model"`
	APIKey      string  `mapstructure:"api_key"`
	Timeout     int     `mapstructure:"timeout"` // milliseconds
	Temperature float64 `mapstructure:"temperature"`
	MaxTokens   int     `mapstructure:"max_tokens"`
}

type DatabaseConfig struct {
	Postgres      PostgresConfig      `mapstructure:"postgres"`
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
	Redis         RedisConfig         `mapstructure:"redis"`
}

type PostgresConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
	MaxIdle        int    `mapstructure:"max_idle"`
	SSLMode        string `mapstructure:"sslmode"`
}

// GetDSN returns the PostgreSQL connection string
func (p PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

type ElasticsearchConfig struct {
	Addresses []string `mapstructure:"addresses"`
	Username  string   `mapstructure:"username"`
	Password  string   `mapstructure:"password"`
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// HasSource reports whether a catalog source is configured.
func (c CatalogConfig) HasSource(name string) bool {
	for _, s := range c.Sources {
		if s == name {
			return true
		}
	}
	return false
}
