// internal/common/config/loader.go
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Load reads configs/config.yaml, merges config.<APP_ENVIRONMENT>.yaml on top,
// then applies environment overrides and defaults.
func Load() (*Config, error) {
	loadEnvFile()

	v := newViper()
	v.SetConfigName("config")
	v.AddConfigPath("./configs")
	v.AddConfigPath("../../configs")
	v.AddConfigPath(".")

	env := os.Getenv("APP_ENVIRONMENT")
	if env == "" {
		env = "development"
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading base config: %w", err)
		}
	}

	v.SetConfigName(fmt.Sprintf("config.%s", env))
	_ = v.MergeInConfig() // env overlay is optional

	return finish(v)
}

// LoadFromFile loads configuration from a specific file path.
func LoadFromFile(path string) (*Config, error) {
	loadEnvFile()

	v := newViper()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	return finish(v)
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	return v
}

func finish(v *viper.Viper) (*Config, error) {
	expandEnvVars(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&cfg)
	overrideEmptyConfig(&cfg)

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

func loadEnvFile() {
	candidates := []string{".env", "../.env", "../../.env", "../../../.env"}
	if rootDir := findProjectRoot(); rootDir != "" {
		candidates = append(candidates, filepath.Join(rootDir, ".env"))
	}

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			if err := godotenv.Load(path); err == nil {
				return
			}
		}
	}
}

// findProjectRoot walks up from the working directory looking for go.mod.
func findProjectRoot() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

func expandEnvVars(v *viper.Viper) {
	for _, key := range v.AllKeys() {
		strVal, ok := v.Get(key).(string)
		if !ok || !strings.Contains(strVal, "$") {
			continue
		}
		if expanded := os.ExpandEnv(strVal); expanded != strVal && expanded != "" {
			v.Set(key, expanded)
		}
	}
}

func overrideEmptyConfig(cfg *Config) {
	if cfg.Explain.APIKey == "" {
		if val := os.Getenv("OPENAI_API_KEY"); val != "" {
			cfg.Explain.APIKey = val
		}
	}
	if cfg.Database.Postgres.User == "" {
		if val := os.Getenv("DB_USER"); val != "" {
			cfg.Database.Postgres.User = val
		}
	}
	if cfg.Database.Postgres.Password == "" {
		if val := os.Getenv("DB_PASSWORD"); val != "" {
			cfg.Database.Postgres.Password = val
		}
	}
	if len(cfg.CrossService.Endpoints) == 0 {
		if val := os.Getenv("RECOMMENDER_AGENT_URL"); val != "" {
			cfg.CrossService.Endpoints = []string{val}
		}
	}
}

// applyDefaults fills in every optional field left at its zero value.
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "sustainable-advisor"
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}

	if cfg.Camunda.MaxJobsActive == 0 {
		cfg.Camunda.MaxJobsActive = 10
	}
	if cfg.Camunda.Timeout == 0 {
		cfg.Camunda.Timeout = 30000
	}
	if cfg.Camunda.RequestTimeout == 0 {
		cfg.Camunda.RequestTimeout = 30000
	}

	if cfg.Server.Address == "" {
		cfg.Server.Address = ":5001"
	}
	if cfg.Server.MetricsAddress == "" {
		cfg.Server.MetricsAddress = ":9090"
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 15000
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = 45000
	}

	if cfg.CrossService.Mode == "" {
		cfg.CrossService.Mode = "remote"
	}
	if len(cfg.CrossService.Endpoints) == 0 {
		cfg.CrossService.Endpoints = []string{"http://localhost:5001/rank"}
	}
	if cfg.CrossService.Timeout == 0 {
		cfg.CrossService.Timeout = 30000
	}
	if cfg.CrossService.MaxRetries == 0 {
		cfg.CrossService.MaxRetries = 3
	}
	if cfg.CrossService.RetryDelay == 0 {
		cfg.CrossService.RetryDelay = 1000
	}
	if cfg.CrossService.AgentID == "" {
		cfg.CrossService.AgentID = "sustainable_advisor_agent"
	}
	if cfg.CrossService.RequestType == "" {
		cfg.CrossService.RequestType = "sustainability_ranking"
	}
	if cfg.CrossService.UserAgent == "" {
		cfg.CrossService.UserAgent = "SustainableAdvisorAgent/1.0"
	}
	if cfg.CrossService.Breaker.MaxRequests == 0 {
		cfg.CrossService.Breaker.MaxRequests = 1
	}
	if cfg.CrossService.Breaker.Interval == 0 {
		cfg.CrossService.Breaker.Interval = 60000
	}
	if cfg.CrossService.Breaker.Timeout == 0 {
		cfg.CrossService.Breaker.Timeout = 30000
	}
	if cfg.CrossService.Breaker.FailureThreshold == 0 {
		cfg.CrossService.Breaker.FailureThreshold = 5
	}

	if len(cfg.Catalog.Sources) == 0 {
		cfg.Catalog.Sources = []string{"http", "file"}
	}
	if len(cfg.Catalog.HTTP.Endpoints) == 0 {
		cfg.Catalog.HTTP.Endpoints = []string{"/api/products", "/products", "/catalog", "/api/catalog"}
	}
	if cfg.Catalog.HTTP.Timeout == 0 {
		cfg.Catalog.HTTP.Timeout = 10000
	}
	if cfg.Catalog.HTTP.ProductMetaPath == "" {
		cfg.Catalog.HTTP.ProductMetaPath = "/product-meta/"
	}
	if cfg.Catalog.HTTP.MetaTimeout == 0 {
		cfg.Catalog.HTTP.MetaTimeout = 5000
	}
	if cfg.Catalog.FilePath == "" {
		cfg.Catalog.FilePath = "products.json"
	}
	if cfg.Catalog.Table == "" {
		cfg.Catalog.Table = "products"
	}
	if cfg.Catalog.Index == "" {
		cfg.Catalog.Index = "products"
	}
	if cfg.Catalog.Cache.Key == "" {
		cfg.Catalog.Cache.Key = "catalog:snapshot"
	}
	if cfg.Catalog.Cache.TTL == 0 {
		cfg.Catalog.Cache.TTL = 300000
	}

	if cfg.Explain.Provider == "" {
		cfg.Explain.Provider = "none"
	}
	if cfg.Explain.Model == "" {
		cfg.Explain.Model = "gpt-4o-mini"
	}
	if cfg.Explain.Timeout == 0 {
		cfg.Explain.Timeout = 10000
	}
	if cfg.Explain.MaxTokens == 0 {
		cfg.Explain.MaxTokens = 256
	}

	if cfg.Database.Postgres.Port == 0 {
		cfg.Database.Postgres.Port = 5432
	}
	if cfg.Database.Postgres.MaxConnections == 0 {
		cfg.Database.Postgres.MaxConnections = 25
	}
	if cfg.Database.Postgres.MaxIdle == 0 {
		cfg.Database.Postgres.MaxIdle = 5
	}
	if cfg.Database.Postgres.SSLMode == "" {
		cfg.Database.Postgres.SSLMode = "disable"
	}

	for key, worker := range cfg.Workers {
		if worker.MaxJobsActive == 0 {
			worker.MaxJobsActive = 5
		}
		if worker.Timeout == 0 {
			worker.Timeout = 30000
		}
		if worker.MaxRetries == 0 {
			worker.MaxRetries = 3
		}
		cfg.Workers[key] = worker
	}
}

// validateConfig only rejects settings that would make a configured
// component unusable.
func validateConfig(cfg *Config) error {
	switch cfg.CrossService.Mode {
	case "remote", "local":
	default:
		return fmt.Errorf("cross_service.mode must be remote or local, got %q", cfg.CrossService.Mode)
	}
	if cfg.CrossService.MaxRetries < 0 {
		return fmt.Errorf("cross_service.max_retries must not be negative")
	}

	if cfg.Camunda.Enabled && cfg.Camunda.BrokerAddress == "" {
		return fmt.Errorf("camunda.broker_address is required when camunda is enabled")
	}
	if cfg.Catalog.HasSource("http") && cfg.Catalog.HTTP.BaseURL == "" {
		return fmt.Errorf("catalog.http.base_url is required for the http source")
	}
	if cfg.Catalog.HasSource("postgres") && cfg.Database.Postgres.Host == "" {
		return fmt.Errorf("database.postgres.host is required for the postgres source")
	}
	if cfg.Catalog.HasSource("elasticsearch") && len(cfg.Database.Elasticsearch.Addresses) == 0 {
		return fmt.Errorf("database.elasticsearch.addresses is required for the elasticsearch source")
	}
	if cfg.Catalog.Cache.Enabled && cfg.Database.Redis.Address == "" {
		return fmt.Errorf("database.redis.address is required when the catalog cache is enabled")
	}
	return nil
}

// GetDuration converts milliseconds from config to time.Duration
func GetDuration(milliseconds int) time.Duration {
	return time.Duration(milliseconds) * time.Millisecond
}

// GetWorkerConfig retrieves worker-specific configuration with fallback to defaults
func GetWorkerConfig(cfg *Config, workerName string) WorkerConfig {
	if worker, exists := cfg.Workers[workerName]; exists {
		return worker
	}
	return WorkerConfig{
		Enabled:       true,
		MaxJobsActive: 5,
		Timeout:       30000,
		MaxRetries:    3,
	}
}

// IsWorkerEnabled checks if a specific worker is enabled
func IsWorkerEnabled(cfg *Config, workerName string) bool {
	if worker, exists := cfg.Workers[workerName]; exists {
		return worker.Enabled
	}
	return true
}
