package catalog

import (
	"fmt"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/redis/go-redis/v9"

	"sustainable-advisor/internal/common/config"
	"sustainable-advisor/internal/common/database"
	commonhttp "sustainable-advisor/internal/common/http"
	"sustainable-advisor/internal/common/logger"
)

// Dependencies are the shared clients a configured catalog may need.
type Dependencies struct {
	HTTPClient    *commonhttp.Client
	Postgres      *database.PostgresClient
	Elasticsearch *elasticsearch.Client
	Redis         redis.UniversalClient
}

// NewFromConfig builds the provider chain in source order, optionally
// wrapped with demo enrichment and the Redis snapshot cache.
func NewFromConfig(cfg config.CatalogConfig, deps Dependencies, log logger.Logger) (Provider, error) {
	if len(cfg.Sources) == 0 {
		return nil, fmt.Errorf("no catalog sources configured")
	}

	providers := make([]Provider, 0, len(cfg.Sources))
	for _, source := range cfg.Sources {
		switch source {
		case "http":
			client := deps.HTTPClient
			if client == nil {
				client = commonhttp.NewClient(config.GetDuration(cfg.HTTP.Timeout))
			}
			providers = append(providers, NewHTTPProvider(cfg.HTTP, client, log))
		case "file":
			providers = append(providers, NewFileProvider(cfg.FilePath))
		case "postgres":
			if deps.Postgres == nil {
				return nil, fmt.Errorf("catalog source postgres requires a database connection")
			}
			p, err := NewPostgresProvider(deps.Postgres, cfg.Table)
			if err != nil {
				return nil, err
			}
			providers = append(providers, p)
		case "elasticsearch":
			if deps.Elasticsearch == nil {
				return nil, fmt.Errorf("catalog source elasticsearch requires a client")
			}
			providers = append(providers, NewElasticsearchProvider(deps.Elasticsearch, cfg.Index))
		default:
			return nil, fmt.Errorf("unknown catalog source %q", source)
		}
	}

	var provider Provider = NewChain(log, providers...)
	if cfg.EnrichDemo {
		provider = NewEnrichingProvider(provider)
	}
	if cfg.Cache.Enabled {
		if deps.Redis == nil {
			return nil, fmt.Errorf("catalog cache requires a redis client")
		}
		provider = NewCachedProvider(provider, deps.Redis, cfg.Cache.Key, config.GetDuration(cfg.Cache.TTL), log)
	}
	return provider, nil
}
