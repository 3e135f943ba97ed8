// Package app wires the advisor components from configuration. It is shared
// by the binaries under cmd/.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/elastic/go-elasticsearch/v8"

	"sustainable-advisor/internal/advisor"
	"sustainable-advisor/internal/catalog"
	"sustainable-advisor/internal/common/config"
	"sustainable-advisor/internal/common/database"
	commonhttp "sustainable-advisor/internal/common/http"
	"sustainable-advisor/internal/common/logger"
	"sustainable-advisor/internal/common/observability"
	"sustainable-advisor/internal/crossservice"
	"sustainable-advisor/internal/explain"
	"sustainable-advisor/internal/promotion"
	"sustainable-advisor/internal/ranking"
	"sustainable-advisor/internal/sustainability"
)

// Components holds every built collaborator of the advisor pipeline.
type Components struct {
	Config     *config.Config
	Scorer     *sustainability.Scorer
	Promotions *promotion.Engine
	Engine     *ranking.Engine
	Transport  crossservice.Transport
	Ranker     *crossservice.Ranker
	Catalog    catalog.Provider
	Explainer  *explain.Service
	Advisor    *advisor.Service

	closers []func() error
	logger  logger.Logger
}

// Options tune how connections are established.
type Options struct {
	ConnectRetries int
	ConnectDelay   time.Duration
	Observability  *observability.Observability
}

func DefaultOptions() Options {
	return Options{
		ConnectRetries: 10,
		ConnectDelay:   2 * time.Second,
	}
}

// NewRankingEngine builds the ranking engine with its promotion table.
func NewRankingEngine(cfg *config.Config, log logger.Logger) *ranking.Engine {
	promotions := promotion.NewEngine(promotion.ConfigFromSettings(cfg.Promotions), log)
	return ranking.NewEngine(ranking.ConfigFromSettings(cfg.Ranking), promotions, log)
}

// Build connects the configured stores and assembles the pipeline. Only the
// stores named by the catalog config are dialled.
func Build(ctx context.Context, cfg *config.Config, log logger.Logger, opts Options) (*Components, error) {
	c := &Components{Config: cfg, logger: log}

	c.Scorer = sustainability.NewScorer(sustainability.RulesFromConfig(cfg.Scoring), log)
	c.Engine = NewRankingEngine(cfg, log)
	c.Promotions = c.Engine.Promotions()

	deps, err := c.connect(ctx, opts)
	if err != nil {
		c.Close()
		return nil, err
	}

	c.Catalog, err = catalog.NewFromConfig(cfg.Catalog, deps, log)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("catalog: %w", err)
	}

	c.Transport = NewTransport(cfg, c.Engine, log)
	rankerOpts := []crossservice.Option{}
	if opts.Observability != nil {
		rankerOpts = append(rankerOpts, crossservice.WithTracer(opts.Observability.Tracer()))
	}
	c.Ranker = crossservice.NewRanker(c.Transport, crossservice.ConfigFromSettings(cfg.CrossService), log, rankerOpts...)

	generator, err := explain.NewFromConfig(explain.ConfigFromSettings(cfg.Explain), log)
	if err != nil {
		log.Warn("Explanation generator unavailable, templates only", map[string]interface{}{
			"provider": cfg.Explain.Provider,
			"error":    err.Error(),
		})
		generator = nil
	}
	c.Explainer = explain.NewService(generator, log)

	c.Advisor = advisor.NewService(c.Catalog, c.Scorer, c.Engine, c.Ranker, c.Explainer, log)
	return c, nil
}

// NewTransport picks the in-process engine for mode "local" and the HTTP
// collaborator otherwise.
func NewTransport(cfg *config.Config, engine *ranking.Engine, log logger.Logger) crossservice.Transport {
	if cfg.CrossService.Mode == "local" {
		return crossservice.NewLocalTransport(engine)
	}
	tcfg := crossservice.HTTPTransportConfigFromSettings(cfg.CrossService)
	return crossservice.NewHTTPTransport(tcfg, commonhttp.NewClient(tcfg.Timeout), log)
}

func (c *Components) connect(ctx context.Context, opts Options) (catalog.Dependencies, error) {
	cfg := c.Config
	deps := catalog.Dependencies{
		HTTPClient: commonhttp.NewClient(config.GetDuration(cfg.Catalog.HTTP.Timeout)),
	}

	if cfg.Catalog.HasSource("postgres") {
		var pg *database.PostgresClient
		err := RetryWithBackoff(ctx, func() error {
			var err error
			pg, err = database.NewPostgres(cfg.Database.Postgres)
			if err != nil {
				return err
			}
			if err := pg.Ping(ctx); err != nil {
				_ = pg.Close()
				return err
			}
			return nil
		}, opts.ConnectRetries, opts.ConnectDelay, c.logger, "PostgreSQL connection")
		if err != nil {
			return deps, err
		}
		c.closers = append(c.closers, pg.Close)
		deps.Postgres = pg
		c.logger.Info("PostgreSQL connected", nil)
	}

	if cfg.Catalog.HasSource("elasticsearch") {
		var es *elasticsearch.Client
		err := RetryWithBackoff(ctx, func() error {
			var err error
			es, err = database.NewElasticsearch(cfg.Database.Elasticsearch)
			if err != nil {
				return err
			}
			return database.PingElasticsearch(ctx, es)
		}, opts.ConnectRetries, opts.ConnectDelay, c.logger, "Elasticsearch connection")
		if err != nil {
			return deps, err
		}
		deps.Elasticsearch = es
		c.logger.Info("Elasticsearch connected", nil)
	}

	if cfg.Catalog.Cache.Enabled {
		rdb := database.NewRedis(cfg.Database.Redis)
		c.closers = append(c.closers, rdb.Close)
		// An unreachable Redis only disables caching.
		if err := database.PingRedis(ctx, rdb); err != nil {
			c.logger.Warn("Redis unreachable, catalog cache will pass through", map[string]interface{}{
				"error": err.Error(),
			})
		}
		deps.Redis = rdb
	}

	return deps, nil
}

// Close releases every connection opened by Build.
func (c *Components) Close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](); err != nil {
			c.logger.Warn("Failed to close resource", map[string]interface{}{"error": err.Error()})
		}
	}
	c.closers = nil
}

// RetryWithBackoff runs operation up to maxRetries times, doubling the delay
// between attempts. The wait honours ctx.
func RetryWithBackoff(
	ctx context.Context,
	operation func() error,
	maxRetries int,
	initialDelay time.Duration,
	log logger.Logger,
	operationName string,
) error {
	if maxRetries < 1 {
		maxRetries = 1
	}

	var err error
	delay := initialDelay
	for i := 0; i < maxRetries; i++ {
		if err = operation(); err == nil {
			return nil
		}
		if i == maxRetries-1 {
			break
		}

		log.Warn(fmt.Sprintf("%s failed, retrying", operationName), map[string]interface{}{
			"error":       err.Error(),
			"attempt":     i + 1,
			"maxRetries":  maxRetries,
			"nextRetryIn": delay.String(),
		})

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return fmt.Errorf("%s interrupted: %w", operationName, ctx.Err())
		}
		delay *= 2
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}
