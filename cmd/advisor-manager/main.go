// cmd/advisor-manager/main.go
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"sustainable-advisor/internal/app"
	"sustainable-advisor/internal/common/camunda"
	"sustainable-advisor/internal/common/config"
	"sustainable-advisor/internal/common/logger"
	"sustainable-advisor/internal/common/observability"
	"sustainable-advisor/pkg/registry"

	as "sustainable-advisor/internal/workers/advisor/analyze-sustainability"
	er "sustainable-advisor/internal/workers/advisor/explain-recommendation"
	rr "sustainable-advisor/internal/workers/advisor/rank-recommendations"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		zap.NewExample().Fatal("config load failed", zap.Error(err))
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer func() { _ = zapLog.Sync() }()
	log := logger.NewZapAdapter(zapLog).WithFields(map[string]interface{}{"service": "advisor-manager"})

	log.Info("Starting advisor manager", map[string]interface{}{
		"version":     cfg.App.Version,
		"environment": cfg.App.Environment,
	})

	obs := observability.New("advisor-manager")
	defer obs.Shutdown()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts := app.DefaultOptions()
	opts.Observability = obs
	components, err := app.Build(ctx, cfg, log, opts)
	if err != nil {
		zapLog.Fatal("component wiring failed", zap.Error(err))
	}
	defer components.Close()

	// --- Zeebe client and workers ---
	var zeebe *camunda.Client
	var workers []*camunda.JobWorker

	if cfg.Camunda.Enabled {
		err = app.RetryWithBackoff(ctx, func() error {
			var err error
			zeebe, err = camunda.NewClientWithConfig(camunda.ClientConfigFromSettings(cfg.Camunda))
			return err
		}, opts.ConnectRetries, opts.ConnectDelay, log, "Zeebe client initialization")
		if err != nil {
			zapLog.Fatal("zeebe client failed after retries", zap.Error(err))
		}
		log.Info("Zeebe client connected", map[string]interface{}{"broker": cfg.Camunda.BrokerAddress})

		workers = registerWorkers(zeebe, cfg, components, obs, log)
		log.Info("Workers registered", map[string]interface{}{"count": len(workers)})
	} else {
		log.Warn("Camunda disabled, serving health and metrics only", nil)
	}

	// --- Health & Metrics Server ---
	server := &http.Server{
		Addr:              cfg.Server.MetricsAddress,
		Handler:           healthMux(zeebe),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		log.Info("Health/Metrics server listening", map[string]interface{}{"address": server.Addr})
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("Health/Metrics server failed", map[string]interface{}{"error": err.Error()})
		}
	}()

	// --- Graceful Shutdown ---
	<-ctx.Done()
	log.Info("Shutdown signal received, stopping workers", nil)

	for _, w := range workers {
		w.Stop()
	}
	if zeebe != nil {
		if err := zeebe.Close(); err != nil {
			log.Error("Error closing Zeebe client", map[string]interface{}{"error": err.Error()})
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("Health/Metrics server shutdown failed", map[string]interface{}{"error": err.Error()})
	}

	log.Info("Advisor manager stopped", nil)
}

func registerWorkers(
	zeebe *camunda.Client,
	cfg *config.Config,
	c *app.Components,
	obs *observability.Observability,
	log logger.Logger,
) []*camunda.JobWorker {
	client := zeebe.GetClient()
	activities := registry.Default()
	var started []*camunda.JobWorker

	// Explicit worker settings win over the registry timeout.
	timeoutFor := func(taskType string) time.Duration {
		wcfg := config.GetWorkerConfig(cfg, taskType)
		if _, ok := cfg.Workers[taskType]; ok {
			return config.GetDuration(wcfg.Timeout)
		}
		return activities.TimeoutFor(taskType, config.GetDuration(wcfg.Timeout))
	}

	start := func(taskType string, handler camunda.JobHandler) {
		activity, ok := activities.Find(taskType)
		if !ok {
			log.Warn("Task type missing from activity registry", map[string]interface{}{"taskType": taskType})
		}
		if w := camunda.StartWorker(client, taskType, config.GetWorkerConfig(cfg, taskType), handler, obs, log); w != nil {
			log.Debug("Activity bound", map[string]interface{}{
				"taskType": taskType,
				"activity": activity.DisplayName,
			})
			started = append(started, w)
		}
	}

	asCfg := as.LoadConfig()
	asCfg.Timeout = timeoutFor(as.TaskType)
	start(as.TaskType, as.NewHandler(asCfg, c.Scorer, c.Catalog, log))

	rrCfg := rr.LoadConfig()
	rrCfg.Timeout = timeoutFor(rr.TaskType)
	start(rr.TaskType, rr.NewHandler(rrCfg, c.Ranker, log))

	erCfg := er.LoadConfig()
	erCfg.Timeout = timeoutFor(er.TaskType)
	start(er.TaskType, er.NewHandler(erCfg, c.Scorer, c.Explainer, log))

	return started
}

func healthMux(zeebe *camunda.Client) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeStatus(w, http.StatusOK, "healthy")
	})
	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		if zeebe != nil {
			if err := zeebe.HealthCheck(r.Context()); err != nil {
				writeStatus(w, http.StatusServiceUnavailable, "zeebe unreachable")
				return
			}
		}
		writeStatus(w, http.StatusOK, "ready")
	})
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}

func writeStatus(w http.ResponseWriter, code int, status string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]string{"status": status})
}
