// internal/workers/advisor/analyze-sustainability/handler.go
package analyzesustainability

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/goccy/go-json"

	"sustainable-advisor/internal/catalog"
	commonErrors "sustainable-advisor/internal/common/errors"
	"sustainable-advisor/internal/common/logger"
	"sustainable-advisor/internal/common/metrics"
	"sustainable-advisor/internal/models"
	"sustainable-advisor/internal/sustainability"
)

const (
	TaskType = "analyze-sustainability"
)

var (
	ErrNilInput      = errors.New("input cannot be nil")
	ErrNoCatalog     = errors.New("no products supplied and no catalog configured")
	ErrNegativeLimit = errors.New("limit must not be negative")
)

type Handler struct {
	config       *Config
	scorer       *sustainability.Scorer
	catalog      catalog.Provider
	errorHandler *commonErrors.ErrorHandler
	now          func() time.Time
	logger       logger.Logger
}

// NewHandler builds the worker. provider may be nil when every job carries
// its own products.
func NewHandler(config *Config, scorer *sustainability.Scorer, provider catalog.Provider, log logger.Logger) *Handler {
	l := log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:       config,
		scorer:       scorer,
		catalog:      provider,
		errorHandler: commonErrors.NewErrorHandler(l),
		now:          time.Now,
		logger:       l,
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	start := time.Now()
	h.logger.Info("Processing job", map[string]interface{}{
		"jobKey":      job.Key,
		"workflowKey": job.ProcessInstanceKey,
	})

	var input Input
	if err := json.Unmarshal([]byte(job.Variables), &input); err != nil {
		h.failJob(client, job, commonErrors.NewInvalidInputError(fmt.Sprintf("parse input: %v", err)))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	output, err := h.execute(ctx, &input)
	if err != nil {
		h.failJob(client, job, err)
		return
	}

	h.completeJob(client, job, output)
	metrics.WorkerJobDuration.WithLabelValues(TaskType).Observe(time.Since(start).Seconds())
}

func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	if input == nil {
		return nil, commonErrors.NewInvalidInputError(ErrNilInput.Error())
	}
	if input.Limit < 0 {
		return nil, commonErrors.NewInvalidInputError(ErrNegativeLimit.Error())
	}

	products := input.Products
	if len(products) == 0 {
		if h.catalog == nil {
			return nil, commonErrors.NewInvalidInputError(ErrNoCatalog.Error())
		}
		loaded, err := h.catalog.GetProducts(ctx)
		if err != nil {
			h.logger.Warn("Catalog unavailable, analyzing an empty snapshot", map[string]interface{}{
				"provider": h.catalog.Name(),
				"error":    err.Error(),
			})
			loaded = []models.Product{}
		}
		products = loaded
	}

	analyzed := h.scorer.Analyze(products)
	sustainable := sustainability.KeepSustainable(analyzed)

	analyses := make([]sustainability.Analysis, 0, len(analyzed))
	for _, sc := range analyzed {
		analyses = append(analyses, sc.Analysis)
	}
	stats := sustainability.ComputeStats(analyses, h.now())

	limit := input.Limit
	if limit == 0 {
		limit = h.config.MaxItems
	}
	if limit > 0 && len(sustainable) > limit {
		sustainable = sustainable[:limit]
	}

	h.logger.Info("Sustainability analysis completed", map[string]interface{}{
		"analyzed":    len(analyzed),
		"sustainable": stats.TotalSustainable,
		"returned":    len(sustainable),
	})

	return &Output{
		SustainableProducts: sustainable,
		TotalAnalyzed:       len(analyzed),
		TotalSustainable:    stats.TotalSustainable,
		Stats:               stats,
	}, nil
}

func (h *Handler) completeJob(client worker.JobClient, job entities.Job, output *Output) {
	cmd, err := client.NewCompleteJobCommand().
		JobKey(job.Key).
		VariablesFromObject(output)
	if err != nil {
		h.logger.Error("Failed to create complete job command", map[string]interface{}{
			"error": err.Error(),
		})
		return
	}
	if _, err := cmd.Send(context.Background()); err != nil {
		h.logger.Error("Failed to send complete job command", map[string]interface{}{
			"error": err.Error(),
		})
		return
	}
	metrics.WorkerJobsCompleted.WithLabelValues(TaskType).Inc()
}

func (h *Handler) failJob(client worker.JobClient, job entities.Job, err error) {
	stdErr := commonErrors.Normalize(err)
	metrics.WorkerJobsFailed.WithLabelValues(TaskType, string(stdErr.Code)).Inc()
	h.errorHandler.HandleJobError(context.Background(), client, job, stdErr)
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}
