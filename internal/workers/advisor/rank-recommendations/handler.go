// internal/workers/advisor/rank-recommendations/handler.go
package rankrecommendations

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/goccy/go-json"

	commonErrors "sustainable-advisor/internal/common/errors"
	"sustainable-advisor/internal/common/logger"
	"sustainable-advisor/internal/common/metrics"
	"sustainable-advisor/internal/common/validation"
	"sustainable-advisor/internal/crossservice"
)

const (
	TaskType = "rank-recommendations"
)

var (
	ErrNilInput      = errors.New("input cannot be nil")
	ErrNegativeLimit = errors.New("limit must not be negative")
)

type Handler struct {
	config       *Config
	ranker       *crossservice.Ranker
	errorHandler *commonErrors.ErrorHandler
	logger       logger.Logger
}

func NewHandler(config *Config, ranker *crossservice.Ranker, log logger.Logger) *Handler {
	l := log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:       config,
		ranker:       ranker,
		errorHandler: commonErrors.NewErrorHandler(l),
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

// execute never fails once the input is valid: an unreachable collaborator
// ends in the fallback ordering, reported through RankingState.
func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	if input == nil {
		return nil, commonErrors.NewInvalidInputError(ErrNilInput.Error())
	}
	if input.Limit < 0 {
		return nil, commonErrors.NewInvalidInputError(ErrNegativeLimit.Error())
	}
	if input.UserPreferences != nil {
		if err := validation.ValidateStruct(input.UserPreferences); err != nil {
			return nil, commonErrors.NewInvalidInputError(err.Error())
		}
	}

	outcome := h.ranker.Rank(ctx, input.SustainableProducts, input.UserPreferences)

	products := outcome.Products
	limit := input.Limit
	if limit == 0 {
		limit = h.config.MaxItems
	}
	if limit > 0 && len(products) > limit {
		products = products[:limit]
	}

	rankedBy := crossservice.RankedByCollaborator
	if outcome.State == crossservice.StateFallback {
		rankedBy = crossservice.RankedByFallback
	}

	out := &Output{
		RankedProducts: products,
		RankingState:   outcome.State,
		Attempts:       outcome.Attempts,
		RankedBy:       rankedBy,
	}
	if outcome.LastError != nil {
		out.LastError = outcome.LastError.Error()
	}

	h.logger.Info("Ranking completed", map[string]interface{}{
		"inputCount":  len(input.SustainableProducts),
		"outputCount": len(products),
		"state":       string(outcome.State),
		"attempts":    outcome.Attempts,
		"durationMs":  outcome.Duration.Milliseconds(),
	})

	return out, nil
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
