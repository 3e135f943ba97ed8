// internal/workers/advisor/explain-recommendation/handler.go
package explainrecommendation

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
	"sustainable-advisor/internal/explain"
	"sustainable-advisor/internal/sustainability"
)

const (
	TaskType = "explain-recommendation"
)

var (
	ErrMissingProduct = errors.New("product is required")
	ErrScoreRange     = errors.New("sustainabilityScore must be between 0 and 100")
)

type Handler struct {
	config       *Config
	scorer       *sustainability.Scorer
	explainer    *explain.Service
	errorHandler *commonErrors.ErrorHandler
	logger       logger.Logger
}

func NewHandler(config *Config, scorer *sustainability.Scorer, explainer *explain.Service, log logger.Logger) *Handler {
	l := log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:       config,
		scorer:       scorer,
		explainer:    explainer,
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

func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	if input == nil || input.Product == nil {
		return nil, commonErrors.NewInvalidInputError(ErrMissingProduct.Error())
	}

	var score float64
	if input.SustainabilityScore != nil {
		score = *input.SustainabilityScore
		if score < 0 || score > 100 {
			return nil, commonErrors.NewInvalidInputError(ErrScoreRange.Error())
		}
	} else {
		score = h.scorer.Score(*input.Product).Score
	}

	exp := h.explainer.Explain(ctx, *input.Product, score)

	h.logger.Debug("Explanation produced", map[string]interface{}{
		"productId": exp.ProductID,
		"source":    exp.Source,
	})

	return &Output{
		ProductID:           exp.ProductID,
		SustainabilityScore: exp.Score,
		Grade:               exp.Grade,
		Explanation:         exp.Text,
		KeyFactors:          exp.KeyFactors,
		GeneratedBy:         exp.Source,
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
