// Package enrichanalytics implements the enrich-analytics job worker. It
// loads the aggregates behind an ANALYTICS response and attaches a
// validated chart configuration.
package enrichanalytics

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	apperrors "banking-command-workers/internal/common/errors"
	"banking-command-workers/internal/common/logger"
	"banking-command-workers/internal/common/metrics"
	"banking-command-workers/internal/derivation/visualization"
	"banking-command-workers/internal/models"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const (
	TaskType = "enrich-analytics"

	keyVisualization = "visualization"
)

type Handler struct {
	config     *Config
	repo       Repository
	builder    *visualization.Builder
	logger     logger.Logger
	errHandler *apperrors.ErrorHandler
}

func NewHandler(config *Config, repo Repository, builder *visualization.Builder, log logger.Logger) *Handler {
	l := log.With(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:     config,
		repo:       repo,
		builder:    builder,
		logger:     l,
		errHandler: apperrors.NewErrorHandler(l),
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	start := time.Now()
	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":      job.Key,
		"workflowKey": job.ProcessInstanceKey,
	})

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	var input Input
	if err := json.Unmarshal([]byte(job.Variables), &input); err != nil {
		h.fail(ctx, client, job, apperrors.NewInvalidInputError("parse input: "+err.Error()))
		return
	}

	output, err := h.Execute(ctx, &input)
	if err != nil {
		h.fail(ctx, client, job, err)
		return
	}

	h.completeJob(ctx, client, job, output)
	metrics.WorkerJobsCompleted.WithLabelValues(TaskType).Inc()
	metrics.WorkerJobDuration.WithLabelValues(TaskType).Observe(time.Since(start).Seconds())
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	resp := input.Response
	if resp.Flow != models.FlowAnalytics {
		return nil, apperrors.NewInvalidFlowError(string(models.FlowAnalytics), string(resp.Flow))
	}
	if strings.TrimSpace(input.UserID) == "" {
		return nil, apperrors.NewInvalidInputError("userId is required")
	}

	agg, err := h.repo.Load(ctx, input.UserID, resp.Filters)
	if err != nil {
		return nil, apperrors.NewAnalyticsQueryFailedError(err)
	}

	payload := agg.Payload()
	viz, reason := h.builder.Build(ctx, payload, resp.AnalyticsType, resp.VisualizationType, resp.RawText)
	if reason != "" {
		metrics.VisualizationFallbacks.WithLabelValues(viz.Type, reason).Inc()
		fields := map[string]interface{}{
			"requestId": resp.RequestID,
			"chartType": viz.Type,
			"reason":    reason,
		}
		// a missing generator is configuration, not a failed generation
		if reason != visualization.ReasonNoGenerator {
			genErr := apperrors.NewVisualizationGenerationFailedError(fmt.Errorf("%s chart: %s", viz.Type, reason))
			fields["code"] = string(genErr.Code)
			fields["error"] = genErr.Error()
		}
		h.logger.Warn("using fallback visualization", fields)
	}

	delete(payload, visualization.KeyData)
	payload[keyVisualization] = viz

	h.logger.Info("analytics enriched", map[string]interface{}{
		"requestId": resp.RequestID,
		"months":    len(agg.MonthlyTrends),
		"rows":      len(agg.Rows),
		"chartType": viz.Type,
	})
	return &Output{Analytics: payload}, nil
}

func (h *Handler) completeJob(ctx context.Context, client worker.JobClient, job entities.Job, output *Output) {
	cmd, err := client.NewCompleteJobCommand().
		JobKey(job.Key).
		VariablesFromObject(output)
	if err != nil {
		h.logger.Error("Failed to create complete job command", map[string]interface{}{
			"jobKey": job.Key,
			"error":  err.Error(),
		})
		return
	}

	if _, err := cmd.Send(ctx); err != nil {
		h.logger.Error("Failed to send complete job command", map[string]interface{}{
			"jobKey": job.Key,
			"error":  err.Error(),
		})
	}
}

func (h *Handler) fail(ctx context.Context, client worker.JobClient, job entities.Job, err error) {
	stdErr := apperrors.Normalize(err)
	metrics.WorkerJobsFailed.WithLabelValues(TaskType, string(stdErr.Code)).Inc()
	h.errHandler.HandleJobError(ctx, client, job, stdErr)
}
