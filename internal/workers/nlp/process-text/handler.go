// Package processtext implements the process-text job worker: it turns a
// free-form banking command into a flow-specific SimplifiedResponse.
package processtext

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"banking-command-workers/internal/common/conversation"
	apperrors "banking-command-workers/internal/common/errors"
	"banking-command-workers/internal/common/logger"
	"banking-command-workers/internal/common/metrics"
	"banking-command-workers/internal/derivation/timerange"
	"banking-command-workers/internal/models"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/google/uuid"
)

const TaskType = "process-text"

type CommandExtractor interface {
	Extract(ctx context.Context, text string, previous *conversation.Turn) models.RawExtraction
}

// TurnStore is the slice of conversation.Store the worker needs.
type TurnStore interface {
	Last(ctx context.Context, userID string) (*conversation.Turn, error)
	Save(ctx context.Context, userID string, turn conversation.Turn) (conversation.Turn, error)
	Forget(ctx context.Context, userID string) error
}

// FlowRecorder counts routed commands per flow.
type FlowRecorder interface {
	RecordFlow(ctx context.Context, flow string)
}

type Handler struct {
	config     *Config
	extractor  CommandExtractor
	router     *Router
	store      TurnStore
	flows      FlowRecorder
	logger     logger.Logger
	errHandler *apperrors.ErrorHandler
}

// NewHandler accepts a nil store; conversation history is then skipped.
func NewHandler(config *Config, extractor CommandExtractor, router *Router, store TurnStore, log logger.Logger) *Handler {
	l := log.With(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:     config,
		extractor:  extractor,
		router:     router,
		store:      store,
		logger:     l,
		errHandler: apperrors.NewErrorHandler(l),
	}
}

// WithFlowRecorder reports every routed command to r as well as to the
// Prometheus counter.
func (h *Handler) WithFlowRecorder(r FlowRecorder) *Handler {
	h.flows = r
	return h
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
	text := strings.TrimSpace(input.Text)
	if text == "" {
		return nil, apperrors.NewInvalidInputError("text is required")
	}

	previous := h.previousTurn(ctx, input)
	extraction := h.extractor.Extract(ctx, text, previous)
	if extraction.Failed() {
		metrics.ExtractionFailures.Inc()
		fields := map[string]interface{}{
			"userId": input.UserID,
			"error":  extraction.Error,
		}
		if cause, ok := apperrors.AsStandardError(extraction.Cause); ok {
			fields["code"] = string(cause.Code)
			fields["retryable"] = cause.Retryable
		}
		h.logger.Warn("extraction failed", fields)
	}

	resp, err := h.router.Route(extraction, text, input.UserID)
	if err != nil {
		if errors.Is(err, timerange.ErrInvalidTemporalEntity) {
			err = apperrors.NewInvalidTemporalEntityError(err)
		}
		return nil, apperrors.NewCommandProcessingFailedError(err)
	}
	resp.RequestID = uuid.NewString()

	if unknown := resp.Entities.Unknown(resp.Flow); len(unknown) > 0 {
		h.logger.Debug("entities outside flow vocabulary", map[string]interface{}{
			"flow": string(resp.Flow),
			"keys": unknown,
		})
	}

	metrics.CommandsRouted.WithLabelValues(string(resp.Flow)).Inc()
	if h.flows != nil {
		h.flows.RecordFlow(ctx, string(resp.Flow))
	}
	h.logger.Info("command routed", map[string]interface{}{
		"requestId":     resp.RequestID,
		"flow":          string(resp.Flow),
		"moduleCode":    resp.ModuleCode,
		"submoduleCode": resp.SubmoduleCode,
	})

	h.saveTurn(ctx, input.UserID, text, resp)
	return &Output{Response: resp}, nil
}

// previousTurn clears the stored history when a new session starts.
func (h *Handler) previousTurn(ctx context.Context, input *Input) *conversation.Turn {
	if !h.historyEnabled(input.UserID) {
		return nil
	}
	if bool(input.IsNewSession) {
		if err := h.store.Forget(ctx, input.UserID); err != nil {
			h.logger.Warn("failed to clear conversation history", map[string]interface{}{
				"userId": input.UserID,
				"error":  err.Error(),
			})
		}
		return nil
	}
	turn, err := h.store.Last(ctx, input.UserID)
	if err != nil {
		h.logger.Warn("conversation history unavailable", map[string]interface{}{
			"userId": input.UserID,
			"error":  err.Error(),
		})
		return nil
	}
	return turn
}

func (h *Handler) saveTurn(ctx context.Context, userID, text string, resp models.SimplifiedResponse) {
	if !h.historyEnabled(userID) {
		return
	}
	summary, err := json.Marshal(resp)
	if err != nil {
		return
	}
	if _, err := h.store.Save(ctx, userID, conversation.Turn{RawText: text, Response: string(summary)}); err != nil {
		h.logger.Warn("failed to save conversation turn", map[string]interface{}{
			"userId": userID,
			"error":  err.Error(),
		})
	}
}

func (h *Handler) historyEnabled(userID string) bool {
	return h.config.UseConversation && h.store != nil && userID != ""
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
