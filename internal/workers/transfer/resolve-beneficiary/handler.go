// Package resolvebeneficiary implements the resolve-beneficiary job worker.
// It turns the beneficiary name of a TRANSFER command into a saved
// beneficiary, or into a question for the user when that is ambiguous.
package resolvebeneficiary

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	apperrors "banking-command-workers/internal/common/errors"
	"banking-command-workers/internal/common/logger"
	"banking-command-workers/internal/common/metrics"
	"banking-command-workers/internal/models"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const TaskType = "resolve-beneficiary"

// lookup results, used as metric labels
const (
	resultSkipped  = "skipped"
	resultNone     = "none"
	resultSingle   = "single"
	resultMultiple = "multiple"
)

type Handler struct {
	config     *Config
	searcher   Searcher
	logger     logger.Logger
	errHandler *apperrors.ErrorHandler
}

func NewHandler(config *Config, searcher Searcher, log logger.Logger) *Handler {
	l := log.With(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:     config,
		searcher:   searcher,
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
	if strings.TrimSpace(input.UserID) == "" {
		return nil, apperrors.NewInvalidInputError("userId is required")
	}

	ents := input.Entities.Clone()
	out := &Output{Matches: []Match{}, Entities: ents}

	name := strings.TrimSpace(ents.Text(models.EntityBeneficiaryName))
	if name == "" {
		name = strings.TrimSpace(ents.Text(models.EntityRecipientName))
	}
	if name == "" {
		metrics.BeneficiaryLookups.WithLabelValues(resultSkipped).Inc()
		out.Question = "Who would you like to send the money to?"
		return out, nil
	}

	matches, err := h.searcher.Search(ctx, input.UserID, name)
	if err != nil {
		return nil, apperrors.NewBeneficiarySearchFailedError(err)
	}
	out.Matches = matches

	switch len(matches) {
	case 0:
		metrics.BeneficiaryLookups.WithLabelValues(resultNone).Inc()
		out.Question = fmt.Sprintf("I couldn't find a saved beneficiary named %q. Please check the name or add them as a beneficiary first.", name)
	case 1:
		metrics.BeneficiaryLookups.WithLabelValues(resultSingle).Inc()
		out.IsResolved = true
		ents[models.EntityBeneficiaryID] = matches[0].BeneficiaryID
		ents[models.EntityBeneficiaryName] = matches[0].Name
	default:
		metrics.BeneficiaryLookups.WithLabelValues(resultMultiple).Inc()
		out.Question = clarification(name, matches)
	}

	h.logger.Info("beneficiary lookup finished", map[string]interface{}{
		"userId":     input.UserID,
		"matches":    len(matches),
		"isResolved": out.IsResolved,
	})
	return out, nil
}

func clarification(name string, matches []Match) string {
	names := make([]string, len(matches))
	for i, m := range matches {
		names[i] = m.Name
		if m.BankName != "" {
			names[i] += " (" + m.BankName + ")"
		}
	}
	return fmt.Sprintf("I found several beneficiaries matching %q: %s. Which one did you mean?", name, strings.Join(names, ", "))
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
