package processtext

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"banking-command-workers/internal/common/conversation"
	apperrors "banking-command-workers/internal/common/errors"
	"banking-command-workers/internal/common/genai"
	"banking-command-workers/internal/common/logger"
	"banking-command-workers/internal/derivation/timerange"
	"banking-command-workers/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type stubExtractor struct {
	mu        sync.Mutex
	result    models.RawExtraction
	previous  []*conversation.Turn
	callCount int
}

func (s *stubExtractor) Extract(_ context.Context, text string, previous *conversation.Turn) models.RawExtraction {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.callCount++
	s.previous = append(s.previous, previous)
	out := s.result
	out.RawText = text
	return out
}

func createTestConfig() *Config {
	return &Config{Timeout: 5 * time.Second, UseConversation: true}
}

func newTestStore(t *testing.T) *conversation.Store {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return conversation.NewStore(client, "", time.Minute)
}

func newTestHandler(t *testing.T, ext CommandExtractor, store TurnStore) *Handler {
	return NewHandler(createTestConfig(), ext, newTestRouter(), store, logger.NewTestLogger(t))
}

func TestInput_IsNewSessionAcceptsStrings(t *testing.T) {
	tests := []struct {
		raw  string
		want bool
	}{
		{`{"text": "hi", "isNewSession": true}`, true},
		{`{"text": "hi", "isNewSession": "true"}`, true},
		{`{"text": "hi", "isNewSession": "false"}`, false},
		{`{"text": "hi", "isNewSession": "maybe"}`, false},
		{`{"text": "hi"}`, false},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			var in Input
			require.NoError(t, json.Unmarshal([]byte(tt.raw), &in))
			assert.Equal(t, tt.want, bool(in.IsNewSession))
		})
	}
}

func TestHandler_Execute_Analytics(t *testing.T) {
	ext := &stubExtractor{result: analyticsExtraction("ANALYTICS_SPENDING", "", models.Entities{"year": "2024", "quarter": "Q1"})}
	h := newTestHandler(t, ext, nil)

	out, err := h.Execute(context.Background(), &Input{Text: "compare my spending for Q1 2024", UserID: "u1"})
	require.NoError(t, err)

	resp := out.Response
	assert.NotEmpty(t, resp.RequestID)
	assert.Equal(t, models.FlowAnalytics, resp.Flow)
	assert.Equal(t, "comparison_analysis", resp.AnalyticsType)
	assert.Equal(t, "2024-01-01", resp.Filters["startDate"])
	assert.Equal(t, "2024-03-31", resp.Filters["endDate"])
}

type flowLog []string

func (f *flowLog) RecordFlow(_ context.Context, flow string) { *f = append(*f, flow) }

func TestHandler_Execute_RecordsFlow(t *testing.T) {
	var flows flowLog
	ext := &stubExtractor{result: models.RawExtraction{Module: "ACC", SubModule: models.SubModule{SubmoduleCode: "ACC_BALANCE"}, Flow: models.FlowQuery}}
	h := newTestHandler(t, ext, nil).WithFlowRecorder(&flows)

	_, err := h.Execute(context.Background(), &Input{Text: "show my balance", UserID: "u1"})
	require.NoError(t, err)
	assert.Equal(t, flowLog{"QUERY"}, flows)
}

func TestHandler_Execute_ExtractionErrorIsNotAJobFailure(t *testing.T) {
	ext := &stubExtractor{result: models.RawExtraction{Error: "GENAI_TIMEOUT"}}
	h := newTestHandler(t, ext, nil)

	out, err := h.Execute(context.Background(), &Input{Text: "show my balance", UserID: "u1"})
	require.NoError(t, err)
	assert.Equal(t, models.FlowQuery, out.Response.Flow)
	assert.Equal(t, "GENAI_TIMEOUT", out.Response.Error)
	assert.Equal(t, models.Entities{}, out.Response.Entities)
}

func TestHandler_Execute_TemporalErrorUsesGenericMessage(t *testing.T) {
	ext := &stubExtractor{result: analyticsExtraction("ANALYTICS_SPENDING", "", models.Entities{"year": "20x4"})}
	h := newTestHandler(t, ext, nil)

	_, err := h.Execute(context.Background(), &Input{Text: "spending in 20x4", UserID: "u1"})
	require.Error(t, err)

	stdErr, ok := apperrors.AsStandardError(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.ErrCodeCommandProcessingFailed, stdErr.Code)
	assert.Equal(t, "Error processing the text command", stdErr.Message)
	assert.False(t, stdErr.Retryable)

	cause, ok := apperrors.AsStandardError(errors.Unwrap(stdErr))
	require.True(t, ok)
	assert.Equal(t, apperrors.ErrCodeInvalidTemporalEntity, cause.Code)
	assert.ErrorIs(t, err, timerange.ErrInvalidTemporalEntity)
}

func TestHandler_Execute_LogsExtractionFailureCode(t *testing.T) {
	tests := []struct {
		name     string
		cause    error
		wantCode string
	}{
		{"timeout", apperrors.NewGenAITimeoutError(genai.ErrTimeout), "GENAI_TIMEOUT"},
		{"request failed", apperrors.NewExtractionFailedError(genai.ErrRequestFailed), "EXTRACTION_FAILED"},
		{"invalid module", apperrors.NewInvalidModuleError("XYZ"), "INVALID_MODULE"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			core, logs := observer.New(zapcore.WarnLevel)
			ext := &stubExtractor{result: models.RawExtraction{Error: tt.cause.Error(), Cause: tt.cause}}
			h := NewHandler(createTestConfig(), ext, newTestRouter(), nil, logger.NewZapAdapter(zap.New(core)))

			out, err := h.Execute(context.Background(), &Input{Text: "show my balance", UserID: "u1"})
			require.NoError(t, err)
			assert.Equal(t, tt.cause.Error(), out.Response.Error)

			entries := logs.FilterMessage("extraction failed").All()
			require.Len(t, entries, 1)
			assert.Equal(t, tt.wantCode, entries[0].ContextMap()["code"])
		})
	}
}

func TestHandler_Execute_EmptyText(t *testing.T) {
	h := newTestHandler(t, &stubExtractor{}, nil)

	_, err := h.Execute(context.Background(), &Input{Text: "   "})
	stdErr, ok := apperrors.AsStandardError(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.ErrCodeInvalidInput, stdErr.Code)
}

func TestHandler_Execute_ConversationHistory(t *testing.T) {
	store := newTestStore(t)
	ext := &stubExtractor{result: models.RawExtraction{
		Module:    "ACC",
		SubModule: models.SubModule{SubmoduleCode: "ACC_BALANCE"},
		Entities:  models.Entities{"accountType": "SAV"},
		Flow:      models.FlowQuery,
	}}
	h := newTestHandler(t, ext, store)
	ctx := context.Background()

	first, err := h.Execute(ctx, &Input{Text: "show my balance", UserID: "u1"})
	require.NoError(t, err)

	_, err = h.Execute(ctx, &Input{Text: "and my savings?", UserID: "u1"})
	require.NoError(t, err)

	_, err = h.Execute(ctx, &Input{Text: "start over", UserID: "u1", IsNewSession: true})
	require.NoError(t, err)

	require.Len(t, ext.previous, 3)
	assert.Nil(t, ext.previous[0])
	require.NotNil(t, ext.previous[1])
	assert.Equal(t, "show my balance", ext.previous[1].RawText)
	assert.Contains(t, ext.previous[1].Response, first.Response.RequestID)
	assert.Nil(t, ext.previous[2])

	last, err := store.Last(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "start over", last.RawText)
}

type recordingStore struct {
	*conversation.Store
	ops []string
}

func (r *recordingStore) Last(ctx context.Context, userID string) (*conversation.Turn, error) {
	r.ops = append(r.ops, "last")
	return r.Store.Last(ctx, userID)
}

func (r *recordingStore) Save(ctx context.Context, userID string, turn conversation.Turn) (conversation.Turn, error) {
	r.ops = append(r.ops, "save")
	return r.Store.Save(ctx, userID, turn)
}

func (r *recordingStore) Forget(ctx context.Context, userID string) error {
	r.ops = append(r.ops, "forget")
	return r.Store.Forget(ctx, userID)
}

func TestHandler_Execute_NewSessionClearsHistory(t *testing.T) {
	tests := []struct {
		name       string
		newSession flexBool
		wantOps    []string
	}{
		{"continuing session", false, []string{"last", "save"}},
		{"new session", true, []string{"forget", "save"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &recordingStore{Store: newTestStore(t)}
			ctx := context.Background()
			_, err := store.Store.Save(ctx, "u1", conversation.Turn{RawText: "show my balance", Response: "{}"})
			require.NoError(t, err)

			ext := &stubExtractor{result: models.RawExtraction{Module: "ACC", Flow: models.FlowQuery}}
			h := newTestHandler(t, ext, store)

			_, err = h.Execute(ctx, &Input{Text: "what about savings", UserID: "u1", IsNewSession: tt.newSession})
			require.NoError(t, err)
			assert.Equal(t, tt.wantOps, store.ops)
		})
	}
}

func TestHandler_Execute_NewSessionSurvivesStoreOutage(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	mr.Close()

	ext := &stubExtractor{result: models.RawExtraction{Module: "ACC", Flow: models.FlowQuery}}
	h := newTestHandler(t, ext, conversation.NewStore(client, "", time.Minute))

	out, err := h.Execute(context.Background(), &Input{Text: "start over", UserID: "u1", IsNewSession: true})
	require.NoError(t, err)
	assert.Equal(t, models.FlowQuery, out.Response.Flow)
	require.Len(t, ext.previous, 1)
	assert.Nil(t, ext.previous[0])
}

func TestHandler_Execute_HistoryDisabled(t *testing.T) {
	store := newTestStore(t)
	ext := &stubExtractor{result: models.RawExtraction{Module: "ACC", Flow: models.FlowQuery}}
	h := NewHandler(&Config{Timeout: time.Second}, ext, newTestRouter(), store, logger.NewNoOpLogger())

	_, err := h.Execute(context.Background(), &Input{Text: "show my balance", UserID: "u1"})
	require.NoError(t, err)

	last, err := store.Last(context.Background(), "u1")
	require.NoError(t, err)
	assert.Nil(t, last)
}
