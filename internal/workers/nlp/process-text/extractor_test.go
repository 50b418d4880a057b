package processtext

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"banking-command-workers/internal/common/conversation"
	apperrors "banking-command-workers/internal/common/errors"
	"banking-command-workers/internal/common/genai"
	"banking-command-workers/internal/models"
	"banking-command-workers/pkg/registry"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createTestRegistry(t *testing.T) *registry.Registry {
	t.Helper()
	reg, err := registry.New([]registry.Module{
		{
			Code: "ACC",
			Name: "Accounts",
			Submodules: []registry.SubModule{
				{Code: "ACC_BALANCE", Name: "Account Balance", Endpoint: "/accounts/balance"},
			},
			Properties: map[string]registry.Property{
				"accountType": {Type: "string", Description: "Type of account", Enum: []interface{}{"SAV", "CUR"}},
			},
		},
		{
			Code: "ANALYTICS",
			Name: "Analytics",
			Submodules: []registry.SubModule{
				{Code: "ANALYTICS_SPENDING", Name: "Spending Analytics", Endpoint: "/analytics/spending"},
			},
		},
	})
	require.NoError(t, err)
	return reg
}

type promptRecorder struct {
	mu       sync.Mutex
	lastUser string
}

func (r *promptRecorder) set(s string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lastUser = s
}

func (r *promptRecorder) get() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastUser
}

// newCompletionServer answers every chat completion with content and
// records the last user message it received.
func newCompletionServer(t *testing.T, status int, content string, rec *promptRecorder) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		var req struct {
			Messages []genai.Message `json:"messages"`
		}
		_ = json.Unmarshal(body, &req)
		if rec != nil && len(req.Messages) > 0 {
			rec.set(req.Messages[len(req.Messages)-1].Content)
		}

		if status != http.StatusOK {
			w.WriteHeader(status)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"choices": []map[string]interface{}{
				{"message": map[string]string{"role": "assistant", "content": content}},
			},
		})
	}))
	t.Cleanup(server.Close)
	return server
}

func newTestExtractor(t *testing.T, server *httptest.Server) *Extractor {
	client := genai.NewClient(genai.Config{
		Purpose: "extraction",
		BaseURL: server.URL,
		Model:   "gpt-test",
		Timeout: 5 * time.Second,
	})
	return NewExtractor(client, createTestRegistry(t))
}

func TestExtractor_Success(t *testing.T) {
	reply := "```json\n" + `{
		"module": "ACC",
		"sub_module": {"submoduleCode": "ACC_BALANCE", "submoduleName": "Balance"},
		"entities": {"accountType": "SAV", "": "x", "note": null},
		"flow": "query"
	}` + "\n```"
	server := newCompletionServer(t, http.StatusOK, reply, nil)

	got := newTestExtractor(t, server).Extract(context.Background(), "show my balance", nil)

	assert.False(t, got.Failed())
	assert.Equal(t, "ACC", got.Module)
	assert.Equal(t, models.SubModule{
		SubmoduleCode: "ACC_BALANCE",
		SubmoduleName: "Account Balance",
		Endpoint:      "/accounts/balance",
	}, got.SubModule)
	assert.Equal(t, models.Entities{"accountType": "SAV"}, got.Entities)
	assert.Equal(t, models.FlowQuery, got.Flow)
	assert.Equal(t, "show my balance", got.RawText)
}

func TestExtractor_Failures(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		content  string
		wantErr  string
		wantCode apperrors.ErrorCode
	}{
		{
			name:    "unknown module",
			status:  http.StatusOK,
			content: `{"module": "XYZ", "sub_module": {}, "entities": {}, "flow": "QUERY"}`,
			wantErr: "Invalid module code: XYZ",
			wantCode: apperrors.ErrCodeInvalidModule,
		},
		{
			name:    "model reports error",
			status:  http.StatusOK,
			content: `{"error": "not a banking command"}`,
			wantErr: "not a banking command",
			wantCode: apperrors.ErrCodeExtractionFailed,
		},
		{
			name:    "not json",
			status:  http.StatusOK,
			content: "I am not sure what you mean",
			wantErr: "Invalid JSON response from extraction model",
			wantCode: apperrors.ErrCodeExtractionFailed,
		},
		{
			name:    "upstream error",
			status:  http.StatusInternalServerError,
			wantErr: "GENAI_REQUEST_FAILED",
			wantCode: apperrors.ErrCodeExtractionFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := newCompletionServer(t, tt.status, tt.content, nil)
			got := newTestExtractor(t, server).Extract(context.Background(), "do the thing", nil)

			require.True(t, got.Failed())
			assert.Contains(t, got.Error, tt.wantErr)
			stdErr, ok := apperrors.AsStandardError(got.Cause)
			require.True(t, ok)
			assert.Equal(t, tt.wantCode, stdErr.Code)
			assert.Equal(t, models.FlowQuery, got.Flow)
			assert.Equal(t, "do the thing", got.RawText)
		})
	}
}

type stubCompleter struct {
	err error
}

func (s stubCompleter) CompleteJSON(context.Context, []genai.Message) (string, error) {
	return "", s.err
}

func TestExtractor_ClassifiesCompletionErrors(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		wantCode  apperrors.ErrorCode
		retryable bool
	}{
		{"deadline", genai.ErrTimeout, apperrors.ErrCodeGenAITimeout, true},
		{"wrapped deadline", fmt.Errorf("call: %w", genai.ErrTimeout), apperrors.ErrCodeGenAITimeout, true},
		{"request failed", fmt.Errorf("%w: status 502", genai.ErrRequestFailed), apperrors.ErrCodeExtractionFailed, true},
		{"empty response", genai.ErrEmptyResponse, apperrors.ErrCodeExtractionFailed, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NewExtractor(stubCompleter{err: tt.err}, createTestRegistry(t)).Extract(context.Background(), "show my balance", nil)

			require.True(t, got.Failed())
			assert.Equal(t, tt.err.Error(), got.Error)

			stdErr, ok := apperrors.AsStandardError(got.Cause)
			require.True(t, ok)
			assert.Equal(t, tt.wantCode, stdErr.Code)
			assert.Equal(t, tt.retryable, stdErr.Retryable)
			assert.ErrorIs(t, got.Cause, tt.err)
		})
	}
}

func TestExtractor_UnknownFlowCoercedToQuery(t *testing.T) {
	server := newCompletionServer(t, http.StatusOK,
		`{"module": "ANALYTICS", "sub_module": {"submoduleCode": "ANALYTICS_SPENDING"}, "entities": {}, "flow": "CHAT"}`, nil)

	got := newTestExtractor(t, server).Extract(context.Background(), "spending", nil)
	assert.Equal(t, models.FlowQuery, got.Flow)
	assert.Equal(t, "Spending Analytics", got.SubModule.SubmoduleName)
}

func TestExtractor_IncludesPreviousTurn(t *testing.T) {
	rec := &promptRecorder{}
	server := newCompletionServer(t, http.StatusOK,
		`{"module": "ACC", "sub_module": {"submoduleCode": "ACC_BALANCE"}, "entities": {}, "flow": "QUERY"}`, rec)
	extractor := newTestExtractor(t, server)

	extractor.Extract(context.Background(), "and for savings?", &conversation.Turn{
		RawText:  "show my balance",
		Response: `{"flow":"QUERY"}`,
	})
	assert.True(t, strings.HasPrefix(rec.get(), "Previous interaction:\nUser: show my balance\n"))
	assert.Contains(t, rec.get(), "and for savings?")

	extractor.Extract(context.Background(), "show my balance", nil)
	assert.NotContains(t, rec.get(), "Previous interaction")
}

func TestBuildSystemPrompt(t *testing.T) {
	prompt := buildSystemPrompt(createTestRegistry(t))

	assert.Contains(t, prompt, "   - Accounts (ACC):\n    - Account Balance (ACC_BALANCE)")
	assert.Contains(t, prompt, "- accountType: Type of account (type: string), allowed values: [SAV, CUR]")
	assert.Contains(t, prompt, "Spending Analytics (ANALYTICS_SPENDING)")
	assert.Contains(t, prompt, "beneficiaryName")
}
