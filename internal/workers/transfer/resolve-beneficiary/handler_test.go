package resolvebeneficiary

import (
	"context"
	"errors"
	"testing"
	"time"

	apperrors "banking-command-workers/internal/common/errors"
	"banking-command-workers/internal/common/logger"
	"banking-command-workers/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubSearcher struct {
	matches []Match
	err     error
	calls   int
	name    string
}

func (s *stubSearcher) Search(_ context.Context, _ string, name string) ([]Match, error) {
	s.calls++
	s.name = name
	return s.matches, s.err
}

func createTestConfig() *Config {
	return &Config{Timeout: time.Second, Index: "beneficiaries", MaxResults: 5}
}

func TestHandler_Execute(t *testing.T) {
	alice := Match{BeneficiaryID: "b-1", Name: "Alice Smith", Score: 2}
	alicia := Match{BeneficiaryID: "b-2", Name: "Alicia Stone", BankName: "SBI", Score: 1}

	tests := []struct {
		name         string
		entities     models.Entities
		matches      []Match
		wantResolved bool
		wantID       interface{}
		wantQuestion string
		wantSearched string
	}{
		{
			name:         "single match resolves",
			entities:     models.Entities{"beneficiaryName": "alice", "amount": 100.0},
			matches:      []Match{alice},
			wantResolved: true,
			wantID:       "b-1",
			wantSearched: "alice",
		},
		{
			name:         "no match asks",
			entities:     models.Entities{"beneficiaryName": "zed"},
			wantQuestion: `I couldn't find a saved beneficiary named "zed". Please check the name or add them as a beneficiary first.`,
			wantSearched: "zed",
		},
		{
			name:         "several matches ask",
			entities:     models.Entities{"recipientName": "ali"},
			matches:      []Match{alice, alicia},
			wantQuestion: `I found several beneficiaries matching "ali": Alice Smith, Alicia Stone (SBI). Which one did you mean?`,
			wantSearched: "ali",
		},
		{
			name:         "no name skips search",
			entities:     models.Entities{"amount": 5.0},
			wantQuestion: "Who would you like to send the money to?",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			searcher := &stubSearcher{matches: tt.matches}
			h := NewHandler(createTestConfig(), searcher, logger.NewTestLogger(t))

			out, err := h.Execute(context.Background(), &Input{UserID: "u-1", Entities: tt.entities})
			require.NoError(t, err)

			assert.Equal(t, tt.wantResolved, out.IsResolved)
			assert.Equal(t, tt.wantQuestion, out.Question)
			assert.Equal(t, tt.wantID, out.Entities[models.EntityBeneficiaryID])
			assert.NotNil(t, out.Matches)
			assert.Equal(t, tt.wantSearched, searcher.name)
			if tt.wantSearched == "" {
				assert.Zero(t, searcher.calls)
			}
			assert.NotContains(t, tt.entities, models.EntityBeneficiaryID)
		})
	}
}

func TestHandler_ExecuteErrors(t *testing.T) {
	h := NewHandler(createTestConfig(), &stubSearcher{err: errors.New("connection refused")}, logger.NewNoOpLogger())

	_, err := h.Execute(context.Background(), &Input{UserID: "u-1", Entities: models.Entities{"beneficiaryName": "bob"}})
	stdErr, ok := apperrors.AsStandardError(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.ErrCodeBeneficiarySearchFailed, stdErr.Code)

	_, err = h.Execute(context.Background(), &Input{Entities: models.Entities{"beneficiaryName": "bob"}})
	stdErr, ok = apperrors.AsStandardError(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.ErrCodeInvalidInput, stdErr.Code)
}
