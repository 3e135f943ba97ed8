package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRecommendationFailedError_CarriesContext(t *testing.T) {
	cause := stderrors.New("catalog exploded")
	prefs := map[string]interface{}{"category": "kitchen"}

	err := NewRecommendationFailedError(12, prefs, cause)

	assert.Equal(t, ErrCodeRecommendationFailed, err.Code)
	assert.False(t, err.Retryable)
	assert.Equal(t, 12, err.Metadata["productCount"])
	assert.Equal(t, prefs, err.Metadata["preferences"])
	assert.Equal(t, "catalog exploded", err.Metadata["lastError"])
	assert.ErrorIs(t, err, cause)
}

func TestAsStandardError_ThroughWrapping(t *testing.T) {
	base := NewRankingTimeoutError("http://localhost:5001/rank", 0)
	wrapped := fmt.Errorf("attempt 2: %w", base)

	stdErr, ok := AsStandardError(wrapped)
	require.True(t, ok)
	assert.Equal(t, ErrCodeRankingTimeout, stdErr.Code)
	assert.True(t, HasCode(wrapped, ErrCodeRankingTimeout))
	assert.False(t, HasCode(stderrors.New("plain"), ErrCodeRankingTimeout))
}

func TestConvertToBPMNError(t *testing.T) {
	tests := []struct {
		name            string
		err             *StandardError
		expectedRetries int
	}{
		{
			name:            "retryable catalog failure",
			err:             NewCatalogUnavailableError("http", stderrors.New("refused")),
			expectedRetries: 3,
		},
		{
			name:            "retryable collaborator failure",
			err:             NewRankingCollaboratorFailedError("http://x/rank", stderrors.New("503")),
			expectedRetries: 2,
		},
		{
			name:            "non-retryable input error",
			err:             NewInvalidInputError("products missing"),
			expectedRetries: 0,
		},
		{
			name:            "pipeline failure is terminal",
			err:             NewRecommendationFailedError(3, nil, stderrors.New("boom")),
			expectedRetries: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bpmnErr := ConvertToBPMNError(tt.err)
			assert.Equal(t, string(tt.err.Code), bpmnErr.Code)
			assert.Equal(t, tt.expectedRetries, bpmnErr.Retries)

			vars := bpmnErr.ToErrorVariables()
			assert.Equal(t, string(tt.err.Code), vars["errorCode"])
			assert.Equal(t, string(tt.err.Code), vars["originalErrorCode"])
		})
	}
}

func TestGetErrorCategory(t *testing.T) {
	assert.Equal(t, "CATALOG", GetErrorCategory(ErrCodeCatalogUnavailable))
	assert.Equal(t, "RANKING", GetErrorCategory(ErrCodeRankingResponseMalformed))
	assert.Equal(t, "DATABASE", GetErrorCategory(ErrCodeQueryExecutionFailed))
	assert.Equal(t, "SEARCH", GetErrorCategory(ErrCodeSearchQueryFailed))
	assert.Equal(t, "PIPELINE", GetErrorCategory(ErrCodeRecommendationFailed))
	assert.Equal(t, "WORKFLOW", GetErrorCategory(ErrCodeWorkflowTimeout))
	assert.Equal(t, "OTHER", GetErrorCategory("SOMETHING_ELSE"))
}

func TestNormalize_PlainError(t *testing.T) {
	stdErr := Normalize(stderrors.New("unexpected"))
	assert.Equal(t, ErrCodeInternal, stdErr.Code)
	assert.Equal(t, "unexpected", stdErr.Details)
}
