package registry

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	analyzesustainability "sustainable-advisor/internal/workers/advisor/analyze-sustainability"
	explainrecommendation "sustainable-advisor/internal/workers/advisor/explain-recommendation"
	rankrecommendations "sustainable-advisor/internal/workers/advisor/rank-recommendations"
)

func TestDefault_CoversEveryWorker(t *testing.T) {
	reg := Default()
	require.NoError(t, reg.Validate())

	for _, taskType := range []string{
		analyzesustainability.TaskType,
		rankrecommendations.TaskType,
		explainrecommendation.TaskType,
	} {
		a, ok := reg.Find(taskType)
		assert.True(t, ok, taskType)
		assert.NotEmpty(t, a.DisplayName)
		assert.Contains(t, a.ErrorCodes, "INVALID_INPUT")
	}
	assert.Len(t, reg.Activities, 3)
}

func TestTimeoutFor(t *testing.T) {
	reg := Default()

	assert.Equal(t, 60*time.Second, reg.TimeoutFor(rankrecommendations.TaskType, time.Second))
	assert.Equal(t, time.Second, reg.TimeoutFor("unknown-task", time.Second))
}

func TestLoadRegistry(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		expectErr bool
		expectLen int
	}{
		{
			name:      "valid",
			body:      `{"version":"2","activities":[{"id":"a","taskType":"a","timeout":"5s"},{"id":"b","taskType":"b"}]}`,
			expectLen: 2,
		},
		{
			name:      "duplicate task type",
			body:      `{"activities":[{"id":"a","taskType":"a"},{"id":"b","taskType":"a"}]}`,
			expectErr: true,
		},
		{
			name:      "missing task type",
			body:      `{"activities":[{"id":"a"}]}`,
			expectErr: true,
		},
		{
			name:      "bad timeout",
			body:      `{"activities":[{"id":"a","taskType":"a","timeout":"soon"}]}`,
			expectErr: true,
		},
		{
			name:      "not json",
			body:      `activities: []`,
			expectErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "registry.json")
			require.NoError(t, os.WriteFile(path, []byte(tt.body), 0o600))

			reg, err := LoadRegistry(path)
			if tt.expectErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Len(t, reg.Activities, tt.expectLen)
		})
	}
}

func TestLoadRegistry_MissingFile(t *testing.T) {
	_, err := LoadRegistry(filepath.Join(t.TempDir(), "absent.json"))
	assert.Error(t, err)
}
