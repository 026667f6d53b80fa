package domain

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGeneratePlanID(t *testing.T) {
	a, err := GeneratePlanID()
	require.NoError(t, err)
	b, err := GeneratePlanID()
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(a.String(), "plan-"))
	assert.Len(t, a.String(), len("plan-")+20)
	assert.NotEqual(t, a, b)
	assert.NoError(t, a.Validate())
	assert.LessOrEqual(t, a.String(), b.String())
}

func TestSequence(t *testing.T) {
	tests := []struct {
		id   string
		want int
		ok   bool
	}{
		{NewTaskID(12).String(), 12, true},
		{"phase-3", 3, true},
		{"subtask-1", 1, true},
		{"feature-1", 0, false},
		{"plan-3", 0, false},
		{"task-", 0, false},
		{"task-0", 0, false},
		{"task-x", 0, false},
		{"phase", 0, false},
	}
	for _, tt := range tests {
		got, ok := Sequence(tt.id)
		assert.Equal(t, tt.ok, ok, tt.id)
		assert.Equal(t, tt.want, got, tt.id)
	}
}

func TestPlanID_Validate(t *testing.T) {
	assert.NoError(t, PlanID("plan-auth").Validate())
	assert.NoError(t, PlanID("0192a3b4-aaaa-7bbb-8ccc-123456789abc").Validate())
	assert.Error(t, PlanID("").Validate())
	assert.Error(t, PlanID("../etc").Validate())
	assert.Error(t, PlanID("a b").Validate())
}
