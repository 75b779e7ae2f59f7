package interview

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMergeKeepsFilledFields(t *testing.T) {
	prev := Spec{Role: "Backend Engineer", Level: "Senior", TechStack: []string{"Go"}}
	next := Spec{Amount: 5}

	got := Merge(prev, next)
	assert.Equal(t, Spec{Role: "Backend Engineer", Level: "Senior", TechStack: []string{"Go"}, Amount: 5}, got)
}

func TestMergeOverwritesWithNewNonEmptyValues(t *testing.T) {
	prev := Spec{Role: "Backend Engineer", TechStack: []string{"Go"}, Amount: 3}
	next := Spec{Role: "Platform Engineer", TechStack: []string{"Go", "Kubernetes"}}

	got := Merge(prev, next)
	assert.Equal(t, "Platform Engineer", got.Role)
	assert.Equal(t, []string{"Go", "Kubernetes"}, got.TechStack)
	assert.Equal(t, 3, got.Amount)
}

func TestMergeDoesNotAliasInputs(t *testing.T) {
	prev := Spec{TechStack: []string{"Go"}}
	got := Merge(prev, Spec{})
	got.TechStack[0] = "changed"
	assert.Equal(t, "Go", prev.TechStack[0])
}

func TestCompleteGenerateMode(t *testing.T) {
	base := Spec{Role: "Backend Engineer", Level: "Senior", Type: "technical"}
	assert.False(t, base.Complete(ModeGenerate), "missing techstack and count")

	withStack := base
	withStack.TechStack = []string{"Go"}
	assert.False(t, withStack.Complete(ModeGenerate), "missing count")

	withCount := base
	withCount.Amount = 5
	assert.False(t, withCount.Complete(ModeGenerate), "missing techstack")

	full := withStack
	full.Amount = 5
	assert.True(t, full.Complete(ModeGenerate))

	noRole := full
	noRole.Role = ""
	assert.False(t, noRole.Complete(ModeGenerate))

	withList := withStack
	withList.Questions = []string{"Why Go?"}
	assert.True(t, withList.Complete(ModeGenerate))
}

func TestValidate(t *testing.T) {
	require.ErrorIs(t, Spec{}.Validate(ModeGenerate), ErrIncomplete)
	require.NoError(t, Spec{Questions: []string{"q"}}.Validate(ModeInterview))
}

func TestWithDefaults(t *testing.T) {
	got := Spec{}.WithDefaults(ModeInterview, 5)
	assert.Equal(t, DefaultRole, got.Role)
	assert.Equal(t, 5, got.Amount)

	got = Spec{}.WithDefaults(ModeGenerate, 5)
	assert.Empty(t, got.Role)

	got = Spec{Questions: []string{"a", "b"}}.WithDefaults(ModeGenerate, 5)
	assert.Zero(t, got.Amount)
	assert.Equal(t, 2, got.QuestionCount())
}

func TestParseMode(t *testing.T) {
	mode, err := ParseMode(" Generate ")
	require.NoError(t, err)
	assert.Equal(t, ModeGenerate, mode)

	_, err = ParseMode("chat")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown mode")
}
