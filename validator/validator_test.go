package validator

import (
	"context"
	"os/exec"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func requireShell(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("no sh in PATH")
	}
}

func TestRunPassed(t *testing.T) {
	requireShell(t)
	result, err := Run(context.Background(), []string{"sh", "-c", "echo"}, "doc.json")
	require.NoError(t, err)
	assert.True(t, result.Passed)
}

func TestRunFailedIsNotAnError(t *testing.T) {
	requireShell(t)
	// sh receives the document path as $0 and exits non-zero.
	result, err := Run(context.Background(), []string{"sh", "-c", "exit 3"}, "doc.json")
	require.NoError(t, err)
	assert.False(t, result.Passed)
}

func TestRunCapturesOutput(t *testing.T) {
	requireShell(t)
	result, err := Run(context.Background(), []string{"sh", "-c", "echo checked $0"}, "doc.json")
	require.NoError(t, err)
	assert.True(t, result.Passed)
	assert.Equal(t, "checked doc.json\n", result.Output)
}

func TestRunNotFound(t *testing.T) {
	_, err := Run(context.Background(), []string{"ethdebug-stats-that-does-not-exist"}, "doc.json")
	assert.ErrorIs(t, err, ErrValidatorNotFound)
}

func TestRunEmptyCommand(t *testing.T) {
	_, err := Run(context.Background(), nil, "doc.json")
	assert.Error(t, err)
}
