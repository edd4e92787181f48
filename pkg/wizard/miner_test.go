package wizard

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKillByNameIsANoOpWhenNothingMatches(t *testing.T) {
	err := KillByName("plotkit-test-process-that-does-not-exist")
	require.NoError(t, err)
}

func TestProcessAliveReflectsCurrentProcess(t *testing.T) {
	assert.True(t, processAlive(os.Getpid()))
}
