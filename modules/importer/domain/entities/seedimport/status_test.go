package seedimport

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatusForwardPath(t *testing.T) {
	path := []Status{
		StatusPending, StatusParsing, StatusParsed,
		StatusMapping, StatusMapped, StatusExecuting, StatusExecuted,
	}
	for i := 0; i < len(path)-1; i++ {
		assert.True(t, path[i].CanTransitionTo(path[i+1]), "%s -> %s", path[i], path[i+1])
	}

	// No skipping stages.
	assert.False(t, StatusPending.CanTransitionTo(StatusParsed))
	assert.False(t, StatusParsed.CanTransitionTo(StatusMapped))
	assert.False(t, StatusMapped.CanTransitionTo(StatusExecuted))

	// No going backwards.
	assert.False(t, StatusParsed.CanTransitionTo(StatusParsing))
	assert.False(t, StatusExecuted.CanTransitionTo(StatusMapped))
}

func TestStatusFailedOnlyFromRunning(t *testing.T) {
	assert.True(t, StatusParsing.CanTransitionTo(StatusFailed))
	assert.True(t, StatusMapping.CanTransitionTo(StatusFailed))
	assert.True(t, StatusExecuting.CanTransitionTo(StatusFailed))

	assert.False(t, StatusPending.CanTransitionTo(StatusFailed))
	assert.False(t, StatusParsed.CanTransitionTo(StatusFailed))
	assert.False(t, StatusMapped.CanTransitionTo(StatusFailed))
	assert.False(t, StatusExecuted.CanTransitionTo(StatusFailed))
}

func TestStatusFailedIsSticky(t *testing.T) {
	for _, next := range []Status{
		StatusPending, StatusParsing, StatusParsed,
		StatusMapping, StatusMapped, StatusExecuting, StatusExecuted,
	} {
		assert.False(t, StatusFailed.CanTransitionTo(next), "failed -> %s", next)
	}
}

func TestStatusPredicates(t *testing.T) {
	assert.True(t, StatusParsing.Running())
	assert.True(t, StatusMapping.Running())
	assert.True(t, StatusExecuting.Running())
	assert.False(t, StatusMapped.Running())
	assert.False(t, StatusFailed.Running())

	assert.True(t, StatusExecuted.Terminal())
	assert.False(t, StatusFailed.Terminal())
}
