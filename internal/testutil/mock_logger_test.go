package testutil_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/rxn-reconciler/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/rxn-reconciler/internal/testutil"
)

func TestMockLogger(t *testing.T) {
	logger := testutil.NewMockLogger()

	logger.Info("test info", logging.String("key", "value"))

	messages := logger.GetMessages()
	require.Len(t, messages, 1)
	assert.Equal(t, "info", messages[0].Level)
	assert.Equal(t, "test info", messages[0].Message)
	v, ok := messages[0].Field("key")
	assert.True(t, ok)
	assert.Equal(t, "value", v)

	logger.Clear()
	assert.Len(t, logger.GetMessages(), 0)

	logger.Error("test error")
	assert.True(t, logger.HasMessage("error", "test error"))
	assert.False(t, logger.HasMessage("info", "test info"))
}

func TestMockLogger_ChildrenShareBuffer(t *testing.T) {
	logger := testutil.NewMockLogger()
	child := logger.Named("resolver").With(logging.RunID("run-1"))

	child.Warn("annotator unavailable", logging.Compound("water"))
	logger.Warn("annotator unavailable")

	assert.Equal(t, 2, logger.Count("warn", "annotator unavailable"))
	msgs := logger.GetMessages()
	assert.Equal(t, "resolver", msgs[0].Logger)
	run, ok := msgs[0].Field("run_id")
	assert.True(t, ok)
	assert.Equal(t, "run-1", run)
	_, ok = msgs[1].Field("run_id")
	assert.False(t, ok)
}
