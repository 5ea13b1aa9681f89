package orchestrator

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ShayCichocki/fulfiller/pkg/models"
)

func TestEventEmitter_EmitAndReceive(t *testing.T) {
	e := NewEventEmitter(2)
	e.Emit(OrchestratorEvent{Type: EventOrderProcessing, OrderID: "o1"})

	got := <-e.Events()
	assert.Equal(t, EventOrderProcessing, got.Type)
	assert.False(t, got.Timestamp.IsZero())
}

func TestEventEmitter_DropsWhenFull(t *testing.T) {
	e := NewEventEmitter(1)
	e.sendTimeout = time.Millisecond

	e.Emit(OrchestratorEvent{Type: EventTaskStarted})
	e.Emit(OrchestratorEvent{Type: EventTaskCompleted})

	assert.Equal(t, uint64(1), e.DroppedCount())
	assert.Equal(t, EventTaskStarted, (<-e.Events()).Type)
}

func TestEventEmitter_NilIsNoop(t *testing.T) {
	var e *EventEmitter
	e.Emit(OrchestratorEvent{Type: EventOrderFailed})
	e.Close()
	assert.Nil(t, e.Events())
	assert.Zero(t, e.DroppedCount())
}

func TestEventEmitter_RetryHook(t *testing.T) {
	e := NewEventEmitter(1)
	task := &models.Task{ID: "t1", OrderID: "o1", AgentID: "a1", Type: models.TaskTypeCode, RetryCount: 2}
	boom := errors.New("boom")

	e.RetryHook()(task, boom, 4*time.Second)

	got := <-e.Events()
	assert.Equal(t, EventTaskRetry, got.Type)
	assert.Equal(t, "o1", got.OrderID)
	assert.Equal(t, "t1", got.TaskID)
	assert.Equal(t, models.TaskTypeCode, got.TaskType)
	assert.Equal(t, 2, got.Attempt)
	assert.Equal(t, 4*time.Second, got.Delay)
	assert.ErrorIs(t, got.Error, boom)
}

func TestDebugLogger_WritesToFile(t *testing.T) {
	root := t.TempDir()
	l, err := NewDebugLogger(DebugLogPath(root))
	require.NoError(t, err)

	l.Log("order %s assigned", "o1")
	require.NoError(t, l.Close())

	data, err := os.ReadFile(filepath.Join(root, ".fulfiller", "logs", "orchestrator-debug.log"))
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(data), "order o1 assigned"))
	assert.Contains(t, string(data), "Debug Log Started")
}

func TestDebugLogger_NoopVariants(t *testing.T) {
	l, err := NewDebugLogger("")
	require.NoError(t, err)
	l.Log("ignored")
	assert.NoError(t, l.Close())

	var nilLogger *DebugLogger
	nilLogger.Log("ignored")
	assert.NoError(t, nilLogger.Close())

	assert.NoError(t, NopLogger().Close())
}
