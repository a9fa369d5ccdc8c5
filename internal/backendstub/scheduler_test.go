package backendstub

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fleetdeck/fleetdeck/internal/task"
)

func storedScheduledTask(t *testing.T, h *Handler, id string, start time.Time, state task.RunState) {
	t.Helper()
	require.NoError(t, h.tasks.Create(context.Background(), task.Task{
		ID:      id,
		Name:    id,
		Owner:   "alice",
		Trigger: task.TriggerSchedule,
		State:   task.State{Top: state},
		Schedule: &task.Schedule{
			RepeatType:    task.RepeatByHours,
			RepeatNumber:  1,
			StartDateTime: task.NewWireTime(start),
		},
	}))
}

func TestScheduler_StartsMostOverdueRunnableTask(t *testing.T) {
	ctx := context.Background()
	h := newTestHandler(t)
	now := time.Date(2026, time.January, 1, 12, 0, 0, 0, time.UTC)
	h.now = func() time.Time { return now }

	storedScheduledTask(t, h, "due", now.Add(-6*time.Hour), task.StateSubmitted)
	storedScheduledTask(t, h, "busy", now.Add(-6*time.Hour), task.StateWorking)

	require.NoError(t, h.startDueTask(ctx))

	started, err := h.tasks.Get(ctx, "due")
	require.NoError(t, err)
	assert.Equal(t, task.StateWorking, started.State.Top)
	require.NotNil(t, started.LastRunAt)
	assert.True(t, started.LastRunAt.Equal(now))

	// The already-working task was never a candidate.
	busy, err := h.tasks.Get(ctx, "busy")
	require.NoError(t, err)
	assert.Nil(t, busy.LastRunAt)

	// A second tick finds nothing runnable and changes nothing.
	require.NoError(t, h.startDueTask(ctx))
	again, err := h.tasks.Get(ctx, "due")
	require.NoError(t, err)
	assert.True(t, again.LastRunAt.Equal(now))
}

func TestScheduler_IgnoresFutureSchedules(t *testing.T) {
	ctx := context.Background()
	h := newTestHandler(t)
	now := time.Date(2026, time.January, 1, 12, 0, 0, 0, time.UTC)
	h.now = func() time.Time { return now }

	storedScheduledTask(t, h, "later", now.Add(2*time.Hour), task.StateSubmitted)

	require.NoError(t, h.startDueTask(ctx))

	stored, err := h.tasks.Get(ctx, "later")
	require.NoError(t, err)
	assert.Equal(t, task.StateSubmitted, stored.State.Top)
	assert.Nil(t, stored.LastRunAt)
}
