package backendstub

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fleetdeck/fleetdeck/internal/provider"
	"github.com/fleetdeck/fleetdeck/internal/task"
	"github.com/fleetdeck/fleetdeck/internal/transport"
	"github.com/fleetdeck/fleetdeck/internal/vehicle"
	"github.com/fleetdeck/fleetdeck/pkg/cerr"
	"github.com/fleetdeck/fleetdeck/pkg/storage"
)

func newTestHandler(t *testing.T) *Handler {
	t.Helper()
	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	return NewHandler(store)
}

func mustParams(t *testing.T, v any) json.RawMessage {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return data
}

func createTask(t *testing.T, h *Handler) task.Task {
	t.Helper()
	result, err := h.Invoke(context.Background(), transport.OpNewTasks, mustParams(t, task.Task{
		Name:    "patrol depot",
		Owner:   "alice",
		Trigger: task.TriggerManual,
	}))
	require.NoError(t, err)
	created := result.(map[string]any)["task"].(task.Task)
	require.NotEmpty(t, created.ID)
	return created
}

func TestHandler_NewTaskAssignsIDAndSubmittedState(t *testing.T) {
	h := newTestHandler(t)
	created := createTask(t, h)
	assert.Equal(t, task.StateSubmitted, created.State.Top)

	result, err := h.Invoke(context.Background(), transport.OpGetTasks, nil)
	require.NoError(t, err)
	tasks := result.(map[string]any)["tasks"].([]task.Task)
	require.Len(t, tasks, 1)
	assert.Equal(t, created.ID, tasks[0].ID)
}

func TestHandler_NewTaskRejectsClientID(t *testing.T) {
	h := newTestHandler(t)
	_, err := h.Invoke(context.Background(), transport.OpNewTasks, mustParams(t, task.Task{
		ID:      "client-chosen",
		Name:    "patrol",
		Trigger: task.TriggerManual,
	}))
	require.Error(t, err)
	assert.True(t, cerr.IsCode(err, cerr.InvalidArgument))
}

func TestHandler_TaskLifecycle(t *testing.T) {
	ctx := context.Background()
	h := newTestHandler(t)
	created := createTask(t, h)
	params := mustParams(t, idParams{ID: created.ID})

	// pause before run is refused
	_, err := h.Invoke(ctx, transport.OpPauseTask, params)
	require.Error(t, err)
	assert.True(t, cerr.IsCode(err, cerr.FailedPrecondition))

	result, err := h.Invoke(ctx, transport.OpRunTask, params)
	require.NoError(t, err)
	assert.Equal(t, task.StateWorking, result.(map[string]any)["state"].(task.State).Top)

	result, err = h.Invoke(ctx, transport.OpPauseTask, params)
	require.NoError(t, err)
	assert.Equal(t, task.StateInputRequired, result.(map[string]any)["state"].(task.State).Top)

	result, err = h.Invoke(ctx, transport.OpRunTask, params)
	require.NoError(t, err)
	assert.Equal(t, task.StateWorking, result.(map[string]any)["state"].(task.State).Top)

	result, err = h.Invoke(ctx, transport.OpCancelTask, params)
	require.NoError(t, err)
	assert.Equal(t, task.StateCanceled, result.(map[string]any)["state"].(task.State).Top)

	// terminal state refuses everything
	_, err = h.Invoke(ctx, transport.OpRunTask, params)
	require.Error(t, err)
	assert.True(t, cerr.IsCode(err, cerr.FailedPrecondition))
	_, err = h.Invoke(ctx, transport.OpCancelTask, params)
	require.Error(t, err)
	assert.True(t, cerr.IsCode(err, cerr.FailedPrecondition))
}

func TestHandler_RunStampsLastRunAt(t *testing.T) {
	ctx := context.Background()
	h := newTestHandler(t)
	created := createTask(t, h)

	_, err := h.Invoke(ctx, transport.OpRunTask, mustParams(t, idParams{ID: created.ID}))
	require.NoError(t, err)

	stored, err := h.tasks.Get(ctx, created.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.LastRunAt)
	assert.False(t, stored.LastRunAt.IsZero())
}

func TestHandler_SaveTaskKeepsRunState(t *testing.T) {
	ctx := context.Background()
	h := newTestHandler(t)
	created := createTask(t, h)
	_, err := h.Invoke(ctx, transport.OpRunTask, mustParams(t, idParams{ID: created.ID}))
	require.NoError(t, err)

	// A save that tries to smuggle a state change keeps the stored one.
	edited := created
	edited.Name = "patrol depot at night"
	edited.State = task.State{Top: task.StateCompleted}
	result, err := h.Invoke(ctx, transport.OpSaveTasks, mustParams(t, edited))
	require.NoError(t, err)

	saved := result.(map[string]any)["task"].(task.Task)
	assert.Equal(t, "patrol depot at night", saved.Name)
	assert.Equal(t, task.StateWorking, saved.State.Top)
}

func TestHandler_UnknownOperation(t *testing.T) {
	h := newTestHandler(t)
	_, err := h.Invoke(context.Background(), "mystery", nil)
	require.Error(t, err)
	assert.True(t, cerr.IsCode(err, cerr.Unimplemented))
}

func TestHandler_VehicleStatusRoundTrip(t *testing.T) {
	ctx := context.Background()
	h := newTestHandler(t)
	require.NoError(t, h.vehicles.Create(ctx, vehicle.Vehicle{ID: "v1", Name: "loader", Status: vehicle.StatusAvailable}))

	_, err := h.Invoke(ctx, transport.OpUpdateVehicleStatus, mustParams(t, map[string]string{
		"id": "v1", "status": "charging",
	}))
	require.NoError(t, err)

	result, err := h.Invoke(ctx, transport.OpGetVehicles, nil)
	require.NoError(t, err)
	vehicles := result.(map[string]any)["vehicles"].([]vehicle.Vehicle)
	require.Len(t, vehicles, 1)
	assert.Equal(t, vehicle.StatusCharging, vehicles[0].Status)

	_, err = h.Invoke(ctx, transport.OpUpdateVehicleStatus, mustParams(t, map[string]string{
		"id": "v1", "status": "flying",
	}))
	require.Error(t, err)
	assert.True(t, cerr.IsCode(err, cerr.InvalidArgument))
}

func TestHandler_ProviderSaveMasksKeyAndKeepsStoredOne(t *testing.T) {
	ctx := context.Background()
	h := newTestHandler(t)

	result, err := h.Invoke(ctx, transport.OpSaveProvider, mustParams(t, provider.Provider{
		Name:    "main llm",
		Kind:    provider.KindLLM,
		BaseURL: "http://llm.internal",
		APIKey:  "sk-verysecret",
	}))
	require.NoError(t, err)
	saved := result.(map[string]any)["provider"].(provider.Provider)
	assert.Equal(t, "****cret", saved.APIKey)

	// Re-saving without a key keeps the stored secret.
	saved.APIKey = ""
	saved.Model = "fleet-7b"
	result, err = h.Invoke(ctx, transport.OpSaveProvider, mustParams(t, saved))
	require.NoError(t, err)
	resaved := result.(map[string]any)["provider"].(provider.Provider)
	assert.Equal(t, "****cret", resaved.APIKey)

	stored, err := h.providers.Get(ctx, saved.ID)
	require.NoError(t, err)
	assert.Equal(t, "sk-verysecret", stored.APIKey)

	// testProvider passes for a configured provider.
	result, err = h.Invoke(ctx, transport.OpTestProvider, mustParams(t, idParams{ID: saved.ID}))
	require.NoError(t, err)
	assert.True(t, result.(provider.TestResult).OK)
}
