package task

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fleetdeck/fleetdeck/internal/transport"
	"github.com/fleetdeck/fleetdeck/pkg/cerr"
)

// fakePort scripts invoke responses per operation and counts calls.
type fakePort struct {
	responses map[string]json.RawMessage
	errs      map[string]error
	calls     map[string]int
	lastParam any
}

func newFakePort() *fakePort {
	return &fakePort{
		responses: map[string]json.RawMessage{},
		errs:      map[string]error{},
		calls:     map[string]int{},
	}
}

func (p *fakePort) Invoke(ctx context.Context, operation string, params any) (json.RawMessage, error) {
	p.calls[operation]++
	p.lastParam = params
	if err := p.errs[operation]; err != nil {
		return nil, err
	}
	resp, ok := p.responses[operation]
	if !ok {
		return nil, fmt.Errorf("unexpected operation %s", operation)
	}
	return resp, nil
}

func (p *fakePort) stubTasks(tasks ...Task) {
	data, _ := json.Marshal(map[string][]Task{"tasks": tasks})
	p.responses[transport.OpGetTasks] = data
}

func newTestService(t *testing.T, port *fakePort) *Service {
	t.Helper()
	svc := NewService(port, NewStore(port))
	require.NoError(t, svc.Store().Fetch(context.Background(), "alice"))
	return svc
}

func TestService_RunAppliesStateFromResponse(t *testing.T) {
	port := newFakePort()
	port.stubTasks(Task{ID: "t1", Name: "patrol", State: State{Top: StateSubmitted}})
	port.responses[transport.OpRunTask] = json.RawMessage(`{"state":{"top":"WORKING"}}`)
	svc := newTestService(t, port)

	state, err := svc.Run(context.Background(), "t1")
	require.NoError(t, err)
	assert.Equal(t, StateWorking, state)

	got, ok := svc.Store().Get("t1")
	require.True(t, ok)
	assert.Equal(t, StateWorking, got.State.Top)
	assert.Equal(t, 1, port.calls[transport.OpRunTask])
}

func TestService_RunFailureLeavesStateUntouched(t *testing.T) {
	port := newFakePort()
	port.stubTasks(Task{ID: "t1", Name: "patrol", State: State{Top: StateSubmitted}})
	port.errs[transport.OpRunTask] = errors.New("connection refused")
	svc := newTestService(t, port)

	state, err := svc.Run(context.Background(), "t1")
	require.Error(t, err)
	assert.Equal(t, StateSubmitted, state)
	assert.Equal(t, cerr.Unavailable, cerr.CodeOf(err))

	got, ok := svc.Store().Get("t1")
	require.True(t, ok)
	assert.Equal(t, StateSubmitted, got.State.Top)
	assert.Equal(t, 1, port.calls[transport.OpRunTask])
}

func TestService_RunRejectedByGateWithoutInvoke(t *testing.T) {
	port := newFakePort()
	port.stubTasks(Task{ID: "t1", State: State{Top: StateWorking}})
	svc := newTestService(t, port)

	_, err := svc.Run(context.Background(), "t1")
	require.Error(t, err)
	assert.True(t, cerr.IsCode(err, cerr.FailedPrecondition))
	assert.Zero(t, port.calls[transport.OpRunTask])
}

func TestService_CommandOnUnknownTask(t *testing.T) {
	port := newFakePort()
	port.stubTasks()
	svc := newTestService(t, port)

	_, err := svc.Cancel(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, cerr.IsCode(err, cerr.NotFound))
	assert.Zero(t, port.calls[transport.OpCancelTask])
}

func TestService_PauseAndCancel(t *testing.T) {
	port := newFakePort()
	port.stubTasks(
		Task{ID: "working", State: State{Top: StateWorking}},
		Task{ID: "parked", State: State{Top: StateInputRequired}},
	)
	port.responses[transport.OpPauseTask] = json.RawMessage(`{"state":{"top":"INPUT_REQUIRED"}}`)
	port.responses[transport.OpCancelTask] = json.RawMessage(`{"state":{"top":"CANCELED"}}`)
	svc := newTestService(t, port)

	state, err := svc.Pause(context.Background(), "working")
	require.NoError(t, err)
	assert.Equal(t, StateInputRequired, state)

	state, err = svc.Cancel(context.Background(), "parked")
	require.NoError(t, err)
	assert.Equal(t, StateCanceled, state)

	_, err = svc.Pause(context.Background(), "parked")
	require.Error(t, err)
	assert.True(t, cerr.IsCode(err, cerr.FailedPrecondition))
}

func TestService_CreateInsertsBackendRecord(t *testing.T) {
	port := newFakePort()
	port.stubTasks()
	port.responses[transport.OpNewTasks] = json.RawMessage(
		`{"task":{"id":"created-1","name":"patrol","trigger":"manual","state":{"top":"SUBMITTED"}}}`)
	svc := newTestService(t, port)

	created, warnings, err := svc.Create(context.Background(), Task{Name: "patrol", Trigger: TriggerManual})
	require.NoError(t, err)
	assert.Empty(t, warnings)
	assert.Equal(t, "created-1", created.ID)
	assert.Equal(t, StateSubmitted, created.State.Top)

	_, ok := svc.Store().Get("created-1")
	assert.True(t, ok)
}

func TestService_CreateRefusesClientAssignedID(t *testing.T) {
	port := newFakePort()
	port.stubTasks()
	svc := newTestService(t, port)

	_, _, err := svc.Create(context.Background(), Task{ID: "mine", Name: "patrol", Trigger: TriggerManual})
	require.Error(t, err)
	assert.True(t, cerr.IsCode(err, cerr.InvalidArgument))
	assert.Zero(t, port.calls[transport.OpNewTasks])
}

func TestService_SaveMergesAuthoritativeCopy(t *testing.T) {
	port := newFakePort()
	port.stubTasks(Task{ID: "t1", Name: "old name", Trigger: TriggerManual, State: State{Top: StateWorking}})
	// The backend answer wins, including fields the console did not send.
	port.responses[transport.OpSaveTasks] = json.RawMessage(
		`{"task":{"id":"t1","name":"new name","trigger":"manual","skill":"inspection","state":{"top":"WORKING"}}}`)
	svc := newTestService(t, port)

	saved, _, err := svc.Save(context.Background(), Task{ID: "t1", Name: "new name", Trigger: TriggerManual})
	require.NoError(t, err)
	assert.Equal(t, "inspection", saved.Skill)

	got, ok := svc.Store().Get("t1")
	require.True(t, ok)
	assert.Equal(t, "new name", got.Name)
	assert.Equal(t, "inspection", got.Skill)
	assert.Equal(t, StateWorking, got.State.Top)
}

func TestService_SaveRejectsInvalidTaskWithoutInvoke(t *testing.T) {
	port := newFakePort()
	port.stubTasks(Task{ID: "t1", Name: "patrol", Trigger: TriggerManual})
	svc := newTestService(t, port)

	_, _, err := svc.Save(context.Background(), Task{ID: "t1", Trigger: TriggerManual})
	require.Error(t, err)
	assert.True(t, cerr.IsCode(err, cerr.InvalidArgument))
	assert.Zero(t, port.calls[transport.OpSaveTasks])
}
