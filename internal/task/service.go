package task

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/fleetdeck/fleetdeck/internal/store"
	"github.com/fleetdeck/fleetdeck/internal/transport"
	"github.com/fleetdeck/fleetdeck/pkg/cerr"
)

// StoreName identifies the task collection in store events and session
// snapshots.
const StoreName = "tasks"

type listParams struct {
	Owner   string         `json:"owner"`
	Filters map[string]any `json:"filters,omitempty"`
}

type listResponse struct {
	Tasks []Task `json:"tasks"`
}

// NewStore builds the task collection store over a transport port.
func NewStore(port transport.Port, opts ...store.Option[Task]) *store.Store[Task] {
	fetch := func(ctx context.Context, owner string) ([]Task, error) {
		data, err := port.Invoke(ctx, transport.OpGetTasks, listParams{Owner: owner})
		if err != nil {
			return nil, err
		}
		var resp listResponse
		if err := json.Unmarshal(data, &resp); err != nil {
			return nil, cerr.NewError(cerr.Internal, "decode getTasks response", err)
		}
		return resp.Tasks, nil
	}
	return store.New(StoreName, Task.Key, fetch, opts...)
}

// Service drives task lifecycle commands against the backend and keeps
// the local collection aligned with what the backend answers.
type Service struct {
	port  transport.Port
	store *store.Store[Task]
}

func NewService(port transport.Port, s *store.Store[Task]) *Service {
	return &Service{port: port, store: s}
}

func (s *Service) Store() *store.Store[Task] {
	return s.store
}

// Create submits a new task. The id must be backend-assigned, so tasks
// carrying one are refused. The created record, state included, comes
// from the response.
func (s *Service) Create(ctx context.Context, t Task) (Task, []string, error) {
	if t.ID != "" {
		return Task{}, nil, cerr.NewError(cerr.InvalidArgument, "new tasks must not carry an id", nil)
	}
	payload, warnings, err := BuildSubmitPayload(t)
	if err != nil {
		return Task{}, nil, cerr.NewError(cerr.InvalidArgument, err.Error(), err)
	}
	data, err := s.port.Invoke(ctx, transport.OpNewTasks, payload)
	if err != nil {
		return Task{}, warnings, cerr.NewError(transport.CodeOf(err), "create task", err)
	}
	created, err := decodeTask(transport.OpNewTasks, data)
	if err != nil {
		return Task{}, warnings, err
	}
	s.store.Insert(created)
	return created, warnings, nil
}

// Save submits edits to an existing task and merges the backend's copy of
// the record back into the collection.
func (s *Service) Save(ctx context.Context, t Task) (Task, []string, error) {
	if t.ID == "" {
		return Task{}, nil, cerr.NewError(cerr.InvalidArgument, "task id is required", nil)
	}
	payload, warnings, err := BuildSubmitPayload(t)
	if err != nil {
		return Task{}, nil, cerr.NewError(cerr.InvalidArgument, err.Error(), err)
	}
	data, err := s.port.Invoke(ctx, transport.OpSaveTasks, payload)
	if err != nil {
		return Task{}, warnings, cerr.NewError(transport.CodeOf(err), "save task", err)
	}
	saved, err := decodeTask(transport.OpSaveTasks, data)
	if err != nil {
		return Task{}, warnings, err
	}
	if !s.store.UpdateLocal(saved.ID, func(cur *Task) { *cur = saved }) {
		s.store.Insert(saved)
	}
	return saved, warnings, nil
}

// Run starts or resumes a task. The post-command state is whatever the
// run response reports, not an assumption about what running means.
func (s *Service) Run(ctx context.Context, id string) (RunState, error) {
	return s.command(ctx, transport.OpRunTask, "run", id, RunState.CanRun)
}

// Pause interrupts a working task, parking it in INPUT_REQUIRED until a
// Run resumes it.
func (s *Service) Pause(ctx context.Context, id string) (RunState, error) {
	return s.command(ctx, transport.OpPauseTask, "pause", id, RunState.CanPause)
}

// Cancel terminally stops a task from any non-terminal state.
func (s *Service) Cancel(ctx context.Context, id string) (RunState, error) {
	return s.command(ctx, transport.OpCancelTask, "cancel", id, RunState.CanCancel)
}

type commandParams struct {
	ID string `json:"id"`
}

type commandResponse struct {
	State State `json:"state"`
}

func (s *Service) command(ctx context.Context, op, verb, id string, allowed func(RunState) bool) (RunState, error) {
	t, ok := s.store.Get(id)
	if !ok {
		return "", cerr.NewError(cerr.NotFound, fmt.Sprintf("task %s not found", id), nil)
	}
	if !allowed(t.State.Top) {
		return t.State.Top, cerr.NewError(cerr.FailedPrecondition,
			fmt.Sprintf("cannot %s task in state %s", verb, t.State.Top), nil)
	}

	data, err := s.port.Invoke(ctx, op, commandParams{ID: id})
	if err != nil {
		// The record keeps its pre-command state untouched.
		return t.State.Top, cerr.NewError(transport.CodeOf(err), fmt.Sprintf("%s task %s", verb, id), err)
	}

	var resp commandResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return t.State.Top, cerr.NewError(cerr.Internal, fmt.Sprintf("decode %s response", op), err)
	}
	next := resp.State.Top
	s.store.UpdateLocal(id, func(cur *Task) { cur.State.Top = next })
	slog.InfoContext(ctx, "task state changed",
		slog.String("task_id", id),
		slog.String("command", verb),
		slog.String("state", string(next)))
	return next, nil
}

func decodeTask(op string, data []byte) (Task, error) {
	var resp struct {
		Task Task `json:"task"`
	}
	if err := json.Unmarshal(data, &resp); err != nil {
		return Task{}, cerr.NewError(cerr.Internal, fmt.Sprintf("decode %s response", op), err)
	}
	if resp.Task.ID == "" {
		return Task{}, cerr.NewError(cerr.Internal, fmt.Sprintf("%s response missing task", op), nil)
	}
	return resp.Task, nil
}
