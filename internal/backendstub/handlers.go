package backendstub

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/fleetdeck/fleetdeck/internal/provider"
	"github.com/fleetdeck/fleetdeck/internal/task"
	"github.com/fleetdeck/fleetdeck/internal/tool"
	"github.com/fleetdeck/fleetdeck/internal/transport"
	"github.com/fleetdeck/fleetdeck/internal/vehicle"
	"github.com/fleetdeck/fleetdeck/pkg/cerr"
	"github.com/fleetdeck/fleetdeck/pkg/storage"
)

// Handler answers invoke operations against YAML-backed repositories. It
// mimics the production backend's contract closely enough for console
// development: envelope responses, backend-assigned ids, and run-state
// transitions enforced server side.
type Handler struct {
	tasks     *Repository[task.Task]
	vehicles  *Repository[vehicle.Vehicle]
	tools     *Repository[tool.Tool]
	providers *Repository[provider.Provider]
	now       func() time.Time
}

func NewHandler(s storage.Storage) *Handler {
	return &Handler{
		tasks:     NewRepository(s, "tasks", "task", task.Task.Key),
		vehicles:  NewRepository(s, "vehicles", "vehicle", vehicle.Vehicle.Key),
		tools:     NewRepository(s, "tools", "tool", tool.Tool.Key),
		providers: NewRepository(s, "providers", "provider", provider.Provider.Key),
		now:       time.Now,
	}
}

// Invoke dispatches one named operation. Unknown operations come back as
// Unimplemented so a newer console fails loudly against an older stub.
func (h *Handler) Invoke(ctx context.Context, operation string, params json.RawMessage) (any, error) {
	switch operation {
	case transport.OpGetTasks:
		return h.getTasks(ctx)
	case transport.OpNewTasks:
		return h.newTask(ctx, params)
	case transport.OpSaveTasks:
		return h.saveTask(ctx, params)
	case transport.OpRunTask:
		return h.taskCommand(ctx, params, "run")
	case transport.OpPauseTask:
		return h.taskCommand(ctx, params, "pause")
	case transport.OpCancelTask:
		return h.taskCommand(ctx, params, "cancel")
	case transport.OpGetVehicles:
		return h.getVehicles(ctx)
	case transport.OpUpdateVehicleStatus:
		return h.updateVehicleStatus(ctx, params)
	case transport.OpGetTools:
		return h.getTools(ctx, params)
	case transport.OpGetProviders:
		return h.getProviders(ctx)
	case transport.OpSaveProvider:
		return h.saveProvider(ctx, params)
	case transport.OpDeleteProvider:
		return h.deleteProvider(ctx, params)
	case transport.OpTestProvider:
		return h.testProvider(ctx, params)
	default:
		return nil, cerr.NewError(cerr.Unimplemented, fmt.Sprintf("unknown operation %q", operation), nil)
	}
}

func decodeParams[T any](params json.RawMessage, into *T) error {
	if len(params) == 0 {
		return nil
	}
	if err := json.Unmarshal(params, into); err != nil {
		return cerr.NewError(cerr.InvalidArgument, "invalid params", err)
	}
	return nil
}

func (h *Handler) getTasks(ctx context.Context) (any, error) {
	tasks, err := h.tasks.List(ctx)
	if err != nil {
		return nil, err
	}
	if tasks == nil {
		tasks = []task.Task{}
	}
	return map[string]any{"tasks": tasks}, nil
}

func (h *Handler) newTask(ctx context.Context, params json.RawMessage) (any, error) {
	var t task.Task
	if err := decodeParams(params, &t); err != nil {
		return nil, err
	}
	if t.ID != "" {
		return nil, cerr.NewError(cerr.InvalidArgument, "id is assigned by the backend", nil)
	}
	if _, _, err := task.BuildSubmitPayload(t); err != nil {
		return nil, cerr.NewError(cerr.InvalidArgument, err.Error(), err)
	}
	t.ID = ulid.Make().String()
	t.State = task.State{Top: task.StateSubmitted}
	if err := h.tasks.Create(ctx, t); err != nil {
		return nil, err
	}
	return map[string]any{"task": t}, nil
}

func (h *Handler) saveTask(ctx context.Context, params json.RawMessage) (any, error) {
	var incoming task.Task
	if err := decodeParams(params, &incoming); err != nil {
		return nil, err
	}
	cur, err := h.tasks.Get(ctx, incoming.ID)
	if err != nil {
		return nil, err
	}
	// Run state is not editable through saves.
	incoming.State = cur.State
	incoming.LastRunAt = cur.LastRunAt
	if err := h.tasks.Update(ctx, incoming); err != nil {
		return nil, err
	}
	return map[string]any{"task": incoming}, nil
}

type idParams struct {
	ID string `json:"id"`
}

func (h *Handler) taskCommand(ctx context.Context, params json.RawMessage, verb string) (any, error) {
	var p idParams
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	t, err := h.tasks.Get(ctx, p.ID)
	if err != nil {
		return nil, err
	}

	var next task.RunState
	switch verb {
	case "run":
		if !t.State.Top.CanRun() {
			return nil, transitionErr(verb, t.State.Top)
		}
		next = task.StateWorking
	case "pause":
		if !t.State.Top.CanPause() {
			return nil, transitionErr(verb, t.State.Top)
		}
		next = task.StateInputRequired
	case "cancel":
		if !t.State.Top.CanCancel() {
			return nil, transitionErr(verb, t.State.Top)
		}
		next = task.StateCanceled
	}

	t.State.Top = next
	if verb == "run" {
		at := task.NewWireTime(h.now())
		t.LastRunAt = &at
	}
	if err := h.tasks.Update(ctx, t); err != nil {
		return nil, err
	}
	return map[string]any{"state": t.State}, nil
}

func transitionErr(verb string, from task.RunState) error {
	return cerr.NewError(cerr.FailedPrecondition,
		fmt.Sprintf("cannot %s task in state %s", verb, from), nil)
}

func (h *Handler) getVehicles(ctx context.Context) (any, error) {
	vehicles, err := h.vehicles.List(ctx)
	if err != nil {
		return nil, err
	}
	if vehicles == nil {
		vehicles = []vehicle.Vehicle{}
	}
	return map[string]any{"vehicles": vehicles}, nil
}

func (h *Handler) updateVehicleStatus(ctx context.Context, params json.RawMessage) (any, error) {
	var p struct {
		ID     string         `json:"id"`
		Status vehicle.Status `json:"status"`
	}
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	if !p.Status.Valid() {
		return nil, cerr.NewError(cerr.InvalidArgument, fmt.Sprintf("unknown vehicle status %q", p.Status), nil)
	}
	v, err := h.vehicles.Get(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	v.Status = p.Status
	if err := h.vehicles.Update(ctx, v); err != nil {
		return nil, err
	}
	return map[string]any{"vehicle": v}, nil
}

func (h *Handler) getTools(ctx context.Context, params json.RawMessage) (any, error) {
	var p struct {
		Filters tool.Filters `json:"filters"`
	}
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	tools, err := h.tools.List(ctx)
	if err != nil {
		return nil, err
	}
	filtered := make([]tool.Tool, 0, len(tools))
	for _, t := range tools {
		if p.Filters.Category != "" && t.Category != p.Filters.Category {
			continue
		}
		if p.Filters.Tag != "" && !hasTag(t.Tags, p.Filters.Tag) {
			continue
		}
		if p.Filters.EnabledOnly && !t.Enabled {
			continue
		}
		filtered = append(filtered, t)
	}
	return map[string]any{"tools": filtered}, nil
}

func hasTag(tags []string, tag string) bool {
	for _, t := range tags {
		if strings.EqualFold(t, tag) {
			return true
		}
	}
	return false
}

func (h *Handler) getProviders(ctx context.Context) (any, error) {
	providers, err := h.providers.List(ctx)
	if err != nil {
		return nil, err
	}
	masked := make([]provider.Provider, 0, len(providers))
	for _, p := range providers {
		p.APIKey = maskKey(p.APIKey)
		masked = append(masked, p)
	}
	return map[string]any{"providers": masked}, nil
}

func (h *Handler) saveProvider(ctx context.Context, params json.RawMessage) (any, error) {
	var p provider.Provider
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	if p.Name == "" || !p.Kind.Valid() || p.BaseURL == "" {
		return nil, cerr.NewError(cerr.InvalidArgument, "provider name, kind and base_url are required", nil)
	}
	if p.ID == "" {
		p.ID = ulid.Make().String()
		if err := h.providers.Create(ctx, p); err != nil {
			return nil, err
		}
	} else {
		cur, err := h.providers.Get(ctx, p.ID)
		if err != nil {
			return nil, err
		}
		// Empty submitted key keeps the stored one.
		if p.APIKey == "" {
			p.APIKey = cur.APIKey
		}
		if err := h.providers.Update(ctx, p); err != nil {
			return nil, err
		}
	}
	p.APIKey = maskKey(p.APIKey)
	return map[string]any{"provider": p}, nil
}

func (h *Handler) deleteProvider(ctx context.Context, params json.RawMessage) (any, error) {
	var p idParams
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	if err := h.providers.Delete(ctx, p.ID); err != nil {
		return nil, err
	}
	return map[string]any{"deleted": p.ID}, nil
}

func (h *Handler) testProvider(ctx context.Context, params json.RawMessage) (any, error) {
	var p idParams
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	prov, err := h.providers.Get(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	// The stub has no model endpoints to probe; a configured provider
	// passes, an unconfigured one fails.
	if prov.APIKey == "" {
		return provider.TestResult{OK: false, Detail: "no api key configured"}, nil
	}
	return provider.TestResult{OK: true, LatencyMS: 1}, nil
}

func maskKey(key string) string {
	if len(key) <= 4 {
		if key == "" {
			return ""
		}
		return "****"
	}
	return "****" + key[len(key)-4:]
}
