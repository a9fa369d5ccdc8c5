// Package console wires the client core together for the CLI: config,
// transport, the entity stores and their services, session snapshots and
// store warmup.
package console

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/fleetdeck/fleetdeck/internal/config"
	"github.com/fleetdeck/fleetdeck/internal/provider"
	"github.com/fleetdeck/fleetdeck/internal/session"
	"github.com/fleetdeck/fleetdeck/internal/store"
	"github.com/fleetdeck/fleetdeck/internal/task"
	"github.com/fleetdeck/fleetdeck/internal/tool"
	"github.com/fleetdeck/fleetdeck/internal/transport"
	"github.com/fleetdeck/fleetdeck/internal/vehicle"
	"github.com/fleetdeck/fleetdeck/pkg/cerr"
	"github.com/fleetdeck/fleetdeck/pkg/clog"
	"github.com/fleetdeck/fleetdeck/pkg/storage"
)

// Console owns one owner's view of the backend.
type Console struct {
	env   *config.Env
	owner string

	port transport.Port

	tasks     *task.Service
	vehicles  *vehicle.Service
	tools     *store.Store[tool.Tool]
	providers *provider.Service

	taskSelection *store.Selection[task.Task]

	session   *session.Manager
	preloader *store.Preloader
}

func New(owner string) (*Console, error) {
	env, err := config.LoadEnv()
	if err != nil {
		return nil, err
	}
	clog.Setup(env.SlogLevel())

	if owner == "" {
		owner = env.Owner
	}
	if owner == "" {
		return nil, cerr.NewError(cerr.InvalidArgument, "owner is required (flag --owner or FLEETDECK_OWNER)", nil)
	}

	var opts []transport.HTTPOption
	if env.APIKey != "" {
		opts = append(opts, transport.WithAPIKey(env.APIKey))
	}
	if env.RequestTimeout > 0 {
		opts = append(opts, transport.WithTimeout(env.RequestTimeout))
	}
	port := transport.NewHTTPPort(env.BackendURL, opts...)

	var sess *session.Manager
	switch env.StorageEnv.Type {
	case "s3":
		s3, err := storage.NewS3Storage(context.Background(), env.StorageEnv.S3Bucket, env.StorageEnv.S3Prefix, env.StorageEnv.S3Region)
		if err != nil {
			return nil, err
		}
		sess = session.NewManager(s3)
	default:
		local, err := storage.NewLocalStorage(env.StorageEnv.BaseDir)
		if err != nil {
			return nil, err
		}
		sess = session.NewManager(local)
	}

	taskStore := task.NewStore(port)
	vehicleStore := vehicle.NewStore(port)
	toolStore := tool.NewStore(port, tool.Filters{})
	providerStore := provider.NewStore(port)

	preloader := store.NewPreloader()
	store.RegisterStore(preloader, taskStore, owner)
	store.RegisterStore(preloader, vehicleStore, owner)
	store.RegisterStore(preloader, toolStore, owner)
	store.RegisterStore(preloader, providerStore, owner)

	// Seed from the last session so lists have content before the first
	// fetch lands. Seeded data carries no freshness stamp and still
	// triggers a real fetch.
	if snap, err := sess.Load(context.Background(), owner); err != nil {
		slog.Warn("failed to load session snapshot", "owner", owner, "error", err)
	} else {
		session.Restore(snap, taskStore, vehicleStore, toolStore, providerStore)
	}

	return &Console{
		env:           env,
		owner:         owner,
		port:          port,
		tasks:         task.NewService(port, taskStore),
		vehicles:      vehicle.NewService(port, vehicleStore),
		tools:         toolStore,
		providers:     provider.NewService(port, providerStore),
		taskSelection: store.NewSelection(taskStore),
		session:       sess,
		preloader:     preloader,
	}, nil
}

// Refresh force-refreshes every collection in parallel and snapshots the
// result for the next start.
func (c *Console) Refresh(ctx context.Context) error {
	c.tasks.Store().Clear()
	c.vehicles.Store().Clear()
	c.tools.Clear()
	c.providers.Store().Clear()
	if err := c.preloader.Warm(ctx); err != nil {
		return err
	}
	if err := c.session.Save(ctx, c.owner, c.tasks.Store(), c.vehicles.Store(), c.tools, c.providers.Store()); err != nil {
		return err
	}
	fmt.Printf("refreshed %d tasks, %d vehicles, %d tools, %d providers\n",
		len(c.tasks.Store().Items()),
		len(c.vehicles.Store().Items()),
		len(c.tools.Items()),
		len(c.providers.Store().Items()))
	return nil
}

func (c *Console) ListTasks(ctx context.Context) error {
	if err := c.tasks.Store().Fetch(ctx, c.owner); err != nil {
		return err
	}
	printTasks(c.tasks.Store().Items())
	return nil
}

func (c *Console) ShowTask(ctx context.Context, id string) error {
	if err := c.tasks.Store().Fetch(ctx, c.owner); err != nil {
		return err
	}
	c.taskSelection.SelectKey(id)
	t, ok := c.taskSelection.Selected()
	if !ok {
		return cerr.NewError(cerr.NotFound, fmt.Sprintf("task %s not found", id), nil)
	}
	printTaskDetail(t)
	return nil
}

// CreateTaskInput is the flat flag shape the CLI collects.
type CreateTaskInput struct {
	Name         string
	Description  string
	Skill        string
	Priority     string
	Trigger      string
	Start        string
	End          string
	RepeatType   string
	RepeatNumber int
	Timeout      int
}

func (in CreateTaskInput) toTask(owner string) (task.Task, error) {
	t := task.Task{
		Name:        in.Name,
		Owner:       owner,
		Description: in.Description,
		Skill:       in.Skill,
		Priority:    task.ParsePriority(in.Priority),
		Trigger:     task.Trigger(in.Trigger),
	}
	if in.Start != "" || in.RepeatType != "" && in.RepeatType != "none" {
		start, err := task.ParseWireTime(in.Start)
		if err != nil {
			return task.Task{}, err
		}
		sched := task.Schedule{
			RepeatType:    task.RepeatType(in.RepeatType),
			RepeatNumber:  in.RepeatNumber,
			StartDateTime: start,
			TimeOut:       in.Timeout,
		}
		if in.End != "" {
			end, err := task.ParseWireTime(in.End)
			if err != nil {
				return task.Task{}, err
			}
			sched.EndDateTime = &end
		}
		t.Schedule = &sched
	}
	return t, nil
}

func (c *Console) CreateTask(ctx context.Context, in CreateTaskInput) error {
	t, err := in.toTask(c.owner)
	if err != nil {
		return err
	}
	if err := c.tasks.Store().Fetch(ctx, c.owner); err != nil {
		return err
	}
	created, warnings, err := c.tasks.Create(ctx, t)
	if err != nil {
		return err
	}
	for _, w := range warnings {
		printWarning(w)
	}
	fmt.Printf("created task %s (%s)\n", created.ID, created.State.Top)
	return nil
}

func (c *Console) RunTask(ctx context.Context, id string) error {
	return c.taskCommand(ctx, id, "run", c.tasks.Run)
}

func (c *Console) PauseTask(ctx context.Context, id string) error {
	return c.taskCommand(ctx, id, "pause", c.tasks.Pause)
}

func (c *Console) CancelTask(ctx context.Context, id string) error {
	return c.taskCommand(ctx, id, "cancel", c.tasks.Cancel)
}

func (c *Console) taskCommand(ctx context.Context, id, verb string, cmd func(context.Context, string) (task.RunState, error)) error {
	if err := c.tasks.Store().Fetch(ctx, c.owner); err != nil {
		return err
	}
	state, err := cmd(ctx, id)
	if err != nil {
		return err
	}
	fmt.Printf("%s task %s: %s\n", verb, id, colorState(state))
	return nil
}

func (c *Console) ListVehicles(ctx context.Context) error {
	if err := c.vehicles.Store().Fetch(ctx, c.owner); err != nil {
		return err
	}
	printVehicles(c.vehicles.Store().Items())
	return nil
}

func (c *Console) UpdateVehicleStatus(ctx context.Context, id, status string) error {
	if err := c.vehicles.Store().Fetch(ctx, c.owner); err != nil {
		return err
	}
	if err := c.vehicles.UpdateStatus(ctx, id, vehicle.Status(strings.ToLower(status))); err != nil {
		return err
	}
	fmt.Printf("vehicle %s is now %s\n", id, strings.ToLower(status))
	return nil
}

func (c *Console) ListTools(ctx context.Context, category, tag string, enabledOnly bool) error {
	tools := c.tools
	if category != "" || tag != "" || enabledOnly {
		tools = tool.NewStore(c.port, tool.Filters{Category: category, Tag: tag, EnabledOnly: enabledOnly})
	}
	if err := tools.Fetch(ctx, c.owner); err != nil {
		return err
	}
	printTools(tools.Items())
	return nil
}

func (c *Console) ListProviders(ctx context.Context) error {
	if err := c.providers.Store().Fetch(ctx, c.owner); err != nil {
		return err
	}
	printProviders(c.providers.Store().Items())
	return nil
}

func (c *Console) TestProvider(ctx context.Context, id string) error {
	result, err := c.providers.Test(ctx, id)
	if err != nil {
		return err
	}
	printTestResult(id, result)
	return nil
}
