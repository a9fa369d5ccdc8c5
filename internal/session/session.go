// Package session persists a snapshot of the cached collections so the
// console can open with last-known data before the first refresh lands.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/fleetdeck/fleetdeck/internal/provider"
	"github.com/fleetdeck/fleetdeck/internal/store"
	"github.com/fleetdeck/fleetdeck/internal/task"
	"github.com/fleetdeck/fleetdeck/internal/tool"
	"github.com/fleetdeck/fleetdeck/internal/vehicle"
	"github.com/fleetdeck/fleetdeck/pkg/cerr"
	"github.com/fleetdeck/fleetdeck/pkg/storage"
)

const snapshotVersion = 1

// Snapshot is the on-disk session shape. Collections are stored as the
// backend last answered them; metadata json is dropped by the yaml tags.
type Snapshot struct {
	Version   int                 `yaml:"version"`
	Owner     string              `yaml:"owner"`
	SavedAt   time.Time           `yaml:"saved_at"`
	Tasks     []task.Task         `yaml:"tasks,omitempty"`
	Vehicles  []vehicle.Vehicle   `yaml:"vehicles,omitempty"`
	Tools     []tool.Tool         `yaml:"tools,omitempty"`
	Providers []provider.Provider `yaml:"providers,omitempty"`
}

// Manager saves and restores snapshots through a Storage backend, one
// file per owner.
type Manager struct {
	storage storage.Storage
	now     func() time.Time
}

func NewManager(s storage.Storage) *Manager {
	return &Manager{storage: s, now: time.Now}
}

func snapshotPath(owner string) string {
	return path.Join("sessions", owner+".yaml")
}

// Save captures the current contents of the collections for owner.
func (m *Manager) Save(ctx context.Context, owner string,
	tasks *store.Store[task.Task],
	vehicles *store.Store[vehicle.Vehicle],
	tools *store.Store[tool.Tool],
	providers *store.Store[provider.Provider],
) error {
	snap := Snapshot{
		Version: snapshotVersion,
		Owner:   owner,
		SavedAt: m.now(),
	}
	if tasks != nil {
		snap.Tasks = tasks.Items()
	}
	if vehicles != nil {
		snap.Vehicles = vehicles.Items()
	}
	if tools != nil {
		snap.Tools = tools.Items()
	}
	if providers != nil {
		snap.Providers = providers.Items()
	}

	data, err := yaml.Marshal(&snap)
	if err != nil {
		return cerr.NewError(cerr.Internal, "encode session snapshot", err)
	}
	if err := m.storage.Write(ctx, snapshotPath(owner), data); err != nil {
		return cerr.WrapStorageWriteError(snapshotPath(owner), err)
	}
	slog.InfoContext(ctx, "session snapshot saved",
		slog.String("owner", owner),
		slog.Int("tasks", len(snap.Tasks)),
		slog.Int("vehicles", len(snap.Vehicles)))
	return nil
}

// Load reads the snapshot for owner. A missing snapshot is a normal
// first run and comes back as (nil, nil).
func (m *Manager) Load(ctx context.Context, owner string) (*Snapshot, error) {
	data, err := m.storage.Read(ctx, snapshotPath(owner))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, nil
		}
		return nil, cerr.WrapStorageReadError(snapshotPath(owner), err)
	}
	var snap Snapshot
	if err := yaml.Unmarshal(data, &snap); err != nil {
		return nil, cerr.NewError(cerr.Internal, "decode session snapshot", err)
	}
	if snap.Version != snapshotVersion {
		return nil, cerr.NewError(cerr.FailedPrecondition,
			fmt.Sprintf("unsupported snapshot version %d", snap.Version), nil)
	}
	return &snap, nil
}

// Restore seeds the collections from a snapshot. Seeded data carries no
// freshness stamp, so the first Fetch after a restore still hits the
// backend.
func Restore(snap *Snapshot,
	tasks *store.Store[task.Task],
	vehicles *store.Store[vehicle.Vehicle],
	tools *store.Store[tool.Tool],
	providers *store.Store[provider.Provider],
) {
	if snap == nil {
		return
	}
	if tasks != nil {
		for _, t := range snap.Tasks {
			tasks.Insert(t)
		}
	}
	if vehicles != nil {
		for _, v := range snap.Vehicles {
			vehicles.Insert(v)
		}
	}
	if tools != nil {
		for _, t := range snap.Tools {
			tools.Insert(t)
		}
	}
	if providers != nil {
		for _, p := range snap.Providers {
			providers.Insert(p)
		}
	}
}

// Clear removes the snapshot for owner. Used on logout together with
// clearing the live collections.
func (m *Manager) Clear(ctx context.Context, owner string) error {
	err := m.storage.Delete(ctx, snapshotPath(owner))
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return cerr.WrapStorageDeleteError(snapshotPath(owner), err)
	}
	return nil
}
