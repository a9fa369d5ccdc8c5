// Package vehicle tracks the fleet's vehicle roster as seen by the
// backend, with an optimistic local path for status edits.
package vehicle

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/fleetdeck/fleetdeck/internal/store"
	"github.com/fleetdeck/fleetdeck/internal/transport"
	"github.com/fleetdeck/fleetdeck/pkg/cerr"
)

const StoreName = "vehicles"

type Status string

const (
	StatusAvailable   Status = "available"
	StatusInService   Status = "in_service"
	StatusCharging    Status = "charging"
	StatusMaintenance Status = "maintenance"
	StatusOffline     Status = "offline"
)

func (s Status) Valid() bool {
	switch s {
	case StatusAvailable, StatusInService, StatusCharging, StatusMaintenance, StatusOffline:
		return true
	}
	return false
}

type Vehicle struct {
	ID       string          `json:"id" yaml:"id"`
	Name     string          `json:"name" yaml:"name"`
	Owner    string          `json:"owner" yaml:"owner"`
	Kind     string          `json:"kind" yaml:"kind"`
	Status   Status          `json:"status" yaml:"status"`
	Location string          `json:"location,omitempty" yaml:"location,omitempty"`
	Battery  int             `json:"battery,omitempty" yaml:"battery,omitempty"`
	Metadata json.RawMessage `json:"metadata,omitempty" yaml:"-"`
}

func (v Vehicle) Key() string {
	return v.ID
}

type listParams struct {
	Owner string `json:"owner"`
}

type listResponse struct {
	Vehicles []Vehicle `json:"vehicles"`
}

func NewStore(port transport.Port, opts ...store.Option[Vehicle]) *store.Store[Vehicle] {
	fetch := func(ctx context.Context, owner string) ([]Vehicle, error) {
		data, err := port.Invoke(ctx, transport.OpGetVehicles, listParams{Owner: owner})
		if err != nil {
			return nil, err
		}
		var resp listResponse
		if err := json.Unmarshal(data, &resp); err != nil {
			return nil, cerr.NewError(cerr.Internal, "decode getVehicles response", err)
		}
		return resp.Vehicles, nil
	}
	return store.New(StoreName, Vehicle.Key, fetch, opts...)
}

type Service struct {
	port  transport.Port
	store *store.Store[Vehicle]
}

func NewService(port transport.Port, s *store.Store[Vehicle]) *Service {
	return &Service{port: port, store: s}
}

func (s *Service) Store() *store.Store[Vehicle] {
	return s.store
}

type updateStatusParams struct {
	ID     string `json:"id"`
	Status Status `json:"status"`
}

// UpdateStatus applies the new status to the cached record first, then
// tells the backend. A backend failure is reported but does not revert
// the local record; the next refresh reconciles it.
func (s *Service) UpdateStatus(ctx context.Context, id string, status Status) error {
	if !status.Valid() {
		return cerr.NewError(cerr.InvalidArgument, fmt.Sprintf("unknown vehicle status %q", status), nil)
	}
	if !s.store.UpdateLocal(id, func(v *Vehicle) { v.Status = status }) {
		return cerr.NewError(cerr.NotFound, fmt.Sprintf("vehicle %s not found", id), nil)
	}
	if _, err := s.port.Invoke(ctx, transport.OpUpdateVehicleStatus, updateStatusParams{ID: id, Status: status}); err != nil {
		slog.WarnContext(ctx, "vehicle status update not confirmed",
			slog.String("vehicle_id", id),
			slog.String("status", string(status)),
			slog.String("error", err.Error()))
		return cerr.NewError(transport.CodeOf(err), fmt.Sprintf("update vehicle %s status", id), err)
	}
	return nil
}
