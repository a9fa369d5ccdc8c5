package vehicle

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fleetdeck/fleetdeck/internal/transport"
	"github.com/fleetdeck/fleetdeck/pkg/cerr"
)

type scriptedPort struct {
	vehicles  []Vehicle
	updateErr error
	calls     map[string]int
}

func (p *scriptedPort) Invoke(ctx context.Context, operation string, params any) (json.RawMessage, error) {
	if p.calls == nil {
		p.calls = map[string]int{}
	}
	p.calls[operation]++
	switch operation {
	case transport.OpGetVehicles:
		return json.Marshal(map[string][]Vehicle{"vehicles": p.vehicles})
	case transport.OpUpdateVehicleStatus:
		if p.updateErr != nil {
			return nil, p.updateErr
		}
		return json.RawMessage(`{}`), nil
	default:
		return nil, errors.New("unexpected operation " + operation)
	}
}

func TestService_UpdateStatusAppliesLocallyFirst(t *testing.T) {
	ctx := context.Background()
	port := &scriptedPort{vehicles: []Vehicle{{ID: "v1", Status: StatusAvailable}}}
	svc := NewService(port, NewStore(port))
	require.NoError(t, svc.Store().Fetch(ctx, "alice"))

	require.NoError(t, svc.UpdateStatus(ctx, "v1", StatusCharging))

	got, ok := svc.Store().Get("v1")
	require.True(t, ok)
	assert.Equal(t, StatusCharging, got.Status)
	assert.Equal(t, 1, port.calls[transport.OpUpdateVehicleStatus])
}

func TestService_UpdateStatusKeepsLocalEditOnBackendFailure(t *testing.T) {
	ctx := context.Background()
	port := &scriptedPort{
		vehicles:  []Vehicle{{ID: "v1", Status: StatusAvailable}},
		updateErr: errors.New("connection refused"),
	}
	svc := NewService(port, NewStore(port))
	require.NoError(t, svc.Store().Fetch(ctx, "alice"))

	err := svc.UpdateStatus(ctx, "v1", StatusOffline)
	require.Error(t, err)
	assert.Equal(t, cerr.Unavailable, cerr.CodeOf(err))

	// No rollback: the optimistic edit stays until the next refresh.
	got, ok := svc.Store().Get("v1")
	require.True(t, ok)
	assert.Equal(t, StatusOffline, got.Status)
}

func TestService_UpdateStatusValidation(t *testing.T) {
	ctx := context.Background()
	port := &scriptedPort{vehicles: []Vehicle{{ID: "v1", Status: StatusAvailable}}}
	svc := NewService(port, NewStore(port))
	require.NoError(t, svc.Store().Fetch(ctx, "alice"))

	err := svc.UpdateStatus(ctx, "v1", Status("flying"))
	require.Error(t, err)
	assert.True(t, cerr.IsCode(err, cerr.InvalidArgument))
	assert.Zero(t, port.calls[transport.OpUpdateVehicleStatus])

	err = svc.UpdateStatus(ctx, "missing", StatusCharging)
	require.Error(t, err)
	assert.True(t, cerr.IsCode(err, cerr.NotFound))
}
