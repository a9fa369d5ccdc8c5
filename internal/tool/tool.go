// Package tool mirrors the backend's tool catalog. The catalog is
// read-only from the console; filters are fixed when the store is built
// so every refresh asks the same question.
package tool

import (
	"context"
	"encoding/json"

	"github.com/fleetdeck/fleetdeck/internal/store"
	"github.com/fleetdeck/fleetdeck/internal/transport"
	"github.com/fleetdeck/fleetdeck/pkg/cerr"
)

const StoreName = "tools"

type Tool struct {
	ID          string   `json:"id" yaml:"id"`
	Name        string   `json:"name" yaml:"name"`
	Description string   `json:"description" yaml:"description"`
	Category    string   `json:"category,omitempty" yaml:"category,omitempty"`
	Tags        []string `json:"tags,omitempty" yaml:"tags,omitempty"`
	Enabled     bool     `json:"enabled" yaml:"enabled"`
}

func (t Tool) Key() string {
	return t.ID
}

// Filters narrow what the backend returns. Zero values mean "all".
type Filters struct {
	Category    string `json:"category,omitempty"`
	Tag         string `json:"tag,omitempty"`
	EnabledOnly bool   `json:"enabled_only,omitempty"`
}

type listParams struct {
	Owner   string  `json:"owner"`
	Filters Filters `json:"filters"`
}

type listResponse struct {
	Tools []Tool `json:"tools"`
}

func NewStore(port transport.Port, filters Filters, opts ...store.Option[Tool]) *store.Store[Tool] {
	fetch := func(ctx context.Context, owner string) ([]Tool, error) {
		data, err := port.Invoke(ctx, transport.OpGetTools, listParams{Owner: owner, Filters: filters})
		if err != nil {
			return nil, err
		}
		var resp listResponse
		if err := json.Unmarshal(data, &resp); err != nil {
			return nil, cerr.NewError(cerr.Internal, "decode getTools response", err)
		}
		return resp.Tools, nil
	}
	return store.New(StoreName, Tool.Key, fetch, opts...)
}
