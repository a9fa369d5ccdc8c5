// Package provider manages model provider configurations: the llm,
// embedding and rerank endpoints the backend runs tasks against.
package provider

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/fleetdeck/fleetdeck/internal/store"
	"github.com/fleetdeck/fleetdeck/internal/transport"
	"github.com/fleetdeck/fleetdeck/pkg/cerr"
)

const StoreName = "providers"

type Kind string

const (
	KindLLM       Kind = "llm"
	KindEmbedding Kind = "embedding"
	KindRerank    Kind = "rerank"
)

func (k Kind) Valid() bool {
	switch k {
	case KindLLM, KindEmbedding, KindRerank:
		return true
	}
	return false
}

type Provider struct {
	ID      string `json:"id" yaml:"id"`
	Name    string `json:"name" yaml:"name"`
	Kind    Kind   `json:"kind" yaml:"kind"`
	BaseURL string `json:"base_url" yaml:"base_url"`
	Model   string `json:"model" yaml:"model"`
	// APIKey never round-trips: the backend answers a masked value and
	// only a non-empty submission replaces the stored one.
	APIKey  string `json:"api_key,omitempty" yaml:"api_key,omitempty"`
	Default bool   `json:"default" yaml:"default"`
}

func (p Provider) Key() string {
	return p.ID
}

type listParams struct {
	Owner string `json:"owner"`
}

type listResponse struct {
	Providers []Provider `json:"providers"`
}

func NewStore(port transport.Port, opts ...store.Option[Provider]) *store.Store[Provider] {
	fetch := func(ctx context.Context, owner string) ([]Provider, error) {
		data, err := port.Invoke(ctx, transport.OpGetProviders, listParams{Owner: owner})
		if err != nil {
			return nil, err
		}
		var resp listResponse
		if err := json.Unmarshal(data, &resp); err != nil {
			return nil, cerr.NewError(cerr.Internal, "decode getProviders response", err)
		}
		return resp.Providers, nil
	}
	return store.New(StoreName, Provider.Key, fetch, opts...)
}

type Service struct {
	port  transport.Port
	store *store.Store[Provider]
}

func NewService(port transport.Port, s *store.Store[Provider]) *Service {
	return &Service{port: port, store: s}
}

func (s *Service) Store() *store.Store[Provider] {
	return s.store
}

// Save creates or updates a provider and folds the backend's copy back
// into the collection.
func (s *Service) Save(ctx context.Context, p Provider) (Provider, error) {
	if p.Name == "" {
		return Provider{}, cerr.NewError(cerr.InvalidArgument, "provider name is required", nil)
	}
	if !p.Kind.Valid() {
		return Provider{}, cerr.NewError(cerr.InvalidArgument, fmt.Sprintf("unknown provider kind %q", p.Kind), nil)
	}
	if p.BaseURL == "" {
		return Provider{}, cerr.NewError(cerr.InvalidArgument, "provider base_url is required", nil)
	}
	data, err := s.port.Invoke(ctx, transport.OpSaveProvider, p)
	if err != nil {
		return Provider{}, cerr.NewError(transport.CodeOf(err), "save provider", err)
	}
	var resp struct {
		Provider Provider `json:"provider"`
	}
	if err := json.Unmarshal(data, &resp); err != nil {
		return Provider{}, cerr.NewError(cerr.Internal, "decode saveProvider response", err)
	}
	saved := resp.Provider
	if !s.store.UpdateLocal(saved.ID, func(cur *Provider) { *cur = saved }) {
		s.store.Insert(saved)
	}
	return saved, nil
}

type idParams struct {
	ID string `json:"id"`
}

// Delete removes a provider on the backend, then from the collection.
func (s *Service) Delete(ctx context.Context, id string) error {
	if _, ok := s.store.Get(id); !ok {
		return cerr.NewError(cerr.NotFound, fmt.Sprintf("provider %s not found", id), nil)
	}
	if _, err := s.port.Invoke(ctx, transport.OpDeleteProvider, idParams{ID: id}); err != nil {
		return cerr.NewError(transport.CodeOf(err), fmt.Sprintf("delete provider %s", id), err)
	}
	s.store.Remove(id)
	return nil
}

// TestResult reports a connectivity probe against a provider's endpoint.
type TestResult struct {
	OK        bool   `json:"ok"`
	LatencyMS int    `json:"latency_ms"`
	Detail    string `json:"detail,omitempty"`
}

// Test asks the backend to probe the provider. A reachable-but-failing
// provider is a normal result, not an invoke error.
func (s *Service) Test(ctx context.Context, id string) (TestResult, error) {
	data, err := s.port.Invoke(ctx, transport.OpTestProvider, idParams{ID: id})
	if err != nil {
		if rej, ok := transport.AsRejection(err); ok {
			return TestResult{OK: false, Detail: rej.Message}, nil
		}
		return TestResult{}, cerr.NewError(transport.CodeOf(err), fmt.Sprintf("test provider %s", id), err)
	}
	var result TestResult
	if err := json.Unmarshal(data, &result); err != nil {
		return TestResult{}, cerr.NewError(cerr.Internal, "decode testProvider response", err)
	}
	return result, nil
}
