// Package store implements the client-resident cache engine for
// backend-owned entity collections. One Store instance serves one entity
// type; the engine answers reads from memory, refreshes through a fetch
// operation when the cached collection goes stale, and coalesces
// concurrent refreshes into a single backend call.
package store

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// FreshnessWindow is how long a fetched collection is served without
// another backend call. It is uniform across entity types.
const FreshnessWindow = 5 * time.Minute

// FetchFunc loads the full collection for an owner from the backend.
type FetchFunc[T any] func(ctx context.Context, owner string) ([]T, error)

// Store caches one entity collection. All mutation goes through its
// methods; readers get copies and never see a half-applied refresh.
type Store[T any] struct {
	name   string
	keyFn  func(T) string
	fetch  FetchFunc[T]
	window time.Duration
	now    func() time.Time

	mu            sync.RWMutex
	items         []T
	loading       bool
	fetchErr      string
	lastFetchedAt time.Time

	group singleflight.Group
	bus   *bus
}

type Option[T any] func(*Store[T])

// WithWindow overrides the freshness window (tests shrink it).
func WithWindow[T any](d time.Duration) Option[T] {
	return func(s *Store[T]) { s.window = d }
}

// WithClock overrides the time source (tests pin it).
func WithClock[T any](now func() time.Time) Option[T] {
	return func(s *Store[T]) { s.now = now }
}

func New[T any](name string, keyFn func(T) string, fetch FetchFunc[T], opts ...Option[T]) *Store[T] {
	s := &Store[T]{
		name:   name,
		keyFn:  keyFn,
		fetch:  fetch,
		window: FreshnessWindow,
		now:    time.Now,
		bus:    newBus(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store[T]) Name() string {
	return s.name
}

// Items returns a copy of the cached collection in backend order.
func (s *Store[T]) Items() []T {
	s.mu.RLock()
	defer s.mu.RUnlock()
	items := make([]T, len(s.items))
	copy(items, s.items)
	return items
}

// Get re-resolves an id against the current collection.
func (s *Store[T]) Get(key string) (T, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, item := range s.items {
		if s.keyFn(item) == key {
			return item, true
		}
	}
	var zero T
	return zero, false
}

func (s *Store[T]) Key(item T) string {
	return s.keyFn(item)
}

func (s *Store[T]) Loading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loading
}

// Err returns the failure description of the last fetch, empty after a
// successful one.
func (s *Store[T]) Err() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.fetchErr
}

func (s *Store[T]) LastFetchedAt() (time.Time, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastFetchedAt, !s.lastFetchedAt.IsZero()
}

// Fetch loads the collection if it was never fetched or has gone stale.
// A call that lands while another fetch is in flight joins it instead of
// issuing a second backend call, and reports that fetch's outcome.
func (s *Store[T]) Fetch(ctx context.Context, owner string) error {
	s.mu.RLock()
	fresh := !s.lastFetchedAt.IsZero() && s.now().Sub(s.lastFetchedAt) <= s.window
	s.mu.RUnlock()
	if fresh {
		return nil
	}
	return s.refresh(ctx, owner)
}

// ForceRefresh discards the freshness stamp and fetches unconditionally.
func (s *Store[T]) ForceRefresh(ctx context.Context, owner string) error {
	s.mu.Lock()
	s.lastFetchedAt = time.Time{}
	s.mu.Unlock()
	return s.refresh(ctx, owner)
}

func (s *Store[T]) refresh(ctx context.Context, owner string) error {
	_, err, _ := s.group.Do(owner, func() (any, error) {
		s.mu.Lock()
		s.loading = true
		s.fetchErr = ""
		s.mu.Unlock()

		items, err := s.fetch(ctx, owner)

		s.mu.Lock()
		s.loading = false
		if err != nil {
			// Last-known-good stays visible; only the error flag changes.
			s.fetchErr = err.Error()
			s.mu.Unlock()
			s.bus.publish(EventFetchFailed, s.name, "", err.Error())
			return nil, err
		}
		s.items = items
		s.fetchErr = ""
		s.lastFetchedAt = s.now()
		s.mu.Unlock()
		s.bus.publish(EventRefreshed, s.name, "", "")
		return nil, nil
	})
	return err
}

// UpdateLocal merges a change into the cached record for key without a
// backend call, so reads reflect a pending edit before the backend
// confirms it. There is no rollback: the caller owns issuing the paired
// backend mutation and reconciling if it fails.
func (s *Store[T]) UpdateLocal(key string, mutate func(*T)) bool {
	s.mu.Lock()
	updated := false
	for i := range s.items {
		if s.keyFn(s.items[i]) == key {
			mutate(&s.items[i])
			updated = true
			break
		}
	}
	s.mu.Unlock()
	if updated {
		s.bus.publish(EventUpdated, s.name, key, "")
	}
	return updated
}

// Insert appends a record the backend just created.
func (s *Store[T]) Insert(item T) {
	s.mu.Lock()
	s.items = append(s.items, item)
	s.mu.Unlock()
	s.bus.publish(EventUpdated, s.name, s.keyFn(item), "")
}

// Remove drops a record the backend just deleted.
func (s *Store[T]) Remove(key string) bool {
	s.mu.Lock()
	removed := false
	for i := range s.items {
		if s.keyFn(s.items[i]) == key {
			s.items = append(s.items[:i], s.items[i+1:]...)
			removed = true
			break
		}
	}
	s.mu.Unlock()
	if removed {
		s.bus.publish(EventUpdated, s.name, key, "")
	}
	return removed
}

// Clear resets the store to its initial empty state. Used on logout and
// user switch.
func (s *Store[T]) Clear() {
	s.mu.Lock()
	s.items = nil
	s.loading = false
	s.fetchErr = ""
	s.lastFetchedAt = time.Time{}
	s.mu.Unlock()
	s.bus.publish(EventCleared, s.name, "", "")
}

// Subscribe registers a change listener. Events are dropped, not
// blocked on, when the subscriber's buffer is full.
func (s *Store[T]) Subscribe(bufSize int) (string, <-chan Event) {
	return s.bus.subscribe(bufSize)
}

func (s *Store[T]) Unsubscribe(id string) {
	s.bus.unsubscribe(id)
}
