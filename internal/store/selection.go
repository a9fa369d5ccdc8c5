package store

import "sync"

// Selection tracks the currently selected record of one store by its key,
// not by reference: the store replaces the whole items slice on refresh,
// so a held record would go stale immediately. Reads re-resolve the key
// against the live collection, and a selection whose record disappeared
// resolves to nothing rather than to a stale copy.
type Selection[T any] struct {
	store *Store[T]
	keyFn func(T) string

	mu       sync.RWMutex
	key      string
	selected bool
}

type SelectionOption[T any] func(*Selection[T])

// WithKeyFunc overrides the key extractor; the default is the store's own.
func WithKeyFunc[T any](keyFn func(T) string) SelectionOption[T] {
	return func(sel *Selection[T]) { sel.keyFn = keyFn }
}

func NewSelection[T any](s *Store[T], opts ...SelectionOption[T]) *Selection[T] {
	sel := &Selection[T]{
		store: s,
		keyFn: s.keyFn,
	}
	for _, opt := range opts {
		opt(sel)
	}
	return sel
}

func (sel *Selection[T]) Select(item T) {
	sel.SelectKey(sel.keyFn(item))
}

func (sel *Selection[T]) SelectKey(key string) {
	sel.mu.Lock()
	sel.key = key
	sel.selected = true
	sel.mu.Unlock()
}

// IsSelected compares by key, so a record from a fresh refresh still
// counts as selected even though it is a different value.
func (sel *Selection[T]) IsSelected(item T) bool {
	sel.mu.RLock()
	defer sel.mu.RUnlock()
	return sel.selected && sel.keyFn(item) == sel.key
}

// Selected returns the freshest copy of the selected record, or false
// when nothing is selected or the record no longer exists in the store.
func (sel *Selection[T]) Selected() (T, bool) {
	sel.mu.RLock()
	key, ok := sel.key, sel.selected
	sel.mu.RUnlock()
	if !ok {
		var zero T
		return zero, false
	}
	return sel.store.Get(key)
}

func (sel *Selection[T]) ClearSelection() {
	sel.mu.Lock()
	sel.key = ""
	sel.selected = false
	sel.mu.Unlock()
}
