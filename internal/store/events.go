package store

import (
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

type EventType string

const (
	EventRefreshed   EventType = "REFRESHED"
	EventUpdated     EventType = "UPDATED"
	EventCleared     EventType = "CLEARED"
	EventFetchFailed EventType = "FETCH_FAILED"
)

// Event notifies subscribers that a store mutated, so presentation
// re-reads its accessors. Key is set for single-record updates only.
type Event struct {
	ID        string
	Type      EventType
	Store     string
	Key       string
	Message   string
	CreatedAt time.Time
}

type bus struct {
	mu          sync.RWMutex
	subscribers map[string]chan Event
}

func newBus() *bus {
	return &bus{
		subscribers: make(map[string]chan Event),
	}
}

func (b *bus) subscribe(bufSize int) (string, <-chan Event) {
	id := ulid.Make().String()
	ch := make(chan Event, bufSize)
	b.mu.Lock()
	b.subscribers[id] = ch
	b.mu.Unlock()
	return id, ch
}

func (b *bus) unsubscribe(id string) {
	b.mu.Lock()
	if ch, ok := b.subscribers[id]; ok {
		close(ch)
		delete(b.subscribers, id)
	}
	b.mu.Unlock()
}

func (b *bus) publish(eventType EventType, storeName, key, message string) {
	event := Event{
		ID:        ulid.Make().String(),
		Type:      eventType,
		Store:     storeName,
		Key:       key,
		Message:   message,
		CreatedAt: time.Now(),
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.subscribers {
		select {
		case ch <- event:
		default:
			// buffer full, drop event for this subscriber
		}
	}
}
