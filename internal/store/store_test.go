package store

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type record struct {
	ID   string
	Name string
}

func recordKey(r record) string { return r.ID }

func TestStore_FetchServesFreshDataWithoutRefetch(t *testing.T) {
	ctx := context.Background()
	var calls atomic.Int32
	now := time.Now()

	s := New("records", recordKey, func(ctx context.Context, owner string) ([]record, error) {
		calls.Add(1)
		return []record{{ID: "r1", Name: "first"}}, nil
	}, WithClock[record](func() time.Time { return now }))

	require.NoError(t, s.Fetch(ctx, "alice"))
	require.NoError(t, s.Fetch(ctx, "alice"))
	require.NoError(t, s.Fetch(ctx, "alice"))

	assert.Equal(t, int32(1), calls.Load())
	assert.Len(t, s.Items(), 1)
}

func TestStore_FetchRefetchesAfterWindowExpires(t *testing.T) {
	ctx := context.Background()
	var calls atomic.Int32
	now := time.Now()

	s := New("records", recordKey, func(ctx context.Context, owner string) ([]record, error) {
		calls.Add(1)
		return []record{{ID: "r1"}}, nil
	}, WithClock[record](func() time.Time { return now }))

	require.NoError(t, s.Fetch(ctx, "alice"))
	now = now.Add(FreshnessWindow + time.Second)
	require.NoError(t, s.Fetch(ctx, "alice"))

	assert.Equal(t, int32(2), calls.Load())
}

func TestStore_ForceRefreshIgnoresFreshness(t *testing.T) {
	ctx := context.Background()
	var calls atomic.Int32

	s := New("records", recordKey, func(ctx context.Context, owner string) ([]record, error) {
		calls.Add(1)
		return []record{{ID: "r1"}}, nil
	})

	require.NoError(t, s.Fetch(ctx, "alice"))
	require.NoError(t, s.ForceRefresh(ctx, "alice"))

	assert.Equal(t, int32(2), calls.Load())
}

func TestStore_ConcurrentFetchesCoalesceIntoOneCall(t *testing.T) {
	ctx := context.Background()
	var calls atomic.Int32
	release := make(chan struct{})

	s := New("records", recordKey, func(ctx context.Context, owner string) ([]record, error) {
		calls.Add(1)
		<-release
		return []record{{ID: "r1", Name: "shared"}}, nil
	})

	const waiters = 5
	var wg sync.WaitGroup
	errs := make([]error, waiters)
	for i := 0; i < waiters; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = s.Fetch(ctx, "alice")
		}(i)
	}

	// Give the goroutines time to pile up behind the in-flight fetch.
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
	for _, err := range errs {
		assert.NoError(t, err)
	}
	got, ok := s.Get("r1")
	require.True(t, ok)
	assert.Equal(t, "shared", got.Name)
}

func TestStore_FailedFetchKeepsLastKnownGood(t *testing.T) {
	ctx := context.Background()
	fail := false

	s := New("records", recordKey, func(ctx context.Context, owner string) ([]record, error) {
		if fail {
			return nil, errors.New("backend unreachable")
		}
		return []record{{ID: "r1", Name: "good"}}, nil
	})

	require.NoError(t, s.Fetch(ctx, "alice"))
	require.Empty(t, s.Err())

	fail = true
	err := s.ForceRefresh(ctx, "alice")
	require.Error(t, err)

	assert.Equal(t, "backend unreachable", s.Err())
	got, ok := s.Get("r1")
	require.True(t, ok)
	assert.Equal(t, "good", got.Name)

	_, fetched := s.LastFetchedAt()
	assert.False(t, fetched)
}

func TestStore_UpdateLocalIsVisibleImmediately(t *testing.T) {
	ctx := context.Background()
	s := New("records", recordKey, func(ctx context.Context, owner string) ([]record, error) {
		return []record{{ID: "r1", Name: "before"}}, nil
	})
	require.NoError(t, s.Fetch(ctx, "alice"))

	updated := s.UpdateLocal("r1", func(r *record) { r.Name = "after" })
	require.True(t, updated)

	got, ok := s.Get("r1")
	require.True(t, ok)
	assert.Equal(t, "after", got.Name)

	assert.False(t, s.UpdateLocal("missing", func(r *record) { r.Name = "x" }))
}

func TestStore_ClearResetsToInitialState(t *testing.T) {
	ctx := context.Background()
	s := New("records", recordKey, func(ctx context.Context, owner string) ([]record, error) {
		return []record{{ID: "r1"}}, nil
	})
	require.NoError(t, s.Fetch(ctx, "alice"))
	require.NotEmpty(t, s.Items())

	s.Clear()

	assert.Empty(t, s.Items())
	assert.Empty(t, s.Err())
	assert.False(t, s.Loading())
	_, fetched := s.LastFetchedAt()
	assert.False(t, fetched)
}

func TestStore_SubscribeReceivesRefreshEvents(t *testing.T) {
	ctx := context.Background()
	s := New("records", recordKey, func(ctx context.Context, owner string) ([]record, error) {
		return []record{{ID: "r1"}}, nil
	})

	id, ch := s.Subscribe(4)
	defer s.Unsubscribe(id)

	require.NoError(t, s.Fetch(ctx, "alice"))

	select {
	case ev := <-ch:
		assert.Equal(t, EventRefreshed, ev.Type)
		assert.Equal(t, "records", ev.Store)
		assert.NotEmpty(t, ev.ID)
	case <-time.After(time.Second):
		t.Fatal("no event received")
	}
}
