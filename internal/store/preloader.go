package store

import (
	"context"
	"log/slog"
	"time"

	"github.com/sourcegraph/conc/pool"

	"github.com/fleetdeck/fleetdeck/pkg/panicerr"
)

// Preloader warms a set of stores concurrently at startup so the first
// screens render from cache instead of each issuing its own cold fetch.
// A failed warm-up leaves that store in its error state and does not stop
// the others.
type Preloader struct {
	targets []preloadTarget
}

type preloadTarget struct {
	name string
	warm func(ctx context.Context) error
}

func NewPreloader() *Preloader {
	return &Preloader{}
}

func (p *Preloader) Register(name string, warm func(ctx context.Context) error) {
	p.targets = append(p.targets, preloadTarget{name: name, warm: warm})
}

// RegisterStore registers a store's Fetch for an owner.
func RegisterStore[T any](p *Preloader, s *Store[T], owner string) {
	p.Register(s.Name(), func(ctx context.Context) error {
		return s.Fetch(ctx, owner)
	})
}

// Warm fetches every registered target, each at most once thanks to the
// stores' own coalescing. Returns the joined errors of the targets that
// failed.
func (p *Preloader) Warm(ctx context.Context) error {
	wp := pool.New().WithErrors().WithContext(ctx)
	for _, t := range p.targets {
		warm := panicerr.SafeContext(t.warm)
		name := t.name
		wp.Go(func(ctx context.Context) error {
			start := time.Now()
			if err := warm(ctx); err != nil {
				slog.WarnContext(ctx, "preload failed", "store", name, "error", err)
				return err
			}
			slog.DebugContext(ctx, "preloaded", "store", name, "duration", time.Since(start))
			return nil
		})
	}
	return wp.Wait()
}
