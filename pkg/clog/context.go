package clog

import (
	"context"
	"sync"
)

// Well-known attribute keys the handlers pull back out of the map.
const (
	ErrorAttributeKey = "error.message"
	StackAttributeKey = "error.stack"
)

// attrBag collects log attributes over the life of one request so that
// every slog call in that request carries them. Writers and readers can
// race across goroutines, hence the lock.
type attrBag struct {
	mu    sync.RWMutex
	attrs map[string]any
}

type attrBagKey struct{}

func bagFrom(ctx context.Context) (*attrBag, bool) {
	b, ok := ctx.Value(attrBagKey{}).(*attrBag)
	return b, ok
}

// ContextWithSlog attaches an empty attribute bag. Add calls on a
// context without one are silently dropped.
func ContextWithSlog(ctx context.Context) context.Context {
	return context.WithValue(ctx, attrBagKey{}, &attrBag{attrs: map[string]any{}})
}

func AddAttribute(ctx context.Context, key string, value any) {
	b, ok := bagFrom(ctx)
	if !ok {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.attrs[key] = value
}

func AddAttributes(ctx context.Context, attributes map[string]any) {
	b, ok := bagFrom(ctx)
	if !ok {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	mergeMaps(b.attrs, attributes)
}

// GetAttribute returns the attribute at key, or T's zero value when the
// key is absent, holds another type, or the context has no bag.
func GetAttribute[T any](ctx context.Context, key string) T {
	var zero T
	b, ok := bagFrom(ctx)
	if !ok {
		return zero
	}
	b.mu.RLock()
	raw, ok := b.attrs[key]
	b.mu.RUnlock()
	if !ok {
		return zero
	}
	val, ok := raw.(T)
	if !ok {
		return zero
	}
	return val
}

// GetAttributes returns a copy of the bag, or nil without one.
func GetAttributes(ctx context.Context) map[string]any {
	b, ok := bagFrom(ctx)
	if !ok {
		return nil
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make(map[string]any, len(b.attrs))
	for k, v := range b.attrs {
		out[k] = v
	}
	return out
}

// mergeMaps writes src into dst, merging nested maps instead of
// replacing them.
func mergeMaps(dst, src map[string]any) {
	for k, v := range src {
		srcMap, ok := v.(map[string]any)
		if !ok {
			dst[k] = v
			continue
		}
		if dstMap, ok := dst[k].(map[string]any); ok {
			mergeMaps(dstMap, srcMap)
		} else {
			dst[k] = srcMap
		}
	}
}

func AddError(ctx context.Context, err error) {
	AddAttribute(ctx, ErrorAttributeKey, err)
}

func GetError(ctx context.Context) error {
	return GetAttribute[error](ctx, ErrorAttributeKey)
}

func AddStack(ctx context.Context, stack string) {
	AddAttribute(ctx, StackAttributeKey, stack)
}

func GetStack(ctx context.Context) string {
	return GetAttribute[string](ctx, StackAttributeKey)
}
