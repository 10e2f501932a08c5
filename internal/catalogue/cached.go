package catalogue

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/maypok86/otter"
)

// DefaultTTL is how long [Cached] keeps a loaded catalogue.
const DefaultTTL = 5 * time.Minute

const cacheKey = "concepts"

// cacheCapacity is the otter entry capacity. otter refuses all entries at
// very small capacities.
const cacheCapacity = 16

// Cached serves the catalogue from memory and reloads it from the wrapped
// source once the entry expires or is invalidated.
type Cached struct {
	src   Source
	cache otter.Cache[string, []Concept]

	// load serialises misses so a cold cache hits the source once.
	load sync.Mutex
}

var _ Source = (*Cached)(nil)

// NewCached wraps src. A non-positive ttl uses DefaultTTL.
func NewCached(src Source, ttl time.Duration) (*Cached, error) {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	cache, err := otter.MustBuilder[string, []Concept](cacheCapacity).
		WithTTL(ttl).
		Build()
	if err != nil {
		return nil, fmt.Errorf("catalogue: build cache: %w", err)
	}
	return &Cached{src: src, cache: cache}, nil
}

// Concepts returns the cached catalogue, loading it on a miss. Errors are not
// cached.
func (c *Cached) Concepts(ctx context.Context) ([]Concept, error) {
	if v, ok := c.cache.Get(cacheKey); ok {
		return clone(v), nil
	}

	c.load.Lock()
	defer c.load.Unlock()
	if v, ok := c.cache.Get(cacheKey); ok {
		return clone(v), nil
	}

	v, err := c.src.Concepts(ctx)
	if err != nil {
		return nil, err
	}
	if !c.cache.Set(cacheKey, v) {
		slog.Warn("catalogue: cache rejected entry", "concepts", len(v))
	}
	slog.Debug("catalogue: loaded", "concepts", len(v))
	return clone(v), nil
}

// Invalidate drops the cached catalogue.
func (c *Cached) Invalidate() {
	c.cache.Delete(cacheKey)
}

// Close stops the cache's background work.
func (c *Cached) Close() {
	c.cache.Close()
}

func clone(cs []Concept) []Concept {
	out := make([]Concept, len(cs))
	copy(out, cs)
	return out
}
