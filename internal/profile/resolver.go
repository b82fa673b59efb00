package profile

import (
	"context"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/semaphore"

	"github.com/primal-host/skystream/internal/types"
)

const (
	// cacheTTL bounds how stale a cached profile may be before it is
	// refetched.
	cacheTTL = 4 * time.Hour

	// cacheSize caps the number of cached profiles; the LRU evicts the
	// least recently used entry beyond this.
	cacheSize = 65536

	// maxConcurrentFetches bounds in-flight resolutions so a burst of
	// new authors cannot flood the AppView.
	maxConcurrentFetches = 4
)

type cacheEntry struct {
	fetchedAt time.Time
	user      *types.User
}

// Resolver caches DID→User resolutions with a freshness TTL.
type Resolver struct {
	cache *lru.Cache[string, cacheEntry]
	sem   *semaphore.Weighted
	fetch func(ctx context.Context, did string) (*types.User, error)
	now   func() time.Time
}

// NewResolver builds a resolver against the given AppView endpoint.
// Pass an empty endpoint for the default public one.
func NewResolver(endpoint string) (*Resolver, error) {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	cache, err := lru.New[string, cacheEntry](cacheSize)
	if err != nil {
		return nil, err
	}
	return &Resolver{
		cache: cache,
		sem:   semaphore.NewWeighted(maxConcurrentFetches),
		fetch: func(ctx context.Context, did string) (*types.User, error) {
			return FetchProfile(ctx, endpoint, did)
		},
		now: time.Now,
	}, nil
}

// Get returns the profile for a DID. A cache hit fresher than the TTL
// is served directly; a stale hit is evicted and refetched. Fetch
// failures are not cached, so the next Get retries.
func (r *Resolver) Get(ctx context.Context, did string) (*types.User, error) {
	if err := r.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer r.sem.Release(1)

	if entry, ok := r.cache.Get(did); ok {
		if r.now().Sub(entry.fetchedAt) < cacheTTL {
			return entry.user, nil
		}
		r.cache.Remove(did)
	}

	user, err := r.fetch(ctx, did)
	if err != nil {
		return nil, err
	}
	r.cache.Add(did, cacheEntry{fetchedAt: r.now(), user: user})
	return user, nil
}
