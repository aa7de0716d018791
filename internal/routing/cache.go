package routing

import (
	"context"
	"sync"
	"time"

	"github.com/scalarai/helpdesk/pkg/models"
)

// DefaultCacheTTL is the safety net against missed invalidation.
const DefaultCacheTTL = 5 * time.Minute

// ProfileCache caches the profiles-with-non-empty-bio candidate pool used by
// BioStrategy. Profile create/update/delete must call Invalidate; the TTL
// only bounds the damage of a missed invalidation.
type ProfileCache struct {
	fetch func(ctx context.Context) ([]models.ExpertProfile, error)
	ttl   time.Duration

	mu        sync.Mutex
	profiles  []models.ExpertProfile
	fetchedAt time.Time
	valid     bool
}

func NewProfileCache(fetch func(ctx context.Context) ([]models.ExpertProfile, error), ttl time.Duration) *ProfileCache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &ProfileCache{fetch: fetch, ttl: ttl}
}

// Get returns the cached candidate pool, refetching when invalidated or
// expired.
func (c *ProfileCache) Get(ctx context.Context) ([]models.ExpertProfile, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.valid && time.Since(c.fetchedAt) < c.ttl {
		return c.profiles, nil
	}

	profiles, err := c.fetch(ctx)
	if err != nil {
		return nil, err
	}
	c.profiles = profiles
	c.fetchedAt = time.Now()
	c.valid = true
	return profiles, nil
}

// Invalidate drops the cached pool entirely; the next Get refetches.
func (c *ProfileCache) Invalidate() {
	c.mu.Lock()
	c.profiles = nil
	c.valid = false
	c.mu.Unlock()
}
