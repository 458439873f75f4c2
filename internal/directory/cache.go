package directory

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/circlenet/backend/internal/models"
)

type cacheEntry struct {
	user    models.User
	expires time.Time
}

// CachingDirectory wraps another Directory with a TTL-based in-memory
// cache keyed by user id and lowercased username. It serves read-heavy
// display lookups; eligibility checks in the relationship engine go to
// the base directory so pending lists are never stale there.
type CachingDirectory struct {
	base Directory
	ttl  time.Duration

	mu     sync.RWMutex
	byID   map[string]cacheEntry
	byName map[string]cacheEntry
}

// NewCachingDirectory returns a Directory that caches lookups for the provided TTL.
func NewCachingDirectory(base Directory, ttl time.Duration) *CachingDirectory {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &CachingDirectory{
		base:   base,
		ttl:    ttl,
		byID:   make(map[string]cacheEntry),
		byName: make(map[string]cacheEntry),
	}
}

// FindByUserID returns a cached user when available, otherwise it delegates
// to the base directory and stores the result.
func (c *CachingDirectory) FindByUserID(ctx context.Context, id string) (models.User, error) {
	now := time.Now()

	c.mu.RLock()
	entry, ok := c.byID[id]
	c.mu.RUnlock()
	if ok && now.Before(entry.expires) {
		return entry.user, nil
	}

	user, err := c.base.FindByUserID(ctx, id)
	if err != nil {
		return models.User{}, err
	}

	c.store(user, now)
	return user, nil
}

// FindByUsername returns a cached user when available, otherwise it delegates
// to the base directory and stores the result.
func (c *CachingDirectory) FindByUsername(ctx context.Context, username string) (models.User, error) {
	key := cacheKey(username)
	now := time.Now()

	c.mu.RLock()
	entry, ok := c.byName[key]
	c.mu.RUnlock()
	if ok && now.Before(entry.expires) {
		return entry.user, nil
	}

	user, err := c.base.FindByUsername(ctx, username)
	if err != nil {
		return models.User{}, err
	}

	c.store(user, now)
	return user, nil
}

// Invalidate drops any cached entries for the given user.
func (c *CachingDirectory) Invalidate(user models.User) {
	c.mu.Lock()
	delete(c.byID, user.ID)
	delete(c.byName, cacheKey(user.Username))
	c.mu.Unlock()
}

func (c *CachingDirectory) store(user models.User, now time.Time) {
	entry := cacheEntry{user: user, expires: now.Add(c.ttl)}
	c.mu.Lock()
	c.byID[user.ID] = entry
	c.byName[cacheKey(user.Username)] = entry
	c.mu.Unlock()
}

func cacheKey(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}

var _ Directory = (*CachingDirectory)(nil)
