package recipes

import (
	"log/slog"
	"sync"
	"time"

	"github.com/dishcovery/dishcovery-client/internal/domain"
)

// DefaultCacheTTL is how long a user's recipe list is served from memory.
const DefaultCacheTTL = 5 * time.Minute

// cacheEntry is one user's list with its expiry.
type cacheEntry struct {
	records  []domain.RecipeRecord
	expireAt time.Time
}

// ListCache is a session cache of recipe lists keyed by user.
//
// Expired entries are dropped lazily on read; there is no cleanup goroutine.
// Every mutation of a user's collection must Invalidate that user. A list read
// from the store is only cached if no Invalidate happened since the read began,
// see Generation.
type ListCache struct {
	mu      sync.RWMutex
	entries map[string]*cacheEntry
	gens    map[string]uint64
	ttl     time.Duration
	now     func() time.Time
	logger  *slog.Logger

	hits   int64
	misses int64
}

// NewListCache creates a ListCache. A non-positive ttl disables caching.
func NewListCache(ttl time.Duration, logger *slog.Logger) *ListCache {
	if logger == nil {
		logger = slog.Default()
	}
	return &ListCache{
		entries: make(map[string]*cacheEntry),
		gens:    make(map[string]uint64),
		ttl:     ttl,
		now:     time.Now,
		logger:  logger,
	}
}

// Get returns a copy of userID's cached list.
func (c *ListCache) Get(userID string) ([]domain.RecipeRecord, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, exists := c.entries[userID]
	if !exists {
		c.misses++
		return nil, false
	}
	if c.now().After(entry.expireAt) {
		delete(c.entries, userID)
		c.misses++
		c.logger.Debug("recipe list cache expired", "user", userID)
		return nil, false
	}
	c.hits++
	return cloneRecords(entry.records), true
}

// Generation returns userID's invalidation counter. Read it before loading
// the list from the store and pass it to Set.
func (c *ListCache) Generation(userID string) uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.gens[userID]
}

// Set stores userID's list loaded at generation gen. It reports false and
// stores nothing when userID was invalidated after gen was read.
func (c *ListCache) Set(userID string, gen uint64, records []domain.RecipeRecord) bool {
	if c.ttl <= 0 {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gens[userID] != gen {
		c.logger.Debug("recipe list changed while loading, not cached", "user", userID)
		return false
	}
	c.entries[userID] = &cacheEntry{
		records:  cloneRecords(records),
		expireAt: c.now().Add(c.ttl),
	}
	return true
}

// Invalidate drops userID's list and moves its generation on.
func (c *ListCache) Invalidate(userID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, userID)
	c.gens[userID]++
}

// Stats returns cache hit/miss statistics.
func (c *ListCache) Stats() (hits, misses int64, size int) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.hits, c.misses, len(c.entries)
}

func cloneRecords(in []domain.RecipeRecord) []domain.RecipeRecord {
	out := make([]domain.RecipeRecord, len(in))
	for i := range in {
		out[i] = in[i].Clone()
	}
	return out
}
