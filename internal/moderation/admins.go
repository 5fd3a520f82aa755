package moderation

import (
	"context"
	"fmt"
	"time"

	"github.com/dgraph-io/ristretto/v2"
)

// AdminCache remembers confirmed administrators for a limited time so that a
// demoted admin loses the exemption once the entry expires. Negative answers
// are never cached.
type AdminCache struct {
	cache *ristretto.Cache[string, bool]
	ttl   time.Duration
}

// NewAdminCache creates a cache whose entries live for ttl.
func NewAdminCache(ttl time.Duration) (*AdminCache, error) {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	c, err := ristretto.NewCache(&ristretto.Config[string, bool]{
		NumCounters: 1e5,
		MaxCost:     1e4,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create admin cache: %w", err)
	}
	return &AdminCache{cache: c, ttl: ttl}, nil
}

func adminKey(chatID, userID int64) string {
	return fmt.Sprintf("%d:%d", chatID, userID)
}

// IsAdmin reports whether userID administers chatID. Private chats always
// count as administered by their user. lookup is consulted on a cache miss.
func (c *AdminCache) IsAdmin(ctx context.Context, chatID, userID int64, private bool,
	lookup func(ctx context.Context, chatID, userID int64) (bool, error),
) (bool, error) {
	if private {
		return true, nil
	}

	key := adminKey(chatID, userID)
	if ok, found := c.cache.Get(key); found && ok {
		return true, nil
	}

	isAdmin, err := lookup(ctx, chatID, userID)
	if err != nil {
		return false, err
	}
	if isAdmin {
		c.cache.SetWithTTL(key, true, 1, c.ttl)
		c.cache.Wait()
	}
	return isAdmin, nil
}

// Forget drops a cached entry.
func (c *AdminCache) Forget(chatID, userID int64) {
	c.cache.Del(adminKey(chatID, userID))
}

// Close releases the cache goroutines.
func (c *AdminCache) Close() {
	c.cache.Close()
}
