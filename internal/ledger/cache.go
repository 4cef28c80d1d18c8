package ledger

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"storyforge/internal/domain"
)

const cacheTTL = 5 * time.Minute

// Cache is an advisory Redis read replica of remaining counts. It exists so
// the UI can show counts without a round trip to Postgres; admission never
// consults it.
type Cache struct {
	client *redis.Client
}

// NewCache wraps the given Redis client. A nil client yields a nil cache,
// which the ledger treats as "no cache".
func NewCache(client *redis.Client) *Cache {
	if client == nil {
		return nil
	}
	return &Cache{client: client}
}

// Get reads the cached remaining counts for the identity.
func (c *Cache) Get(ctx context.Context, identityID string) (domain.RemainingCounts, bool, error) {
	if c == nil || c.client == nil {
		return domain.RemainingCounts{}, false, nil
	}
	values, err := c.client.HGetAll(ctx, cacheKey(identityID)).Result()
	if err != nil {
		return domain.RemainingCounts{}, false, fmt.Errorf("cache get: %w", err)
	}
	if len(values) == 0 {
		return domain.RemainingCounts{}, false, nil
	}
	images, _ := strconv.Atoi(values["remaining_images"])
	videos, _ := strconv.Atoi(values["remaining_videos"])
	return domain.RemainingCounts{Images: images, Videos: videos}, true, nil
}

// Set replaces the cached remaining counts for the identity.
func (c *Cache) Set(ctx context.Context, identityID string, remaining domain.RemainingCounts) error {
	if c == nil || c.client == nil {
		return nil
	}
	key := cacheKey(identityID)
	pipe := c.client.TxPipeline()
	pipe.HSet(ctx, key,
		"remaining_images", remaining.Images,
		"remaining_videos", remaining.Videos,
	)
	pipe.Expire(ctx, key, cacheTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("cache set: %w", err)
	}
	return nil
}

func cacheKey(identityID string) string {
	return "usage:remaining:" + identityID
}
