package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const folderTTL = 5 * time.Minute

// FolderCache memoizes full-container folder scans in redis. Every failure
// degrades to a miss; the cache is never allowed to fail a read path.
type FolderCache struct {
	client *redis.Client
	log    zerolog.Logger
}

func NewFolderCache(client *redis.Client, log zerolog.Logger) *FolderCache {
	return &FolderCache{client: client, log: log}
}

func (c *FolderCache) GetFolders(ctx context.Context, key string) ([]string, bool) {
	raw, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.log.Debug().Err(err).Str("key", key).Msg("folder cache read failed")
		}
		return nil, false
	}

	var folders []string
	if err := json.Unmarshal(raw, &folders); err != nil {
		c.log.Debug().Err(err).Str("key", key).Msg("folder cache entry corrupt, dropping")
		c.client.Del(ctx, key)
		return nil, false
	}
	return folders, true
}

func (c *FolderCache) SetFolders(ctx context.Context, key string, folders []string) {
	raw, err := json.Marshal(folders)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, key, raw, folderTTL).Err(); err != nil {
		c.log.Debug().Err(err).Str("key", key).Msg("folder cache write failed")
	}
}

func (c *FolderCache) Invalidate(ctx context.Context, key string) {
	if err := c.client.Del(ctx, key).Err(); err != nil {
		c.log.Debug().Err(err).Str("key", key).Msg("folder cache invalidation failed")
	}
}
