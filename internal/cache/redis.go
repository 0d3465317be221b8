package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"

	"github.com/aman-zulfiqar/amm-engine/internal/assets"
	"github.com/aman-zulfiqar/amm-engine/internal/constants"
)

// RedisAssetCache shares asset metadata between processes. Entries are
// written once and never expire.
type RedisAssetCache struct {
	client redis.Cmdable
}

func NewRedisAssetCache(client redis.Cmdable) *RedisAssetCache {
	return &RedisAssetCache{client: client}
}

func (r *RedisAssetCache) Get(ctx context.Context, id uint64) (assets.Info, bool, error) {
	val, err := r.client.Get(ctx, assetKey(id)).Result()
	if err == redis.Nil {
		return assets.Info{}, false, nil
	}
	if err != nil {
		return assets.Info{}, false, fmt.Errorf("get asset %d: %w", id, err)
	}

	var info assets.Info
	if err := json.Unmarshal([]byte(val), &info); err != nil {
		return assets.Info{}, false, fmt.Errorf("unmarshal asset %d: %w", id, err)
	}
	return info, true, nil
}

func (r *RedisAssetCache) Set(ctx context.Context, info assets.Info) error {
	b, err := json.Marshal(info)
	if err != nil {
		return fmt.Errorf("marshal asset: %w", err)
	}
	if err := r.client.SetNX(ctx, assetKey(info.ID), b, 0).Err(); err != nil {
		return fmt.Errorf("set asset %d: %w", info.ID, err)
	}
	return nil
}

func assetKey(id uint64) string {
	return constants.RedisKeyAssetPrefix + strconv.FormatUint(id, 10)
}
