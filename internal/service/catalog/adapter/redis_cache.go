// internal/service/catalog/adapter/redis_cache.go
package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"takeout/internal/pkg/logger"
	pkgredis "takeout/internal/pkg/redis"
	"takeout/internal/service/catalog"
)

// ItemCache 是商品信息的 Redis 旁路缓存。
// 缓存只存真实商品，降级商品绝不落缓存。
type ItemCache struct {
	client *pkgredis.Client
	ttl    time.Duration
}

func NewItemCache(client *pkgredis.Client, ttl time.Duration) *ItemCache {
	return &ItemCache{client: client, ttl: ttl}
}

func itemKey(itemID string) string {
	return fmt.Sprintf("catalog:item:{%s}", itemID)
}

func (c *ItemCache) Get(ctx context.Context, itemID string) (*catalog.Item, bool) {
	data, err := c.client.GetClient().Get(ctx, itemKey(itemID)).Bytes()
	if err != nil {
		if err != pkgredis.Nil {
			// 缓存故障按未命中处理，不影响主链路
			logger.Ctx(ctx).Warn().Err(err).Msg("item cache read failed")
		}
		return nil, false
	}
	var item catalog.Item
	if err := json.Unmarshal(data, &item); err != nil {
		return nil, false
	}
	return &item, true
}

func (c *ItemCache) Set(ctx context.Context, item *catalog.Item) {
	if catalog.Degraded(item) {
		return
	}
	data, err := json.Marshal(item)
	if err != nil {
		return
	}
	if err := c.client.GetClient().Set(ctx, itemKey(item.ID), data, c.ttl).Err(); err != nil {
		logger.Ctx(ctx).Warn().Err(err).Msg("item cache write failed")
	}
}
