// Package redis 提供净值读缓存的 Redis 实现，cache-aside。
package redis

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/wyfcoding/fundadmin/internal/nav/domain"
)

type navRedisCache struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

// NewNAVReadCache 创建净值读缓存实例。
func NewNAVReadCache(client redis.UniversalClient) domain.NAVReadCache {
	return &navRedisCache{
		client: client,
		prefix: "nav:",
		ttl:    6 * time.Hour,
	}
}

func (c *navRedisCache) Get(ctx context.Context, fundID string, cutoff time.Time) (*domain.NAVMark, error) {
	data, err := c.client.Get(ctx, c.key(fundID, cutoff)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var mark domain.NAVMark
	if err := json.Unmarshal(data, &mark); err != nil {
		return nil, err
	}
	return &mark, nil
}

func (c *navRedisCache) Set(ctx context.Context, fundID string, cutoff time.Time, mark *domain.NAVMark) error {
	if mark == nil {
		return nil
	}
	data, err := json.Marshal(mark)
	if err != nil {
		return err
	}
	key := c.key(fundID, cutoff)
	pipe := c.client.TxPipeline()
	pipe.Set(ctx, key, data, c.ttl)
	// 记录基金下的全部缓存键，回补净值时整体失效。
	pipe.SAdd(ctx, c.indexKey(fundID), key)
	pipe.Expire(ctx, c.indexKey(fundID), c.ttl)
	_, err = pipe.Exec(ctx)
	return err
}

func (c *navRedisCache) Invalidate(ctx context.Context, fundID string) error {
	keys, err := c.client.SMembers(ctx, c.indexKey(fundID)).Result()
	if err != nil && err != redis.Nil {
		return err
	}
	keys = append(keys, c.indexKey(fundID))
	return c.client.Del(ctx, keys...).Err()
}

func (c *navRedisCache) key(fundID string, cutoff time.Time) string {
	return c.prefix + fundID + ":" + cutoff.Format("2006-01-02")
}

func (c *navRedisCache) indexKey(fundID string) string {
	return c.prefix + "idx:" + fundID
}
