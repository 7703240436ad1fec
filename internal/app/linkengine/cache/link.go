package cache

import (
	"bytes"
	"context"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"lurl.local/internal/platform/metrics"
)

// notFoundSentinel 用明确哨兵值做“负缓存”，避免缓存穿透。
// 不要用空值作哨兵：会把“未命中”和“命中空值”混在一起。
var notFoundSentinel = []byte("__nil__")

const keyPrefix = "lk:"

// LinkCache 是短码 -> 序列化链接记录的键值前端（L1 ristretto + L2 redis）。
//
// 它不是事实来源：任何传输失败都降级成未命中并记日志，绝不向上抛错，
// 调用方永远可以回源数据库。值对它是不透明字节，编解码归引擎管。
// 每个操作带独立超时，连接取用/归还由 go-redis 连接池保证。
type LinkCache struct {
	client    *redis.Client
	local     *LocalCache // L1 本地缓存，可为 nil
	ttl       time.Duration
	emptyTTL  time.Duration
	opTimeout time.Duration
}

func NewLinkCache(client *redis.Client, local *LocalCache, ttl, emptyTTL time.Duration) *LinkCache {
	if ttl <= 0 {
		ttl = time.Hour
	}
	if emptyTTL <= 0 {
		emptyTTL = 30 * time.Second
	}
	return &LinkCache{
		client:    client,
		local:     local,
		ttl:       ttl,
		emptyTTL:  emptyTTL,
		opTimeout: 100 * time.Millisecond,
	}
}

// Get 读取缓存值。
// negative=true 表示命中负缓存（短码确认不存在）；
// found=false 表示未命中或传输失败，调用方应回源。
func (c *LinkCache) Get(ctx context.Context, key string) (val []byte, negative bool, found bool) {
	// L1
	if c.local != nil {
		if v, ok := c.local.Get(key); ok {
			if bytes.Equal(v, notFoundSentinel) {
				metrics.CacheOperations.WithLabelValues("l1", "hit_negative").Inc()
				return nil, true, true
			}
			metrics.CacheOperations.WithLabelValues("l1", "hit").Inc()
			return v, false, true
		}
	}

	// L2
	opCtx, cancel := context.WithTimeout(ctx, c.opTimeout)
	defer cancel()
	res, err := c.client.Get(opCtx, keyPrefix+key).Bytes()
	if err == redis.Nil {
		metrics.CacheOperations.WithLabelValues("l2", "miss").Inc()
		return nil, false, false
	}
	if err != nil {
		metrics.CacheOperations.WithLabelValues("l2", "error").Inc()
		slog.Warn("cache get failed, treating as miss", "key", key, "err", err)
		return nil, false, false
	}

	// 回填 L1
	if c.local != nil {
		c.local.Set(key, res)
	}
	if bytes.Equal(res, notFoundSentinel) {
		metrics.CacheOperations.WithLabelValues("l2", "hit_negative").Inc()
		return nil, true, true
	}
	metrics.CacheOperations.WithLabelValues("l2", "hit").Inc()
	return res, false, true
}

func (c *LinkCache) Exists(ctx context.Context, key string) bool {
	if c.local != nil {
		if _, ok := c.local.Get(key); ok {
			return true
		}
	}
	opCtx, cancel := context.WithTimeout(ctx, c.opTimeout)
	defer cancel()
	n, err := c.client.Exists(opCtx, keyPrefix+key).Result()
	if err != nil {
		slog.Warn("cache exists failed, treating as miss", "key", key, "err", err)
		return false
	}
	return n > 0
}

func (c *LinkCache) Set(ctx context.Context, key string, val []byte) {
	if c.local != nil {
		c.local.Set(key, val)
	}
	opCtx, cancel := context.WithTimeout(ctx, c.opTimeout)
	defer cancel()
	if err := c.client.Set(opCtx, keyPrefix+key, val, c.ttl).Err(); err != nil {
		slog.Warn("cache set failed", "key", key, "err", err)
	}
}

// SetNotFound 写入负缓存，TTL 较短。
func (c *LinkCache) SetNotFound(ctx context.Context, key string) {
	if c.local != nil {
		c.local.SetNotFound(key)
	}
	opCtx, cancel := context.WithTimeout(ctx, c.opTimeout)
	defer cancel()
	if err := c.client.Set(opCtx, keyPrefix+key, notFoundSentinel, c.emptyTTL).Err(); err != nil {
		slog.Warn("cache set negative failed", "key", key, "err", err)
	}
}

// Rename 按键搬移缓存条目；旧键不存在时是 no-op。
// L1 两个键都失效即可，下次读取会从 L2/数据库回填。
func (c *LinkCache) Rename(ctx context.Context, oldKey, newKey string) {
	if c.local != nil {
		c.local.Del(oldKey)
		c.local.Del(newKey)
	}
	opCtx, cancel := context.WithTimeout(ctx, c.opTimeout)
	defer cancel()
	n, err := c.client.Exists(opCtx, keyPrefix+oldKey).Result()
	if err != nil || n == 0 {
		return
	}
	if err := c.client.Rename(opCtx, keyPrefix+oldKey, keyPrefix+newKey).Err(); err != nil {
		slog.Warn("cache rename failed", "old", oldKey, "new", newKey, "err", err)
	}
}

// Remove 删除条目；键不存在时是 no-op。
func (c *LinkCache) Remove(ctx context.Context, key string) {
	if c.local != nil {
		c.local.Del(key)
	}
	opCtx, cancel := context.WithTimeout(ctx, c.opTimeout)
	defer cancel()
	if err := c.client.Del(opCtx, keyPrefix+key).Err(); err != nil {
		slog.Warn("cache remove failed", "key", key, "err", err)
	}
}

func (c *LinkCache) Close() {
	if c.local != nil {
		c.local.Close()
	}
}
