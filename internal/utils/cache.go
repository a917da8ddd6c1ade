package utils

import (
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

type cacheEntry[T any] struct {
	value     T
	expiresAt time.Time
}

// SearchCache 带过期时间的 LRU 缓存，超过容量淘汰最久未用的条目
type SearchCache[T any] struct {
	storage *lru.Cache[string, cacheEntry[T]]
	ttl     time.Duration
	now     func() time.Time
}

// NewSearchCache size 是最大缓存条数，ttl 是数据有效期
func NewSearchCache[T any](size int, ttl time.Duration) *SearchCache[T] {
	if size <= 0 {
		size = 256
	}
	// lru.New 只在 size <= 0 时报错
	c, _ := lru.New[string, cacheEntry[T]](size)
	return &SearchCache[T]{
		storage: c,
		ttl:     ttl,
		now:     time.Now,
	}
}

// Set 写入或覆盖
func (c *SearchCache[T]) Set(key string, value T) {
	c.storage.Add(key, cacheEntry[T]{
		value:     value,
		expiresAt: c.now().Add(c.ttl),
	})
}

// Get 读取，过期的条目顺便删除
func (c *SearchCache[T]) Get(key string) (T, bool) {
	var zero T
	item, ok := c.storage.Get(key)
	if !ok {
		return zero, false
	}
	if c.now().After(item.expiresAt) {
		c.storage.Remove(key)
		return zero, false
	}
	return item.value, true
}

func (c *SearchCache[T]) Clear() {
	c.storage.Purge()
}

// PurgeExpired 删除全部过期条目，返回删除数量
func (c *SearchCache[T]) PurgeExpired() int {
	now := c.now()
	removed := 0
	for _, key := range c.storage.Keys() {
		if item, ok := c.storage.Peek(key); ok && now.After(item.expiresAt) {
			c.storage.Remove(key)
			removed++
		}
	}
	return removed
}

func (c *SearchCache[T]) Len() int {
	return c.storage.Len()
}
