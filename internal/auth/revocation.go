package auth

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/redis/go-redis/v9"
)

// Revoker 已注销 token 的存储
type Revoker interface {
	Revoke(ctx context.Context, tokenID string, ttl time.Duration) error
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

const revokedKeyPrefix = "cineverse:revoked:"

// RedisRevoker 基于 Redis 的注销列表，键随 token 过期自动删除
type RedisRevoker struct {
	client *redis.Client
}

func NewRedisRevoker(client *redis.Client) *RedisRevoker {
	return &RedisRevoker{client: client}
}

func (r *RedisRevoker) Revoke(ctx context.Context, tokenID string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	return r.client.Set(ctx, revokedKeyPrefix+tokenID, 1, ttl).Err()
}

func (r *RedisRevoker) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	err := r.client.Get(ctx, revokedKeyPrefix+tokenID).Err()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// MemoryRevoker 进程内注销列表，单实例部署使用
type MemoryRevoker struct {
	c *cache.Cache
}

func NewMemoryRevoker() *MemoryRevoker {
	return &MemoryRevoker{c: cache.New(time.Hour, 10*time.Minute)}
}

func (m *MemoryRevoker) Revoke(_ context.Context, tokenID string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	m.c.Set(tokenID, struct{}{}, ttl)
	return nil
}

func (m *MemoryRevoker) IsRevoked(_ context.Context, tokenID string) (bool, error) {
	_, found := m.c.Get(tokenID)
	return found, nil
}

// NewRevoker 配置了 Redis 且可连接时使用 Redis，否则回退到内存
func NewRevoker(ctx context.Context, redisURL string) Revoker {
	if redisURL == "" {
		log.Println("[Auth] 未配置 REDIS_URL，使用内存注销列表")
		return NewMemoryRevoker()
	}

	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		log.Printf("[Auth] REDIS_URL 解析失败，使用内存注销列表: %v", err)
		return NewMemoryRevoker()
	}

	client := redis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		log.Printf("[Auth] Redis 不可用，使用内存注销列表: %v", err)
		client.Close()
		return NewMemoryRevoker()
	}

	log.Println("[Auth] 使用 Redis 注销列表")
	return NewRedisRevoker(client)
}
