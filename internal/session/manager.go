package session

import (
	"context"
	"log"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/user/cineverse/internal/model"
	"golang.org/x/sync/singleflight"
)

const hydrateTimeout = 15 * time.Second

// Manager 为每个登录用户持有一个 Cache，登录时创建并加载，登出时销毁
type Manager struct {
	remote Remote
	opts   Options
	caches *lru.Cache[string, *Cache]
	group  singleflight.Group
}

// NewManager 创建管理器，size 为同时驻留的用户数上限，被淘汰的缓存会被清空
func NewManager(remote Remote, size int, opts Options) (*Manager, error) {
	caches, err := lru.NewWithEvict[string, *Cache](size, func(_ string, c *Cache) {
		c.Reset()
	})
	if err != nil {
		return nil, err
	}
	return &Manager{
		remote: remote,
		opts:   opts,
		caches: caches,
	}, nil
}

// Acquire 返回用户的缓存，未就绪时加载；同一用户的并发加载只执行一次。
// 加载失败时仍返回缓存（可能含部分结果）和错误，下次访问会重试。
func (m *Manager) Acquire(ctx context.Context, sess *model.Session) (*Cache, error) {
	if sess == nil {
		return nil, model.ErrNoSession
	}

	c := m.cacheFor(sess.UserID)
	if c.State() == Ready && c.UpdateSession(sess) {
		return c, nil
	}

	_, err, _ := m.group.Do(sess.UserID, func() (interface{}, error) {
		if c.State() == Ready && c.UpdateSession(sess) {
			return nil, nil
		}
		// 加载结果由所有等待者共享，不随单个请求取消
		hctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), hydrateTimeout)
		defer cancel()
		return nil, c.Hydrate(hctx, sess)
	})
	return c, err
}

// Peek 返回已存在的缓存，不触发加载
func (m *Manager) Peek(userID string) (*Cache, bool) {
	return m.caches.Peek(userID)
}

func (m *Manager) cacheFor(userID string) *Cache {
	if c, ok := m.caches.Get(userID); ok {
		return c
	}
	fresh := NewCache(m.remote, m.opts)
	if prev, ok, _ := m.caches.PeekOrAdd(userID, fresh); ok {
		return prev
	}
	return fresh
}

// Drop 销毁用户的缓存
func (m *Manager) Drop(userID string) {
	c, ok := m.caches.Peek(userID)
	if !ok {
		return
	}
	m.caches.Remove(userID)
	c.Reset()
}

// HandleAuthEvent 登录时加载缓存，登出时销毁
func (m *Manager) HandleAuthEvent(ctx context.Context, evt model.AuthEvent) error {
	switch evt.Kind {
	case model.SignedIn:
		sess := evt.Session
		if _, err := m.Acquire(ctx, &sess); err != nil {
			log.Printf("[Session] 登录后加载缓存失败 user=%s: %v", sess.UserID, err)
			return err
		}
	case model.SignedOut:
		m.Drop(evt.Session.UserID)
	}
	return nil
}

// Sweep 销毁会话已过期或已匿名的缓存，返回销毁数量
func (m *Manager) Sweep(now time.Time) int {
	dropped := 0
	for _, userID := range m.caches.Keys() {
		c, ok := m.caches.Peek(userID)
		if !ok {
			continue
		}
		sess := c.Session()
		if sess == nil || sess.Expired(now) {
			m.Drop(userID)
			dropped++
		}
	}
	return dropped
}

// Len 驻留的缓存数量
func (m *Manager) Len() int {
	return m.caches.Len()
}
