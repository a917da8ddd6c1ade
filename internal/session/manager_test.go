package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/user/cineverse/internal/model"
)

func TestManager_AcquireHydratesOnce(t *testing.T) {
	remote := newFakeRemote()
	remote.addProfile("u1", "ana")
	release := make(chan struct{})
	remote.fetchStatusesFn = func(context.Context, string) ([]model.StatusEntry, error) {
		<-release
		return nil, nil
	}

	m, err := NewManager(remote, 8, Options{})
	require.NoError(t, err)

	var wg sync.WaitGroup
	caches := make([]*Cache, 5)
	for i := range caches {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c, err := m.Acquire(context.Background(), newSession("u1"))
			assert.NoError(t, err)
			caches[i] = c
		}(i)
	}
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	for _, c := range caches {
		assert.Same(t, caches[0], c)
	}
	assert.Equal(t, Ready, caches[0].State())

	// 已就绪时不再加载
	_, err = m.Acquire(context.Background(), newSession("u1"))
	require.NoError(t, err)
	remote.mu.Lock()
	calls := remote.fetchStatusCalls
	remote.mu.Unlock()
	assert.LessOrEqual(t, calls, 2)
}

func TestManager_RetriesFailedHydration(t *testing.T) {
	remote := newFakeRemote()
	m, err := NewManager(remote, 8, Options{})
	require.NoError(t, err)

	c, err := m.Acquire(context.Background(), newSession("u1"))
	assert.ErrorIs(t, err, model.ErrNotFound)
	require.NotNil(t, c)
	assert.Equal(t, Failed, c.State())

	remote.addProfile("u1", "ana")
	c, err = m.Acquire(context.Background(), newSession("u1"))
	require.NoError(t, err)
	assert.Equal(t, Ready, c.State())
}

func TestManager_AcquireWithoutSession(t *testing.T) {
	m, err := NewManager(newFakeRemote(), 8, Options{})
	require.NoError(t, err)

	_, err = m.Acquire(context.Background(), nil)
	assert.ErrorIs(t, err, model.ErrNoSession)
}

func TestManager_AuthEvents(t *testing.T) {
	remote := newFakeRemote()
	remote.addProfile("u1", "ana")
	m, err := NewManager(remote, 8, Options{})
	require.NoError(t, err)
	ctx := context.Background()

	sess := newSession("u1")
	require.NoError(t, m.HandleAuthEvent(ctx, model.AuthEvent{Kind: model.SignedIn, Session: *sess}))
	c, ok := m.Peek("u1")
	require.True(t, ok)
	assert.Equal(t, Ready, c.State())

	require.NoError(t, m.HandleAuthEvent(ctx, model.AuthEvent{Kind: model.SignedOut, Session: *sess}))
	_, ok = m.Peek("u1")
	assert.False(t, ok)
	assert.Equal(t, Anonymous, c.State())
	assert.Nil(t, c.Profile())
}

func TestManager_EvictionResetsCache(t *testing.T) {
	remote := newFakeRemote()
	remote.addProfile("u1", "ana")
	remote.addProfile("u2", "bia")
	m, err := NewManager(remote, 1, Options{})
	require.NoError(t, err)

	first, err := m.Acquire(context.Background(), newSession("u1"))
	require.NoError(t, err)
	_, err = m.Acquire(context.Background(), newSession("u2"))
	require.NoError(t, err)

	assert.Equal(t, 1, m.Len())
	assert.Equal(t, Anonymous, first.State())
}

func TestManager_SweepDropsExpired(t *testing.T) {
	remote := newFakeRemote()
	remote.addProfile("u1", "ana")
	remote.addProfile("u2", "bia")
	m, err := NewManager(remote, 8, Options{})
	require.NoError(t, err)

	expiring := newSession("u1")
	expiring.ExpiresAt = time.Now().Add(time.Minute)
	_, err = m.Acquire(context.Background(), expiring)
	require.NoError(t, err)
	_, err = m.Acquire(context.Background(), newSession("u2"))
	require.NoError(t, err)

	assert.Equal(t, 1, m.Sweep(time.Now().Add(30*time.Minute)))
	_, ok := m.Peek("u1")
	assert.False(t, ok)
	_, ok = m.Peek("u2")
	assert.True(t, ok)
}

func TestManager_AcquireRefreshesSessionToken(t *testing.T) {
	remote := newFakeRemote()
	remote.addProfile("u1", "ana")
	m, err := NewManager(remote, 8, Options{})
	require.NoError(t, err)

	_, err = m.Acquire(context.Background(), newSession("u1"))
	require.NoError(t, err)

	refreshed := newSession("u1")
	refreshed.Token = "tok-2"
	c, err := m.Acquire(context.Background(), refreshed)
	require.NoError(t, err)
	assert.Equal(t, "tok-2", c.Session().Token)
}
