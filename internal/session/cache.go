// Package session 维护每个登录用户的电影标记与个人资料缓存。
//
// 缓存在登录时整体加载、登出时整体清空；标记切换先在本地生效，
// 再写入远端存储。
package session

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/afero"
	"github.com/user/cineverse/internal/metrics"
	"github.com/user/cineverse/internal/model"
	"golang.org/x/sync/errgroup"
)

// State 缓存状态
type State int

const (
	Unknown State = iota
	Anonymous
	Hydrating
	Ready
	Failed
)

func (s State) String() string {
	switch s {
	case Anonymous:
		return "anonymous"
	case Hydrating:
		return "hydrating"
	case Ready:
		return "ready"
	case Failed:
		return "failed"
	}
	return "unknown"
}

// SyncMode 标记写入远端的方式
type SyncMode string

const (
	// Strict 同一电影的切换串行执行，远端失败时回滚本地并返回错误
	Strict SyncMode = "strict"
	// FireAndForget 远端写入在后台执行，失败只记录日志
	FireAndForget SyncMode = "fire_and_forget"
)

// Filter 个人主页的电影列表类型
type Filter string

const (
	FilterLiked    Filter = "liked"
	FilterDisliked Filter = "disliked"
	FilterSaved    Filter = "saved"
)

// Valid 是否为已知的列表类型
func (f Filter) Valid() bool {
	return f == FilterLiked || f == FilterDisliked || f == FilterSaved
}

const detachedWriteTimeout = 15 * time.Second

// Options 缓存配置
type Options struct {
	Mode           SyncMode
	Storage        AvatarStorage
	Auth           Authenticator
	HTTPClient     *http.Client
	FS             afero.Fs
	MaxAvatarBytes int64
	Metrics        *metrics.Collector
	Now            func() time.Time
}

func (o Options) withDefaults() Options {
	if o.Mode != FireAndForget {
		o.Mode = Strict
	}
	if o.HTTPClient == nil {
		o.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
	if o.FS == nil {
		o.FS = afero.NewOsFs()
	}
	if o.MaxAvatarBytes <= 0 {
		o.MaxAvatarBytes = 5 * 1024 * 1024
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

// Cache 单个用户的状态缓存
type Cache struct {
	remote   Remote
	opts     Options
	validate *validator.Validate
	locks    keyedMutex
	detached sync.WaitGroup

	mu         sync.RWMutex
	state      State
	session    *model.Session
	generation uint64 // 每次加载或重置加一，用于丢弃过期的加载结果
	epoch      uint64 // 身份变化或重置时加一，用于判断能否回滚
	writeSeq   uint64
	lastErr    error
	profile    *model.Profile
	statuses   map[string]model.MovieStatus
	movies     map[string]model.Movie
	pending    map[string]uint64
}

// NewCache 创建缓存，初始状态为 Unknown
func NewCache(remote Remote, opts Options) *Cache {
	return &Cache{
		remote:   remote,
		opts:     opts.withDefaults(),
		validate: validator.New(),
		statuses: make(map[string]model.MovieStatus),
		movies:   make(map[string]model.Movie),
		pending:  make(map[string]uint64),
	}
}

// Hydrate 加载资料与全部标记。两个请求并发且互不影响，
// 被更新的加载取代时返回 ErrSuperseded 并丢弃结果。
func (c *Cache) Hydrate(ctx context.Context, sess *model.Session) error {
	if sess == nil {
		c.Reset()
		return nil
	}

	c.mu.Lock()
	c.generation++
	gen := c.generation
	if c.session == nil || c.session.UserID != sess.UserID {
		c.clearLocked()
	}
	s := *sess
	c.session = &s
	c.state = Hydrating
	c.mu.Unlock()

	var (
		profile *model.Profile
		entries []model.StatusEntry
		gotRows bool
	)
	var g errgroup.Group
	g.Go(func() error {
		p, err := c.remote.FetchProfile(ctx, sess.UserID)
		if err != nil {
			return fmt.Errorf("加载个人资料失败: %w", err)
		}
		profile = p
		return nil
	})
	g.Go(func() error {
		rows, err := c.remote.FetchStatuses(ctx, sess.UserID)
		if err != nil {
			return fmt.Errorf("加载电影标记失败: %w", err)
		}
		entries = rows
		gotRows = true
		return nil
	})
	err := g.Wait()

	c.mu.Lock()
	defer c.mu.Unlock()

	if gen != c.generation {
		c.opts.Metrics.RecordHydration("superseded")
		return model.ErrSuperseded
	}

	if profile != nil {
		c.profile = profile
	}
	if gotRows {
		c.applyEntriesLocked(entries)
	}

	c.lastErr = err
	if err != nil {
		c.state = Failed
		c.opts.Metrics.RecordHydration("failed")
		log.Printf("[Session] 用户 %s 缓存加载失败: %v", sess.UserID, err)
		return err
	}
	c.state = Ready
	c.opts.Metrics.RecordHydration("ok")
	return nil
}

// applyEntriesLocked 整体替换标记，正在写入的电影保留本地值
func (c *Cache) applyEntriesLocked(entries []model.StatusEntry) {
	statuses := make(map[string]model.MovieStatus, len(entries))
	movies := make(map[string]model.Movie, len(entries))
	for _, e := range entries {
		if _, busy := c.pending[e.MovieID]; busy {
			continue
		}
		if !e.Status.IsZero() {
			statuses[e.MovieID] = e.Status
		}
		if e.Movie != nil {
			movies[e.MovieID] = *e.Movie
		}
	}
	for id := range c.pending {
		if st, ok := c.statuses[id]; ok {
			statuses[id] = st
		}
		if m, ok := c.movies[id]; ok {
			movies[id] = m
		}
	}
	c.statuses = statuses
	c.movies = movies
}

// Reset 清空全部内容并进入 Anonymous，进行中的加载结果会被丢弃
func (c *Cache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.generation++
	c.clearLocked()
	c.session = nil
	c.state = Anonymous
}

func (c *Cache) clearLocked() {
	c.epoch++
	c.profile = nil
	c.lastErr = nil
	c.statuses = make(map[string]model.MovieStatus)
	c.movies = make(map[string]model.Movie)
	c.pending = make(map[string]uint64)
}

// SignOut 注销指定会话并清空缓存。同一用户的多个设备共用缓存，
// 缓存里记录的会话可能属于别的设备，所以由调用方传入要注销的会话；
// sess 为 nil 时注销缓存当前持有的会话
func (c *Cache) SignOut(ctx context.Context, sess *model.Session) error {
	if sess == nil {
		sess = c.Session()
	}
	if sess != nil && c.opts.Auth != nil {
		if err := c.opts.Auth.SignOut(ctx, sess); err != nil {
			return err
		}
	}
	c.Reset()
	return nil
}

// ToggleLiked 切换喜欢（同时清除不喜欢）
func (c *Cache) ToggleLiked(ctx context.Context, movie model.Movie) (model.MovieStatus, error) {
	return c.toggle(ctx, movie, model.MovieStatus.ToggleLiked)
}

// ToggleDisliked 切换不喜欢（同时清除喜欢）
func (c *Cache) ToggleDisliked(ctx context.Context, movie model.Movie) (model.MovieStatus, error) {
	return c.toggle(ctx, movie, model.MovieStatus.ToggleDisliked)
}

// ToggleSaved 切换收藏
func (c *Cache) ToggleSaved(ctx context.Context, movie model.Movie) (model.MovieStatus, error) {
	return c.toggle(ctx, movie, model.MovieStatus.ToggleSaved)
}

func (c *Cache) toggle(ctx context.Context, movie model.Movie, flip func(model.MovieStatus) model.MovieStatus) (model.MovieStatus, error) {
	if _, err := model.ParseMovieID(movie.ID); err != nil {
		return model.MovieStatus{}, err
	}

	if c.opts.Mode == Strict {
		unlock := c.locks.Lock(movie.ID)
		defer unlock()
	}

	c.mu.Lock()
	if c.session == nil {
		// 未登录时切换无效
		c.mu.Unlock()
		return model.MovieStatus{}, nil
	}
	userID := c.session.UserID
	epoch := c.epoch
	prev, hadPrev := c.statuses[movie.ID]
	prevMovie, hadMovie := c.movies[movie.ID]
	next := flip(prev)
	c.setLocked(movie, next)
	c.writeSeq++
	seq := c.writeSeq
	c.pending[movie.ID] = seq
	c.mu.Unlock()

	if c.opts.Mode == FireAndForget {
		c.detached.Add(1)
		go func() {
			defer c.detached.Done()
			wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), detachedWriteTimeout)
			defer cancel()
			err := c.push(wctx, userID, movie, next)
			if err != nil {
				log.Printf("[Session] 标记写入失败 user=%s movie=%s: %v", userID, movie.ID, err)
			}
			c.mu.Lock()
			c.finishLocked(movie.ID, seq)
			c.mu.Unlock()
		}()
		return next, nil
	}

	err := c.push(ctx, userID, movie, next)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.finishLocked(movie.ID, seq)
	if err == nil {
		return next, nil
	}

	// 身份未变时回滚；同一电影的写入是串行的，不会覆盖更新的写入
	if c.epoch == epoch {
		if hadPrev {
			c.statuses[movie.ID] = prev
		} else {
			delete(c.statuses, movie.ID)
		}
		if hadMovie {
			c.movies[movie.ID] = prevMovie
		} else {
			delete(c.movies, movie.ID)
		}
		c.opts.Metrics.RecordStatusRollback()
	}
	return prev, err
}

func (c *Cache) push(ctx context.Context, userID string, movie model.Movie, status model.MovieStatus) error {
	if err := c.remote.UpsertMovie(ctx, movie); err != nil {
		return fmt.Errorf("保存电影失败: %w", err)
	}
	if err := c.remote.UpsertStatus(ctx, userID, movie.ID, status); err != nil {
		return fmt.Errorf("保存标记失败: %w", err)
	}
	return nil
}

func (c *Cache) setLocked(movie model.Movie, status model.MovieStatus) {
	c.movies[movie.ID] = movie
	if status.IsZero() {
		delete(c.statuses, movie.ID)
		return
	}
	c.statuses[movie.ID] = status
}

func (c *Cache) finishLocked(movieID string, seq uint64) {
	if c.pending[movieID] == seq {
		delete(c.pending, movieID)
	}
}

// Wait 等待后台写入完成
func (c *Cache) Wait() {
	c.detached.Wait()
}

// State 当前状态
func (c *Cache) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Err 最近一次加载的错误
func (c *Cache) Err() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastErr
}

// Session 当前会话，未登录返回 nil
func (c *Cache) Session() *model.Session {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.session == nil {
		return nil
	}
	s := *c.session
	return &s
}

// UpdateSession 同一用户刷新 token 后替换会话
func (c *Cache) UpdateSession(sess *model.Session) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if sess == nil || c.session == nil || c.session.UserID != sess.UserID {
		return false
	}
	s := *sess
	c.session = &s
	return true
}

// Profile 个人资料副本
func (c *Cache) Profile() *model.Profile {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.profile == nil {
		return nil
	}
	p := *c.profile
	return &p
}

// Status 某部电影的标记，没有时为零值
func (c *Cache) Status(movieID string) model.MovieStatus {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.statuses[movieID]
}

// Statuses 全部标记副本
func (c *Cache) Statuses() map[string]model.MovieStatus {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]model.MovieStatus, len(c.statuses))
	for id, st := range c.statuses {
		out[id] = st
	}
	return out
}

// Movies 按类型列出电影，按标题排序
func (c *Cache) Movies(filter Filter) []model.Movie {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]model.Movie, 0)
	for id, st := range c.statuses {
		var match bool
		switch filter {
		case FilterLiked:
			match = st.Liked
		case FilterDisliked:
			match = st.Disliked
		case FilterSaved:
			match = st.Saved
		}
		if !match {
			continue
		}
		if m, ok := c.movies[id]; ok {
			out = append(out, m)
		} else {
			out = append(out, model.Movie{ID: id})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Title != out[j].Title {
			return out[i].Title < out[j].Title
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Pending 正在写入远端的电影 ID
func (c *Cache) Pending() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	ids := make([]string, 0, len(c.pending))
	for id := range c.pending {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (c *Cache) currentSession() (*model.Session, uint64) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.session == nil {
		return nil, c.epoch
	}
	s := *c.session
	return &s, c.epoch
}
