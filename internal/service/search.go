package service

import (
	"context"
	"sync"
	"time"

	"github.com/user/cineverse/internal/model"
)

// DefaultDebounce 输入停止后多久触发搜索
const DefaultDebounce = 500 * time.Millisecond

// Debouncer 输入安静 window 之后才触发，新的输入会取消未触发的那次
type Debouncer struct {
	window time.Duration

	mu    sync.Mutex
	timer *time.Timer
}

func NewDebouncer(window time.Duration) *Debouncer {
	if window <= 0 {
		window = DefaultDebounce
	}
	return &Debouncer{window: window}
}

// Trigger 重新计时，到期后在独立 goroutine 中执行 fn
func (d *Debouncer) Trigger(fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.window, fn)
}

// Stop 取消未触发的调用
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}

// BrowseFunc 浏览数据源，一般是 CatalogService.Browse
type BrowseFunc func(ctx context.Context, query string) ([]model.Movie, error)

// BrowseResult 一次浏览的结果
type BrowseResult struct {
	Query  string
	Movies []model.Movie
	Err    error
}

// Browser 防抖搜索：每次查询带代次号，过期或关闭后的结果直接丢弃
type Browser struct {
	fetch     BrowseFunc
	debouncer *Debouncer
	deliver   func(BrowseResult)

	mu     sync.Mutex
	gen    uint64
	cancel context.CancelFunc
	closed bool
}

// NewBrowser deliver 只会收到最新一次查询的结果
func NewBrowser(fetch BrowseFunc, window time.Duration, deliver func(BrowseResult)) *Browser {
	return &Browser{
		fetch:     fetch,
		debouncer: NewDebouncer(window),
		deliver:   deliver,
	}
}

// Input 用户输入变化
func (b *Browser) Input(query string) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.gen++
	gen := b.gen
	b.mu.Unlock()

	b.debouncer.Trigger(func() { b.run(gen, query) })
}

// Load 立即加载（首屏），不经过防抖
func (b *Browser) Load(query string) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.gen++
	gen := b.gen
	b.mu.Unlock()

	b.debouncer.Stop()
	go b.run(gen, query)
}

func (b *Browser) run(gen uint64, query string) {
	b.mu.Lock()
	if b.closed || gen != b.gen {
		b.mu.Unlock()
		return
	}
	if b.cancel != nil {
		b.cancel()
	}
	ctx, cancel := context.WithCancel(context.Background())
	b.cancel = cancel
	b.mu.Unlock()

	movies, err := b.fetch(ctx, query)

	b.mu.Lock()
	stale := b.closed || gen != b.gen
	b.mu.Unlock()
	cancel()
	if stale {
		return
	}
	b.deliver(BrowseResult{Query: query, Movies: movies, Err: err})
}

// Close 停止计时并丢弃进行中的请求结果
func (b *Browser) Close() {
	b.mu.Lock()
	b.closed = true
	if b.cancel != nil {
		b.cancel()
	}
	b.mu.Unlock()
	b.debouncer.Stop()
}
