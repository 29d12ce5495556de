// Package cache はAPIから取得したコレクションを保持し、変更を購読者へ配信する。
package cache

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/hitoshi/donorlink/internal/metrics"
	"github.com/hitoshi/donorlink/internal/model"
	"github.com/hitoshi/donorlink/internal/reactive"
)

// ErrReset は読み込み中にコレクションがリセットされた場合のエラー。
var ErrReset = errors.New("collection reset while loading")

// State はコレクションの状態のスナップショット。
// Items は共有されるため、受け取った側で変更してはならない。
type State[T any] struct {
	Items     []T
	Loaded    bool
	Loading   bool
	Err       *model.APIError
	UpdatedAt time.Time
}

// Fetcher はコレクション全体を取得する。
type Fetcher[T any] func(ctx context.Context) ([]T, error)

// Resettable はセッション切り替え時に破棄されるキャッシュ。
type Resettable interface {
	Reset()
}

// Reloadable は定期更新の対象になるコレクション。
type Reloadable interface {
	Name() string
	Loaded() bool
	Reload(ctx context.Context) error
}

// load は1回の取得処理。done がクローズされた時点で err が確定する。
type load struct {
	ctx  context.Context
	done chan struct{}
	err  error
}

func newLoad(ctx context.Context) *load {
	return &load{ctx: context.WithoutCancel(ctx), done: make(chan struct{})}
}

// Collection は遅延読み込みされるコレクション。
// 取得は同時に1つだけ実行され、読み込み中の EnsureLoaded は実行中の取得に合流する。
// 購読コールバックはロック保持中に呼ばれるため、コールバック内で同じコレクションの
// 変更系メソッドを呼んではならない（Snapshot は可）。
type Collection[T any] struct {
	name    string
	fetch   Fetcher[T]
	id      func(T) int64
	metrics metrics.MetricsCollector
	logger  *slog.Logger

	mu       sync.Mutex
	state    State[T]
	inflight *load
	queued   *load
	subject  *reactive.Subject[State[T]]
}

// NewCollection はCollectionを生成する。id は ApplyLocalPatch などで要素を特定するために使う。
func NewCollection[T any](name string, fetch Fetcher[T], id func(T) int64, m metrics.MetricsCollector, logger *slog.Logger) *Collection[T] {
	if m == nil {
		m = metrics.Nop{}
	}
	return &Collection[T]{
		name:    name,
		fetch:   fetch,
		id:      id,
		metrics: m,
		logger:  logger,
		subject: reactive.NewSubject(State[T]{}),
	}
}

// Name はコレクション名を返す。
func (c *Collection[T]) Name() string {
	return c.name
}

// Loaded は読み込み済みかどうかを返す。
func (c *Collection[T]) Loaded() bool {
	return c.subject.Value().Loaded
}

// Snapshot は現在の状態を返す。
func (c *Collection[T]) Snapshot() State[T] {
	return c.subject.Value()
}

// Subscribe は現在の状態を直ちに通知し、以降の変更を通知する。
func (c *Collection[T]) Subscribe(fn func(State[T])) func() {
	return c.subject.Subscribe(fn)
}

// SubscribeContext は ctx が終了するまで変更を通知する。
func (c *Collection[T]) SubscribeContext(ctx context.Context, fn func(State[T])) {
	c.subject.SubscribeContext(ctx, fn)
}

// EnsureLoaded は未読み込みの場合のみ取得する。
// 読み込み中であれば実行中の取得の完了を待つ。
func (c *Collection[T]) EnsureLoaded(ctx context.Context) error {
	c.mu.Lock()
	if c.inflight != nil {
		l := c.inflight
		c.mu.Unlock()
		return wait(ctx, l)
	}
	if c.state.Loaded {
		c.mu.Unlock()
		return nil
	}
	l := newLoad(ctx)
	c.startLocked(l)
	c.mu.Unlock()
	return wait(ctx, l)
}

// Reload は読み込み済みかどうかにかかわらず再取得する。
// 取得中の場合はその完了後にもう一度取得し、待機中の Reload はその1回に集約される。
func (c *Collection[T]) Reload(ctx context.Context) error {
	c.mu.Lock()
	if c.inflight == nil {
		l := newLoad(ctx)
		c.startLocked(l)
		c.mu.Unlock()
		return wait(ctx, l)
	}
	if c.queued == nil {
		c.queued = newLoad(ctx)
	}
	l := c.queued
	c.mu.Unlock()
	return wait(ctx, l)
}

// Invalidate は読み込み済みフラグを下ろす。要素は次の取得まで残る。
func (c *Collection[T]) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.state.Loaded {
		return
	}
	c.state.Loaded = false
	c.publishLocked()
}

// Reset は状態をすべて破棄する。実行中の取得結果は反映されない。
// 実行中の取得を待つ呼び出しには取得失敗時はそのエラーが、成功時は ErrReset が返る。
// 未開始の再取得を待つ呼び出しには ErrReset が返る。
func (c *Collection[T]) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.queued != nil {
		c.queued.err = ErrReset
		close(c.queued.done)
	}
	c.inflight, c.queued = nil, nil
	c.state = State[T]{}
	c.publishLocked()
}

// ApplyLocalPatch は id に一致する要素を更新する。見つからなければ false を返す。
func (c *Collection[T]) ApplyLocalPatch(id int64, update func(*T)) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	i := c.indexLocked(id)
	if i < 0 {
		return false
	}
	items := append([]T(nil), c.state.Items...)
	update(&items[i])
	c.state.Items = items
	c.publishLocked()
	return true
}

// Upsert は要素を置き換え、存在しなければ先頭に追加する。
func (c *Collection[T]) Upsert(item T) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if i := c.indexLocked(c.id(item)); i >= 0 {
		items := append([]T(nil), c.state.Items...)
		items[i] = item
		c.state.Items = items
	} else {
		items := make([]T, 0, len(c.state.Items)+1)
		items = append(items, item)
		c.state.Items = append(items, c.state.Items...)
	}
	c.publishLocked()
}

// Remove は id に一致する要素を削除する。
func (c *Collection[T]) Remove(id int64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	i := c.indexLocked(id)
	if i < 0 {
		return false
	}
	items := make([]T, 0, len(c.state.Items)-1)
	items = append(items, c.state.Items[:i]...)
	c.state.Items = append(items, c.state.Items[i+1:]...)
	c.publishLocked()
	return true
}

func (c *Collection[T]) indexLocked(id int64) int {
	for i, item := range c.state.Items {
		if c.id(item) == id {
			return i
		}
	}
	return -1
}

func (c *Collection[T]) startLocked(l *load) {
	c.inflight = l
	c.state.Loading = true
	c.publishLocked()
	go c.run(l)
}

func (c *Collection[T]) run(l *load) {
	items, err := c.fetch(l.ctx)

	c.mu.Lock()
	defer c.mu.Unlock()

	// Reset 済みなら結果を捨てる
	if c.inflight != l {
		l.err = ErrReset
		if err != nil {
			l.err = model.AsAPIError(err)
		}
		close(l.done)
		return
	}

	if err != nil {
		apiErr := model.AsAPIError(err)
		c.state.Err = apiErr
		l.err = apiErr
		c.metrics.RecordCacheFetch(c.name, metrics.FetchError)
		c.logger.Warn("cache fetch failed",
			slog.String("cache", c.name),
			slog.String("category", string(apiErr.Category)),
			slog.String("error", err.Error()),
		)
	} else {
		if items == nil {
			items = []T{}
		}
		c.state.Items = items
		c.state.Loaded = true
		c.state.Err = nil
		c.state.UpdatedAt = time.Now()
		c.metrics.RecordCacheFetch(c.name, metrics.FetchOK)
		c.logger.Debug("cache loaded", slog.String("cache", c.name), slog.Int("count", len(items)))
	}

	if next := c.queued; next != nil {
		c.queued = nil
		c.inflight = next
		go c.run(next)
	} else {
		c.inflight = nil
		c.state.Loading = false
	}
	c.publishLocked()
	close(l.done)
}

func (c *Collection[T]) publishLocked() {
	c.subject.Publish(c.state)
}

func wait(ctx context.Context, l *load) error {
	select {
	case <-l.done:
		return l.err
	case <-ctx.Done():
		return model.FromContextError(ctx.Err())
	}
}
