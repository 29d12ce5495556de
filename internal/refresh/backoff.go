package refresh

import (
	"sync"
	"time"

	"github.com/hitoshi/donorlink/internal/cache"
	"github.com/hitoshi/donorlink/internal/model"
)

const (
	// initialBackoff は連続失敗時の初回待機時間（1分）。
	initialBackoff = time.Minute
	// maxBackoff は待機時間の上限（1時間）。
	maxBackoff = time.Hour
)

// CalculateBackoff は連続失敗回数に基づいて指数バックオフ遅延を計算する。
// 初回1分、2倍ずつ増加、最大1時間。
func CalculateBackoff(consecutiveErrors int) time.Duration {
	delay := initialBackoff
	for i := 0; i < consecutiveErrors; i++ {
		delay *= 2
		if delay > maxBackoff {
			return maxBackoff
		}
	}
	return delay
}

// retryable は次回以降の更新で回復が見込める失敗かどうかを判定する。
// 権限や存在に関する失敗はセッションが変わるまで結果が変わらないため、上限まで待たせる。
func retryable(err error) bool {
	return !model.IsCategory(err, model.CategoryForbidden) &&
		!model.IsCategory(err, model.CategoryNotFound)
}

type backoffState struct {
	consecutiveErrors int
	nextAttempt       time.Time
}

// backoffTracker はコレクションごとの連続失敗を記録し、待機中の更新を間引く。
type backoffTracker struct {
	mu     sync.Mutex
	states map[cache.Reloadable]*backoffState
}

func newBackoffTracker() *backoffTracker {
	return &backoffTracker{states: make(map[cache.Reloadable]*backoffState)}
}

// due は now の時点で更新してよいかどうかを返す。
func (b *backoffTracker) due(r cache.Reloadable, now time.Time) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	st, ok := b.states[r]
	return !ok || !now.Before(st.nextAttempt)
}

// failure は失敗を記録し、次回の更新までの待機時間を返す。
func (b *backoffTracker) failure(r cache.Reloadable, err error, now time.Time) time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()
	st, ok := b.states[r]
	if !ok {
		st = &backoffState{}
		b.states[r] = st
	}
	st.consecutiveErrors++
	delay := CalculateBackoff(st.consecutiveErrors - 1)
	if !retryable(err) {
		delay = maxBackoff
	}
	st.nextAttempt = now.Add(delay)
	return delay
}

// success は連続失敗をリセットする。
func (b *backoffTracker) success(r cache.Reloadable) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.states, r)
}

// reset はすべての待機状態を破棄する。
func (b *backoffTracker) reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	clear(b.states)
}
