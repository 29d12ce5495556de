// Package reactive は最新値をリプレイする購読チャネルを提供する。
package reactive

import (
	"context"
	"sync"
)

// Subject は最新値を保持し、変更を購読者へ順番に配信する。
// 新しい購読者には登録時点の値が即座に1回配信される。
//
// コールバックは Publish を呼んだゴルーチン上で同期的に実行される。
// コールバック内で同じ Subject の Publish / Subscribe を呼んではならない。
type Subject[T any] struct {
	emitMu sync.Mutex // 配信順序を直列化する

	mu     sync.Mutex
	value  T
	subs   []subscriber[T]
	nextID uint64
}

type subscriber[T any] struct {
	id uint64
	fn func(T)
}

// NewSubject は初期値を持つ Subject を生成する。
func NewSubject[T any](initial T) *Subject[T] {
	return &Subject[T]{value: initial}
}

// Value は現在値を返す。
func (s *Subject[T]) Value() T {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.value
}

// Publish は値を更新し、全購読者へ配信する。
func (s *Subject[T]) Publish(v T) {
	s.emitMu.Lock()
	defer s.emitMu.Unlock()

	s.mu.Lock()
	s.value = v
	subs := make([]subscriber[T], len(s.subs))
	copy(subs, s.subs)
	s.mu.Unlock()

	for _, sub := range subs {
		sub.fn(v)
	}
}

// Subscribe は購読を登録し、現在値を即座に配信する。
// 戻り値の関数を呼ぶと購読を解除する。複数回呼んでも安全。
func (s *Subject[T]) Subscribe(fn func(T)) func() {
	s.emitMu.Lock()
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.subs = append(s.subs, subscriber[T]{id: id, fn: fn})
	current := s.value
	s.mu.Unlock()

	fn(current)
	s.emitMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { s.remove(id) })
	}
}

// SubscribeContext は ctx が終了するまで購読する。
// 購読の寿命を呼び出し側のスコープに結びつける場合に使用する。
func (s *Subject[T]) SubscribeContext(ctx context.Context, fn func(T)) {
	unsubscribe := s.Subscribe(fn)
	go func() {
		<-ctx.Done()
		unsubscribe()
	}()
}

// Len は現在の購読者数を返す。
func (s *Subject[T]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs)
}

func (s *Subject[T]) remove(id uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, sub := range s.subs {
		if sub.id == id {
			s.subs = append(s.subs[:i:i], s.subs[i+1:]...)
			return
		}
	}
}
