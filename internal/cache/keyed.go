package cache

import (
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultKeyedLimit はKeyedが保持するCollectionの既定の上限。
const DefaultKeyedLimit = 64

// Keyed はキーごとのCollectionを初回アクセス時に生成して保持する。
// 保持数が上限を超えると最も長く参照されていないCollectionを手放し、定期更新の対象からも外す。
type Keyed[K comparable, T any] struct {
	factory func(K) *Collection[T]

	mu          sync.Mutex
	collections *lru.Cache[K, *Collection[T]]
}

// NewKeyed は上限 DefaultKeyedLimit のKeyedを生成する。
func NewKeyed[K comparable, T any](factory func(K) *Collection[T]) *Keyed[K, T] {
	return NewKeyedLimit(DefaultKeyedLimit, factory)
}

// NewKeyedLimit は保持するCollectionの数を limit に制限したKeyedを生成する。
// limit が1未満の場合は DefaultKeyedLimit を使う。
func NewKeyedLimit[K comparable, T any](limit int, factory func(K) *Collection[T]) *Keyed[K, T] {
	if limit < 1 {
		limit = DefaultKeyedLimit
	}
	// lru.New はサイズが正であれば失敗しない
	collections, _ := lru.New[K, *Collection[T]](limit)
	return &Keyed[K, T]{
		factory:     factory,
		collections: collections,
	}
}

// Get はキーに対応するCollectionを返す。
func (k *Keyed[K, T]) Get(key K) *Collection[T] {
	k.mu.Lock()
	defer k.mu.Unlock()

	c, ok := k.collections.Get(key)
	if !ok {
		c = k.factory(key)
		k.collections.Add(key, c)
	}
	return c
}

// Lookup は生成済みのCollectionのみを返す。参照順は更新しない。
func (k *Keyed[K, T]) Lookup(key K) (*Collection[T], bool) {
	return k.collections.Peek(key)
}

// Len は保持しているCollectionの数を返す。
func (k *Keyed[K, T]) Len() int {
	return k.collections.Len()
}

// Invalidate は生成済みであればそのCollectionを無効化する。
func (k *Keyed[K, T]) Invalidate(key K) {
	if c, ok := k.Lookup(key); ok {
		c.Invalidate()
	}
}

// Each は生成済みのすべてのCollectionに fn を適用する。
func (k *Keyed[K, T]) Each(fn func(K, *Collection[T])) {
	for _, key := range k.collections.Keys() {
		if c, ok := k.collections.Peek(key); ok {
			fn(key, c)
		}
	}
}

// Reloadables は生成済みのCollectionを定期更新の対象として返す。
func (k *Keyed[K, T]) Reloadables() []Reloadable {
	var out []Reloadable
	k.Each(func(_ K, c *Collection[T]) { out = append(out, c) })
	return out
}

// Reset は生成済みのすべてのCollectionをリセットする。
// 購読中のCollectionを差し替えないよう、インスタンスは保持したままにする。
func (k *Keyed[K, T]) Reset() {
	k.Each(func(_ K, c *Collection[T]) { c.Reset() })
}
