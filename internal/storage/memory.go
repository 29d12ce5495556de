package storage

import (
	"context"
	"sync"
)

// MemoryStore はプロセス内メモリのストア。テストや一時的な実行で使用する。
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]string
}

// NewMemoryStore はMemoryStoreを生成する。
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]string)}
}

// Get は指定キーの値を返す。
func (s *MemoryStore) Get(_ context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.entries[key]
	return v, ok, nil
}

// Put は全エントリを書き込む。
func (s *MemoryStore) Put(_ context.Context, entries map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, v := range entries {
		s.entries[k] = v
	}
	return nil
}

// Delete は指定キーを削除する。
func (s *MemoryStore) Delete(_ context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, k := range keys {
		delete(s.entries, k)
	}
	return nil
}

// Close は何もしない。
func (s *MemoryStore) Close() error { return nil }

var _ Store = (*MemoryStore)(nil)
