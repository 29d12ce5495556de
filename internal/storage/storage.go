// Package storage はプロセスをまたいでセッションを保持する永続キーバリューストアを提供する。
package storage

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// 永続化キー
const (
	KeyCurrentUser  = "currentUser"
	KeyAuthToken    = "authToken"
	KeyRefreshToken = "refreshToken"
)

// SessionKeys はセッションを構成する全キー。
var SessionKeys = []string{KeyCurrentUser, KeyAuthToken, KeyRefreshToken}

// ErrUnsupportedBackend は未対応のストアURLが指定された場合のエラー。
var ErrUnsupportedBackend = errors.New("unsupported session store backend")

// Store はセッション永続化のインターフェース。
// Put は渡された全エントリをまとめて書き込む。
type Store interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Put(ctx context.Context, entries map[string]string) error
	Delete(ctx context.Context, keys ...string) error
	Close() error
}

// Open はURLのスキームに応じたストアを開く。
//
//	memory://                 プロセス内メモリ
//	file:///path/session.json JSONファイル
//	sqlite:///path/session.db SQLite
//	postgres://...            PostgreSQL
//	redis://...               Redis
func Open(ctx context.Context, rawURL, namespace string) (Store, error) {
	if namespace == "" {
		namespace = "default"
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid session store url: %w", err)
	}

	switch u.Scheme {
	case "memory":
		return NewMemoryStore(), nil
	case "file":
		path := strings.TrimPrefix(rawURL, "file://")
		if path == "" {
			return nil, fmt.Errorf("file session store requires a path")
		}
		return NewFileStore(path), nil
	case "sqlite", "sqlite3", "postgres", "postgresql":
		return OpenSQLStore(ctx, rawURL, namespace)
	case "redis", "rediss":
		return OpenRedisStore(ctx, rawURL, namespace)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedBackend, u.Scheme)
	}
}
