// Package bridge はセッションとキャッシュの状態をWebSocketでUIへ配信する。
package bridge

import (
	"time"

	"github.com/hitoshi/donorlink/internal/cache"
	"github.com/hitoshi/donorlink/internal/middleware"
	"github.com/hitoshi/donorlink/internal/model"
)

// SessionView はUIに公開するセッション。トークンは含めない。
type SessionView struct {
	Authenticated bool                `json:"authenticated"`
	User          *model.UserIdentity `json:"user,omitempty"`
	AccessExpiry  *time.Time          `json:"accessExpiry,omitempty"`
	CanRenew      bool                `json:"canRenew"`
}

// NewSessionView はセッションを公開用に変換する。
func NewSessionView(s model.Session) SessionView {
	if !s.Authenticated() {
		return SessionView{}
	}
	return SessionView{
		Authenticated: true,
		User:          s.User,
		AccessExpiry:  s.AccessExpiry,
		CanRenew:      s.RenewalCredential != "",
	}
}

// CollectionView はコレクションの状態をUI向けに表したもの。
type CollectionView[T any] struct {
	Items     []T                           `json:"items"`
	Loaded    bool                          `json:"loaded"`
	Loading   bool                          `json:"loading"`
	Error     *middleware.ErrorResponseBody `json:"error,omitempty"`
	UpdatedAt *time.Time                    `json:"updatedAt,omitempty"`
}

// NewCollectionView はコレクションの状態を公開用に変換する。
func NewCollectionView[T any](s cache.State[T]) CollectionView[T] {
	v := CollectionView[T]{
		Items:   s.Items,
		Loaded:  s.Loaded,
		Loading: s.Loading,
	}
	if v.Items == nil {
		v.Items = []T{}
	}
	if s.Err != nil {
		body := middleware.NewErrorResponseBody(s.Err)
		v.Error = &body
	}
	if !s.UpdatedAt.IsZero() {
		t := s.UpdatedAt
		v.UpdatedAt = &t
	}
	return v
}
