// Package session はログイン状態の唯一の保持者であるセッションストアを提供する。
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/hitoshi/donorlink/internal/model"
	"github.com/hitoshi/donorlink/internal/reactive"
	"github.com/hitoshi/donorlink/internal/storage"
)

var (
	// ErrNoSession はログインしていない状態で資格情報を更新しようとした場合のエラー。
	ErrNoSession = errors.New("no active session")
	// ErrInvalidSession はユーザーまたはアクセストークンが欠けたログインのエラー。
	ErrInvalidSession = errors.New("session requires a user and an access credential")
)

// Store はセッションを保持し、変更を購読者に配信する。
// 変更系メソッドは直列化され、永続化が成功してから配信される。
// 購読コールバック内で Login / Logout / UpdateCredentials を呼んではならない。
type Store struct {
	storage storage.Store
	logger  *slog.Logger

	mu      sync.Mutex
	subject *reactive.Subject[model.Session]
}

// New は永続化ストアからセッションを復元してStoreを生成する。
// 壊れたエントリは削除され、ユーザーとアクセストークンが揃わない場合は未ログインとして起動する。
func New(ctx context.Context, st storage.Store, logger *slog.Logger) *Store {
	s := &Store{
		storage: st,
		logger:  logger,
		subject: reactive.NewSubject(model.Session{}),
	}
	s.subject.Publish(s.restore(ctx))
	return s
}

// restore は永続化されたエントリを検証してセッションを組み立てる。
func (s *Store) restore(ctx context.Context) model.Session {
	var purge []string

	user, present := s.readUser(ctx)
	if user == nil && present {
		purge = append(purge, storage.KeyCurrentUser)
	}
	access, present := s.readCredential(ctx, storage.KeyAuthToken)
	if access == "" && present {
		purge = append(purge, storage.KeyAuthToken)
	}
	renewal, present := s.readCredential(ctx, storage.KeyRefreshToken)
	if renewal == "" && present {
		purge = append(purge, storage.KeyRefreshToken)
	}

	if user == nil || access == "" {
		// 片側だけ残ったエントリも破棄する
		if user != nil {
			purge = append(purge, storage.KeyCurrentUser)
		}
		if access != "" {
			purge = append(purge, storage.KeyAuthToken)
		}
		if renewal != "" {
			purge = append(purge, storage.KeyRefreshToken)
		}
		s.purge(ctx, purge)
		return model.Session{}
	}

	s.purge(ctx, purge)
	s.logger.Info("session restored",
		slog.Int64("user_id", user.ID),
		slog.String("role", string(user.Role)),
		slog.Bool("renewable", renewal != ""),
	)
	return model.Session{
		User:              user,
		AccessCredential:  access,
		RenewalCredential: renewal,
		AccessExpiry:      AccessExpiry(access),
	}
}

// readUser はユーザーを読み込む。presentはエントリが存在したかどうか。
func (s *Store) readUser(ctx context.Context) (*model.UserIdentity, bool) {
	raw, ok, err := s.storage.Get(ctx, storage.KeyCurrentUser)
	if err != nil {
		s.logger.Warn("failed to read stored user", slog.String("error", err.Error()))
		return nil, false
	}
	if !ok {
		return nil, false
	}
	if isSentinel(raw) {
		return nil, true
	}

	var user model.UserIdentity
	if err := json.Unmarshal([]byte(raw), &user); err != nil || user.ID == 0 {
		s.logger.Warn("discarding unparsable stored user")
		return nil, true
	}
	return &user, true
}

func (s *Store) readCredential(ctx context.Context, key string) (string, bool) {
	raw, ok, err := s.storage.Get(ctx, key)
	if err != nil {
		s.logger.Warn("failed to read stored credential",
			slog.String("key", key),
			slog.String("error", err.Error()),
		)
		return "", false
	}
	if !ok {
		return "", false
	}
	if isSentinel(raw) || strings.TrimSpace(raw) == "" {
		return "", true
	}
	return raw, true
}

func (s *Store) purge(ctx context.Context, keys []string) {
	if len(keys) == 0 {
		return
	}
	if err := s.storage.Delete(ctx, keys...); err != nil {
		s.logger.Warn("failed to purge stored session entries",
			slog.Any("keys", keys),
			slog.String("error", err.Error()),
		)
		return
	}
	s.logger.Info("purged invalid session entries", slog.Any("keys", keys))
}

// isSentinel は過去のクライアントが書き込んだ無効値かどうかを判定する。
func isSentinel(raw string) bool {
	switch strings.TrimSpace(raw) {
	case "undefined", "null":
		return true
	}
	return false
}

// Current は現在のセッションのスナップショットを返す。
// User は共有されるため、呼び出し側で変更してはならない。
func (s *Store) Current() model.Session {
	return s.subject.Value()
}

// Subscribe はセッション変更を購読する。現在値が即座に1回配信される。
func (s *Store) Subscribe(fn func(model.Session)) func() {
	return s.subject.Subscribe(fn)
}

// SubscribeContext は ctx が終了するまでセッション変更を購読する。
func (s *Store) SubscribeContext(ctx context.Context, fn func(model.Session)) {
	s.subject.SubscribeContext(ctx, fn)
}

// RenewalCredential は保存されているリフレッシュトークンを返す。
func (s *Store) RenewalCredential() string {
	return s.Current().RenewalCredential
}

// Login はセッションを永続化してから配信する。
// renewal が空の場合、以前のリフレッシュトークンは先に削除され、削除できなければログインは失敗する。
func (s *Store) Login(ctx context.Context, user model.UserIdentity, access, renewal string) error {
	if user.ID == 0 || access == "" {
		return ErrInvalidSession
	}
	encoded, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("failed to encode user: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// 古いリフレッシュトークンが新しいユーザーに引き継がれないよう、書き込みの前に消す
	if renewal == "" {
		if err := s.storage.Delete(ctx, storage.KeyRefreshToken); err != nil {
			return fmt.Errorf("failed to clear previous refresh token: %w", err)
		}
	}

	entries := map[string]string{
		storage.KeyCurrentUser: string(encoded),
		storage.KeyAuthToken:   access,
	}
	if renewal != "" {
		entries[storage.KeyRefreshToken] = renewal
	}
	if err := s.storage.Put(ctx, entries); err != nil {
		return fmt.Errorf("failed to persist session: %w", err)
	}

	s.subject.Publish(model.Session{
		User:              &user,
		AccessCredential:  access,
		RenewalCredential: renewal,
		AccessExpiry:      AccessExpiry(access),
	})
	s.logger.Info("user logged in",
		slog.Int64("user_id", user.ID),
		slog.String("role", string(user.Role)),
	)
	return nil
}

// Logout は永続化ストアとメモリ上のセッションを破棄し、未ログイン状態を配信する。
// ストアの削除に失敗してもメモリ上の状態は破棄され、エラーを返す。
// すでに未ログインの場合は配信しない。
func (s *Store) Logout(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var persistErr error
	if err := s.storage.Delete(ctx, storage.SessionKeys...); err != nil {
		persistErr = fmt.Errorf("failed to clear persisted session: %w", err)
		s.logger.Error("failed to clear persisted session", slog.String("error", err.Error()))
	}

	current := s.subject.Value()
	if current.User == nil && current.AccessCredential == "" {
		return persistErr
	}

	s.subject.Publish(model.Session{})
	s.logger.Info("user logged out", slog.Int64("user_id", current.UserID()))
	return persistErr
}

// ExpireSession は held と同じユーザーとリフレッシュトークンを保持している場合に限りログアウトする。
// 更新の開始後に別のセッションへ切り替わっていれば何もせず false を返す。
func (s *Store) ExpireSession(ctx context.Context, held model.Session) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current := s.subject.Value()
	if !sameHolder(current, held) {
		return false, nil
	}

	var persistErr error
	if err := s.storage.Delete(ctx, storage.SessionKeys...); err != nil {
		persistErr = fmt.Errorf("failed to clear persisted session: %w", err)
		s.logger.Error("failed to clear persisted session", slog.String("error", err.Error()))
	}
	s.subject.Publish(model.Session{})
	s.logger.Info("session expired", slog.Int64("user_id", current.UserID()))
	return true, persistErr
}

// UpdateCredentials はユーザーを保ったままアクセストークンを差し替える。
// held は更新を始めた時点のセッションで、ユーザーかリフレッシュトークンが変わっていれば ErrNoSession を返す。
// renewal が空の場合は既存のリフレッシュトークンを維持する。
func (s *Store) UpdateCredentials(ctx context.Context, held model.Session, access, renewal string) error {
	if access == "" {
		return ErrInvalidSession
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	current := s.subject.Value()
	if !sameHolder(current, held) {
		return ErrNoSession
	}

	entries := map[string]string{storage.KeyAuthToken: access}
	if renewal != "" {
		entries[storage.KeyRefreshToken] = renewal
	} else {
		renewal = current.RenewalCredential
	}
	if err := s.storage.Put(ctx, entries); err != nil {
		return fmt.Errorf("failed to persist credentials: %w", err)
	}

	s.subject.Publish(model.Session{
		User:              current.User,
		AccessCredential:  access,
		RenewalCredential: renewal,
		AccessExpiry:      AccessExpiry(access),
	})
	return nil
}

// sameHolder は current が held と同じログインの続きかどうかを判定する。
func sameHolder(current, held model.Session) bool {
	return current.Authenticated() &&
		current.UserID() == held.UserID() &&
		current.RenewalCredential == held.RenewalCredential
}
