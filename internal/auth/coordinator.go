package auth

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"

	"golang.org/x/sync/singleflight"

	"github.com/hitoshi/donorlink/internal/metrics"
	"github.com/hitoshi/donorlink/internal/model"
)

// ErrNoRenewalCredential はリフレッシュトークンが保存されていない場合のエラー。
var ErrNoRenewalCredential = errors.New("no renewal credential available")

// RenewalState はトークン更新の状態を表す。
type RenewalState int32

const (
	StateIdle RenewalState = iota
	StateRenewing
)

func (s RenewalState) String() string {
	if s == StateRenewing {
		return "renewing"
	}
	return "idle"
}

// SessionStore はセッションストアのうち認証処理が利用する操作。
type SessionStore interface {
	Current() model.Session
	Login(ctx context.Context, user model.UserIdentity, access, renewal string) error
	Logout(ctx context.Context) error
	UpdateCredentials(ctx context.Context, held model.Session, access, renewal string) error
	ExpireSession(ctx context.Context, held model.Session) (bool, error)
}

// Refresher はリフレッシュトークンを新しいアクセストークンに交換する。
type Refresher interface {
	Refresh(ctx context.Context, renewal string) (access, rotated string, err error)
}

// Coordinator はトークン更新を1つに集約する。
// 更新中に届いた依頼はすべて同じ結果を受け取り、更新の失敗はログアウトを伴う。
type Coordinator struct {
	session   SessionStore
	refresher Refresher
	metrics   metrics.MetricsCollector
	logger    *slog.Logger

	group singleflight.Group
	state atomic.Int32
}

// NewCoordinator はCoordinatorを生成する。
func NewCoordinator(session SessionStore, refresher Refresher, m metrics.MetricsCollector, logger *slog.Logger) *Coordinator {
	if m == nil {
		m = metrics.Nop{}
	}
	return &Coordinator{
		session:   session,
		refresher: refresher,
		metrics:   m,
		logger:    logger,
	}
}

// State は現在の更新状態を返す。
func (c *Coordinator) State() RenewalState {
	return RenewalState(c.state.Load())
}

// RequestRenewal は新しいアクセストークンを返す。
// rejected は401を受けたときのトークンで、すでに別のトークンに置き換わっていれば通信せずにそれを返す。
// 更新処理は呼び出し元のキャンセルから切り離して実行され、呼び出し元は自身のctxで待機を中断できる。
func (c *Coordinator) RequestRenewal(ctx context.Context, rejected string) (string, error) {
	if current := c.session.Current().AccessCredential; current != "" && current != rejected {
		c.metrics.RecordRenewal(metrics.RenewalReused)
		return current, nil
	}

	ch := c.group.DoChan("renewal", func() (any, error) {
		return c.renew(context.WithoutCancel(ctx))
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	case <-ctx.Done():
		return "", model.FromContextError(ctx.Err())
	}
}

func (c *Coordinator) renew(ctx context.Context) (string, error) {
	c.state.Store(int32(StateRenewing))
	defer c.state.Store(int32(StateIdle))

	// 更新中にログアウトや別ユーザーのログインがあっても、開始時のセッションにだけ反映する
	held := c.session.Current()
	if held.RenewalCredential == "" {
		return "", c.fail(ctx, held, ErrNoRenewalCredential)
	}

	access, rotated, err := c.refresher.Refresh(ctx, held.RenewalCredential)
	if err != nil {
		return "", c.fail(ctx, held, err)
	}
	if err := c.session.UpdateCredentials(ctx, held, access, rotated); err != nil {
		return "", c.fail(ctx, held, err)
	}

	c.metrics.RecordRenewal(metrics.RenewalSucceeded)
	c.logger.Info("access token renewed",
		slog.Int64("user_id", held.UserID()),
		slog.Bool("rotated", rotated != ""),
	)
	return access, nil
}

// fail は held のセッションがまだ有効なら破棄し、呼び出し元へ返すエラーを生成する。
// すでに別のセッションに切り替わっている場合、そのセッションには触れない。
func (c *Coordinator) fail(ctx context.Context, held model.Session, cause error) error {
	c.metrics.RecordRenewal(metrics.RenewalFailed)

	expired, err := c.session.ExpireSession(ctx, held)
	if err != nil {
		c.logger.Error("failed to clear session after renewal failure", slog.String("error", err.Error()))
	}
	if expired {
		c.metrics.RecordForcedLogout()
	}

	c.logger.Warn("token renewal failed",
		slog.Int64("user_id", held.UserID()),
		slog.String("error", cause.Error()),
		slog.Bool("forced_logout", expired),
	)
	return model.NewSessionExpiredError(cause)
}
