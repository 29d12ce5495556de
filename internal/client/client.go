// Package client はセッションストア、送信パイプライン、各エンティティキャッシュを組み立てる。
package client

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hitoshi/donorlink/internal/admin"
	"github.com/hitoshi/donorlink/internal/auth"
	"github.com/hitoshi/donorlink/internal/cache"
	"github.com/hitoshi/donorlink/internal/campaign"
	"github.com/hitoshi/donorlink/internal/comment"
	"github.com/hitoshi/donorlink/internal/config"
	"github.com/hitoshi/donorlink/internal/donation"
	"github.com/hitoshi/donorlink/internal/mapping"
	"github.com/hitoshi/donorlink/internal/metrics"
	"github.com/hitoshi/donorlink/internal/model"
	"github.com/hitoshi/donorlink/internal/profile"
	"github.com/hitoshi/donorlink/internal/security"
	"github.com/hitoshi/donorlink/internal/session"
	"github.com/hitoshi/donorlink/internal/storage"
	"github.com/hitoshi/donorlink/internal/transport"
)

// Options はClientの構築パラメータ。
type Options struct {
	APIBaseURL      string
	CommentsBaseURL string

	// Store が nil の場合は StoreURL からストアを開き、Close で閉じる。
	Store     storage.Store
	StoreURL  string
	Namespace string

	RequestTimeout time.Duration
	RateLimitRPS   float64
	RateLimitBurst int
	FanOutLimit    int

	HTTPClient *http.Client
	Metrics    metrics.MetricsCollector
	Logger     *slog.Logger
}

// OptionsFromConfig は設定値からOptionsを組み立てる。
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		APIBaseURL:      cfg.APIBaseURL,
		CommentsBaseURL: cfg.CommentsBaseURL,
		StoreURL:        cfg.SessionStoreURL,
		Namespace:       cfg.SessionNamespace,
		RequestTimeout:  cfg.RequestTimeout,
		RateLimitRPS:    cfg.RateLimitRPS,
		RateLimitBurst:  cfg.RateLimitBurst,
		FanOutLimit:     cfg.FanOutMaxConcurrent,
	}
}

// Client はセッションとキャッシュの生存期間をまとめて管理する。
type Client struct {
	Session     *session.Store
	Coordinator *auth.Coordinator
	Auth        *auth.Service
	Profile     *profile.Service

	Campaigns *campaign.Cache
	Donations *donation.Cache
	Comments  *comment.Cache
	Admin     *admin.Cache

	pipeline *transport.Pipeline
	store    storage.Store
	ownStore bool
	logger   *slog.Logger

	lastUserID  atomic.Int64
	unsubscribe func()
	closeOnce   sync.Once
}

// New は全コンポーネントを生成し、セッション変更に応じてキャッシュを破棄する購読を開始する。
func New(ctx context.Context, opts Options) (*Client, error) {
	if opts.APIBaseURL == "" {
		return nil, fmt.Errorf("api base url is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	m := opts.Metrics
	if m == nil {
		m = metrics.Nop{}
	}
	commentsBase := opts.CommentsBaseURL
	if commentsBase == "" {
		commentsBase = opts.APIBaseURL
	}

	store, ownStore := opts.Store, false
	if store == nil {
		opened, err := storage.Open(ctx, opts.StoreURL, opts.Namespace)
		if err != nil {
			return nil, fmt.Errorf("failed to open session store: %w", err)
		}
		store, ownStore = opened, true
	}

	sess := session.New(ctx, store, logger)

	dispatcher := transport.NewDispatcher(transport.DispatcherConfig{
		BaseURL:       opts.APIBaseURL,
		Timeout:       opts.RequestTimeout,
		RatePerSecond: opts.RateLimitRPS,
		Burst:         opts.RateLimitBurst,
		HTTPClient:    opts.HTTPClient,
	}, m, logger)

	mapper := mapping.NewMapper(security.NewURLGuard(), security.NewSanitizer())
	identity := auth.NewClient(dispatcher, mapper)
	coordinator := auth.NewCoordinator(sess, identity, m, logger)
	pipeline := transport.NewPipeline(dispatcher, sess, coordinator, logger)

	campaignAPI := campaign.NewAPI(pipeline, mapper)

	c := &Client{
		Session:     sess,
		Coordinator: coordinator,
		Auth:        auth.NewService(identity, sess, logger),
		Profile:     profile.NewService(pipeline, mapper, sess, logger),
		Campaigns:   campaign.NewCache(campaignAPI, m, logger),
		Donations:   donation.NewCache(donation.NewAPI(pipeline, mapper), campaignAPI, opts.FanOutLimit, m, logger),
		Comments:    comment.NewCache(comment.NewAPI(pipeline, mapper, commentsBase), m, logger),
		Admin:       admin.NewCache(admin.NewAPI(pipeline, mapper), m, logger),
		pipeline:    pipeline,
		store:       store,
		ownStore:    ownStore,
		logger:      logger,
	}

	c.lastUserID.Store(sess.Current().UserID())
	c.unsubscribe = sess.Subscribe(c.onSession)

	logger.Info("client initialized",
		slog.String("api_base_url", opts.APIBaseURL),
		slog.Bool("authenticated", sess.Current().Authenticated()),
	)
	return c, nil
}

// onSession はログアウトまたはユーザーの切り替えでキャッシュを破棄する。
// トークン更新のみの変更ではキャッシュを保持する。
func (c *Client) onSession(s model.Session) {
	previous := c.lastUserID.Swap(s.UserID())
	if s.Authenticated() && s.UserID() == previous {
		return
	}
	if previous == 0 && !s.Authenticated() {
		return
	}
	c.ResetCaches()
	c.logger.Info("caches reset on session change",
		slog.Int64("previous_user_id", previous),
		slog.Int64("user_id", s.UserID()),
	)
}

// Caches はセッション単位で破棄されるキャッシュの一覧を返す。
func (c *Client) Caches() []cache.Resettable {
	return []cache.Resettable{c.Campaigns, c.Donations, c.Comments, c.Admin}
}

// ResetCaches はすべてのキャッシュを破棄する。
func (c *Client) ResetCaches() {
	for _, r := range c.Caches() {
		r.Reset()
	}
}

// Reloadables は定期更新の対象となるコレクションを返す。キー別のものは生成済みの分のみ含む。
func (c *Client) Reloadables() []cache.Reloadable {
	out := []cache.Reloadable{
		c.Campaigns.Active, c.Campaigns.Mine, c.Campaigns.Pending, c.Campaigns.WithDetails,
		c.Donations.Mine, c.Donations.Received, c.Donations.All,
		c.Comments.All,
		c.Admin.Users, c.Admin.PendingAssociations,
	}
	out = append(out, c.Campaigns.ByAssociation.Reloadables()...)
	out = append(out, c.Donations.ByCampaign.Reloadables()...)
	out = append(out, c.Donations.ByUser.Reloadables()...)
	out = append(out, c.Comments.ByCampaign.Reloadables()...)
	return out
}

// Caller は認証付きの送信パイプラインを返す。
func (c *Client) Caller() transport.Caller {
	return c.pipeline
}

// Close は購読を解除し、自身で開いたストアを閉じる。
func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		if c.unsubscribe != nil {
			c.unsubscribe()
		}
		if c.ownStore {
			err = c.store.Close()
		}
	})
	return err
}
