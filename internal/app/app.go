package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/hitoshi/donorlink/internal/bridge"
	"github.com/hitoshi/donorlink/internal/client"
	"github.com/hitoshi/donorlink/internal/config"
	"github.com/hitoshi/donorlink/internal/database"
	"github.com/hitoshi/donorlink/internal/handler"
	"github.com/hitoshi/donorlink/internal/logger"
	"github.com/hitoshi/donorlink/internal/media"
	"github.com/hitoshi/donorlink/internal/metrics"
	"github.com/hitoshi/donorlink/internal/middleware"
	"github.com/hitoshi/donorlink/internal/model"
	"github.com/hitoshi/donorlink/internal/refresh"
	"github.com/hitoshi/donorlink/internal/security"
)

const shutdownTimeout = 30 * time.Second

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w, slog.LevelInfo)

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// 3. 設定されたログレベルで作り直す
	logger.SetupDefault(w, logger.ParseLevel(cfg.LogLevel))

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。wはログの出力先で、コマンドの結果は標準出力に書き出す。
// SIGINTまたはSIGTERMを受信すると実行中のコマンドを中断する。
func Run(w io.Writer, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return run(ctx, os.Stdout, w, args)
}

func run(ctx context.Context, out, w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8090"
		}
		return runHealthcheck(port)
	}

	if cmd == CommandLogin && len(args) < 3 {
		return errors.New("usage: donorlink login <email> <password>")
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Debug("starting application",
		slog.String("command", string(cmd)),
		slog.String("api_base_url", cfg.APIBaseURL),
		slog.String("session_store", maskStoreURL(cfg.SessionStoreURL)),
	)

	switch cmd {
	case CommandMigrate:
		return runMigrate(cfg)
	case CommandLogin:
		return runLogin(ctx, out, cfg, args[1], args[2])
	case CommandLogout:
		return runLogout(ctx, out, cfg)
	case CommandStatus:
		return runStatus(ctx, out, cfg)
	default:
		return runServe(ctx, cfg)
	}
}

// newClient は設定からClientを組み立てる。mがnilの場合はメトリクスを記録しない。
func newClient(ctx context.Context, cfg *config.Config, m metrics.MetricsCollector) (*client.Client, error) {
	opts := client.OptionsFromConfig(cfg)
	opts.Metrics = m
	opts.Logger = slog.Default()

	c, err := client.New(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to create client: %w", err)
	}
	return c, nil
}

// runServe はブリッジサーバーモードで起動する。
// 全依存関係をワイヤリングし、HTTPサーバーと定期更新スケジューラを起動する。
// ctxがキャンセルされるとグレースフルシャットダウンを行う。
func runServe(ctx context.Context, cfg *config.Config) error {
	log := slog.Default()

	// 1. メトリクス
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	// 2. セッションとキャッシュ
	c, err := newClient(ctx, cfg, metrics.NewCollector(registry))
	if err != nil {
		return err
	}
	defer c.Close()

	// 3. ブリッジ
	hub := bridge.NewHub(bridge.ClientSources(c), cfg.CORSAllowedOrigin, log)
	rateLimiter := middleware.NewRateLimiter(middleware.DefaultRateLimiterConfig(), log)
	defer rateLimiter.Stop()

	router := handler.NewRouter(&handler.RouterDeps{
		Client:            c,
		Hub:               hub,
		Metrics:           metrics.Handler(registry),
		ImageProxy:        media.NewProxy(security.NewURLGuard(), cfg.ImageMaxSize, cfg.ImageFetchTimeout, log),
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimiter:       rateLimiter,
		Logger:            log,
	})

	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	// Shutdown はハイジャック済みの接続を待たないため、WebSocketは自前で閉じる
	server.RegisterOnShutdown(hub.Close)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	errCh := make(chan error, 2)

	// 4. 定期更新
	scheduler := refresh.NewScheduler(c.Reloadables, log, cfg.FanOutMaxConcurrent)
	unsubscribe := c.Session.Subscribe(func(model.Session) { scheduler.ResetBackoff() })
	defer unsubscribe()
	go func() {
		if err := scheduler.Start(runCtx, cfg.RefreshSchedule); err != nil {
			errCh <- err
		}
	}()

	// 5. HTTPサーバーの起動
	go func() {
		log.Info("bridge server starting",
			slog.String("addr", server.Addr),
			slog.String("refresh_schedule", cfg.RefreshSchedule),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("server listen error: %w", err)
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
		log.Info("shutting down bridge server...")
	case runErr = <-errCh:
		log.Error("bridge server aborted", slog.String("error", runErr.Error()))
	}
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return errors.Join(runErr, fmt.Errorf("server shutdown failed: %w", err))
	}
	if runErr != nil {
		return runErr
	}

	log.Info("bridge server stopped gracefully")
	return nil
}

// runMigrate はSQLセッションストアのマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	if _, err := database.DialectFromURL(cfg.SessionStoreURL); err != nil {
		return fmt.Errorf("migrate requires a sql session store: %w", err)
	}

	slog.Info("running database migrations",
		slog.String("session_store", maskStoreURL(cfg.SessionStoreURL)),
	)

	if err := database.RunMigrationsURL(cfg.SessionStoreURL); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully")
	return nil
}

// runLogin はログインしてセッションを永続化し、結果のセッションを出力する。
func runLogin(ctx context.Context, out io.Writer, cfg *config.Config, email, password string) error {
	c, err := newClient(ctx, cfg, nil)
	if err != nil {
		return err
	}
	defer c.Close()

	s, err := c.Auth.Login(ctx, email, password)
	if err != nil {
		return fmt.Errorf("login failed: %w", err)
	}
	return printJSON(out, bridge.NewSessionView(s))
}

// runLogout は永続化されたセッションを破棄する。
func runLogout(ctx context.Context, out io.Writer, cfg *config.Config) error {
	c, err := newClient(ctx, cfg, nil)
	if err != nil {
		return err
	}
	defer c.Close()

	if err := c.Auth.Logout(ctx); err != nil {
		return err
	}
	return printJSON(out, bridge.NewSessionView(c.Session.Current()))
}

// runStatus は永続化されたセッションを復元して出力する。
func runStatus(ctx context.Context, out io.Writer, cfg *config.Config) error {
	c, err := newClient(ctx, cfg, nil)
	if err != nil {
		return err
	}
	defer c.Close()

	return printJSON(out, bridge.NewSessionView(c.Session.Current()))
}

func printJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	target := fmt.Sprintf("http://localhost:%s/health", port)
	hc := &http.Client{Timeout: 5 * time.Second}

	resp, err := hc.Get(target)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// maskStoreURL はストアURLの認証情報をマスクする。
func maskStoreURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return "***"
	}
	return u.Redacted()
}
