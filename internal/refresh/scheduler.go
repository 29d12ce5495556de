// Package refresh は読み込み済みのキャッシュを定期的に再取得する。
package refresh

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"

	"github.com/hitoshi/donorlink/internal/cache"
)

// DefaultSchedule は既定の更新スケジュール。
const DefaultSchedule = "@every 5m"

// Source は更新対象のコレクションを返す。キー別のコレクションが増えるため毎回呼ばれる。
type Source func() []cache.Reloadable

// Scheduler はcronスケジュールに従って読み込み済みのコレクションを再取得する。
// 未読み込みのコレクションは利用者が参照していないため対象外とする。
// 失敗したコレクションは指数バックオフの間、更新を見送る。
type Scheduler struct {
	source         Source
	logger         *slog.Logger
	maxConcurrency int
	backoff        *backoffTracker
	now            func() time.Time
}

// NewScheduler はSchedulerを生成する。
// maxConcurrencyが0以下の場合はデフォルト値4を使用する。
func NewScheduler(source Source, logger *slog.Logger, maxConcurrency int) *Scheduler {
	if maxConcurrency <= 0 {
		maxConcurrency = 4
	}
	return &Scheduler{
		source:         source,
		logger:         logger,
		maxConcurrency: maxConcurrency,
		backoff:        newBackoffTracker(),
		now:            time.Now,
	}
}

// ResetBackoff は失敗による待機をすべて解除する。権限が変わり得るためセッションの変化時に呼ぶ。
func (s *Scheduler) ResetBackoff() {
	s.backoff.reset()
}

// Start はスケジューラを起動し、コンテキストがキャンセルされるまでブロックする。
// 前回の更新が終わっていない場合、その回はスキップされる。
func (s *Scheduler) Start(ctx context.Context, schedule string) error {
	if schedule == "" {
		schedule = DefaultSchedule
	}

	log := cronLogger{logger: s.logger}
	c := cron.New(
		cron.WithLogger(log),
		cron.WithChain(cron.Recover(log), cron.SkipIfStillRunning(log)),
	)
	if _, err := c.AddFunc(schedule, func() { s.RunOnce(ctx) }); err != nil {
		return fmt.Errorf("invalid refresh schedule %q: %w", schedule, err)
	}

	s.logger.Info("refresh scheduler started",
		slog.String("schedule", schedule),
		slog.Int("max_concurrency", s.maxConcurrency),
	)
	c.Start()

	<-ctx.Done()
	<-c.Stop().Done()
	s.logger.Info("refresh scheduler stopped")
	return nil
}

// RunOnce は読み込み済みのコレクションを並列に再取得し、再取得した数を返す。
// 個々の失敗はコレクションの状態に反映されるため、ここではログに残すだけにする。
func (s *Scheduler) RunOnce(ctx context.Context) int {
	start := s.now()

	var targets []cache.Reloadable
	skipped := 0
	for _, r := range s.source() {
		if !r.Loaded() {
			continue
		}
		if !s.backoff.due(r, start) {
			skipped++
			continue
		}
		targets = append(targets, r)
	}
	if len(targets) == 0 {
		s.logger.Debug("no collections to refresh", slog.Int("backoff_count", skipped))
		return 0
	}

	var g errgroup.Group
	g.SetLimit(s.maxConcurrency)
	for _, r := range targets {
		g.Go(func() error {
			if err := r.Reload(ctx); err != nil {
				// 停止やセッション切り替えによる中断は失敗として数えない
				if ctx.Err() != nil || errors.Is(err, cache.ErrReset) {
					return nil
				}
				delay := s.backoff.failure(r, err, s.now())
				s.logger.Warn("collection refresh failed",
					slog.String("cache", r.Name()),
					slog.String("error", err.Error()),
					slog.Duration("retry_after", delay),
				)
				return nil
			}
			s.backoff.success(r)
			return nil
		})
	}
	_ = g.Wait()

	s.logger.Info("refresh cycle completed",
		slog.Int("collection_count", len(targets)),
		slog.Int("backoff_count", skipped),
		slog.Float64("duration_ms", float64(s.now().Sub(start).Milliseconds())),
	)
	return len(targets)
}

// cronLogger はcronのログをslogへ流す。
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error("cron: "+msg, append([]any{slog.String("error", err.Error())}, keysAndValues...)...)
}
