// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// トークン更新の結果ラベル
const (
	RenewalSucceeded = "succeeded"
	RenewalFailed    = "failed"
	RenewalReused    = "reused"
)

// キャッシュ取得の結果ラベル
const (
	FetchOK    = "ok"
	FetchError = "error"
)

// MetricsCollector はメトリクス収集のインターフェース。
// 送信パイプライン、トークン更新、キャッシュ層から利用する。
type MetricsCollector interface {
	RecordAPIStatus(statusCode int)
	RecordAPIFailure(category string)
	RecordAPILatency(duration time.Duration)
	RecordRenewal(outcome string)
	RecordForcedLogout()
	RecordCacheFetch(cache, outcome string)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	apiStatus     *prometheus.CounterVec
	apiFailure    *prometheus.CounterVec
	apiLatency    prometheus.Histogram
	renewals      *prometheus.CounterVec
	forcedLogouts prometheus.Counter
	cacheFetches  *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		apiStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "donorlink_api_status_total",
			Help: "リモートAPIのHTTPステータスコード別レスポンス数",
		}, []string{"status_code"}),
		apiFailure: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "donorlink_api_failure_total",
			Help: "リモートAPI呼び出し失敗のカテゴリ別件数",
		}, []string{"category"}),
		apiLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "donorlink_api_latency_seconds",
			Help:    "リモートAPI呼び出しのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		renewals: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "donorlink_token_renewal_total",
			Help: "トークン更新の結果別件数",
		}, []string{"outcome"}),
		forcedLogouts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "donorlink_forced_logout_total",
			Help: "トークン更新失敗による強制ログアウト数",
		}),
		cacheFetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "donorlink_cache_fetch_total",
			Help: "キャッシュ取得のキャッシュ名・結果別件数",
		}, []string{"cache", "outcome"}),
	}

	reg.MustRegister(
		c.apiStatus,
		c.apiFailure,
		c.apiLatency,
		c.renewals,
		c.forcedLogouts,
		c.cacheFetches,
	)

	return c
}

// RecordAPIStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordAPIStatus(statusCode int) {
	c.apiStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordAPIFailure は失敗カテゴリを記録する。
func (c *Collector) RecordAPIFailure(category string) {
	c.apiFailure.WithLabelValues(category).Inc()
}

// RecordAPILatency はAPI呼び出しのレイテンシを記録する。
func (c *Collector) RecordAPILatency(duration time.Duration) {
	c.apiLatency.Observe(duration.Seconds())
}

// RecordRenewal はトークン更新の結果を記録する。
func (c *Collector) RecordRenewal(outcome string) {
	c.renewals.WithLabelValues(outcome).Inc()
}

// RecordForcedLogout は強制ログアウトを記録する。
func (c *Collector) RecordForcedLogout() {
	c.forcedLogouts.Inc()
}

// RecordCacheFetch はキャッシュ取得の結果を記録する。
func (c *Collector) RecordCacheFetch(cache, outcome string) {
	c.cacheFetches.WithLabelValues(cache, outcome).Inc()
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// Nop は何も記録しない MetricsCollector。
type Nop struct{}

func (Nop) RecordAPIStatus(int)             {}
func (Nop) RecordAPIFailure(string)         {}
func (Nop) RecordAPILatency(time.Duration)  {}
func (Nop) RecordRenewal(string)            {}
func (Nop) RecordForcedLogout()             {}
func (Nop) RecordCacheFetch(string, string) {}

var (
	_ MetricsCollector = (*Collector)(nil)
	_ MetricsCollector = Nop{}
)
