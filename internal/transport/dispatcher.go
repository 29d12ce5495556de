package transport

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"
	"golang.org/x/time/rate"

	"github.com/hitoshi/donorlink/internal/metrics"
	"github.com/hitoshi/donorlink/internal/model"
)

const (
	// DefaultTimeout は1回の送信のタイムアウト。
	DefaultTimeout = 10 * time.Second
	// maxResponseSize はレスポンスボディの上限サイズ。
	maxResponseSize = 8 << 20
	// RequestIDHeader はリクエスト追跡用のヘッダー名。
	RequestIDHeader = "X-Request-ID"
)

// Doer は資格情報を指定して1回送信する。
type Doer interface {
	Dispatch(ctx context.Context, call Call, bearer string) (*Response, error)
}

// DispatcherConfig はDispatcherの設定を保持する。
type DispatcherConfig struct {
	BaseURL       string
	Timeout       time.Duration
	RatePerSecond float64 // 0以下なら無制限
	Burst         int
	HTTPClient    *http.Client
}

// Dispatcher はHTTP送信を1回行い、失敗を model.APIError に正規化する。
type Dispatcher struct {
	httpClient *http.Client
	baseURL    string
	timeout    time.Duration
	limiter    *rate.Limiter
	metrics    metrics.MetricsCollector
	logger     *slog.Logger
}

// NewDispatcher はDispatcherを生成する。
func NewDispatcher(cfg DispatcherConfig, m metrics.MetricsCollector, logger *slog.Logger) *Dispatcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{}
	}
	if m == nil {
		m = metrics.Nop{}
	}
	d := &Dispatcher{
		httpClient: cfg.HTTPClient,
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		timeout:    cfg.Timeout,
		metrics:    m,
		logger:     logger,
	}
	if cfg.RatePerSecond > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		d.limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSecond), burst)
	}
	return d
}

// Timeout は1回の送信のタイムアウトを返す。
func (d *Dispatcher) Timeout() time.Duration {
	return d.timeout
}

// Dispatch はCallを送信する。2xx以外は *model.APIError を返す。
// bearer が空の場合は Authorization ヘッダーを付与しない。
func (d *Dispatcher) Dispatch(ctx context.Context, call Call, bearer string) (*Response, error) {
	parent := ctx
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	if d.limiter != nil {
		if err := d.limiter.Wait(ctx); err != nil {
			return nil, d.transportError(parent, call, err)
		}
	}

	req, err := d.newRequest(ctx, call, bearer)
	if err != nil {
		return nil, model.NewUnknownError(0, err)
	}

	start := time.Now()
	resp, err := d.httpClient.Do(req)
	if err != nil {
		return nil, d.transportError(parent, call, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, d.transportError(parent, call, err)
	}

	d.metrics.RecordAPILatency(time.Since(start))
	d.metrics.RecordAPIStatus(resp.StatusCode)
	d.logger.Debug("api call",
		slog.String("method", call.Method),
		slog.String("path", call.Path),
		slog.Int("http_status", resp.StatusCode),
		slog.String("request_id", req.Header.Get(RequestIDHeader)),
		slog.Duration("duration", time.Since(start)),
	)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := errorFromResponse(resp.StatusCode, body)
		d.metrics.RecordAPIFailure(string(apiErr.Category))
		return nil, apiErr
	}

	return &Response{Status: resp.StatusCode, Header: resp.Header, Body: body}, nil
}

func (d *Dispatcher) newRequest(ctx context.Context, call Call, bearer string) (*http.Request, error) {
	base := d.baseURL
	if call.Base != "" {
		base = strings.TrimRight(call.Base, "/")
	}
	target := base + call.Path
	if len(call.Query) > 0 {
		target += "?" + call.Query.Encode()
	}

	var body io.Reader
	if call.Body != nil {
		body = bytes.NewReader(call.Body)
	}
	method := call.Method
	if method == "" {
		method = http.MethodGet
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if call.Body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set(RequestIDHeader, uuid.NewString())
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	return req, nil
}

// transportError は送信できなかった失敗をタイムアウトかネットワークエラーに分類する。
func (d *Dispatcher) transportError(parent context.Context, call Call, err error) error {
	if parentErr := parent.Err(); errors.Is(parentErr, context.Canceled) {
		return model.NewCanceledError(parentErr)
	}

	var apiErr *model.APIError
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		apiErr = model.NewTimeoutError(err)
	} else {
		apiErr = model.NewNetworkError(err)
	}
	d.metrics.RecordAPIFailure(string(apiErr.Category))
	d.logger.Warn("api call failed",
		slog.String("method", call.Method),
		slog.String("path", call.Path),
		slog.String("category", string(apiErr.Category)),
		slog.String("error", err.Error()),
	)
	return apiErr
}

// errorFromResponse はエラーレスポンスを分類し、サーバーのメッセージは原因として保持する。
func errorFromResponse(status int, body []byte) *model.APIError {
	apiErr := model.Classify(status)
	if apiErr.Category == model.CategoryValidation {
		apiErr.Fields = fieldErrors(body)
	}

	if gjson.ValidBytes(body) {
		if msg := gjson.GetBytes(body, "message").String(); msg != "" {
			return apiErr.WithCause(fmt.Errorf("server: %s", msg))
		}
	}
	return apiErr.WithCause(fmt.Errorf("server returned status %d", status))
}

// fieldErrors はバリデーションエラーのフィールド別メッセージを取り出す。
// {"errors":{"email":"..."}} と {"errors":[{"field":"email","message":"..."}]} の両形式に対応する。
func fieldErrors(body []byte) map[string]string {
	if !gjson.ValidBytes(body) {
		return nil
	}
	root := gjson.ParseBytes(body)
	v := root.Get("errors")
	if !v.Exists() {
		v = root.Get("fieldErrors")
	}

	fields := make(map[string]string)
	switch {
	case v.IsObject():
		v.ForEach(func(k, msg gjson.Result) bool {
			fields[k.String()] = msg.String()
			return true
		})
	case v.IsArray():
		for _, e := range v.Array() {
			name := e.Get("field").String()
			if name == "" {
				continue
			}
			msg := e.Get("message").String()
			if msg == "" {
				msg = e.Get("defaultMessage").String()
			}
			fields[name] = msg
		}
	}
	if len(fields) == 0 {
		return nil
	}
	return fields
}
