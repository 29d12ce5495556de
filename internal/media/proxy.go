// Package media はサーバーから受け取った外部画像を安全に中継する。
package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/hitoshi/donorlink/internal/model"
	"github.com/hitoshi/donorlink/internal/security"
)

const (
	// DefaultMaxSize は画像の最大サイズ（5MB）。
	DefaultMaxSize = 5 * 1024 * 1024
	// DefaultTimeout は画像取得のタイムアウト。
	DefaultTimeout = 10 * time.Second

	userAgent = "DonorLink/1.0 Image Proxy"
)

// Image は取得した画像。
type Image struct {
	Data     []byte
	MIMEType string
}

// CampaignLookup はキャンペーンを1件取得する。
type CampaignLookup interface {
	Get(ctx context.Context, id int64) (model.Campaign, error)
}

// Proxy は外部画像を取得する。宛先はURLガードで検証される。
type Proxy struct {
	guard   security.URLGuard
	client  *http.Client
	maxSize int64
	logger  *slog.Logger
}

// NewProxy はProxyを生成する。maxSize と timeout が0以下の場合は既定値を使う。
func NewProxy(guard security.URLGuard, maxSize int64, timeout time.Duration, logger *slog.Logger) *Proxy {
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Proxy{
		guard:   guard,
		client:  guard.NewSafeClient(timeout),
		maxSize: maxSize,
		logger:  logger,
	}
}

// CampaignImage はキャンペーンの画像を取得する。画像が未設定の場合は not_found を返す。
func (p *Proxy) CampaignImage(ctx context.Context, campaigns CampaignLookup, id int64) (Image, error) {
	c, err := campaigns.Get(ctx, id)
	if err != nil {
		return Image{}, err
	}
	if c.ImageURL == "" {
		return Image{}, model.NewNotFoundError()
	}
	return p.Fetch(ctx, c.ImageURL)
}

// Fetch は画像を取得する。
// 2xx以外、サイズ超過、画像以外のContent-Typeはいずれもエラーになる。
func (p *Proxy) Fetch(ctx context.Context, rawURL string) (Image, error) {
	if err := p.guard.ValidateURL(rawURL); err != nil {
		if errors.Is(err, security.ErrBlockedAddress) {
			p.logger.Warn("image blocked", slog.String("error", err.Error()))
			return Image{}, model.NewSSRFBlockedError().WithCause(err)
		}
		return Image{}, model.NewInvalidURLError(err.Error()).WithCause(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return Image{}, model.NewInvalidURLError(err.Error()).WithCause(err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "image/*")

	resp, err := p.client.Do(req)
	if err != nil {
		p.logger.Warn("image fetch failed", slog.String("error", err.Error()))
		var netErr net.Error
		if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
			return Image{}, model.NewTimeoutError(err)
		}
		return Image{}, model.NewNetworkError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		p.logger.Warn("image fetch failed", slog.Int("http_status", resp.StatusCode))
		return Image{}, model.NewInvalidImageError(fmt.Sprintf("status %d", resp.StatusCode))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, p.maxSize+1))
	if err != nil {
		return Image{}, model.NewNetworkError(err)
	}
	if int64(len(body)) > p.maxSize {
		p.logger.Warn("image too large", slog.Int64("max_size", p.maxSize))
		return Image{}, model.NewInvalidImageError("too large")
	}

	mimeType := extractMIMEType(resp.Header.Get("Content-Type"))
	if !strings.HasPrefix(mimeType, "image/") {
		p.logger.Warn("image content type rejected", slog.String("content_type", mimeType))
		return Image{}, model.NewInvalidImageError("not an image")
	}

	return Image{Data: body, MIMEType: mimeType}, nil
}

// extractMIMEType はContent-Typeヘッダーからメディアタイプを抽出する。
func extractMIMEType(contentType string) string {
	mediaType, _, _ := strings.Cut(contentType, ";")
	return strings.TrimSpace(strings.ToLower(mediaType))
}
