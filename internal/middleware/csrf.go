package middleware

import (
	"log/slog"
	"mime"
	"net/http"
	"net/url"

	"github.com/hitoshi/donorlink/internal/model"
)

// NewCSRFMiddleware はクロスサイトからの状態変更リクエストを拒否するミドルウェアを返す。
// ブリッジは localhost で待ち受けるため、任意のサイトから送信されうる。
// 安全なメソッド（GET, HEAD, OPTIONS）は検証をスキップする。
// 状態変更メソッドは次をすべて満たす必要がある。
//   - Origin ヘッダーがあれば allowedOrigin または自ホストと一致する
//   - Sec-Fetch-Site ヘッダーがあれば cross-site ではない
//   - ボディ付きの場合 Content-Type が application/json（フォーム送信ではプリフライトが発生しない）
func NewCSRFMiddleware(allowedOrigin string, logger *slog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if isSafeMethod(r.Method) {
				next.ServeHTTP(w, r)
				return
			}

			if reason := csrfViolation(r, allowedOrigin); reason != "" {
				logger.Warn("CSRF validation failed",
					slog.String("reason", reason),
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path),
				)
				WriteErrorResponse(w, http.StatusForbidden, model.NewForbiddenError())
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// csrfViolation は拒否理由を返す。問題がなければ空文字。
func csrfViolation(r *http.Request, allowedOrigin string) string {
	if origin := r.Header.Get("Origin"); origin != "" && origin != allowedOrigin && !sameHost(origin, r.Host) {
		return "origin mismatch"
	}
	if r.Header.Get("Sec-Fetch-Site") == "cross-site" {
		return "cross-site fetch"
	}
	if r.ContentLength != 0 {
		mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
		if err != nil || mediaType != "application/json" {
			return "non-json body"
		}
	}
	return ""
}

// sameHost は origin のホストがリクエスト先ホストと一致するかを返す。
func sameHost(origin, host string) bool {
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	return u.Host == host
}

// isSafeMethod はHTTPメソッドが安全（読み取り専用）かどうかを判定する。
func isSafeMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return true
	default:
		return false
	}
}
