// Package model はドメインモデルを定義する。
package model

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// Category はUIに公開するエラーの分類を表す。
type Category string

// 定義済みカテゴリ
const (
	CategoryNetwork         Category = "network"
	CategoryTimeout         Category = "timeout"
	CategoryUnauthenticated Category = "unauthenticated"
	CategoryForbidden       Category = "forbidden"
	CategoryNotFound        Category = "not_found"
	CategoryConflict        Category = "conflict"
	CategoryServer          Category = "server"
	CategoryValidation      Category = "validation"
	CategoryRateLimited     Category = "rate_limited"
	CategoryCanceled        Category = "canceled"
	CategoryUnknown         Category = "unknown"
)

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
// 元の転送エラーは cause に保持し、ログ出力にのみ使用する。
type APIError struct {
	Code     string            // エラーコード
	Message  string            // カテゴリ固定のメッセージ
	Category Category          // カテゴリ
	Action   string            // ユーザー向け対処方法
	Status   int               // HTTPステータス（ネットワーク・タイムアウト時は0）
	Fields   map[string]string // バリデーションエラーのフィールド別メッセージ
	cause    error
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap は元のエラーを返す。
func (e *APIError) Unwrap() error {
	return e.cause
}

// WithCause は元のエラーを保持したコピーを返す。
func (e *APIError) WithCause(err error) *APIError {
	c := *e
	c.cause = err
	return &c
}

// 定義済みエラーコード
const (
	ErrCodeNetwork         = "NETWORK_UNREACHABLE"
	ErrCodeTimeout         = "REQUEST_TIMEOUT"
	ErrCodeUnauthenticated = "UNAUTHENTICATED"
	ErrCodeSessionExpired  = "SESSION_EXPIRED"
	ErrCodeForbidden       = "FORBIDDEN"
	ErrCodeNotFound        = "NOT_FOUND"
	ErrCodeConflict        = "CONFLICT"
	ErrCodeServer          = "SERVER_ERROR"
	ErrCodeValidation      = "VALIDATION_FAILED"
	ErrCodeRateLimited     = "RATE_LIMITED"
	ErrCodeCanceled        = "REQUEST_CANCELED"
	ErrCodeUnknown         = "UNKNOWN"
	ErrCodeInvalidURL      = "INVALID_URL"
	ErrCodeSSRFBlocked     = "SSRF_BLOCKED"
	ErrCodeInvalidRequest  = "INVALID_REQUEST"
	ErrCodeInvalidImage    = "INVALID_IMAGE"
)

// NewNetworkError はサーバーに到達できない場合のエラーを生成する。
func NewNetworkError(cause error) *APIError {
	return &APIError{
		Code:     ErrCodeNetwork,
		Message:  "Unable to connect to the server.",
		Category: CategoryNetwork,
		Action:   "Please check your connection.",
		cause:    cause,
	}
}

// NewTimeoutError はリクエストがタイムアウトした場合のエラーを生成する。
func NewTimeoutError(cause error) *APIError {
	return &APIError{
		Code:     ErrCodeTimeout,
		Message:  "Request timed out.",
		Category: CategoryTimeout,
		Action:   "Please check your connection and try again.",
		cause:    cause,
	}
}

// NewUnauthenticatedError は認証が必要な場合のエラーを生成する。
func NewUnauthenticatedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthenticated,
		Message:  "You must be logged in to perform this action.",
		Category: CategoryUnauthenticated,
		Action:   "Please log in and try again.",
		Status:   http.StatusUnauthorized,
	}
}

// NewSessionExpiredError はトークン更新に失敗しセッションが破棄された場合のエラーを生成する。
func NewSessionExpiredError(cause error) *APIError {
	return &APIError{
		Code:     ErrCodeSessionExpired,
		Message:  "Your session has expired.",
		Category: CategoryUnauthenticated,
		Action:   "Please log in again.",
		Status:   http.StatusUnauthorized,
		cause:    cause,
	}
}

// NewForbiddenError は権限不足のエラーを生成する。
func NewForbiddenError() *APIError {
	return &APIError{
		Code:     ErrCodeForbidden,
		Message:  "You do not have permission to perform this action.",
		Category: CategoryForbidden,
		Action:   "Contact an administrator if you believe this is a mistake.",
		Status:   http.StatusForbidden,
	}
}

// NewNotFoundError はリソース未検出エラーを生成する。
func NewNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeNotFound,
		Message:  "The requested resource was not found.",
		Category: CategoryNotFound,
		Action:   "Check the identifier and try again.",
		Status:   http.StatusNotFound,
	}
}

// NewConflictError は競合エラーを生成する。
func NewConflictError() *APIError {
	return &APIError{
		Code:     ErrCodeConflict,
		Message:  "The request conflicts with existing data.",
		Category: CategoryConflict,
		Action:   "The record may already exist. Review your input.",
		Status:   http.StatusConflict,
	}
}

// NewServerError はサーバー側のエラーを生成する。
func NewServerError(status int) *APIError {
	return &APIError{
		Code:     ErrCodeServer,
		Message:  "The server encountered an error.",
		Category: CategoryServer,
		Action:   "Please try again later.",
		Status:   status,
	}
}

// NewValidationError はバリデーションエラーを生成する。
func NewValidationError(status int, fields map[string]string) *APIError {
	return &APIError{
		Code:     ErrCodeValidation,
		Message:  "Some fields are invalid.",
		Category: CategoryValidation,
		Action:   "Review the highlighted fields and try again.",
		Status:   status,
		Fields:   fields,
	}
}

// NewRateLimitedError はリクエスト過多のエラーを生成する。
func NewRateLimitedError() *APIError {
	return &APIError{
		Code:     ErrCodeRateLimited,
		Message:  "Too many requests.",
		Category: CategoryRateLimited,
		Action:   "Please wait a moment and try again.",
		Status:   http.StatusTooManyRequests,
	}
}

// NewCanceledError は呼び出し元が待機を打ち切った場合のエラーを生成する。
// cause は保持されるため errors.Is(err, context.Canceled) は成り立つ。
func NewCanceledError(cause error) *APIError {
	return &APIError{
		Code:     ErrCodeCanceled,
		Message:  "Request canceled.",
		Category: CategoryCanceled,
		Action:   "Retry the request if it is still needed.",
		cause:    cause,
	}
}

// FromContextError は呼び出し元の ctx.Err() を分類する。
// 期限切れはタイムアウト、それ以外はキャンセルとして扱う。
func FromContextError(err error) *APIError {
	if errors.Is(err, context.DeadlineExceeded) {
		return NewTimeoutError(err)
	}
	return NewCanceledError(err)
}

// NewUnknownError は分類できないエラーを生成する。
func NewUnknownError(status int, cause error) *APIError {
	return &APIError{
		Code:     ErrCodeUnknown,
		Message:  "An unexpected error occurred.",
		Category: CategoryUnknown,
		Action:   "Please try again.",
		Status:   status,
		cause:    cause,
	}
}

// NewInvalidURLError は無効なURLエラーを生成する。
func NewInvalidURLError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidURL,
		Message:  fmt.Sprintf("Invalid URL: %s", reason),
		Category: CategoryValidation,
		Action:   "Use an http:// or https:// address.",
	}
}

// NewSSRFBlockedError はSSRFブロックエラーを生成する。
func NewSSRFBlockedError() *APIError {
	return &APIError{
		Code:     ErrCodeSSRFBlocked,
		Message:  "Access to the requested address is blocked by security policy.",
		Category: CategoryForbidden,
		Action:   "Only public web addresses can be used.",
	}
}

// NewInvalidRequestError はローカルAPIへの不正な入力エラーを生成する。
func NewInvalidRequestError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidRequest,
		Message:  fmt.Sprintf("Invalid request: %s", reason),
		Category: CategoryValidation,
		Action:   "Review the request and try again.",
		Status:   http.StatusBadRequest,
	}
}

// NewInvalidImageError は画像として扱えないレスポンスのエラーを生成する。
func NewInvalidImageError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidImage,
		Message:  fmt.Sprintf("The image could not be loaded: %s", reason),
		Category: CategoryUnknown,
		Action:   "Try another image URL.",
	}
}

// Classify はHTTPステータスをエラーに分類する。
// 2xx/3xx は呼び出し側で成功として扱われる前提で、ここでは不明扱いになる。
func Classify(status int) *APIError {
	switch {
	case status == http.StatusUnauthorized:
		return NewUnauthenticatedError()
	case status == http.StatusForbidden:
		return NewForbiddenError()
	case status == http.StatusNotFound:
		return NewNotFoundError()
	case status == http.StatusConflict:
		return NewConflictError()
	case status == http.StatusBadRequest || status == http.StatusUnprocessableEntity:
		return NewValidationError(status, nil)
	case status == http.StatusTooManyRequests:
		return NewRateLimitedError()
	case status >= 500:
		return NewServerError(status)
	default:
		return NewUnknownError(status, nil)
	}
}

// AsAPIError はエラーチェーンから APIError を取り出す。
// 見つからない場合は unknown カテゴリに包んで返す。
func AsAPIError(err error) *APIError {
	if err == nil {
		return nil
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}
	return NewUnknownError(0, err)
}

// IsCategory はエラーが指定カテゴリかどうかを判定する。
func IsCategory(err error, c Category) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Category == c
}
