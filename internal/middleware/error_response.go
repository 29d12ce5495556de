package middleware

import (
	"encoding/json"
	"net/http"

	"github.com/hitoshi/donorlink/internal/model"
)

// ErrorResponseBody はAPIエラーレスポンスの統一フォーマット。
// 原因カテゴリと対処方法を含む。
type ErrorResponseBody struct {
	Code     string            `json:"code"`
	Message  string            `json:"message"`
	Category string            `json:"category"`
	Action   string            `json:"action"`
	Fields   map[string]string `json:"fields,omitempty"`
}

// NewErrorResponseBody はAPIErrorからレスポンスボディを組み立てる。
func NewErrorResponseBody(apiErr *model.APIError) ErrorResponseBody {
	return ErrorResponseBody{
		Code:     apiErr.Code,
		Message:  apiErr.Message,
		Category: string(apiErr.Category),
		Action:   apiErr.Action,
		Fields:   apiErr.Fields,
	}
}

// WriteErrorResponse は統一エラーフォーマットでHTTPエラーレスポンスを書き込む。
// すべてのAPIエンドポイントで一貫したエラーレスポンスを提供する。
func WriteErrorResponse(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(NewErrorResponseBody(apiErr))
}

// WriteError はエラーをカテゴリに応じたステータスで書き込む。
// APIError 以外のエラーは unknown として扱う。
func WriteError(w http.ResponseWriter, err error) {
	apiErr := model.AsAPIError(err)
	WriteErrorResponse(w, StatusForCategory(apiErr.Category), apiErr)
}

// StatusForCategory はエラーカテゴリをブリッジが返すHTTPステータスに変換する。
func StatusForCategory(c model.Category) int {
	switch c {
	case model.CategoryNetwork:
		return http.StatusBadGateway
	case model.CategoryTimeout:
		return http.StatusGatewayTimeout
	case model.CategoryUnauthenticated:
		return http.StatusUnauthorized
	case model.CategoryForbidden:
		return http.StatusForbidden
	case model.CategoryNotFound:
		return http.StatusNotFound
	case model.CategoryConflict:
		return http.StatusConflict
	case model.CategoryValidation:
		return http.StatusBadRequest
	case model.CategoryRateLimited:
		return http.StatusTooManyRequests
	case model.CategoryServer:
		return http.StatusBadGateway
	case model.CategoryCanceled:
		return http.StatusRequestTimeout
	default:
		return http.StatusInternalServerError
	}
}

// WriteInternalServerError は内部サーバーエラーの統一レスポンスを書き込む。
// 詳細はログのみに記録し、ユーザーには一般的なメッセージを返す。
func WriteInternalServerError(w http.ResponseWriter) {
	WriteErrorResponse(w, http.StatusInternalServerError, &model.APIError{
		Code:     "INTERNAL_ERROR",
		Message:  "An internal error occurred.",
		Category: model.CategoryUnknown,
		Action:   "Please wait a moment and try again.",
	})
}
