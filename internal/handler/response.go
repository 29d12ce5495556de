// Package handler はブリッジのHTTPハンドラーを提供する。
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/donorlink/internal/middleware"
	"github.com/hitoshi/donorlink/internal/model"
)

// maxRequestBody はリクエストボディの最大サイズ（1MB）。
const maxRequestBody = 1 << 20

// writeJSON はJSONレスポンスを書き込む。
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// decodeJSON はリクエストボディをJSONとして読み込む。
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return model.NewInvalidRequestError("malformed JSON body").WithCause(err)
	}
	return nil
}

// idParam はURLパラメータを正の整数IDとして解釈する。
func idParam(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0, model.NewInvalidRequestError("invalid " + name)
	}
	return id, nil
}

// handleServiceError はサービス層のエラーをHTTPレスポンスに変換する。
// クライアントが切断した場合は何も書き込まない。
func handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, context.Canceled) && r.Context().Err() != nil {
		return
	}
	middleware.WriteError(w, err)
}
