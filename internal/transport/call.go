// Package transport はリモートAPIへの送信を担う。
// Dispatcher が1回のHTTP送信とエラー正規化を行い、Pipeline が資格情報の付与と
// 401時の1回限りの再送を行う。
package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// Call は1回のAPI呼び出しを表す。Body はそのまま再送できるようバイト列で保持する。
type Call struct {
	Method string
	Base   string // 空の場合はDispatcherの既定ベースURL
	Path   string
	Query  url.Values
	Body   []byte
}

// Response はAPIレスポンスを表す。
type Response struct {
	Status int
	Header http.Header
	Body   []byte
}

// Caller はCallを送信する。Pipeline が実装する。
type Caller interface {
	Do(ctx context.Context, call Call) (*Response, error)
}

// Get はGETのCallを生成する。
func Get(path string) Call {
	return Call{Method: http.MethodGet, Path: path}
}

// Delete はDELETEのCallを生成する。
func Delete(path string) Call {
	return Call{Method: http.MethodDelete, Path: path}
}

// WithJSON はpayloadをJSONにエンコードしてボディに設定したCallを返す。
func WithJSON(method, path string, payload any) (Call, error) {
	call := Call{Method: method, Path: path}
	if payload == nil {
		return call, nil
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return Call{}, fmt.Errorf("failed to encode request body: %w", err)
	}
	call.Body = body
	return call, nil
}

// WithBase はベースURLを差し替えたCallを返す。
func (c Call) WithBase(base string) Call {
	c.Base = base
	return c
}

// WithQuery はクエリを設定したCallを返す。
func (c Call) WithQuery(q url.Values) Call {
	c.Query = q
	return c
}

// IsIdentityCall は認証系エンドポイントへの呼び出しかを判定する。
// 認証系には資格情報を付与せず、401でも更新処理を行わない。
func IsIdentityCall(c Call) bool {
	return strings.Contains(c.Path, "/auth/")
}

// Body はCallを送信してレスポンスボディを返す。
func Body(ctx context.Context, caller Caller, call Call) ([]byte, error) {
	resp, err := caller.Do(ctx, call)
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}
