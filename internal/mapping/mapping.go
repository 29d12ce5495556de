// Package mapping はリモートAPIのレスポンスを正規化された内部レコードに変換する。
// 同じ概念を表す別名フィールドの吸収はこのパッケージの中だけで行う。
package mapping

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/hitoshi/donorlink/internal/security"
)

// ErrMalformedPayload はレスポンスがJSONとして解釈できない場合のエラー。
var ErrMalformedPayload = errors.New("malformed response payload")

// DefaultExcerptLength はキャンペーン概要の最大文字数。
const DefaultExcerptLength = 160

// Mapper はレスポンスの正規化を行う。
type Mapper struct {
	guard      security.URLGuard
	sanitizer  security.Sanitizer
	excerptLen int
}

// NewMapper はMapperを生成する。
func NewMapper(guard security.URLGuard, sanitizer security.Sanitizer) *Mapper {
	return &Mapper{
		guard:      guard,
		sanitizer:  sanitizer,
		excerptLen: DefaultExcerptLength,
	}
}

// parse はボディを検証してgjsonの結果を返す。
func parse(body []byte) (gjson.Result, error) {
	if !gjson.ValidBytes(body) {
		return gjson.Result{}, ErrMalformedPayload
	}
	return gjson.ParseBytes(body), nil
}

// listItems は配列、または content / data / items で包まれた配列を取り出す。
func listItems(body []byte) ([]gjson.Result, error) {
	root, err := parse(body)
	if err != nil {
		return nil, err
	}
	if root.IsArray() {
		return root.Array(), nil
	}
	for _, key := range []string{"content", "data", "items"} {
		if v := root.Get(key); v.IsArray() {
			return v.Array(), nil
		}
	}
	if root.Type == gjson.Null {
		return nil, nil
	}
	return nil, fmt.Errorf("%w: expected a list", ErrMalformedPayload)
}

// first は最初に存在するパスの値を返す。
func first(r gjson.Result, paths ...string) gjson.Result {
	for _, p := range paths {
		if v := r.Get(p); v.Exists() && v.Type != gjson.Null {
			return v
		}
	}
	return gjson.Result{}
}

func firstString(r gjson.Result, paths ...string) string {
	return strings.TrimSpace(first(r, paths...).String())
}

func firstInt(r gjson.Result, paths ...string) int64 {
	return first(r, paths...).Int()
}

func firstFloat(r gjson.Result, paths ...string) float64 {
	return first(r, paths...).Float()
}

// timeLayouts はサーバーが返す日時形式。タイムゾーンなしの形式はUTCとして扱う。
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// firstTime は日時を解釈する。数値はUnixミリ秒として扱う。
func firstTime(r gjson.Result, paths ...string) *time.Time {
	v := first(r, paths...)
	switch v.Type {
	case gjson.Number:
		t := time.UnixMilli(v.Int()).UTC()
		return &t
	case gjson.String:
		return parseTime(v.String())
	}
	return nil
}

func parseTime(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return &t
		}
	}
	return nil
}

// mapList は各要素に変換関数を適用する。
func mapList[T any](body []byte, fn func(gjson.Result) T) ([]T, error) {
	items, err := listItems(body)
	if err != nil {
		return nil, err
	}
	out := make([]T, 0, len(items))
	for _, it := range items {
		out = append(out, fn(it))
	}
	return out, nil
}

// mapOne は単一オブジェクトに変換関数を適用する。
func mapOne[T any](body []byte, fn func(gjson.Result) T) (T, error) {
	var zero T
	root, err := parse(body)
	if err != nil {
		return zero, err
	}
	if !root.IsObject() {
		return zero, fmt.Errorf("%w: expected an object", ErrMalformedPayload)
	}
	return fn(root), nil
}
