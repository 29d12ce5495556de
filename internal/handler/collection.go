package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/donorlink/internal/bridge"
	"github.com/hitoshi/donorlink/internal/cache"
)

// resolver はリクエストから対象のコレクションを特定する。
type resolver[T any] func(r *http.Request) (*cache.Collection[T], error)

// fixed は常に同じコレクションを返す。
func fixed[T any](c *cache.Collection[T]) resolver[T] {
	return func(*http.Request) (*cache.Collection[T], error) { return c, nil }
}

// keyed はURLパラメータ "id" をキーとしてコレクションを返す。
func keyed[T any](k *cache.Keyed[int64, T]) resolver[T] {
	return func(r *http.Request) (*cache.Collection[T], error) {
		id, err := idParam(r, "id")
		if err != nil {
			return nil, err
		}
		return k.Get(id), nil
	}
}

// mountCollection は一覧の参照・再取得・無効化のルートを登録する。
//
//	GET  {pattern}
//	POST {pattern}/reload
//	POST {pattern}/invalidate
func mountCollection[T any](r chi.Router, pattern string, res resolver[T], filter func(*http.Request, []T) []T) {
	r.Get(pattern, listCollection(res, filter))
	r.Post(pattern+"/reload", reloadCollection(res))
	r.Post(pattern+"/invalidate", invalidateCollection(res))
}

// listCollection は未読み込みであれば読み込んでから状態を返す。
// 読み込みに失敗しても以前の要素が残っている場合はエラーを含む状態を返す。
func listCollection[T any](res resolver[T], filter func(*http.Request, []T) []T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, err := res(r)
		if err != nil {
			handleServiceError(w, r, err)
			return
		}
		if err := c.EnsureLoaded(r.Context()); err != nil && !c.Loaded() && len(c.Snapshot().Items) == 0 {
			handleServiceError(w, r, err)
			return
		}
		writeView(w, r, c, filter)
	}
}

// reloadCollection は再取得し、結果の状態を返す。
func reloadCollection[T any](res resolver[T]) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, err := res(r)
		if err != nil {
			handleServiceError(w, r, err)
			return
		}
		if err := c.Reload(r.Context()); err != nil {
			handleServiceError(w, r, err)
			return
		}
		writeView(w, r, c, nil)
	}
}

// invalidateCollection は読み込み済みフラグを下ろす。
func invalidateCollection[T any](res resolver[T]) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, err := res(r)
		if err != nil {
			handleServiceError(w, r, err)
			return
		}
		c.Invalidate()
		w.WriteHeader(http.StatusNoContent)
	}
}

func writeView[T any](w http.ResponseWriter, r *http.Request, c *cache.Collection[T], filter func(*http.Request, []T) []T) {
	view := bridge.NewCollectionView(c.Snapshot())
	if filter != nil {
		view.Items = filter(r, view.Items)
	}
	writeJSON(w, http.StatusOK, view)
}
