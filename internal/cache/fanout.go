package cache

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// FanOut は親ごとの取得を並行に実行し、結果を親の順序で連結する。
// 1つでも失敗した場合は部分的な結果を返さず、最初のエラーを返す。
// limit が0以下の場合は並行数を制限しない。
func FanOut[P, T any](ctx context.Context, parents []P, limit int, fetch func(context.Context, P) ([]T, error)) ([]T, error) {
	results := make([][]T, len(parents))

	g, gctx := errgroup.WithContext(ctx)
	if limit > 0 {
		g.SetLimit(limit)
	}
	for i, p := range parents {
		g.Go(func() error {
			items, err := fetch(gctx, p)
			if err != nil {
				return err
			}
			results[i] = items
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	n := 0
	for _, r := range results {
		n += len(r)
	}
	all := make([]T, 0, n)
	for _, r := range results {
		all = append(all, r...)
	}
	return all, nil
}
