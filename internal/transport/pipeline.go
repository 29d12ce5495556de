package transport

import (
	"context"
	"log/slog"

	"github.com/hitoshi/donorlink/internal/model"
)

// CredentialSource は現在のアクセストークンを提供する。
type CredentialSource interface {
	Current() model.Session
}

// Renewer はトークン更新を行う。rejected は401を受けたときに使用したトークン。
type Renewer interface {
	RequestRenewal(ctx context.Context, rejected string) (string, error)
}

// Pipeline は送信ごとに資格情報を付与し、401を受けた場合はトークン更新後に1回だけ再送する。
// 呼び出し間で状態を持たない。
type Pipeline struct {
	doer    Doer
	session CredentialSource
	renewer Renewer
	logger  *slog.Logger
}

// NewPipeline はPipelineを生成する。
func NewPipeline(doer Doer, session CredentialSource, renewer Renewer, logger *slog.Logger) *Pipeline {
	return &Pipeline{
		doer:    doer,
		session: session,
		renewer: renewer,
		logger:  logger,
	}
}

// Do はCallを送信する。
//  1. 認証系エンドポイントはそのまま送信する
//  2. それ以外はアクセストークンがあれば付与する
//  3. 401の場合はトークン更新を依頼し、成功すれば新しいトークンで1回だけ再送する
//  4. 再送の結果は成否にかかわらずそのまま返す
func (p *Pipeline) Do(ctx context.Context, call Call) (*Response, error) {
	if IsIdentityCall(call) {
		return p.doer.Dispatch(ctx, call, "")
	}

	token := p.session.Current().AccessCredential
	resp, err := p.doer.Dispatch(ctx, call, token)
	if err == nil || !model.IsCategory(err, model.CategoryUnauthenticated) {
		return resp, err
	}

	fresh, err := p.renewer.RequestRenewal(ctx, token)
	if err != nil {
		p.logger.Info("request abandoned after failed renewal",
			slog.String("method", call.Method),
			slog.String("path", call.Path),
		)
		return nil, err
	}

	return p.doer.Dispatch(ctx, call, fresh)
}

var _ Caller = (*Pipeline)(nil)
