package bridge

import (
	"github.com/hitoshi/donorlink/internal/cache"
	apiclient "github.com/hitoshi/donorlink/internal/client"
	"github.com/hitoshi/donorlink/internal/model"
)

// Source は配信イベント名と購読関数の組。
// Subscribe は現在値を直ちに1回通知し、以降の変更を通知する。通知は呼び出し元をブロックしてはならない。
type Source struct {
	Event     string
	Subscribe func(fn func(any)) (unsubscribe func())
}

// SessionSubscriber はセッションの購読を提供する。
type SessionSubscriber interface {
	Subscribe(fn func(model.Session)) func()
}

// FromSession はセッションをイベント "session" として配信する。
func FromSession(s SessionSubscriber) Source {
	return Source{
		Event: "session",
		Subscribe: func(fn func(any)) func() {
			return s.Subscribe(func(v model.Session) { fn(NewSessionView(v)) })
		},
	}
}

// FromCollection はコレクションをイベント名で配信する。
func FromCollection[T any](event string, c *cache.Collection[T]) Source {
	return Source{
		Event: event,
		Subscribe: func(fn func(any)) func() {
			return c.Subscribe(func(s cache.State[T]) { fn(NewCollectionView(s)) })
		},
	}
}

// ClientSources はクライアントが保持するセッションと一覧キャッシュの配信元を返す。
func ClientSources(c *apiclient.Client) []Source {
	return []Source{
		FromSession(c.Session),
		FromCollection("campaigns.active", c.Campaigns.Active),
		FromCollection("campaigns.mine", c.Campaigns.Mine),
		FromCollection("campaigns.pending", c.Campaigns.Pending),
		FromCollection("campaigns.details", c.Campaigns.WithDetails),
		FromCollection("donations.mine", c.Donations.Mine),
		FromCollection("donations.received", c.Donations.Received),
		FromCollection("donations.all", c.Donations.All),
		FromCollection("comments.all", c.Comments.All),
		FromCollection("admin.users", c.Admin.Users),
		FromCollection("admin.associations.pending", c.Admin.PendingAssociations),
	}
}
