package campaign

import (
	"time"

	"github.com/hitoshi/donorlink/internal/model"
)

// CategoryAll はカテゴリで絞り込まないことを表す。
const CategoryAll model.CampaignCategory = "ALL"

// FilterByCategory はカテゴリで絞り込む。CategoryAll または空なら全件のコピーを返す。
func FilterByCategory(items []model.Campaign, category model.CampaignCategory) []model.Campaign {
	out := make([]model.Campaign, 0, len(items))
	for _, c := range items {
		if category == "" || category == CategoryAll || c.Category == category {
			out = append(out, c)
		}
	}
	return out
}

// Buckets は団体ダッシュボードのタブごとの分類。
type Buckets struct {
	Active  []model.Campaign `json:"active"`
	Pending []model.Campaign `json:"pending"`
	Expired []model.Campaign `json:"expired"`
}

// BucketByLifecycle はキャンペーンを受付中・承認待ち・終了に分類する。
// 完了・却下されたもの、承認待ち以外で終了日を過ぎたものは終了に入る。
func BucketByLifecycle(items []model.Campaign, now time.Time) Buckets {
	b := Buckets{
		Active:  []model.Campaign{},
		Pending: []model.Campaign{},
		Expired: []model.Campaign{},
	}
	for _, c := range items {
		if c.IsRunning(now) {
			b.Active = append(b.Active, c)
		}
		if c.Status == model.CampaignStatusPending {
			b.Pending = append(b.Pending, c)
		}
		if c.Status == model.CampaignStatusCompleted || c.Status == model.CampaignStatusRejected || c.IsExpired(now) {
			b.Expired = append(b.Expired, c)
		}
	}
	return b
}

// TotalRaised は集計額の合計を返す。
func TotalRaised(items []model.Campaign) float64 {
	var total float64
	for _, c := range items {
		total += c.RaisedAmount
	}
	return total
}

// TotalGoal は目標額の合計を返す。
func TotalGoal(items []model.Campaign) float64 {
	var total float64
	for _, c := range items {
		total += c.GoalAmount
	}
	return total
}
