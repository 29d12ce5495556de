package donation

import "github.com/hitoshi/donorlink/internal/model"

// TotalAmount は寄付額の合計を返す。
func TotalAmount(items []model.Donation) float64 {
	var total float64
	for _, d := range items {
		total += d.Amount
	}
	return total
}

// Stats はキャンペーンの寄付件数と合計額を返す。
// 通貨は最初の寄付のものを使い、寄付がなければ既定通貨とする。
func Stats(items []model.Donation, campaignID int64) model.CampaignDonationStats {
	stats := model.CampaignDonationStats{
		CampaignID: campaignID,
		Currency:   model.DefaultCurrency,
	}
	first := true
	for _, d := range items {
		if d.CampaignID != campaignID {
			continue
		}
		if first && d.Currency != "" {
			stats.Currency = d.Currency
		}
		first = false
		stats.TotalDonations++
		stats.TotalAmount += d.Amount
	}
	return stats
}
