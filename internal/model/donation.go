package model

import "time"

// DefaultCurrency は通貨が不明な場合に使う通貨コード。
const DefaultCurrency = "DT"

// Donation は寄付を表す。
type Donation struct {
	ID           int64     `json:"id"`
	Amount       float64   `json:"amount"`
	Currency     string    `json:"currency"`
	UserID       int64     `json:"userId"`
	CampaignID   int64     `json:"campaignId"`
	DonationDate time.Time `json:"donationDate"`
	// DonorName は境界で解決済みの寄付者表示名。
	DonorName string    `json:"donorName"`
	Campaign  *Campaign `json:"campaign,omitempty"`
}

// DonationRequest は寄付作成リクエストを表す。
type DonationRequest struct {
	Amount     float64 `json:"amount"`
	Currency   string  `json:"currency"`
	CampaignID int64   `json:"campaignId"`
}

// CampaignDonationStats はキャンペーン単位の寄付集計を表す。
// 寄付一覧から都度計算し、保存はしない。
type CampaignDonationStats struct {
	CampaignID     int64   `json:"campaignId"`
	TotalDonations int     `json:"totalDonations"`
	TotalAmount    float64 `json:"totalAmount"`
	Currency       string  `json:"currency"`
}
