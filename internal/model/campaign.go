package model

import "time"

// CampaignStatus はキャンペーンの審査・公開状態を表す。
type CampaignStatus string

// 定義済みキャンペーン状態
const (
	CampaignStatusPending   CampaignStatus = "PENDING"
	CampaignStatusActive    CampaignStatus = "ACTIVE"
	CampaignStatusApproved  CampaignStatus = "APPROVED"
	CampaignStatusCompleted CampaignStatus = "COMPLETED"
	CampaignStatusRejected  CampaignStatus = "REJECTED"
	CampaignStatusCancelled CampaignStatus = "CANCELLED"
)

// CampaignCategory はキャンペーンの分類を表す。
type CampaignCategory string

// 定義済みカテゴリ
const (
	CategoryMedicalAid     CampaignCategory = "MEDICAL_AID"
	CategoryFoodWater      CampaignCategory = "FOOD_WATER"
	CategoryEducation      CampaignCategory = "EDUCATION"
	CategoryReconstruction CampaignCategory = "RECONSTRUCTION"
	CategoryEmergency      CampaignCategory = "EMERGENCY"
	CategoryOther          CampaignCategory = "OTHER"
)

var categoryNames = map[CampaignCategory]string{
	CategoryMedicalAid:     "Medical Aid",
	CategoryFoodWater:      "Food & Water",
	CategoryEducation:      "Education",
	CategoryReconstruction: "Reconstruction",
	CategoryEmergency:      "Emergency",
	CategoryOther:          "Other",
}

// DisplayName はカテゴリの表示名を返す。未知のカテゴリはそのまま返す。
func (c CampaignCategory) DisplayName() string {
	if name, ok := categoryNames[c]; ok {
		return name
	}
	return string(c)
}

// Campaign は募金キャンペーンを表す。
// 境界で正規化済みのため、別名フィールドはここには現れない。
type Campaign struct {
	ID            int64            `json:"id"`
	Title         string           `json:"title"`
	Description   string           `json:"description"`
	Excerpt       string           `json:"excerpt"`
	Category      CampaignCategory `json:"category"`
	GoalAmount    float64          `json:"goalAmount"`
	RaisedAmount  float64          `json:"raisedAmount"`
	ImageURL      string           `json:"imageUrl,omitempty"`
	OrganizerName string           `json:"organizerName,omitempty"`
	AssociationID int64            `json:"associationId,omitempty"`
	CreatedAt     *time.Time       `json:"createdAt,omitempty"`
	EndDate       *time.Time       `json:"endDate,omitempty"`
	Status        CampaignStatus   `json:"status"`
}

// CampaignID はキャッシュのキーとして使うIDを返す。
func (c Campaign) CampaignID() int64 { return c.ID }

// IsExpired は表示上の「期限切れ」かどうかを返す。
// 保存された状態ではなく、終了日と現在時刻から導出される。
func (c Campaign) IsExpired(now time.Time) bool {
	if c.Status == CampaignStatusPending || c.Status == CampaignStatusRejected {
		return false
	}
	return c.EndDate != nil && !c.EndDate.After(now)
}

// IsRunning は寄付を受け付け中かどうかを返す。
func (c Campaign) IsRunning(now time.Time) bool {
	if c.Status != CampaignStatusActive && c.Status != CampaignStatusApproved {
		return false
	}
	return c.EndDate == nil || c.EndDate.After(now)
}

// Progress は目標額に対する達成率（0〜100）を返す。
func (c Campaign) Progress() float64 {
	if c.GoalAmount <= 0 {
		return 0
	}
	p := c.RaisedAmount / c.GoalAmount * 100
	if p > 100 {
		return 100
	}
	return p
}

// CampaignCreateRequest はキャンペーン作成リクエストを表す。
type CampaignCreateRequest struct {
	Title       string           `json:"title"`
	Description string           `json:"description"`
	Category    CampaignCategory `json:"category"`
	GoalAmount  float64          `json:"goalAmount"`
	ImageURL    string           `json:"imageUrl,omitempty"`
	EndDate     *time.Time       `json:"endDate,omitempty"`
}

// CampaignUpdateRequest はキャンペーン更新リクエストを表す。
// nil のフィールドは送信しない。
type CampaignUpdateRequest struct {
	Title       *string           `json:"title,omitempty"`
	Description *string           `json:"description,omitempty"`
	Category    *CampaignCategory `json:"category,omitempty"`
	GoalAmount  *float64          `json:"goalAmount,omitempty"`
	ImageURL    *string           `json:"imageUrl,omitempty"`
	EndDate     *time.Time        `json:"endDate,omitempty"`
}

// CampaignDetails はコメントと寄付を含むキャンペーンを表す。
type CampaignDetails struct {
	Campaign
	Comments  []Comment  `json:"comments"`
	Donations []Donation `json:"donations"`
}
