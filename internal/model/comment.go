package model

import "time"

// Comment はキャンペーンへのコメントを表す。
type Comment struct {
	ID             int64      `json:"id"`
	CampaignID     int64      `json:"campaignId"`
	CitizenID      int64      `json:"citizenId"`
	Content        string     `json:"content"`
	AuthorName     string     `json:"authorName,omitempty"`
	PublishedAt    time.Time  `json:"publishedAt"`
	LastModifiedAt *time.Time `json:"lastModifiedAt,omitempty"`
}

// Edited はコメントが編集済みかを返す。
func (c Comment) Edited() bool {
	return c.LastModifiedAt != nil && c.LastModifiedAt.After(c.PublishedAt)
}

// CommentRequest はコメント作成・更新リクエストを表す。
type CommentRequest struct {
	CampaignID int64  `json:"campaignId"`
	CitizenID  int64  `json:"citizenId"`
	Content    string `json:"content"`
}
