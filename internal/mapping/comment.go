package mapping

import (
	"strings"

	"github.com/tidwall/gjson"

	"github.com/hitoshi/donorlink/internal/model"
)

// Comment はコメントを正規化する。本文はタグを除去したプレーンテキストになる。
func (m *Mapper) Comment(r gjson.Result) model.Comment {
	c := model.Comment{
		ID:             firstInt(r, "commentId", "id"),
		CampaignID:     firstInt(r, "campaignId", "campaign.id"),
		CitizenID:      firstInt(r, "citizenId", "userId", "citizen.id"),
		Content:        m.sanitizer.SanitizeStrict(firstString(r, "content", "text")),
		AuthorName:     firstString(r, "citizenName", "userName", "userEmail"),
		LastModifiedAt: firstTime(r, "lastModifiedDate", "updatedAt"),
	}
	if c.AuthorName == "" {
		if u := first(r, "citizen", "user"); u.IsObject() {
			c.AuthorName = strings.TrimSpace(firstString(u, "firstName") + " " + firstString(u, "lastName"))
		}
	}
	if t := firstTime(r, "publicationDate", "createdAt"); t != nil {
		c.PublishedAt = *t
	}
	return c
}

// Comments はコメント一覧を正規化する。
func (m *Mapper) Comments(body []byte) ([]model.Comment, error) {
	return mapList(body, m.Comment)
}

// CommentJSON は単一コメントを正規化する。
func (m *Mapper) CommentJSON(body []byte) (model.Comment, error) {
	return mapOne(body, m.Comment)
}
