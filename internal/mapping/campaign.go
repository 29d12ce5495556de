package mapping

import (
	"strings"

	"github.com/tidwall/gjson"

	"github.com/hitoshi/donorlink/internal/model"
	"github.com/hitoshi/donorlink/internal/security"
)

// Campaign はキャンペーンを正規化する。
func (m *Mapper) Campaign(r gjson.Result) model.Campaign {
	description := m.sanitizer.SanitizeRich(firstString(r, "description"))

	c := model.Campaign{
		ID:            firstInt(r, "id", "campaignId"),
		Title:         security.PlainText(firstString(r, "title", "name")),
		Description:   description,
		Excerpt:       security.Excerpt(description, m.excerptLen),
		Category:      campaignCategory(firstString(r, "category")),
		GoalAmount:    firstFloat(r, "goalAmount", "targetAmount"),
		RaisedAmount:  firstFloat(r, "raisedAmount", "collectedAmount", "currentAmount"),
		OrganizerName: firstString(r, "organizerName", "associationName", "association.name", "organizer.name"),
		AssociationID: firstInt(r, "associationId", "association.id", "organizerId"),
		CreatedAt:     firstTime(r, "createdAt", "creationDate"),
		EndDate:       firstTime(r, "endDate", "deadline"),
		Status:        model.CampaignStatus(strings.ToUpper(firstString(r, "status"))),
	}

	if img := firstString(r, "imageUrl", "imageURL", "image_url", "image"); img != "" {
		if err := m.guard.ValidateURL(img); err == nil {
			c.ImageURL = img
		}
	}
	return c
}

// Campaigns はキャンペーン一覧を正規化する。
func (m *Mapper) Campaigns(body []byte) ([]model.Campaign, error) {
	return mapList(body, m.Campaign)
}

// CampaignJSON は単一キャンペーンを正規化する。
func (m *Mapper) CampaignJSON(body []byte) (model.Campaign, error) {
	return mapOne(body, m.Campaign)
}

func campaignCategory(raw string) model.CampaignCategory {
	if raw == "" {
		return model.CategoryOther
	}
	return model.CampaignCategory(strings.ToUpper(raw))
}

// CampaignDetails はコメントと寄付を含むキャンペーンを正規化する。
func (m *Mapper) CampaignDetails(r gjson.Result) model.CampaignDetails {
	d := model.CampaignDetails{
		Campaign:  m.Campaign(r),
		Comments:  []model.Comment{},
		Donations: []model.Donation{},
	}
	for _, c := range r.Get("comments").Array() {
		d.Comments = append(d.Comments, m.Comment(c))
	}
	for _, dn := range r.Get("donations").Array() {
		donation := m.Donation(dn)
		if donation.CampaignID == 0 {
			donation.CampaignID = d.ID
		}
		d.Donations = append(d.Donations, donation)
	}
	return d
}

// CampaignsWithDetails は詳細付きキャンペーン一覧を正規化する。
func (m *Mapper) CampaignsWithDetails(body []byte) ([]model.CampaignDetails, error) {
	return mapList(body, m.CampaignDetails)
}
