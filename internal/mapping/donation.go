package mapping

import (
	"fmt"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/hitoshi/donorlink/internal/model"
)

// Donation は寄付を正規化し、寄付者の表示名を解決する。
func (m *Mapper) Donation(r gjson.Result) model.Donation {
	d := model.Donation{
		ID:         firstInt(r, "id", "donationId"),
		Amount:     firstFloat(r, "amount"),
		Currency:   firstString(r, "currency"),
		UserID:     firstInt(r, "userId", "user.id", "citizenId"),
		CampaignID: firstInt(r, "campaignId", "campaign.id"),
	}
	if d.Currency == "" {
		d.Currency = model.DefaultCurrency
	}
	if t := firstTime(r, "donationDate", "createdAt", "date"); t != nil {
		d.DonationDate = *t
	}
	if c := r.Get("campaign"); c.IsObject() {
		campaign := m.Campaign(c)
		d.Campaign = &campaign
	}
	d.DonorName = donorName(r, d.UserID)
	return d
}

// donorName は donorName → 氏名 → メール → User #id → Donor #userId の順で表示名を決める。
func donorName(r gjson.Result, userID int64) string {
	if name := firstString(r, "donorName"); name != "" {
		return name
	}
	if u := r.Get("user"); u.IsObject() {
		full := strings.TrimSpace(firstString(u, "firstName") + " " + firstString(u, "lastName"))
		if full != "" {
			return full
		}
		if email := firstString(u, "email"); email != "" {
			return email
		}
		return fmt.Sprintf("User #%d", u.Get("id").Int())
	}
	return fmt.Sprintf("Donor #%d", userID)
}

// Donations は寄付一覧を正規化する。
func (m *Mapper) Donations(body []byte) ([]model.Donation, error) {
	return mapList(body, m.Donation)
}

// DonationJSON は単一の寄付を正規化する。
func (m *Mapper) DonationJSON(body []byte) (model.Donation, error) {
	return mapOne(body, m.Donation)
}
