package mapping

import (
	"errors"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/hitoshi/donorlink/internal/model"
)

// ErrIncompleteAuthResponse は認証レスポンスにトークンまたはユーザーIDが含まれない場合のエラー。
var ErrIncompleteAuthResponse = errors.New("auth response lacks token or user id")

// AuthResult は認証系エンドポイントのレスポンスを正規化したもの。
type AuthResult struct {
	User              model.UserIdentity
	AccessCredential  string
	RenewalCredential string
}

// AuthResponse はログイン・登録・外部IdP認証のレスポンスを正規化する。
func (m *Mapper) AuthResponse(body []byte) (AuthResult, error) {
	root, err := parse(body)
	if err != nil {
		return AuthResult{}, err
	}

	res := AuthResult{
		AccessCredential:  firstString(root, "token", "accessToken", "access_token"),
		RenewalCredential: firstString(root, "refreshToken", "refresh_token"),
		User: model.UserIdentity{
			ID:          firstInt(root, "userId", "id", "user.id"),
			Email:       firstString(root, "email", "user.email"),
			Role:        model.Role(strings.ToUpper(firstString(root, "role", "userType", "user.role"))),
			FirstName:   firstString(root, "firstName", "user.firstName"),
			LastName:    firstString(root, "lastName", "user.lastName"),
			Phone:       firstString(root, "phone", "user.phone"),
			Description: firstString(root, "description", "user.description"),
			Address:     firstString(root, "address", "user.address"),
			Website:     firstString(root, "website", "user.website"),
			CreatedAt:   firstTime(root, "createdAt", "user.createdAt"),
		},
	}
	if res.AccessCredential == "" || res.User.ID == 0 {
		return AuthResult{}, ErrIncompleteAuthResponse
	}
	return res, nil
}

// RenewalResponse はトークン更新レスポンスから新しいトークンを取り出す。
// リフレッシュトークンがローテーションされない場合、renewal は空になる。
func (m *Mapper) RenewalResponse(body []byte) (access, renewal string, err error) {
	root, err := parse(body)
	if err != nil {
		return "", "", err
	}
	access = firstString(root, "token", "accessToken", "access_token")
	if access == "" {
		return "", "", ErrIncompleteAuthResponse
	}
	return access, firstString(root, "refreshToken", "refresh_token"), nil
}

// AdminUser は管理画面のユーザーを正規化する。
func (m *Mapper) AdminUser(r gjson.Result) model.AdminUser {
	u := model.AdminUser{
		ID:        firstInt(r, "id", "userId"),
		Email:     firstString(r, "email"),
		FirstName: firstString(r, "firstName"),
		LastName:  firstString(r, "lastName"),
		Role:      model.Role(strings.ToUpper(firstString(r, "role", "userType"))),
		Phone:     firstString(r, "phone"),
		Address:   firstString(r, "address"),
		Bio:       firstString(r, "bio", "description"),
		Website:   firstString(r, "website"),
		Active:    true,
		CreatedAt: firstTime(r, "createdAt"),
		UpdatedAt: firstTime(r, "updatedAt"),
	}
	if v := first(r, "isActive", "active", "enabled"); v.Exists() {
		u.Active = v.Bool()
	}
	return u
}

// AdminUsers はユーザー一覧を正規化する。
func (m *Mapper) AdminUsers(body []byte) ([]model.AdminUser, error) {
	return mapList(body, m.AdminUser)
}

// AdminUserJSON は単一ユーザーを正規化する。
func (m *Mapper) AdminUserJSON(body []byte) (model.AdminUser, error) {
	return mapOne(body, m.AdminUser)
}

// AssociationApplication は承認待ち団体を正規化する。
func (m *Mapper) AssociationApplication(r gjson.Result) model.AssociationApplication {
	return model.AssociationApplication{
		ID:          firstInt(r, "id", "associationId", "userId"),
		Email:       firstString(r, "email", "user.email"),
		Name:        firstString(r, "name", "associationName", "organizationName"),
		Description: m.sanitizer.SanitizeStrict(firstString(r, "description")),
		Address:     firstString(r, "address"),
		Website:     firstString(r, "website"),
		CreatedAt:   firstTime(r, "createdAt", "registrationDate"),
	}
}

// AssociationApplications は承認待ち団体一覧を正規化する。
func (m *Mapper) AssociationApplications(body []byte) ([]model.AssociationApplication, error) {
	return mapList(body, m.AssociationApplication)
}

// Profile はログインユーザーのプロフィールを正規化する。
func (m *Mapper) Profile(r gjson.Result) model.Profile {
	return model.Profile{
		ID:        firstInt(r, "id", "userId"),
		Email:     firstString(r, "email"),
		FirstName: firstString(r, "firstName"),
		LastName:  firstString(r, "lastName"),
		Role:      model.Role(strings.ToUpper(firstString(r, "role", "userType"))),
		Phone:     firstString(r, "phone"),
		Address:   firstString(r, "address"),
		Bio:       firstString(r, "bio", "description"),
		Website:   firstString(r, "website"),
		CreatedAt: firstTime(r, "createdAt"),
		UpdatedAt: firstTime(r, "updatedAt"),
	}
}

// ProfileJSON は単一プロフィールを正規化する。
func (m *Mapper) ProfileJSON(body []byte) (model.Profile, error) {
	return mapOne(body, m.Profile)
}
