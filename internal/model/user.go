// Package model はドメインモデルを定義する。
package model

import "time"

// Role はユーザー種別を表す。
type Role string

// 定義済みロール
const (
	RoleCitizen       Role = "CITIZEN"
	RoleAssociation   Role = "ASSOCIATION"
	RoleAdministrator Role = "ADMINISTRATOR"
)

// Valid は既知のロールかどうかを返す。
func (r Role) Valid() bool {
	switch r {
	case RoleCitizen, RoleAssociation, RoleAdministrator:
		return true
	}
	return false
}

// UserIdentity はログイン中のユーザーを表す。
// 永続化ストレージには JSON で保存される。
type UserIdentity struct {
	ID          int64      `json:"id"`
	Email       string     `json:"email"`
	Role        Role       `json:"userType"`
	FirstName   string     `json:"firstName,omitempty"`
	LastName    string     `json:"lastName,omitempty"`
	Phone       string     `json:"phone,omitempty"`
	Description string     `json:"description,omitempty"`
	Address     string     `json:"address,omitempty"`
	Website     string     `json:"website,omitempty"`
	CreatedAt   *time.Time `json:"createdAt,omitempty"`
}

// DisplayName は表示用の名前を返す。
func (u UserIdentity) DisplayName() string {
	switch {
	case u.FirstName != "" && u.LastName != "":
		return u.FirstName + " " + u.LastName
	case u.FirstName != "":
		return u.FirstName
	case u.LastName != "":
		return u.LastName
	}
	return u.Email
}

// Session はログインセッションを表す。
// AccessCredential は User が存在する場合にのみ存在する。
type Session struct {
	User              *UserIdentity
	AccessCredential  string
	RenewalCredential string
	// AccessExpiry はアクセストークンがJWTの場合の有効期限（不明な場合はnil）。
	AccessExpiry *time.Time
}

// Authenticated はセッションが存在するかを返す。
func (s Session) Authenticated() bool {
	return s.User != nil && s.AccessCredential != ""
}

// UserID はログイン中のユーザーIDを返す。未ログインなら0。
func (s Session) UserID() int64 {
	if s.User == nil {
		return 0
	}
	return s.User.ID
}

// HasRole はログイン中のユーザーが指定ロールかを返す。
func (s Session) HasRole(r Role) bool {
	return s.User != nil && s.User.Role == r
}
