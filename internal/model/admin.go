package model

import "time"

// AdminUser は管理画面で扱うユーザーを表す。
type AdminUser struct {
	ID        int64      `json:"id"`
	Email     string     `json:"email"`
	FirstName string     `json:"firstName"`
	LastName  string     `json:"lastName"`
	Role      Role       `json:"role"`
	Phone     string     `json:"phone,omitempty"`
	Address   string     `json:"address,omitempty"`
	Bio       string     `json:"bio,omitempty"`
	Website   string     `json:"website,omitempty"`
	Active    bool       `json:"isActive"`
	CreatedAt *time.Time `json:"createdAt,omitempty"`
	UpdatedAt *time.Time `json:"updatedAt,omitempty"`
}

// UserUpdateRequest は管理者によるユーザー更新リクエストを表す。
type UserUpdateRequest struct {
	FirstName *string `json:"firstName,omitempty"`
	LastName  *string `json:"lastName,omitempty"`
	Email     *string `json:"email,omitempty"`
	Role      *Role   `json:"role,omitempty"`
	Active    *bool   `json:"isActive,omitempty"`
}

// AssociationApplication は承認待ちの団体登録を表す。
type AssociationApplication struct {
	ID          int64      `json:"id"`
	Email       string     `json:"email"`
	Name        string     `json:"name,omitempty"`
	Description string     `json:"description,omitempty"`
	Address     string     `json:"address,omitempty"`
	Website     string     `json:"website,omitempty"`
	CreatedAt   *time.Time `json:"createdAt,omitempty"`
}

// Profile はログインユーザー自身のプロフィールを表す。
type Profile struct {
	ID        int64      `json:"id"`
	Email     string     `json:"email"`
	FirstName string     `json:"firstName"`
	LastName  string     `json:"lastName"`
	Role      Role       `json:"role"`
	Phone     string     `json:"phone,omitempty"`
	Address   string     `json:"address,omitempty"`
	Bio       string     `json:"bio,omitempty"`
	Website   string     `json:"website,omitempty"`
	CreatedAt *time.Time `json:"createdAt,omitempty"`
	UpdatedAt *time.Time `json:"updatedAt,omitempty"`
}

// ProfileUpdateRequest はプロフィール更新リクエストを表す。
type ProfileUpdateRequest struct {
	FirstName *string `json:"firstName,omitempty"`
	LastName  *string `json:"lastName,omitempty"`
	Email     *string `json:"email,omitempty"`
	Phone     *string `json:"phone,omitempty"`
	Address   *string `json:"address,omitempty"`
	Bio       *string `json:"bio,omitempty"`
	Website   *string `json:"website,omitempty"`
}

// ChangePasswordRequest はパスワード変更リクエストを表す。
type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
	ConfirmPassword string `json:"confirmPassword"`
}

// LoginRequest はログインリクエストを表す。
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// RegisterCitizenRequest は市民ユーザー登録リクエストを表す。
type RegisterCitizenRequest struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Phone     string `json:"phone"`
	Email     string `json:"email"`
	Password  string `json:"password"`
}

// RegisterAssociationRequest は団体登録リクエストを表す。
type RegisterAssociationRequest struct {
	Description string `json:"description"`
	Address     string `json:"address"`
	Website     string `json:"website,omitempty"`
	Email       string `json:"email"`
	Password    string `json:"password"`
}
