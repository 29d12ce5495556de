package session

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// AccessExpiry はアクセストークンがJWTの場合に exp クレームを返す。
// 署名は検証しない（検証はサーバーの責務）。JWTでない、または exp がない場合は nil。
func AccessExpiry(token string) *time.Time {
	if token == "" {
		return nil
	}
	parsed, _, err := jwt.NewParser().ParseUnverified(token, jwt.MapClaims{})
	if err != nil {
		return nil
	}
	exp, err := parsed.Claims.GetExpirationTime()
	if err != nil || exp == nil {
		return nil
	}
	t := exp.Time
	return &t
}
