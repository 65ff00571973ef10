// Package model はドメインモデルを定義する。
package model

import "time"

// User はサービス利用ユーザーを表す。
// PasswordHashはbcryptハッシュであり、APIレスポンスには含めない。
type User struct {
	ID           int64
	Email        string
	Name         string
	Age          int
	PasswordHash string
	IsAdmin      bool
	CreatedAt    time.Time
}

// DefaultSessionMaxAge はセッションの既定の有効期間（秒）。7日。
const DefaultSessionMaxAge = 7 * 24 * 60 * 60

// Session はユーザーのログインセッションを表す。
// Tokenは session_token Cookie の値そのもの。
type Session struct {
	Token     string
	UserID    int64
	ExpiresAt time.Time
	CreatedAt time.Time
}

// Expired は指定時刻の時点でセッションが期限切れかどうかを返す。
// ExpiresAtがゼロ値のセッションは期限なしとして扱う。
func (s *Session) Expired(now time.Time) bool {
	if s.ExpiresAt.IsZero() {
		return false
	}
	return !now.Before(s.ExpiresAt)
}
