// Package model はドメインモデルを定義する。
package model

import "time"

// User はユーザー名・パスワードで登録したアカウントを表す。
// PasswordHashはリポジトリと認証処理以外に渡してはならない。
type User struct {
	ID           int64
	Username     string
	Email        string
	PasswordHash string
	IsVerified   bool
	CreatedAt    time.Time
}

// Session はユーザーのログインセッションを表す。
type Session struct {
	ID        string
	UserID    int64
	ExpiresAt time.Time
	CreatedAt time.Time
}

// Expired は指定時刻時点でセッションが期限切れかどうかを返す。
func (s *Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}
