// Package model はドメインモデルを定義する。
package model

import "time"

// User はサービス利用ユーザーを表す。
// ExternalIDはIdP（OpenID Connect）のsubjectで、一意である。
type User struct {
	ID         string
	ExternalID string
	Email      string
	Name       string
	AvatarURL  *string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// UserSummary はコメント等に埋め込むユーザーの概要。
type UserSummary struct {
	ID        string
	Name      string
	Email     string
	AvatarURL *string
}

// Session は署名付きセッショントークンから復元される認証情報を表す。
// サーバー側には保存しない。
type Session struct {
	UserID    string
	Email     string
	TokenID   string
	ExpiresAt time.Time
}
