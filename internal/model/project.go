// Package model はドメインモデルを定義する。
package model

import "time"

// DefaultProjectColor はプロジェクト作成時に色が指定されなかった場合の既定値。
const DefaultProjectColor = "#3B82F6"

// Visibility はプロジェクトの公開範囲を表す。
type Visibility string

const (
	VisibilityPrivate Visibility = "private"
	VisibilityTeam    Visibility = "team"
	VisibilityPublic  Visibility = "public"
)

// Valid は公開範囲が定義済みの値かどうかを返す。
func (v Visibility) Valid() bool {
	switch v {
	case VisibilityPrivate, VisibilityTeam, VisibilityPublic:
		return true
	}
	return false
}

// Role はプロジェクト内でのメンバーの役割を表す。
type Role string

const (
	RoleOwner  Role = "owner"
	RoleAdmin  Role = "admin"
	RoleMember Role = "member"
	RoleViewer Role = "viewer"
)

// CanManage はプロジェクト設定の変更が許可された役割かどうかを返す。
func (r Role) CanManage() bool {
	return r == RoleOwner || r == RoleAdmin
}

// Project はカンバンのプロジェクトを表す。
// 削除するとカラム・タスク・コメント等がCASCADE削除される。
type Project struct {
	ID          string
	Name        string
	Description *string
	Color       string
	Icon        *string
	Visibility  Visibility
	CreatedBy   string
	CreatedAt   time.Time
	UpdatedAt   time.Time
	ArchivedAt  *time.Time
}

// ProjectWithRole はプロジェクトと呼び出しユーザーの役割を結合したモデル。
type ProjectWithRole struct {
	Project Project
	Role    Role
}

// Membership はユーザーにプロジェクト内の役割を与える結合エンティティ。
// (project, user) の一意性はスキーマでは強制していない。
type Membership struct {
	ID        string
	ProjectID string
	UserID    string
	Role      Role
	JoinedAt  time.Time
}

// MemberWithUser はメンバーシップとユーザー概要を結合したモデル。
type MemberWithUser struct {
	Membership
	User UserSummary
}
