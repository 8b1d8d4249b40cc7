// Package model はドメインモデルを定義する。
package model

import (
	"encoding/json"
	"time"
)

// Comment はタスクへのコメントを表す。作成者は作成後に変更しない。
type Comment struct {
	ID        string
	TaskID    string
	UserID    string
	Content   string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// CommentWithAuthor はコメントと作成者の概要を結合したモデル。
type CommentWithAuthor struct {
	Comment Comment
	User    UserSummary
}

// ActivityLog はプロジェクト内の操作履歴。追記のみで、更新・削除しない。
// 参照先のタスクやプロジェクトが削除された場合、TaskID・ProjectIDはNULLになる。
type ActivityLog struct {
	ID        string
	ProjectID *string
	TaskID    *string
	UserID    string
	Action    string
	Details   json.RawMessage
	CreatedAt time.Time
}

// アクティビティ種別
const (
	ActionProjectCreated = "project.created"
	ActionProjectUpdated = "project.updated"
	ActionColumnCreated  = "column.created"
	ActionColumnUpdated  = "column.updated"
	ActionColumnDeleted  = "column.deleted"
	ActionTaskCreated    = "task.created"
	ActionTaskUpdated    = "task.updated"
	ActionTaskMoved      = "task.moved"
	ActionTaskDeleted    = "task.deleted"
	ActionCommentCreated = "comment.created"
)
