// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/hitoshi/kanban/internal/model"
)

// DBTX は*sql.DBと*sql.Txの共通インターフェース。
// リポジトリをトランザクション内外のどちらでも使えるようにする。
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// FindByExternalID はIdPのsubjectでユーザーを検索する。見つからない場合はnilを返す。
	FindByExternalID(ctx context.Context, externalID string) (*model.User, error)

	// Upsert はexternal_idをキーにユーザーを作成または更新し、保存後の行を返す。
	// 既存ユーザーの場合はemail、name、avatar_urlを最新の値で上書きする。
	Upsert(ctx context.Context, user *model.User) (*model.User, error)
}

// ProjectRepository はプロジェクトデータの永続化インターフェース。
type ProjectRepository interface {
	// ListByMember はユーザーがメンバーであるプロジェクトを役割付きで作成日時順に返す。
	ListByMember(ctx context.Context, userID string) ([]model.ProjectWithRole, error)

	// FindByID は指定IDのプロジェクトを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Project, error)

	// Create はプロジェクトだけを作成する。メンバーシップは作成しない。
	// バックアップ検証用の一時データなど、オーナーを持たないプロジェクトに使う。
	Create(ctx context.Context, project *model.Project) error

	// CreateWithOwner はプロジェクト、オーナーのメンバーシップ、作成アクティビティを
	// 同一トランザクションで作成する。いずれかが失敗した場合は何も残らない。
	CreateWithOwner(ctx context.Context, project *model.Project, owner *model.Membership, activity *model.ActivityLog) error

	// Update はプロジェクトの編集可能な項目を更新する。
	Update(ctx context.Context, project *model.Project) error

	// Delete はプロジェクトを削除する。
	// カラム、タスク、コメント、メンバーシップ、アクティビティはCASCADE削除される。
	Delete(ctx context.Context, id string) error

	// DeleteByNamePattern は名前がLIKEパターンに一致するプロジェクトを削除し、削除件数を返す。
	DeleteByNamePattern(ctx context.Context, pattern string) (int64, error)

	// DeleteStaleTestProjects は名前が "{prefix}{UUID}" で色がcolorの、olderThanより前に作成されたプロジェクトを削除する。
	DeleteStaleTestProjects(ctx context.Context, prefix, color string, olderThan time.Time) (int64, error)
}

// MembershipRepository はプロジェクトメンバーシップの永続化インターフェース。
type MembershipRepository interface {
	// Find はプロジェクトとユーザーのメンバーシップを取得する。見つからない場合はnilを返す。
	// 重複行が存在する場合は最も古い行を返す。
	Find(ctx context.Context, projectID, userID string) (*model.Membership, error)

	// Create はメンバーシップを作成する。
	Create(ctx context.Context, membership *model.Membership) error

	// ListByProject はプロジェクトのメンバーをユーザー概要付きで参加日時順に返す。
	ListByProject(ctx context.Context, projectID string) ([]model.MemberWithUser, error)
}

// ColumnRepository はカラムデータの永続化インターフェース。
type ColumnRepository interface {
	// ListByProject はプロジェクトのカラムをposition昇順で返す。
	ListByProject(ctx context.Context, projectID string) ([]model.Column, error)

	// FindByID は指定IDのカラムを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Column, error)

	// Create はカラムを作成する。
	Create(ctx context.Context, column *model.Column) error

	// Update はカラムの名前とpositionを更新する。
	Update(ctx context.Context, column *model.Column) error

	// Delete はカラムを削除する。所属タスクはCASCADE削除される。
	Delete(ctx context.Context, id string) error
}

// TaskRepository はタスクデータの永続化インターフェース。
type TaskRepository interface {
	// ListByColumn はカラムのタスクをposition昇順で返す。
	ListByColumn(ctx context.Context, columnID string) ([]model.Task, error)

	// ListByProject はプロジェクトの全タスクをposition昇順で返す。
	ListByProject(ctx context.Context, projectID string) ([]model.Task, error)

	// FindByID は指定IDのタスクを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Task, error)

	// MaxPosition はカラム内のpositionの最大値を返す。タスクがない場合は0を返す。
	MaxPosition(ctx context.Context, columnID string) (int, error)

	// Create はタスクを作成する。
	Create(ctx context.Context, task *model.Task) error

	// Update はタスクの編集可能な項目とcolumn_idを更新する。
	Update(ctx context.Context, task *model.Task) error

	// Delete はタスクを削除する。コメント、ラベル、添付、サブタスクはCASCADE削除される。
	Delete(ctx context.Context, id string) error
}

// CommentRepository はタスクコメントの永続化インターフェース。
type CommentRepository interface {
	// ListByTask はタスクのコメントを作成者概要付きで作成日時順に返す。
	ListByTask(ctx context.Context, taskID string) ([]model.CommentWithAuthor, error)

	// FindByID は指定IDのコメントを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Comment, error)

	// FindWithAuthor は指定IDのコメントを作成者概要付きで取得する。見つからない場合はnilを返す。
	FindWithAuthor(ctx context.Context, id string) (*model.CommentWithAuthor, error)

	// Create はコメントを作成する。
	Create(ctx context.Context, comment *model.Comment) error

	// Delete はコメントを削除する。
	Delete(ctx context.Context, id string) error
}

// ActivityRepository はアクティビティログの永続化インターフェース。追記のみ。
type ActivityRepository interface {
	// Append はアクティビティを1件追記する。
	Append(ctx context.Context, activity *model.ActivityLog) error

	// ListByProject はプロジェクトのアクティビティを新しい順に最大limit件返す。
	ListByProject(ctx context.Context, projectID string, limit int) ([]model.ActivityLog, error)
}
