package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/kanban/internal/model"
)

const commentWithAuthorQuery = `SELECT c.id, c.task_id, c.user_id, c.content, c.created_at, c.updated_at,
	       u.id, u.name, u.email, u.avatar_url
	FROM task_comments c
	INNER JOIN users u ON u.id = c.user_id`

// PostgresCommentRepo はPostgreSQLを使用したコメントリポジトリ。
type PostgresCommentRepo struct {
	db DBTX
}

// NewPostgresCommentRepo はPostgresCommentRepoを生成する。
func NewPostgresCommentRepo(db DBTX) *PostgresCommentRepo {
	return &PostgresCommentRepo{db: db}
}

// ListByTask はタスクのコメントを作成者概要付きで作成日時順に返す。
func (r *PostgresCommentRepo) ListByTask(ctx context.Context, taskID string) ([]model.CommentWithAuthor, error) {
	rows, err := r.db.QueryContext(ctx,
		commentWithAuthorQuery+` WHERE c.task_id = $1 ORDER BY c.created_at ASC`,
		taskID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list comments: %w", err)
	}
	defer rows.Close()

	var comments []model.CommentWithAuthor
	for rows.Next() {
		var c model.CommentWithAuthor
		if err := rows.Scan(commentWithAuthorScanDest(&c)...); err != nil {
			return nil, fmt.Errorf("failed to scan comment: %w", err)
		}
		comments = append(comments, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate comments: %w", err)
	}

	return comments, nil
}

// FindByID は指定IDのコメントを取得する。見つからない場合はnilを返す。
func (r *PostgresCommentRepo) FindByID(ctx context.Context, id string) (*model.Comment, error) {
	c := &model.Comment{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, task_id, user_id, content, created_at, updated_at FROM task_comments WHERE id = $1`,
		id,
	).Scan(&c.ID, &c.TaskID, &c.UserID, &c.Content, &c.CreatedAt, &c.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find comment by ID: %w", err)
	}
	return c, nil
}

// FindWithAuthor は指定IDのコメントを作成者概要付きで取得する。見つからない場合はnilを返す。
func (r *PostgresCommentRepo) FindWithAuthor(ctx context.Context, id string) (*model.CommentWithAuthor, error) {
	c := &model.CommentWithAuthor{}
	err := r.db.QueryRowContext(ctx,
		commentWithAuthorQuery+` WHERE c.id = $1`,
		id,
	).Scan(commentWithAuthorScanDest(c)...)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find comment with author: %w", err)
	}
	return c, nil
}

// Create はコメントを作成する。
func (r *PostgresCommentRepo) Create(ctx context.Context, comment *model.Comment) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO task_comments (id, task_id, user_id, content, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		comment.ID, comment.TaskID, comment.UserID, comment.Content, comment.CreatedAt, comment.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert comment: %w", err)
	}
	return nil
}

// Delete はコメントを削除する。
func (r *PostgresCommentRepo) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM task_comments WHERE id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete comment: %w", err)
	}
	return nil
}

func commentWithAuthorScanDest(c *model.CommentWithAuthor) []any {
	return []any{
		&c.Comment.ID, &c.Comment.TaskID, &c.Comment.UserID, &c.Comment.Content,
		&c.Comment.CreatedAt, &c.Comment.UpdatedAt,
		&c.User.ID, &c.User.Name, &c.User.Email, &c.User.AvatarURL,
	}
}

// compile-time interface check
var _ CommentRepository = (*PostgresCommentRepo)(nil)
