package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hitoshi/kanban/internal/model"
)

// PostgresActivityRepo はPostgreSQLを使用したアクティビティログリポジトリ。
type PostgresActivityRepo struct {
	db DBTX
}

// NewPostgresActivityRepo はPostgresActivityRepoを生成する。
func NewPostgresActivityRepo(db DBTX) *PostgresActivityRepo {
	return &PostgresActivityRepo{db: db}
}

// Append はアクティビティを1件追記する。Detailsが空の場合はNULLを保存する。
func (r *PostgresActivityRepo) Append(ctx context.Context, activity *model.ActivityLog) error {
	var details any
	if len(activity.Details) > 0 {
		details = []byte(activity.Details)
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO activity_logs (id, project_id, task_id, user_id, action, details, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		activity.ID, activity.ProjectID, activity.TaskID, activity.UserID,
		activity.Action, details, activity.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert activity: %w", err)
	}
	return nil
}

// ListByProject はプロジェクトのアクティビティを新しい順に最大limit件返す。
func (r *PostgresActivityRepo) ListByProject(ctx context.Context, projectID string, limit int) ([]model.ActivityLog, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, project_id, task_id, user_id, action, details, created_at
		 FROM activity_logs
		 WHERE project_id = $1
		 ORDER BY created_at DESC
		 LIMIT $2`,
		projectID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list activity: %w", err)
	}
	defer rows.Close()

	var logs []model.ActivityLog
	for rows.Next() {
		var a model.ActivityLog
		var details []byte
		if err := rows.Scan(&a.ID, &a.ProjectID, &a.TaskID, &a.UserID, &a.Action, &details, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan activity: %w", err)
		}
		if len(details) > 0 {
			a.Details = json.RawMessage(details)
		}
		logs = append(logs, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate activity: %w", err)
	}

	return logs, nil
}

// compile-time interface check
var _ ActivityRepository = (*PostgresActivityRepo)(nil)
