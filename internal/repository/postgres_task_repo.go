package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/kanban/internal/model"
)

const taskColumns = `id, project_id, column_id, title, description, position, assignee_id,
	priority, due_date, created_by, created_at, updated_at, completed_at`

// PostgresTaskRepo はPostgreSQLを使用したタスクリポジトリ。
type PostgresTaskRepo struct {
	db DBTX
}

// NewPostgresTaskRepo はPostgresTaskRepoを生成する。
func NewPostgresTaskRepo(db DBTX) *PostgresTaskRepo {
	return &PostgresTaskRepo{db: db}
}

// ListByColumn はカラムのタスクをposition昇順で返す。
func (r *PostgresTaskRepo) ListByColumn(ctx context.Context, columnID string) ([]model.Task, error) {
	return r.list(ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE column_id = $1 ORDER BY position ASC, created_at ASC`,
		columnID,
	)
}

// ListByProject はプロジェクトの全タスクをposition昇順で返す。
func (r *PostgresTaskRepo) ListByProject(ctx context.Context, projectID string) ([]model.Task, error) {
	return r.list(ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE project_id = $1 ORDER BY position ASC, created_at ASC`,
		projectID,
	)
}

func (r *PostgresTaskRepo) list(ctx context.Context, query string, arg string) ([]model.Task, error) {
	rows, err := r.db.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	defer rows.Close()

	var tasks []model.Task
	for rows.Next() {
		var t model.Task
		if err := rows.Scan(taskScanDest(&t)...); err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}
		tasks = append(tasks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate tasks: %w", err)
	}

	return tasks, nil
}

// FindByID は指定IDのタスクを取得する。見つからない場合はnilを返す。
func (r *PostgresTaskRepo) FindByID(ctx context.Context, id string) (*model.Task, error) {
	t := &model.Task{}
	err := r.db.QueryRowContext(ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE id = $1`,
		id,
	).Scan(taskScanDest(t)...)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find task by ID: %w", err)
	}
	return t, nil
}

// MaxPosition はカラム内のpositionの最大値を返す。タスクがない場合は0を返す。
// 読み取りと後続の挿入の間でロックは取らないため、同時作成では同じ値が返りうる。
func (r *PostgresTaskRepo) MaxPosition(ctx context.Context, columnID string) (int, error) {
	var maxPos int
	err := r.db.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(position), 0) FROM tasks WHERE column_id = $1`,
		columnID,
	).Scan(&maxPos)
	if err != nil {
		return 0, fmt.Errorf("failed to get max task position: %w", err)
	}
	return maxPos, nil
}

// Create はタスクを作成する。
func (r *PostgresTaskRepo) Create(ctx context.Context, task *model.Task) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO tasks (id, project_id, column_id, title, description, position, assignee_id,
		                    priority, due_date, created_by, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		task.ID, task.ProjectID, task.ColumnID, task.Title, task.Description, task.Position,
		task.AssigneeID, task.Priority, task.DueDate, task.CreatedBy, task.CreatedAt, task.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert task: %w", err)
	}
	return nil
}

// Update はタスクの編集可能な項目とcolumn_idを更新する。positionは変更しない。
func (r *PostgresTaskRepo) Update(ctx context.Context, task *model.Task) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE tasks
		 SET column_id = $2, title = $3, description = $4, assignee_id = $5, priority = $6,
		     due_date = $7, completed_at = $8, updated_at = $9
		 WHERE id = $1`,
		task.ID, task.ColumnID, task.Title, task.Description, task.AssigneeID, task.Priority,
		task.DueDate, task.CompletedAt, task.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update task: %w", err)
	}
	return nil
}

// Delete はタスクを削除する。
func (r *PostgresTaskRepo) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM tasks WHERE id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete task: %w", err)
	}
	return nil
}

func taskScanDest(t *model.Task) []any {
	return []any{
		&t.ID, &t.ProjectID, &t.ColumnID, &t.Title, &t.Description, &t.Position, &t.AssigneeID,
		&t.Priority, &t.DueDate, &t.CreatedBy, &t.CreatedAt, &t.UpdatedAt, &t.CompletedAt,
	}
}

// compile-time interface check
var _ TaskRepository = (*PostgresTaskRepo)(nil)
