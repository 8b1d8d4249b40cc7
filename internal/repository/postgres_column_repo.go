package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/kanban/internal/model"
)

// PostgresColumnRepo はPostgreSQLを使用したカラムリポジトリ。
type PostgresColumnRepo struct {
	db DBTX
}

// NewPostgresColumnRepo はPostgresColumnRepoを生成する。
func NewPostgresColumnRepo(db DBTX) *PostgresColumnRepo {
	return &PostgresColumnRepo{db: db}
}

// ListByProject はプロジェクトのカラムをposition昇順で返す。
func (r *PostgresColumnRepo) ListByProject(ctx context.Context, projectID string) ([]model.Column, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, project_id, name, position, created_at
		 FROM columns
		 WHERE project_id = $1
		 ORDER BY position ASC, created_at ASC`,
		projectID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list columns: %w", err)
	}
	defer rows.Close()

	var columns []model.Column
	for rows.Next() {
		var c model.Column
		if err := rows.Scan(&c.ID, &c.ProjectID, &c.Name, &c.Position, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan column: %w", err)
		}
		columns = append(columns, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate columns: %w", err)
	}

	return columns, nil
}

// FindByID は指定IDのカラムを取得する。見つからない場合はnilを返す。
func (r *PostgresColumnRepo) FindByID(ctx context.Context, id string) (*model.Column, error) {
	c := &model.Column{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, project_id, name, position, created_at FROM columns WHERE id = $1`,
		id,
	).Scan(&c.ID, &c.ProjectID, &c.Name, &c.Position, &c.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find column by ID: %w", err)
	}
	return c, nil
}

// Create はカラムを作成する。
func (r *PostgresColumnRepo) Create(ctx context.Context, column *model.Column) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO columns (id, project_id, name, position, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		column.ID, column.ProjectID, column.Name, column.Position, column.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert column: %w", err)
	}
	return nil
}

// Update はカラムの名前とpositionを更新する。
func (r *PostgresColumnRepo) Update(ctx context.Context, column *model.Column) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE columns SET name = $2, position = $3 WHERE id = $1`,
		column.ID, column.Name, column.Position,
	)
	if err != nil {
		return fmt.Errorf("failed to update column: %w", err)
	}
	return nil
}

// Delete はカラムを削除する。
func (r *PostgresColumnRepo) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM columns WHERE id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete column: %w", err)
	}
	return nil
}

// compile-time interface check
var _ ColumnRepository = (*PostgresColumnRepo)(nil)
