package repository

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"time"

	"github.com/hitoshi/kanban/internal/database"
	"github.com/hitoshi/kanban/internal/model"
)

const projectColumns = `id, name, description, color, icon, visibility, created_by, created_at, updated_at, archived_at`

// PostgresProjectRepo はPostgreSQLを使用したプロジェクトリポジトリ。
type PostgresProjectRepo struct {
	db *sql.DB
}

// NewPostgresProjectRepo はPostgresProjectRepoを生成する。
func NewPostgresProjectRepo(db *sql.DB) *PostgresProjectRepo {
	return &PostgresProjectRepo{db: db}
}

// ListByMember はユーザーがメンバーであるプロジェクトを役割付きで作成日時順に返す。
func (r *PostgresProjectRepo) ListByMember(ctx context.Context, userID string) ([]model.ProjectWithRole, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT p.id, p.name, p.description, p.color, p.icon, p.visibility,
		        p.created_by, p.created_at, p.updated_at, p.archived_at, pm.role
		 FROM projects p
		 INNER JOIN project_members pm ON pm.project_id = p.id
		 WHERE pm.user_id = $1
		 ORDER BY p.created_at ASC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list projects by member: %w", err)
	}
	defer rows.Close()

	var results []model.ProjectWithRole
	for rows.Next() {
		var pr model.ProjectWithRole
		p := &pr.Project
		if err := rows.Scan(
			&p.ID, &p.Name, &p.Description, &p.Color, &p.Icon, &p.Visibility,
			&p.CreatedBy, &p.CreatedAt, &p.UpdatedAt, &p.ArchivedAt, &pr.Role,
		); err != nil {
			return nil, fmt.Errorf("failed to scan project: %w", err)
		}
		results = append(results, pr)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate projects: %w", err)
	}

	return results, nil
}

// FindByID は指定IDのプロジェクトを取得する。見つからない場合はnilを返す。
func (r *PostgresProjectRepo) FindByID(ctx context.Context, id string) (*model.Project, error) {
	p := &model.Project{}
	err := r.db.QueryRowContext(ctx,
		`SELECT `+projectColumns+` FROM projects WHERE id = $1`,
		id,
	).Scan(
		&p.ID, &p.Name, &p.Description, &p.Color, &p.Icon, &p.Visibility,
		&p.CreatedBy, &p.CreatedAt, &p.UpdatedAt, &p.ArchivedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find project by ID: %w", err)
	}
	return p, nil
}

// Create はプロジェクトだけを作成する。メンバーシップは作成しない。
func (r *PostgresProjectRepo) Create(ctx context.Context, project *model.Project) error {
	return insertProject(ctx, r.db, project)
}

// CreateWithOwner はプロジェクト、オーナーのメンバーシップ、作成アクティビティを
// 同一トランザクションで作成する。
func (r *PostgresProjectRepo) CreateWithOwner(ctx context.Context, project *model.Project, owner *model.Membership, activity *model.ActivityLog) error {
	return database.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		if err := insertProject(ctx, tx, project); err != nil {
			return err
		}

		if err := NewPostgresMembershipRepo(tx).Create(ctx, owner); err != nil {
			return err
		}

		if activity != nil {
			if err := NewPostgresActivityRepo(tx).Append(ctx, activity); err != nil {
				return err
			}
		}
		return nil
	})
}

func insertProject(ctx context.Context, db DBTX, project *model.Project) error {
	_, err := db.ExecContext(ctx,
		`INSERT INTO projects (id, name, description, color, icon, visibility, created_by, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		project.ID, project.Name, project.Description, project.Color, project.Icon,
		project.Visibility, project.CreatedBy, project.CreatedAt, project.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert project: %w", err)
	}
	return nil
}

// Update はプロジェクトの編集可能な項目を更新する。
func (r *PostgresProjectRepo) Update(ctx context.Context, project *model.Project) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE projects
		 SET name = $2, description = $3, color = $4, icon = $5, visibility = $6,
		     archived_at = $7, updated_at = $8
		 WHERE id = $1`,
		project.ID, project.Name, project.Description, project.Color, project.Icon,
		project.Visibility, project.ArchivedAt, project.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update project: %w", err)
	}
	return nil
}

// Delete はプロジェクトを削除する。関連データはCASCADE削除される。
func (r *PostgresProjectRepo) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM projects WHERE id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete project: %w", err)
	}
	return nil
}

// DeleteByNamePattern は名前がLIKEパターンに一致するプロジェクトを削除し、削除件数を返す。
func (r *PostgresProjectRepo) DeleteByNamePattern(ctx context.Context, pattern string) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM projects WHERE name LIKE $1`, pattern)
	if err != nil {
		return 0, fmt.Errorf("failed to delete projects by name pattern: %w", err)
	}
	return rowsAffected(result)
}

// DeleteStaleTestProjects はバックアップ検証が作成した形式の一時プロジェクトのうち、
// olderThanより前に作成されたものを削除する。
// 名前が "{prefix}{UUID}" に完全一致し、色もcolorと一致するものだけが対象になる。
func (r *PostgresProjectRepo) DeleteStaleTestProjects(ctx context.Context, prefix, color string, olderThan time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM projects WHERE name ~ $1 AND color = $2 AND created_at < $3`,
		testProjectNamePattern(prefix), color, olderThan,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to delete stale projects: %w", err)
	}
	return rowsAffected(result)
}

// testProjectNamePattern は "{prefix}{UUID}" に完全一致するPOSIX正規表現を返す。
func testProjectNamePattern(prefix string) string {
	return "^" + regexp.QuoteMeta(prefix) +
		"[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}$"
}

func rowsAffected(result sql.Result) (int64, error) {
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n, nil
}

// compile-time interface check
var _ ProjectRepository = (*PostgresProjectRepo)(nil)
