package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/kanban/internal/model"
)

// PostgresMembershipRepo はPostgreSQLを使用したメンバーシップリポジトリ。
type PostgresMembershipRepo struct {
	db DBTX
}

// NewPostgresMembershipRepo はPostgresMembershipRepoを生成する。
func NewPostgresMembershipRepo(db DBTX) *PostgresMembershipRepo {
	return &PostgresMembershipRepo{db: db}
}

// Find はプロジェクトとユーザーのメンバーシップを取得する。見つからない場合はnilを返す。
func (r *PostgresMembershipRepo) Find(ctx context.Context, projectID, userID string) (*model.Membership, error) {
	m := &model.Membership{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, project_id, user_id, role, joined_at
		 FROM project_members
		 WHERE project_id = $1 AND user_id = $2
		 ORDER BY joined_at ASC
		 LIMIT 1`,
		projectID, userID,
	).Scan(&m.ID, &m.ProjectID, &m.UserID, &m.Role, &m.JoinedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find membership: %w", err)
	}
	return m, nil
}

// Create はメンバーシップを作成する。
func (r *PostgresMembershipRepo) Create(ctx context.Context, membership *model.Membership) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO project_members (id, project_id, user_id, role, joined_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		membership.ID, membership.ProjectID, membership.UserID, membership.Role, membership.JoinedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert membership: %w", err)
	}
	return nil
}

// ListByProject はプロジェクトのメンバーをユーザー概要付きで参加日時順に返す。
func (r *PostgresMembershipRepo) ListByProject(ctx context.Context, projectID string) ([]model.MemberWithUser, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT pm.id, pm.project_id, pm.user_id, pm.role, pm.joined_at,
		        u.id, u.name, u.email, u.avatar_url
		 FROM project_members pm
		 INNER JOIN users u ON u.id = pm.user_id
		 WHERE pm.project_id = $1
		 ORDER BY pm.joined_at ASC`,
		projectID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list members: %w", err)
	}
	defer rows.Close()

	var members []model.MemberWithUser
	for rows.Next() {
		var m model.MemberWithUser
		if err := rows.Scan(
			&m.ID, &m.ProjectID, &m.UserID, &m.Role, &m.JoinedAt,
			&m.User.ID, &m.User.Name, &m.User.Email, &m.User.AvatarURL,
		); err != nil {
			return nil, fmt.Errorf("failed to scan member: %w", err)
		}
		members = append(members, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate members: %w", err)
	}

	return members, nil
}

// compile-time interface check
var _ MembershipRepository = (*PostgresMembershipRepo)(nil)
