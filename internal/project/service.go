// Package project はプロジェクトとメンバーシップに関するビジネスロジックを提供する。
package project

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/kanban/internal/metrics"
	"github.com/hitoshi/kanban/internal/model"
	"github.com/hitoshi/kanban/internal/repository"
	"github.com/hitoshi/kanban/internal/security"
)

const (
	listCacheTTL        = 60 * time.Second
	listCachePattern    = "projects:*"
	defaultActivityPage = 50
	maxActivityPage     = 200
)

// AccessGate はメンバーシップと役割の判定のインターフェース。
type AccessGate interface {
	RequireMember(ctx context.Context, projectID, userID string) (*model.Membership, error)
	RequireRole(ctx context.Context, projectID, userID string, allowed ...model.Role) (*model.Membership, error)
}

// ListCache はプロジェクト一覧のキャッシュのインターフェース。
// キャッシュは補助的なもので、エラーはリクエストの失敗にしない。
type ListCache interface {
	GetJSON(ctx context.Context, key string, dst any) (bool, error)
	SetJSON(ctx context.Context, key string, value any, ttl time.Duration) error
	InvalidatePattern(ctx context.Context, pattern string) (int, error)
}

// CreateInput はプロジェクト作成の入力。
type CreateInput struct {
	Name        string
	Description *string
	Color       string
	Icon        *string
	Visibility  string
}

// UpdateInput はプロジェクト更新の入力。nilの項目は変更しない。
type UpdateInput struct {
	Name        *string
	Description *string
	Color       *string
	Icon        *string
	Visibility  *string
	Archived    *bool
}

// Service はプロジェクト操作のサービス層。
type Service struct {
	projects  repository.ProjectRepository
	members   repository.MembershipRepository
	activity  repository.ActivityRepository
	gate      AccessGate
	cache     ListCache
	sanitizer security.ContentSanitizerService
	metrics   metrics.Recorder
}

// NewService はServiceの新しいインスタンスを生成する。cacheがnilの場合はキャッシュを使わない。
func NewService(
	projects repository.ProjectRepository,
	members repository.MembershipRepository,
	activity repository.ActivityRepository,
	gate AccessGate,
	cache ListCache,
	sanitizer security.ContentSanitizerService,
	recorder metrics.Recorder,
) *Service {
	if recorder == nil {
		recorder = metrics.Nop{}
	}
	return &Service{
		projects:  projects,
		members:   members,
		activity:  activity,
		gate:      gate,
		cache:     cache,
		sanitizer: sanitizer,
		metrics:   recorder,
	}
}

func listCacheKey(userID string) string {
	return "projects:user:" + userID
}

// List はユーザーがメンバーであるプロジェクトを役割付きで作成日時順に返す。
func (s *Service) List(ctx context.Context, userID string) ([]model.ProjectWithRole, error) {
	key := listCacheKey(userID)

	if s.cache != nil {
		var cached []model.ProjectWithRole
		hit, err := s.cache.GetJSON(ctx, key, &cached)
		if err != nil {
			slog.Warn("project list cache read failed",
				slog.String("user_id", userID),
				slog.String("error", err.Error()),
			)
		} else if hit {
			return cached, nil
		}
	}

	projects, err := s.projects.ListByMember(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("プロジェクト一覧の取得に失敗しました: %w", err)
	}
	if projects == nil {
		projects = []model.ProjectWithRole{}
	}

	if s.cache != nil {
		if err := s.cache.SetJSON(ctx, key, projects, listCacheTTL); err != nil {
			slog.Warn("project list cache write failed",
				slog.String("user_id", userID),
				slog.String("error", err.Error()),
			)
		}
	}
	return projects, nil
}

// Create はプロジェクトを作成し、作成者をオーナーとして登録する。
// プロジェクト、オーナーのメンバーシップ、作成アクティビティは同一トランザクションで書き込む。
func (s *Service) Create(ctx context.Context, userID string, in CreateInput) (*model.Project, error) {
	// 1. 入力の検証と既定値
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, model.NewValidationError("Name is required")
	}

	color := strings.TrimSpace(in.Color)
	if color == "" {
		color = model.DefaultProjectColor
	}

	visibility := model.VisibilityPrivate
	if in.Visibility != "" {
		visibility = model.Visibility(in.Visibility)
		if !visibility.Valid() {
			return nil, model.NewValidationError(fmt.Sprintf("Invalid visibility: %s", in.Visibility))
		}
	}

	// 2. エンティティの組み立て
	now := time.Now()
	project := &model.Project{
		ID:          uuid.New().String(),
		Name:        name,
		Description: security.SanitizeOptional(s.sanitizer, in.Description),
		Color:       color,
		Icon:        trimOptional(in.Icon),
		Visibility:  visibility,
		CreatedBy:   userID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	owner := &model.Membership{
		ID:        uuid.New().String(),
		ProjectID: project.ID,
		UserID:    userID,
		Role:      model.RoleOwner,
		JoinedAt:  now,
	}
	details, _ := json.Marshal(map[string]any{"name": project.Name})
	activity := &model.ActivityLog{
		ID:        uuid.New().String(),
		ProjectID: &project.ID,
		UserID:    userID,
		Action:    model.ActionProjectCreated,
		Details:   details,
		CreatedAt: now,
	}

	// 3. 永続化
	if err := s.projects.CreateWithOwner(ctx, project, owner, activity); err != nil {
		return nil, fmt.Errorf("プロジェクトの作成に失敗しました: %w", err)
	}

	s.metrics.RecordProjectCreated()
	s.invalidateLists(ctx)
	return project, nil
}

// Get はプロジェクトを取得する。メンバーでない場合はFORBIDDENを返す。
func (s *Service) Get(ctx context.Context, userID, projectID string) (*model.ProjectWithRole, error) {
	membership, err := s.gate.RequireMember(ctx, projectID, userID)
	if err != nil {
		return nil, err
	}

	project, err := s.projects.FindByID(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("プロジェクトの取得に失敗しました: %w", err)
	}
	if project == nil {
		return nil, model.NewProjectNotFoundError(projectID)
	}
	return &model.ProjectWithRole{Project: *project, Role: membership.Role}, nil
}

// Update はプロジェクトの設定を変更する。オーナーまたは管理者のみ実行できる。
func (s *Service) Update(ctx context.Context, userID, projectID string, in UpdateInput) (*model.Project, error) {
	if _, err := s.gate.RequireRole(ctx, projectID, userID, model.RoleOwner, model.RoleAdmin); err != nil {
		return nil, err
	}

	project, err := s.projects.FindByID(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("プロジェクトの取得に失敗しました: %w", err)
	}
	if project == nil {
		return nil, model.NewProjectNotFoundError(projectID)
	}

	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return nil, model.NewValidationError("Name is required")
		}
		project.Name = name
	}
	if in.Description != nil {
		project.Description = security.SanitizeOptional(s.sanitizer, in.Description)
	}
	if in.Color != nil && strings.TrimSpace(*in.Color) != "" {
		project.Color = strings.TrimSpace(*in.Color)
	}
	if in.Icon != nil {
		project.Icon = trimOptional(in.Icon)
	}
	if in.Visibility != nil {
		visibility := model.Visibility(*in.Visibility)
		if !visibility.Valid() {
			return nil, model.NewValidationError(fmt.Sprintf("Invalid visibility: %s", *in.Visibility))
		}
		project.Visibility = visibility
	}
	if in.Archived != nil {
		if *in.Archived {
			if project.ArchivedAt == nil {
				now := time.Now()
				project.ArchivedAt = &now
			}
		} else {
			project.ArchivedAt = nil
		}
	}
	project.UpdatedAt = time.Now()

	if err := s.projects.Update(ctx, project); err != nil {
		return nil, fmt.Errorf("プロジェクトの更新に失敗しました: %w", err)
	}

	s.recordActivity(ctx, project.ID, userID, model.ActionProjectUpdated, map[string]any{"name": project.Name})
	s.invalidateLists(ctx)
	return project, nil
}

// Delete はプロジェクトを削除する。オーナーのみ実行できる。
// カラム、タスク、コメント、メンバーシップ、アクティビティもCASCADE削除される。
func (s *Service) Delete(ctx context.Context, userID, projectID string) error {
	if _, err := s.gate.RequireRole(ctx, projectID, userID, model.RoleOwner); err != nil {
		return err
	}

	project, err := s.projects.FindByID(ctx, projectID)
	if err != nil {
		return fmt.Errorf("プロジェクトの取得に失敗しました: %w", err)
	}
	if project == nil {
		return model.NewProjectNotFoundError(projectID)
	}

	if err := s.projects.Delete(ctx, projectID); err != nil {
		return fmt.Errorf("プロジェクトの削除に失敗しました: %w", err)
	}

	s.invalidateLists(ctx)
	return nil
}

// ListMembers はプロジェクトのメンバー一覧を返す。
func (s *Service) ListMembers(ctx context.Context, userID, projectID string) ([]model.MemberWithUser, error) {
	if _, err := s.gate.RequireMember(ctx, projectID, userID); err != nil {
		return nil, err
	}

	members, err := s.members.ListByProject(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("メンバー一覧の取得に失敗しました: %w", err)
	}
	if members == nil {
		members = []model.MemberWithUser{}
	}
	return members, nil
}

// ListActivity はプロジェクトのアクティビティを新しい順に返す。
// limitが0以下の場合は既定の件数、上限を超える場合は上限の件数になる。
func (s *Service) ListActivity(ctx context.Context, userID, projectID string, limit int) ([]model.ActivityLog, error) {
	if _, err := s.gate.RequireMember(ctx, projectID, userID); err != nil {
		return nil, err
	}

	switch {
	case limit <= 0:
		limit = defaultActivityPage
	case limit > maxActivityPage:
		limit = maxActivityPage
	}

	logs, err := s.activity.ListByProject(ctx, projectID, limit)
	if err != nil {
		return nil, fmt.Errorf("アクティビティの取得に失敗しました: %w", err)
	}
	if logs == nil {
		logs = []model.ActivityLog{}
	}
	return logs, nil
}

// invalidateLists はプロジェクト一覧のキャッシュを全ユーザー分破棄する。
func (s *Service) invalidateLists(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if _, err := s.cache.InvalidatePattern(ctx, listCachePattern); err != nil {
		slog.Warn("project list cache invalidation failed", slog.String("error", err.Error()))
	}
}

func (s *Service) recordActivity(ctx context.Context, projectID, userID, action string, details map[string]any) {
	raw, _ := json.Marshal(details)
	err := s.activity.Append(ctx, &model.ActivityLog{
		ID:        uuid.New().String(),
		ProjectID: &projectID,
		UserID:    userID,
		Action:    action,
		Details:   raw,
		CreatedAt: time.Now(),
	})
	if err != nil {
		slog.Warn("failed to record activity",
			slog.String("project_id", projectID),
			slog.String("action", action),
			slog.String("error", err.Error()),
		)
	}
}

func trimOptional(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}
