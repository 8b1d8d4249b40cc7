package board

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

// MembershipChecker はプロジェクトのメンバー判定のインターフェース。
type MembershipChecker interface {
	RequireMember(ctx context.Context, projectID, userID string) (*model.Membership, error)
}

// CreateColumnInput はカラム作成の入力。
type CreateColumnInput struct {
	ProjectID string
	Name      string
	Position  *int
}

// UpdateColumnInput はカラム更新の入力。nilの項目は変更しない。
type UpdateColumnInput struct {
	Name     *string
	Position *int
}

// CreateTaskInput はタスク作成の入力。
type CreateTaskInput struct {
	ProjectID   string
	ColumnID    string
	Title       string
	Description *string
	AssigneeID  *string
	Priority    string
	DueDate     *time.Time
}

// UpdateTaskInput はタスク更新の入力。nilの項目は変更しない。
// DescriptionとAssigneeIDは空文字列でクリアする。
type UpdateTaskInput struct {
	ColumnID     *string
	Title        *string
	Description  *string
	AssigneeID   *string
	Priority     *string
	DueDate      *time.Time
	ClearDueDate bool
	Completed    *bool
}

// Service はボード（カラムとタスク）操作のサービス層。
// すべての操作でプロジェクトのメンバーシップを確認する。
type Service struct {
	gate      MembershipChecker
	columns   repository.ColumnRepository
	tasks     repository.TaskRepository
	activity  repository.ActivityRepository
	sanitizer security.ContentSanitizerService
	metrics   metrics.Recorder
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(
	gate MembershipChecker,
	columns repository.ColumnRepository,
	tasks repository.TaskRepository,
	activity repository.ActivityRepository,
	sanitizer security.ContentSanitizerService,
	recorder metrics.Recorder,
) *Service {
	if recorder == nil {
		recorder = metrics.Nop{}
	}
	return &Service{
		gate:      gate,
		columns:   columns,
		tasks:     tasks,
		activity:  activity,
		sanitizer: sanitizer,
		metrics:   recorder,
	}
}

// GetBoard はプロジェクトのカラムを位置順に、各カラムのタスクを位置順にネストして返す。
func (s *Service) GetBoard(ctx context.Context, userID, projectID string) ([]model.ColumnWithTasks, error) {
	if projectID == "" {
		return nil, model.NewValidationError("Project ID is required")
	}
	if _, err := s.gate.RequireMember(ctx, projectID, userID); err != nil {
		return nil, err
	}

	columns, err := s.columns.ListByProject(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("カラム一覧の取得に失敗しました: %w", err)
	}
	tasks, err := s.tasks.ListByProject(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("タスク一覧の取得に失敗しました: %w", err)
	}

	return GroupTasksByColumn(columns, tasks), nil
}

// CreateColumn はカラムを作成する。positionの指定がない場合は0になる。
func (s *Service) CreateColumn(ctx context.Context, userID string, in CreateColumnInput) (*model.Column, error) {
	name := strings.TrimSpace(in.Name)
	if in.ProjectID == "" || name == "" {
		return nil, model.NewValidationError("Project ID and name are required")
	}
	if _, err := s.gate.RequireMember(ctx, in.ProjectID, userID); err != nil {
		return nil, err
	}

	column := &model.Column{
		ID:        uuid.New().String(),
		ProjectID: in.ProjectID,
		Name:      name,
		Position:  ColumnPosition(in.Position),
		CreatedAt: time.Now(),
	}
	if err := s.columns.Create(ctx, column); err != nil {
		return nil, fmt.Errorf("カラムの作成に失敗しました: %w", err)
	}

	s.recordActivity(ctx, column.ProjectID, nil, userID, model.ActionColumnCreated, map[string]any{
		"columnId": column.ID,
		"name":     column.Name,
	})
	return column, nil
}

// UpdateColumn はカラムの名前またはpositionを変更する。
func (s *Service) UpdateColumn(ctx context.Context, userID, columnID string, in UpdateColumnInput) (*model.Column, error) {
	column, err := s.findColumnForMember(ctx, userID, columnID)
	if err != nil {
		return nil, err
	}

	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return nil, model.NewValidationError("Name must not be empty")
		}
		column.Name = name
	}
	if in.Position != nil {
		column.Position = *in.Position
	}

	if err := s.columns.Update(ctx, column); err != nil {
		return nil, fmt.Errorf("カラムの更新に失敗しました: %w", err)
	}

	s.recordActivity(ctx, column.ProjectID, nil, userID, model.ActionColumnUpdated, map[string]any{
		"columnId": column.ID,
		"name":     column.Name,
		"position": column.Position,
	})
	return column, nil
}

// DeleteColumn はカラムを削除する。所属タスクも削除される。
func (s *Service) DeleteColumn(ctx context.Context, userID, columnID string) error {
	column, err := s.findColumnForMember(ctx, userID, columnID)
	if err != nil {
		return err
	}

	if err := s.columns.Delete(ctx, column.ID); err != nil {
		return fmt.Errorf("カラムの削除に失敗しました: %w", err)
	}

	s.recordActivity(ctx, column.ProjectID, nil, userID, model.ActionColumnDeleted, map[string]any{
		"columnId": column.ID,
		"name":     column.Name,
	})
	return nil
}

// ListTasks はプロジェクトの全タスクを位置順に返す。
func (s *Service) ListTasks(ctx context.Context, userID, projectID string) ([]model.Task, error) {
	if projectID == "" {
		return nil, model.NewValidationError("Project ID is required")
	}
	if _, err := s.gate.RequireMember(ctx, projectID, userID); err != nil {
		return nil, err
	}

	tasks, err := s.tasks.ListByProject(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("タスク一覧の取得に失敗しました: %w", err)
	}
	if tasks == nil {
		tasks = []model.Task{}
	}
	return tasks, nil
}

// CreateTask はカラムの末尾にタスクを作成する。
// positionは「現在の最大値+1」で、最大値の読み取りと挿入の間にロックは取らない。
// そのため同じカラムへの同時作成では同じpositionになりうる。
func (s *Service) CreateTask(ctx context.Context, userID string, in CreateTaskInput) (*model.Task, error) {
	title := strings.TrimSpace(in.Title)
	if in.ProjectID == "" || in.ColumnID == "" || title == "" {
		return nil, model.NewValidationError("Project ID, column ID, and title are required")
	}

	priority := model.PriorityMedium
	if in.Priority != "" {
		priority = model.Priority(in.Priority)
		if !priority.Valid() {
			return nil, model.NewValidationError(fmt.Sprintf("Invalid priority: %s", in.Priority))
		}
	}

	if _, err := s.gate.RequireMember(ctx, in.ProjectID, userID); err != nil {
		return nil, err
	}

	column, err := s.columns.FindByID(ctx, in.ColumnID)
	if err != nil {
		return nil, fmt.Errorf("カラムの取得に失敗しました: %w", err)
	}
	if column == nil || column.ProjectID != in.ProjectID {
		return nil, model.NewColumnNotFoundError(in.ColumnID)
	}

	maxPos, err := s.tasks.MaxPosition(ctx, column.ID)
	if err != nil {
		return nil, fmt.Errorf("タスク位置の取得に失敗しました: %w", err)
	}

	now := time.Now()
	task := &model.Task{
		ID:          uuid.New().String(),
		ProjectID:   in.ProjectID,
		ColumnID:    column.ID,
		Title:       title,
		Description: security.SanitizeOptional(s.sanitizer, in.Description),
		Position:    NextTaskPosition(maxPos),
		AssigneeID:  emptyToNil(in.AssigneeID),
		Priority:    priority,
		DueDate:     in.DueDate,
		CreatedBy:   userID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.tasks.Create(ctx, task); err != nil {
		return nil, fmt.Errorf("タスクの作成に失敗しました: %w", err)
	}

	s.metrics.RecordTaskCreated()
	s.recordActivity(ctx, task.ProjectID, &task.ID, userID, model.ActionTaskCreated, map[string]any{
		"title":    task.Title,
		"columnId": task.ColumnID,
	})
	return task, nil
}

// UpdateTask はタスクを更新する。ColumnIDが現在と異なる場合はカラム間の移動として扱い、
// 所属カラムだけを書き換える（positionは維持する）。
// 変更点がない場合は書き込みを行わずに現在のタスクを返す。
func (s *Service) UpdateTask(ctx context.Context, userID, taskID string, in UpdateTaskInput) (*model.Task, error) {
	task, err := s.findTaskForMember(ctx, userID, taskID)
	if err != nil {
		return nil, err
	}

	fromColumn := task.ColumnID
	moved := false
	if in.ColumnID != nil && *in.ColumnID != task.ColumnID {
		target, err := s.columns.FindByID(ctx, *in.ColumnID)
		if err != nil {
			return nil, fmt.Errorf("カラムの取得に失敗しました: %w", err)
		}
		if target == nil || target.ProjectID != task.ProjectID {
			return nil, model.NewColumnNotFoundError(*in.ColumnID)
		}
		moved = MoveTask(task, target.ID)
	}

	edited, err := s.applyTaskEdits(task, in)
	if err != nil {
		return nil, err
	}
	if !moved && !edited {
		return task, nil
	}

	task.UpdatedAt = time.Now()
	if err := s.tasks.Update(ctx, task); err != nil {
		return nil, fmt.Errorf("タスクの更新に失敗しました: %w", err)
	}

	if moved {
		s.metrics.RecordTaskMoved()
		s.recordActivity(ctx, task.ProjectID, &task.ID, userID, model.ActionTaskMoved, map[string]any{
			"fromColumnId": fromColumn,
			"toColumnId":   task.ColumnID,
		})
	}
	if edited {
		s.recordActivity(ctx, task.ProjectID, &task.ID, userID, model.ActionTaskUpdated, map[string]any{
			"title": task.Title,
		})
	}
	return task, nil
}

// applyTaskEdits はカラム以外の変更をタスクに適用し、変更があったかどうかを返す。
func (s *Service) applyTaskEdits(task *model.Task, in UpdateTaskInput) (bool, error) {
	edited := false

	if in.Title != nil {
		title := strings.TrimSpace(*in.Title)
		if title == "" {
			return false, model.NewValidationError("Title must not be empty")
		}
		task.Title = title
		edited = true
	}
	if in.Description != nil {
		task.Description = security.SanitizeOptional(s.sanitizer, in.Description)
		edited = true
	}
	if in.AssigneeID != nil {
		task.AssigneeID = emptyToNil(in.AssigneeID)
		edited = true
	}
	if in.Priority != nil {
		priority := model.Priority(*in.Priority)
		if !priority.Valid() {
			return false, model.NewValidationError(fmt.Sprintf("Invalid priority: %s", *in.Priority))
		}
		task.Priority = priority
		edited = true
	}
	if in.ClearDueDate {
		task.DueDate = nil
		edited = true
	} else if in.DueDate != nil {
		task.DueDate = in.DueDate
		edited = true
	}
	if in.Completed != nil {
		switch {
		case *in.Completed && task.CompletedAt == nil:
			now := time.Now()
			task.CompletedAt = &now
		case !*in.Completed:
			task.CompletedAt = nil
		}
		edited = true
	}

	return edited, nil
}

// DeleteTask はタスクを削除する。
// アクティビティは削除前に記録し、削除後はtask_idがNULLになった状態で残る。
func (s *Service) DeleteTask(ctx context.Context, userID, taskID string) error {
	task, err := s.findTaskForMember(ctx, userID, taskID)
	if err != nil {
		return err
	}

	s.recordActivity(ctx, task.ProjectID, &task.ID, userID, model.ActionTaskDeleted, map[string]any{
		"title": task.Title,
	})

	if err := s.tasks.Delete(ctx, task.ID); err != nil {
		return fmt.Errorf("タスクの削除に失敗しました: %w", err)
	}
	return nil
}

func (s *Service) findColumnForMember(ctx context.Context, userID, columnID string) (*model.Column, error) {
	column, err := s.columns.FindByID(ctx, columnID)
	if err != nil {
		return nil, fmt.Errorf("カラムの取得に失敗しました: %w", err)
	}
	if column == nil {
		return nil, model.NewColumnNotFoundError(columnID)
	}
	if _, err := s.gate.RequireMember(ctx, column.ProjectID, userID); err != nil {
		return nil, err
	}
	return column, nil
}

func (s *Service) findTaskForMember(ctx context.Context, userID, taskID string) (*model.Task, error) {
	task, err := s.tasks.FindByID(ctx, taskID)
	if err != nil {
		return nil, fmt.Errorf("タスクの取得に失敗しました: %w", err)
	}
	if task == nil {
		return nil, model.NewTaskNotFoundError(taskID)
	}
	if _, err := s.gate.RequireMember(ctx, task.ProjectID, userID); err != nil {
		return nil, err
	}
	return task, nil
}

// recordActivity はアクティビティを追記する。失敗しても操作自体は成功として扱う。
func (s *Service) recordActivity(ctx context.Context, projectID string, taskID *string, userID, action string, details map[string]any) {
	raw, err := json.Marshal(details)
	if err != nil {
		raw = nil
	}

	err = s.activity.Append(ctx, &model.ActivityLog{
		ID:        uuid.New().String(),
		ProjectID: &projectID,
		TaskID:    taskID,
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

func emptyToNil(s *string) *string {
	if s == nil || strings.TrimSpace(*s) == "" {
		return nil
	}
	v := strings.TrimSpace(*s)
	return &v
}
