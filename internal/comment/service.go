// Package comment はタスクへのコメントのビジネスロジックを提供する。
package comment

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/kanban/internal/model"
	"github.com/hitoshi/kanban/internal/repository"
	"github.com/hitoshi/kanban/internal/security"
)

// MembershipChecker はプロジェクトのメンバー判定のインターフェース。
type MembershipChecker interface {
	RequireMember(ctx context.Context, projectID, userID string) (*model.Membership, error)
}

// Service はコメント操作のサービス層。
type Service struct {
	comments  repository.CommentRepository
	tasks     repository.TaskRepository
	activity  repository.ActivityRepository
	gate      MembershipChecker
	sanitizer security.ContentSanitizerService
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(
	comments repository.CommentRepository,
	tasks repository.TaskRepository,
	activity repository.ActivityRepository,
	gate MembershipChecker,
	sanitizer security.ContentSanitizerService,
) *Service {
	return &Service{
		comments:  comments,
		tasks:     tasks,
		activity:  activity,
		gate:      gate,
		sanitizer: sanitizer,
	}
}

// List はタスクのコメントを作成者概要付きで古い順に返す。
func (s *Service) List(ctx context.Context, userID, taskID string) ([]model.CommentWithAuthor, error) {
	if taskID == "" {
		return nil, model.NewValidationError("Task ID is required")
	}
	if _, err := s.taskForMember(ctx, userID, taskID); err != nil {
		return nil, err
	}

	comments, err := s.comments.ListByTask(ctx, taskID)
	if err != nil {
		return nil, fmt.Errorf("コメント一覧の取得に失敗しました: %w", err)
	}
	if comments == nil {
		comments = []model.CommentWithAuthor{}
	}
	return comments, nil
}

// Create はタスクにコメントを追加し、作成者概要付きで返す。
// タスクの存在確認をメンバーシップ確認より先に行う。
func (s *Service) Create(ctx context.Context, userID, taskID, content string) (*model.CommentWithAuthor, error) {
	// 1. 入力検証（サニタイズ後に空になる本文も拒否する）
	clean := s.sanitizer.Sanitize(content)
	if taskID == "" || clean == "" {
		return nil, model.NewValidationError("Task ID and content are required")
	}

	// 2. タスクの存在とメンバーシップ
	task, err := s.taskForMember(ctx, userID, taskID)
	if err != nil {
		return nil, err
	}

	// 3. 保存
	now := time.Now()
	comment := &model.Comment{
		ID:        uuid.New().String(),
		TaskID:    task.ID,
		UserID:    userID,
		Content:   clean,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.comments.Create(ctx, comment); err != nil {
		return nil, fmt.Errorf("コメントの作成に失敗しました: %w", err)
	}

	s.recordActivity(ctx, task, userID)

	// 4. 作成者概要付きで読み直す
	withAuthor, err := s.comments.FindWithAuthor(ctx, comment.ID)
	if err != nil {
		return nil, fmt.Errorf("コメントの取得に失敗しました: %w", err)
	}
	if withAuthor == nil {
		return nil, model.NewCommentNotFoundError(comment.ID)
	}
	return withAuthor, nil
}

// Delete はコメントを削除する。作成者本人のみ実行できる。
func (s *Service) Delete(ctx context.Context, userID, commentID string) error {
	comment, err := s.comments.FindByID(ctx, commentID)
	if err != nil {
		return fmt.Errorf("コメントの取得に失敗しました: %w", err)
	}
	if comment == nil {
		return model.NewCommentNotFoundError(commentID)
	}
	if _, err := s.taskForMember(ctx, userID, comment.TaskID); err != nil {
		return err
	}
	if comment.UserID != userID {
		return model.NewInsufficientRoleError("author")
	}

	if err := s.comments.Delete(ctx, comment.ID); err != nil {
		return fmt.Errorf("コメントの削除に失敗しました: %w", err)
	}
	return nil
}

func (s *Service) taskForMember(ctx context.Context, userID, taskID string) (*model.Task, error) {
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

func (s *Service) recordActivity(ctx context.Context, task *model.Task, userID string) {
	details, _ := json.Marshal(map[string]any{"taskTitle": task.Title})
	err := s.activity.Append(ctx, &model.ActivityLog{
		ID:        uuid.New().String(),
		ProjectID: &task.ProjectID,
		TaskID:    &task.ID,
		UserID:    userID,
		Action:    model.ActionCommentCreated,
		Details:   details,
		CreatedAt: time.Now(),
	})
	if err != nil {
		slog.Warn("failed to record activity",
			slog.String("task_id", task.ID),
			slog.String("error", err.Error()),
		)
	}
}
