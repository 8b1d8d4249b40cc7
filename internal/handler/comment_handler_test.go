package handler

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/hitoshi/kanban/internal/model"
)

func TestCommentHandler_CreateComment_ReturnsCommentWithAuthor(t *testing.T) {
	svc := &mockCommentService{
		createFn: func(ctx context.Context, userID, taskID, content string) (*model.CommentWithAuthor, error) {
			if taskID != "t1" || content != "Looks good" {
				t.Errorf("taskID=%q content=%q", taskID, content)
			}
			now := time.Now()
			return &model.CommentWithAuthor{
				Comment: model.Comment{ID: "cm1", TaskID: taskID, UserID: userID, Content: content, CreatedAt: now, UpdatedAt: now},
				User:    model.UserSummary{ID: userID, Name: "Alice", Email: "alice@example.com"},
			}, nil
		},
	}

	body := `{"task_id":"t1","content":"Looks good"}`
	req := withUserID(httptest.NewRequest(http.MethodPost, "/api/comments", bytes.NewBufferString(body)), "user-1")
	w := httptest.NewRecorder()
	NewCommentHandler(svc).CreateComment(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusCreated)
	}
	got := decodeJSON[commentResponse](t, w)
	if got.Comment.ID != "cm1" || got.Comment.Content != "Looks good" {
		t.Errorf("unexpected comment: %+v", got.Comment)
	}
	if got.User.Name != "Alice" || got.User.AvatarURL != nil {
		t.Errorf("unexpected user: %+v", got.User)
	}
}

func TestCommentHandler_CreateComment_TaskNotFound_Returns404(t *testing.T) {
	svc := &mockCommentService{
		createFn: func(ctx context.Context, userID, taskID, content string) (*model.CommentWithAuthor, error) {
			return nil, model.NewTaskNotFoundError(taskID)
		},
	}

	req := withUserID(httptest.NewRequest(http.MethodPost, "/api/comments", bytes.NewBufferString(`{"taskId":"gone","content":"hi"}`)), "user-1")
	w := httptest.NewRecorder()
	NewCommentHandler(svc).CreateComment(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", w.Code, http.StatusNotFound)
	}
	if body := parseAPIErrorResponse(t, w); body["code"] != model.ErrCodeTaskNotFound {
		t.Errorf("code = %q, want %q", body["code"], model.ErrCodeTaskNotFound)
	}
}

func TestCommentHandler_ListComments_UsesTaskIDQuery(t *testing.T) {
	var gotTaskID string
	svc := &mockCommentService{
		listFn: func(ctx context.Context, userID, taskID string) ([]model.CommentWithAuthor, error) {
			gotTaskID = taskID
			return []model.CommentWithAuthor{}, nil
		},
	}

	req := withUserID(httptest.NewRequest(http.MethodGet, "/api/comments?taskId=t1", nil), "user-1")
	w := httptest.NewRecorder()
	NewCommentHandler(svc).ListComments(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if gotTaskID != "t1" {
		t.Errorf("taskID = %q, want %q", gotTaskID, "t1")
	}
}

func TestCommentHandler_DeleteComment_NotAuthor_Returns403(t *testing.T) {
	svc := &mockCommentService{
		deleteFn: func(ctx context.Context, userID, commentID string) error {
			return model.NewInsufficientRoleError("author")
		},
	}

	req := withUserID(withChiURLParam(httptest.NewRequest(http.MethodDelete, "/api/comments/cm1", nil), "id", "cm1"), "user-2")
	w := httptest.NewRecorder()
	NewCommentHandler(svc).DeleteComment(w, req)

	if w.Code != http.StatusForbidden {
		t.Errorf("status = %d, want %d", w.Code, http.StatusForbidden)
	}
}
