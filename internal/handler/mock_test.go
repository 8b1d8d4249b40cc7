package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/kanban/internal/auth"
	"github.com/hitoshi/kanban/internal/backup"
	"github.com/hitoshi/kanban/internal/board"
	"github.com/hitoshi/kanban/internal/health"
	"github.com/hitoshi/kanban/internal/middleware"
	"github.com/hitoshi/kanban/internal/model"
	"github.com/hitoshi/kanban/internal/project"
)

// --- モック定義 ---

type mockAuthService struct {
	getLoginURLFn    func(state string) string
	handleCallbackFn func(ctx context.Context, code string) (*auth.LoginResult, error)
	logoutFn         func(ctx context.Context, token string)
	currentUserFn    func(ctx context.Context, userID string) (*model.User, error)
}

func (m *mockAuthService) GetLoginURL(state string) string {
	if m.getLoginURLFn != nil {
		return m.getLoginURLFn(state)
	}
	return "http://idp.example.com/authorize?state=" + state
}

func (m *mockAuthService) HandleCallback(ctx context.Context, code string) (*auth.LoginResult, error) {
	if m.handleCallbackFn != nil {
		return m.handleCallbackFn(ctx, code)
	}
	return nil, nil
}

func (m *mockAuthService) Logout(ctx context.Context, token string) {
	if m.logoutFn != nil {
		m.logoutFn(ctx, token)
	}
}

func (m *mockAuthService) CurrentUser(ctx context.Context, userID string) (*model.User, error) {
	if m.currentUserFn != nil {
		return m.currentUserFn(ctx, userID)
	}
	return nil, nil
}

type mockProjectService struct {
	listFn         func(ctx context.Context, userID string) ([]model.ProjectWithRole, error)
	createFn       func(ctx context.Context, userID string, in project.CreateInput) (*model.Project, error)
	getFn          func(ctx context.Context, userID, projectID string) (*model.ProjectWithRole, error)
	updateFn       func(ctx context.Context, userID, projectID string, in project.UpdateInput) (*model.Project, error)
	deleteFn       func(ctx context.Context, userID, projectID string) error
	listMembersFn  func(ctx context.Context, userID, projectID string) ([]model.MemberWithUser, error)
	listActivityFn func(ctx context.Context, userID, projectID string, limit int) ([]model.ActivityLog, error)
}

func (m *mockProjectService) List(ctx context.Context, userID string) ([]model.ProjectWithRole, error) {
	if m.listFn != nil {
		return m.listFn(ctx, userID)
	}
	return nil, nil
}

func (m *mockProjectService) Create(ctx context.Context, userID string, in project.CreateInput) (*model.Project, error) {
	if m.createFn != nil {
		return m.createFn(ctx, userID, in)
	}
	return nil, nil
}

func (m *mockProjectService) Get(ctx context.Context, userID, projectID string) (*model.ProjectWithRole, error) {
	if m.getFn != nil {
		return m.getFn(ctx, userID, projectID)
	}
	return nil, nil
}

func (m *mockProjectService) Update(ctx context.Context, userID, projectID string, in project.UpdateInput) (*model.Project, error) {
	if m.updateFn != nil {
		return m.updateFn(ctx, userID, projectID, in)
	}
	return nil, nil
}

func (m *mockProjectService) Delete(ctx context.Context, userID, projectID string) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, userID, projectID)
	}
	return nil
}

func (m *mockProjectService) ListMembers(ctx context.Context, userID, projectID string) ([]model.MemberWithUser, error) {
	if m.listMembersFn != nil {
		return m.listMembersFn(ctx, userID, projectID)
	}
	return nil, nil
}

func (m *mockProjectService) ListActivity(ctx context.Context, userID, projectID string, limit int) ([]model.ActivityLog, error) {
	if m.listActivityFn != nil {
		return m.listActivityFn(ctx, userID, projectID, limit)
	}
	return nil, nil
}

type mockBoardService struct {
	getBoardFn     func(ctx context.Context, userID, projectID string) ([]model.ColumnWithTasks, error)
	createColumnFn func(ctx context.Context, userID string, in board.CreateColumnInput) (*model.Column, error)
	updateColumnFn func(ctx context.Context, userID, columnID string, in board.UpdateColumnInput) (*model.Column, error)
	deleteColumnFn func(ctx context.Context, userID, columnID string) error
	listTasksFn    func(ctx context.Context, userID, projectID string) ([]model.Task, error)
	createTaskFn   func(ctx context.Context, userID string, in board.CreateTaskInput) (*model.Task, error)
	updateTaskFn   func(ctx context.Context, userID, taskID string, in board.UpdateTaskInput) (*model.Task, error)
	deleteTaskFn   func(ctx context.Context, userID, taskID string) error
}

func (m *mockBoardService) GetBoard(ctx context.Context, userID, projectID string) ([]model.ColumnWithTasks, error) {
	if m.getBoardFn != nil {
		return m.getBoardFn(ctx, userID, projectID)
	}
	return nil, nil
}

func (m *mockBoardService) CreateColumn(ctx context.Context, userID string, in board.CreateColumnInput) (*model.Column, error) {
	if m.createColumnFn != nil {
		return m.createColumnFn(ctx, userID, in)
	}
	return nil, nil
}

func (m *mockBoardService) UpdateColumn(ctx context.Context, userID, columnID string, in board.UpdateColumnInput) (*model.Column, error) {
	if m.updateColumnFn != nil {
		return m.updateColumnFn(ctx, userID, columnID, in)
	}
	return nil, nil
}

func (m *mockBoardService) DeleteColumn(ctx context.Context, userID, columnID string) error {
	if m.deleteColumnFn != nil {
		return m.deleteColumnFn(ctx, userID, columnID)
	}
	return nil
}

func (m *mockBoardService) ListTasks(ctx context.Context, userID, projectID string) ([]model.Task, error) {
	if m.listTasksFn != nil {
		return m.listTasksFn(ctx, userID, projectID)
	}
	return nil, nil
}

func (m *mockBoardService) CreateTask(ctx context.Context, userID string, in board.CreateTaskInput) (*model.Task, error) {
	if m.createTaskFn != nil {
		return m.createTaskFn(ctx, userID, in)
	}
	return nil, nil
}

func (m *mockBoardService) UpdateTask(ctx context.Context, userID, taskID string, in board.UpdateTaskInput) (*model.Task, error) {
	if m.updateTaskFn != nil {
		return m.updateTaskFn(ctx, userID, taskID, in)
	}
	return nil, nil
}

func (m *mockBoardService) DeleteTask(ctx context.Context, userID, taskID string) error {
	if m.deleteTaskFn != nil {
		return m.deleteTaskFn(ctx, userID, taskID)
	}
	return nil
}

type mockCommentService struct {
	listFn   func(ctx context.Context, userID, taskID string) ([]model.CommentWithAuthor, error)
	createFn func(ctx context.Context, userID, taskID, content string) (*model.CommentWithAuthor, error)
	deleteFn func(ctx context.Context, userID, commentID string) error
}

func (m *mockCommentService) List(ctx context.Context, userID, taskID string) ([]model.CommentWithAuthor, error) {
	if m.listFn != nil {
		return m.listFn(ctx, userID, taskID)
	}
	return nil, nil
}

func (m *mockCommentService) Create(ctx context.Context, userID, taskID, content string) (*model.CommentWithAuthor, error) {
	if m.createFn != nil {
		return m.createFn(ctx, userID, taskID, content)
	}
	return nil, nil
}

func (m *mockCommentService) Delete(ctx context.Context, userID, commentID string) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, userID, commentID)
	}
	return nil
}

type mockHealthChecker struct {
	report *health.Report
}

func (m *mockHealthChecker) Check(ctx context.Context) *health.Report {
	return m.report
}

type mockBackupVerifier struct {
	verifyFn func(ctx context.Context, userID string) (*backup.Result, error)
}

func (m *mockBackupVerifier) Verify(ctx context.Context, userID string) (*backup.Result, error) {
	return m.verifyFn(ctx, userID)
}

// --- テストヘルパー ---

// withUserID はテスト用にリクエストコンテキストにユーザーIDを注入するヘルパー。
func withUserID(r *http.Request, userID string) *http.Request {
	return r.WithContext(middleware.ContextWithUserID(r.Context(), userID))
}

// withChiURLParam はテスト用にchiのURLパラメータを注入するヘルパー。
func withChiURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// parseAPIErrorResponse はレスポンスボディからエラーレスポンスをパースするヘルパー。
func parseAPIErrorResponse(t *testing.T, w *httptest.ResponseRecorder) map[string]string {
	t.Helper()
	var result map[string]string
	if err := json.NewDecoder(w.Body).Decode(&result); err != nil {
		t.Fatalf("failed to decode error response: %v", err)
	}
	return result
}

// decodeJSON はレスポンスボディを任意の型にデコードするヘルパー。
func decodeJSON[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(w.Body).Decode(&v); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	return v
}

func strPtr(s string) *string { return &s }
