package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/samber/lo"

	"github.com/hitoshi/kanban/internal/board"
	"github.com/hitoshi/kanban/internal/model"
)

// BoardServiceInterface はカラム・タスクハンドラーが必要とするサービスインターフェース。
type BoardServiceInterface interface {
	GetBoard(ctx context.Context, userID, projectID string) ([]model.ColumnWithTasks, error)
	CreateColumn(ctx context.Context, userID string, in board.CreateColumnInput) (*model.Column, error)
	UpdateColumn(ctx context.Context, userID, columnID string, in board.UpdateColumnInput) (*model.Column, error)
	DeleteColumn(ctx context.Context, userID, columnID string) error
	ListTasks(ctx context.Context, userID, projectID string) ([]model.Task, error)
	CreateTask(ctx context.Context, userID string, in board.CreateTaskInput) (*model.Task, error)
	UpdateTask(ctx context.Context, userID, taskID string, in board.UpdateTaskInput) (*model.Task, error)
	DeleteTask(ctx context.Context, userID, taskID string) error
}

// BoardHandler はカラムとタスクのHTTPハンドラー。
type BoardHandler struct {
	service BoardServiceInterface
}

// NewBoardHandler はBoardHandlerを生成する。
func NewBoardHandler(service BoardServiceInterface) *BoardHandler {
	return &BoardHandler{service: service}
}

// ボードのクライアントはsnake_caseのキーも送ってくるため、両方を受け付ける。

type createColumnRequest struct {
	ProjectID      string `json:"projectId"`
	ProjectIDSnake string `json:"project_id"`
	Name           string `json:"name"`
	Position       *int   `json:"position"`
}

type updateColumnRequest struct {
	Name     *string `json:"name"`
	Position *int    `json:"position"`
}

type createTaskRequest struct {
	ProjectID       string  `json:"projectId"`
	ProjectIDSnake  string  `json:"project_id"`
	ColumnID        string  `json:"columnId"`
	ColumnIDSnake   string  `json:"column_id"`
	Title           string  `json:"title"`
	Description     *string `json:"description"`
	AssigneeID      *string `json:"assigneeId"`
	AssigneeIDSnake *string `json:"assignee_id"`
	Priority        string  `json:"priority"`
	DueDate         *string `json:"dueDate"`
	DueDateSnake    *string `json:"due_date"`
}

type updateTaskRequest struct {
	ColumnID        *string         `json:"columnId"`
	ColumnIDSnake   *string         `json:"column_id"`
	Title           *string         `json:"title"`
	Description     *string         `json:"description"`
	AssigneeID      *string         `json:"assigneeId"`
	AssigneeIDSnake *string         `json:"assignee_id"`
	Priority        *string         `json:"priority"`
	DueDate         json.RawMessage `json:"dueDate"`
	DueDateSnake    json.RawMessage `json:"due_date"`
	Completed       *bool           `json:"completed"`
}

// GetColumns はプロジェクトのカラムを、位置順のタスクをネストして返す。
// GET /api/columns?projectId=xxx
func (h *BoardHandler) GetColumns(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	columns, err := h.service.GetBoard(r.Context(), userID, queryParam(r, "projectId", "project_id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, lo.Map(columns, toColumnWithTasksResponse))
}

// CreateColumn はカラムを作成する。
// POST /api/columns
func (h *BoardHandler) CreateColumn(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	var req createColumnRequest
	if !decodeBody(w, r, &req) {
		return
	}

	column, err := h.service.CreateColumn(r.Context(), userID, board.CreateColumnInput{
		ProjectID: firstNonEmpty(req.ProjectID, req.ProjectIDSnake),
		Name:      req.Name,
		Position:  req.Position,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toColumnResponse(column))
}

// UpdateColumn はカラムの名前または位置を変更する。
// PATCH /api/columns/{id}
func (h *BoardHandler) UpdateColumn(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	var req updateColumnRequest
	if !decodeBody(w, r, &req) {
		return
	}

	column, err := h.service.UpdateColumn(r.Context(), userID, chi.URLParam(r, "id"), board.UpdateColumnInput{
		Name:     req.Name,
		Position: req.Position,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toColumnResponse(column))
}

// DeleteColumn はカラムを削除する。
// DELETE /api/columns/{id}
func (h *BoardHandler) DeleteColumn(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	if err := h.service.DeleteColumn(r.Context(), userID, chi.URLParam(r, "id")); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ListTasks はプロジェクトのタスクを返す。
// GET /api/tasks?projectId=xxx
func (h *BoardHandler) ListTasks(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	tasks, err := h.service.ListTasks(r.Context(), userID, queryParam(r, "projectId", "project_id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toTaskResponses(tasks))
}

// CreateTask はカラムの末尾にタスクを作成する。
// POST /api/tasks
func (h *BoardHandler) CreateTask(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	var req createTaskRequest
	if !decodeBody(w, r, &req) {
		return
	}

	var dueDate *time.Time
	if raw := firstNonNil(req.DueDate, req.DueDateSnake); raw != nil && strings.TrimSpace(*raw) != "" {
		parsed, err := parseDueDate(*raw)
		if err != nil {
			handleServiceError(w, err)
			return
		}
		dueDate = &parsed
	}

	task, err := h.service.CreateTask(r.Context(), userID, board.CreateTaskInput{
		ProjectID:   firstNonEmpty(req.ProjectID, req.ProjectIDSnake),
		ColumnID:    firstNonEmpty(req.ColumnID, req.ColumnIDSnake),
		Title:       req.Title,
		Description: req.Description,
		AssigneeID:  firstNonNil(req.AssigneeID, req.AssigneeIDSnake),
		Priority:    req.Priority,
		DueDate:     dueDate,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toTaskResponse(task))
}

// UpdateTask はタスクを更新する。columnIdが現在と異なる場合はカラム間の移動になる。
// PATCH /api/tasks/{id}
func (h *BoardHandler) UpdateTask(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	var req updateTaskRequest
	if !decodeBody(w, r, &req) {
		return
	}

	in := board.UpdateTaskInput{
		ColumnID:    firstNonNil(req.ColumnID, req.ColumnIDSnake),
		Title:       req.Title,
		Description: req.Description,
		AssigneeID:  firstNonNil(req.AssigneeID, req.AssigneeIDSnake),
		Priority:    req.Priority,
		Completed:   req.Completed,
	}

	// dueDateはnullまたは空文字で解除、省略時は変更しない
	rawDue := req.DueDate
	if len(rawDue) == 0 {
		rawDue = req.DueDateSnake
	}
	if len(rawDue) > 0 {
		var s *string
		if err := json.Unmarshal(rawDue, &s); err != nil {
			handleServiceError(w, model.NewValidationError("dueDate must be a string"))
			return
		}
		if s == nil || strings.TrimSpace(*s) == "" {
			in.ClearDueDate = true
		} else {
			parsed, err := parseDueDate(*s)
			if err != nil {
				handleServiceError(w, err)
				return
			}
			in.DueDate = &parsed
		}
	}

	task, err := h.service.UpdateTask(r.Context(), userID, chi.URLParam(r, "id"), in)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toTaskResponse(task))
}

// DeleteTask はタスクを削除する。
// DELETE /api/tasks/{id}
func (h *BoardHandler) DeleteTask(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	if err := h.service.DeleteTask(r.Context(), userID, chi.URLParam(r, "id")); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// parseDueDate はRFC3339または日付のみ（YYYY-MM-DD）の期日を解析する。
func parseDueDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{time.RFC3339Nano, time.DateOnly} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, model.NewValidationError("Invalid due date: " + s)
}
