package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/samber/lo"

	"github.com/hitoshi/kanban/internal/middleware"
	"github.com/hitoshi/kanban/internal/model"
)

// --- レスポンス型 ---

type projectResponse struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Description *string    `json:"description"`
	Color       string     `json:"color"`
	Icon        *string    `json:"icon"`
	Visibility  string     `json:"visibility"`
	CreatedBy   string     `json:"createdBy"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
	ArchivedAt  *time.Time `json:"archivedAt"`
}

type projectWithRoleResponse struct {
	Project projectResponse `json:"project"`
	Role    string          `json:"role"`
}

type columnResponse struct {
	ID        string    `json:"id"`
	ProjectID string    `json:"projectId"`
	Name      string    `json:"name"`
	Position  int       `json:"position"`
	CreatedAt time.Time `json:"createdAt"`
}

// columnWithTasksResponse はボード表示用のカラム。tasksは位置順に並ぶ。
type columnWithTasksResponse struct {
	columnResponse
	Tasks []taskResponse `json:"tasks"`
}

type taskResponse struct {
	ID          string     `json:"id"`
	ProjectID   string     `json:"projectId"`
	ColumnID    string     `json:"columnId"`
	Title       string     `json:"title"`
	Description *string    `json:"description"`
	Position    int        `json:"position"`
	AssigneeID  *string    `json:"assigneeId"`
	Priority    string     `json:"priority"`
	DueDate     *time.Time `json:"dueDate"`
	CreatedBy   string     `json:"createdBy"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
	CompletedAt *time.Time `json:"completedAt"`
}

type userSummaryResponse struct {
	ID        string  `json:"id"`
	Name      string  `json:"name"`
	Email     string  `json:"email"`
	AvatarURL *string `json:"avatarUrl"`
}

type commentBody struct {
	ID        string    `json:"id"`
	TaskID    string    `json:"taskId"`
	UserID    string    `json:"userId"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type commentResponse struct {
	Comment commentBody         `json:"comment"`
	User    userSummaryResponse `json:"user"`
}

type memberResponse struct {
	ID        string              `json:"id"`
	ProjectID string              `json:"projectId"`
	UserID    string              `json:"userId"`
	Role      string              `json:"role"`
	JoinedAt  time.Time           `json:"joinedAt"`
	User      userSummaryResponse `json:"user"`
}

type activityResponse struct {
	ID        string          `json:"id"`
	ProjectID *string         `json:"projectId"`
	TaskID    *string         `json:"taskId"`
	UserID    string          `json:"userId"`
	Action    string          `json:"action"`
	Details   json.RawMessage `json:"details"`
	CreatedAt time.Time       `json:"createdAt"`
}

// --- 変換 ---

func toProjectResponse(p *model.Project) projectResponse {
	return projectResponse{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		Color:       p.Color,
		Icon:        p.Icon,
		Visibility:  string(p.Visibility),
		CreatedBy:   p.CreatedBy,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
		ArchivedAt:  p.ArchivedAt,
	}
}

func toProjectWithRoleResponse(p model.ProjectWithRole, _ int) projectWithRoleResponse {
	return projectWithRoleResponse{
		Project: toProjectResponse(&p.Project),
		Role:    string(p.Role),
	}
}

func toColumnResponse(c *model.Column) columnResponse {
	return columnResponse{
		ID:        c.ID,
		ProjectID: c.ProjectID,
		Name:      c.Name,
		Position:  c.Position,
		CreatedAt: c.CreatedAt,
	}
}

func toColumnWithTasksResponse(c model.ColumnWithTasks, _ int) columnWithTasksResponse {
	return columnWithTasksResponse{
		columnResponse: toColumnResponse(&c.Column),
		Tasks:          toTaskResponses(c.Tasks),
	}
}

func toTaskResponse(t *model.Task) taskResponse {
	return taskResponse{
		ID:          t.ID,
		ProjectID:   t.ProjectID,
		ColumnID:    t.ColumnID,
		Title:       t.Title,
		Description: t.Description,
		Position:    t.Position,
		AssigneeID:  t.AssigneeID,
		Priority:    string(t.Priority),
		DueDate:     t.DueDate,
		CreatedBy:   t.CreatedBy,
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
		CompletedAt: t.CompletedAt,
	}
}

func toTaskResponses(tasks []model.Task) []taskResponse {
	return lo.Map(tasks, func(t model.Task, _ int) taskResponse {
		return toTaskResponse(&t)
	})
}

func toUserSummaryResponse(u model.UserSummary) userSummaryResponse {
	return userSummaryResponse{
		ID:        u.ID,
		Name:      u.Name,
		Email:     u.Email,
		AvatarURL: u.AvatarURL,
	}
}

func toCommentResponse(c model.CommentWithAuthor, _ int) commentResponse {
	return commentResponse{
		Comment: commentBody{
			ID:        c.Comment.ID,
			TaskID:    c.Comment.TaskID,
			UserID:    c.Comment.UserID,
			Content:   c.Comment.Content,
			CreatedAt: c.Comment.CreatedAt,
			UpdatedAt: c.Comment.UpdatedAt,
		},
		User: toUserSummaryResponse(c.User),
	}
}

func toMemberResponse(m model.MemberWithUser, _ int) memberResponse {
	return memberResponse{
		ID:        m.ID,
		ProjectID: m.ProjectID,
		UserID:    m.UserID,
		Role:      string(m.Role),
		JoinedAt:  m.JoinedAt,
		User:      toUserSummaryResponse(m.User),
	}
}

func toActivityResponse(a model.ActivityLog, _ int) activityResponse {
	return activityResponse{
		ID:        a.ID,
		ProjectID: a.ProjectID,
		TaskID:    a.TaskID,
		UserID:    a.UserID,
		Action:    a.Action,
		Details:   a.Details,
		CreatedAt: a.CreatedAt,
	}
}

// --- ヘルパー関数 ---

// writeJSON はJSONレスポンスを書き込む。
func writeJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", slog.String("error", err.Error()))
	}
}

// handleServiceError はサービス層から返されたエラーを適切なHTTPステータスコードに変換する。
func handleServiceError(w http.ResponseWriter, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		middleware.WriteErrorResponse(w, middleware.StatusForCode(apiErr.Code), apiErr)
		return
	}

	// APIError以外のエラーは内部サーバーエラーとして扱う
	slog.Error("internal server error", slog.String("error", err.Error()))
	middleware.WriteInternalServerError(w)
}

// requireUserID はセッションミドルウェアが注入したユーザーIDを返す。
// 取得できない場合は401を書き込んでfalseを返す。
func requireUserID(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthenticatedError())
		return "", false
	}
	return userID, true
}

// decodeBody はJSONボディを読み込む。失敗時は400を書き込んでfalseを返す。
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError())
		return false
	}
	return true
}

// queryParam はcamelCaseとsnake_caseのどちらで渡されたクエリパラメータも受け付ける。
func queryParam(r *http.Request, names ...string) string {
	q := r.URL.Query()
	for _, name := range names {
		if v := strings.TrimSpace(q.Get(name)); v != "" {
			return v
		}
	}
	return ""
}

// firstNonEmpty は最初の空でない値を返す。
func firstNonEmpty(values ...string) string {
	v, _ := lo.Find(values, func(s string) bool { return s != "" })
	return v
}

// firstNonNil は最初のnilでないポインタを返す。
func firstNonNil[T any](values ...*T) *T {
	v, _ := lo.Find(values, func(p *T) bool { return p != nil })
	return v
}
