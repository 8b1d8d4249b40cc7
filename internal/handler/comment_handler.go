package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/samber/lo"

	"github.com/hitoshi/kanban/internal/model"
)

// CommentServiceInterface はコメントハンドラーが必要とするサービスインターフェース。
type CommentServiceInterface interface {
	List(ctx context.Context, userID, taskID string) ([]model.CommentWithAuthor, error)
	Create(ctx context.Context, userID, taskID, content string) (*model.CommentWithAuthor, error)
	Delete(ctx context.Context, userID, commentID string) error
}

// CommentHandler はタスクコメントのHTTPハンドラー。
type CommentHandler struct {
	service CommentServiceInterface
}

// NewCommentHandler はCommentHandlerを生成する。
func NewCommentHandler(service CommentServiceInterface) *CommentHandler {
	return &CommentHandler{service: service}
}

type createCommentRequest struct {
	TaskID      string `json:"taskId"`
	TaskIDSnake string `json:"task_id"`
	Content     string `json:"content"`
}

// ListComments はタスクのコメントを作成者付きで返す。
// GET /api/comments?taskId=xxx
func (h *CommentHandler) ListComments(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	comments, err := h.service.List(r.Context(), userID, queryParam(r, "taskId", "task_id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, lo.Map(comments, toCommentResponse))
}

// CreateComment はタスクにコメントを投稿する。
// POST /api/comments
func (h *CommentHandler) CreateComment(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	var req createCommentRequest
	if !decodeBody(w, r, &req) {
		return
	}

	comment, err := h.service.Create(r.Context(), userID, firstNonEmpty(req.TaskID, req.TaskIDSnake), req.Content)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toCommentResponse(*comment, 0))
}

// DeleteComment は自分のコメントを削除する。
// DELETE /api/comments/{id}
func (h *CommentHandler) DeleteComment(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	if err := h.service.Delete(r.Context(), userID, chi.URLParam(r, "id")); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
