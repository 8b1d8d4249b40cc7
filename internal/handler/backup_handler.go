package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/hitoshi/kanban/internal/backup"
)

// BackupVerifier はレプリケーション検証を実行する。
type BackupVerifier interface {
	Verify(ctx context.Context, userID string) (*backup.Result, error)
}

// BackupHandler はバックアップ検証のHTTPハンドラー。
type BackupHandler struct {
	verifier BackupVerifier
}

// NewBackupHandler はBackupHandlerを生成する。
func NewBackupHandler(verifier BackupVerifier) *BackupHandler {
	return &BackupHandler{verifier: verifier}
}

// backupFailureResponse は検証失敗時のレスポンス。
type backupFailureResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Details string `json:"details"`
}

// Verify はテストデータを書き込み、WALの送出とレプリカの受信状態を確認する。
// POST /api/backup-verify
func (h *BackupHandler) Verify(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	result, err := h.verifier.Verify(r.Context(), userID)
	if err != nil {
		slog.Error("backup verification failed",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
		writeJSON(w, http.StatusInternalServerError, backupFailureResponse{
			Success: false,
			Error:   "Backup verification failed",
			Details: err.Error(),
		})
		return
	}

	writeJSON(w, http.StatusOK, result)
}
