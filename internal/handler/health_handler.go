package handler

import (
	"context"
	"net/http"

	"github.com/hitoshi/kanban/internal/health"
)

// HealthChecker は依存サービスの状態を調べる。
type HealthChecker interface {
	Check(ctx context.Context) *health.Report
}

// HealthHandler はヘルスチェックのHTTPハンドラー。
type HealthHandler struct {
	checker HealthChecker
}

// NewHealthHandler はHealthHandlerを生成する。
func NewHealthHandler(checker HealthChecker) *HealthHandler {
	return &HealthHandler{checker: checker}
}

// Check は依存サービスの状態を返す。
// GET /api/health
//
// いずれかが異常でもステータスコードは200で、状態はボディのstatusで表す。
func (h *HealthHandler) Check(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.checker.Check(r.Context()))
}
