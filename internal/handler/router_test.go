package handler

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hitoshi/kanban/internal/backup"
	"github.com/hitoshi/kanban/internal/health"
	"github.com/hitoshi/kanban/internal/middleware"
	"github.com/hitoshi/kanban/internal/model"
	"github.com/hitoshi/kanban/internal/project"
)

// stubAuthenticator は"valid-token"だけを受け付ける。
type stubAuthenticator struct{}

func (stubAuthenticator) Authenticate(ctx context.Context, token string) (*model.Session, error) {
	if token == "valid-token" {
		return &model.Session{UserID: "user-1", Email: "alice@example.com"}, nil
	}
	return nil, errors.New("invalid token")
}

func createTestRouter(t *testing.T, projects *mockProjectService) http.Handler {
	t.Helper()
	rl := middleware.NewRateLimiter(middleware.DefaultRateLimiterConfig())
	t.Cleanup(rl.Stop)

	return NewRouter(&RouterDeps{
		Authenticator:  stubAuthenticator{},
		RateLimiter:    rl,
		Logger:         slog.New(slog.NewJSONHandler(io.Discard, nil)),
		MetricsHandler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { io.WriteString(w, "# metrics\n") }),
		AuthService:    &mockAuthService{},
		AuthConfig:     AuthHandlerConfig{SessionMaxAge: 604800},
		ProjectService: projects,
		BoardService:   &mockBoardService{},
		CommentService: &mockCommentService{},
		HealthChecker:  &mockHealthChecker{report: &health.Report{Status: health.StatusHealthy}},
		BackupVerifier: &mockBackupVerifier{verifyFn: func(ctx context.Context, userID string) (*backup.Result, error) {
			return &backup.Result{Success: true}, nil
		}},
	})
}

func serve(router http.Handler, method, path, token string, body io.Reader) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, body)
	if token != "" {
		req.AddCookie(&http.Cookie{Name: middleware.SessionCookieName, Value: token})
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestNewRouter_PublicRoutes_NoAuthRequired(t *testing.T) {
	router := createTestRouter(t, &mockProjectService{})

	tests := []struct {
		path string
		want int
	}{
		{"/login", http.StatusOK},
		{"/api/auth/login", http.StatusFound},
		{"/api/auth/callback", http.StatusFound},
		{"/api/health", http.StatusOK},
		{"/metrics", http.StatusOK},
	}
	for _, tt := range tests {
		if w := serve(router, http.MethodGet, tt.path, "", nil); w.Code != tt.want {
			t.Errorf("GET %s status = %d, want %d", tt.path, w.Code, tt.want)
		}
	}
}

func TestNewRouter_ProtectedAPI_NoSession_Returns401JSON(t *testing.T) {
	router := createTestRouter(t, &mockProjectService{})

	paths := []struct{ method, path string }{
		{http.MethodGet, "/api/auth/me"},
		{http.MethodGet, "/api/projects"},
		{http.MethodPost, "/api/projects"},
		{http.MethodPatch, "/api/projects/p1"},
		{http.MethodGet, "/api/columns?projectId=p1"},
		{http.MethodPost, "/api/tasks"},
		{http.MethodDelete, "/api/tasks/t1"},
		{http.MethodGet, "/api/comments?taskId=t1"},
		{http.MethodPost, "/api/backup-verify"},
	}
	for _, p := range paths {
		w := serve(router, p.method, p.path, "expired-token", nil)
		if w.Code != http.StatusUnauthorized {
			t.Errorf("%s %s status = %d, want %d", p.method, p.path, w.Code, http.StatusUnauthorized)
			continue
		}
		if body := parseAPIErrorResponse(t, w); body["error"] != "Unauthorized" {
			t.Errorf("%s %s error = %q, want %q", p.method, p.path, body["error"], "Unauthorized")
		}
	}
}

func TestNewRouter_IndexPage_NoSession_RedirectsToLogin(t *testing.T) {
	router := createTestRouter(t, &mockProjectService{})

	w := serve(router, http.MethodGet, "/", "", nil)

	if w.Code != http.StatusFound {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusFound)
	}
	if loc := w.Header().Get("Location"); loc != "/login" {
		t.Errorf("Location = %q, want %q", loc, "/login")
	}
}

func TestNewRouter_CreateProject_WithSession_Returns201(t *testing.T) {
	var gotUserID string
	projects := &mockProjectService{
		createFn: func(ctx context.Context, userID string, in project.CreateInput) (*model.Project, error) {
			gotUserID = userID
			return &model.Project{ID: "p1", Name: in.Name, CreatedBy: userID}, nil
		},
	}
	router := createTestRouter(t, projects)

	w := serve(router, http.MethodPost, "/api/projects", "valid-token", bytes.NewBufferString(`{"name":"Launch"}`))

	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want %d: %s", w.Code, http.StatusCreated, w.Body.String())
	}
	if gotUserID != "user-1" {
		t.Errorf("userID = %q, want %q", gotUserID, "user-1")
	}
	if w.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Error("security headers should be applied")
	}
}

func TestNewRouter_ProjectSubroutes(t *testing.T) {
	var gotProjectID string
	projects := &mockProjectService{
		listMembersFn: func(ctx context.Context, userID, projectID string) ([]model.MemberWithUser, error) {
			gotProjectID = projectID
			return nil, nil
		},
	}
	router := createTestRouter(t, projects)

	w := serve(router, http.MethodGet, "/api/projects/p42/members", "valid-token", nil)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if gotProjectID != "p42" {
		t.Errorf("projectID = %q, want %q", gotProjectID, "p42")
	}
}
