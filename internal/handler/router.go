package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/kanban/internal/metrics"
	"github.com/hitoshi/kanban/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	Authenticator     middleware.Authenticator
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	Logger            *slog.Logger
	Metrics           metrics.Recorder
	MetricsHandler    http.Handler

	// 認証
	AuthService AuthServiceInterface
	AuthConfig  AuthHandlerConfig

	// ドメイン
	ProjectService ProjectServiceInterface
	BoardService   BoardServiceInterface
	CommentService CommentServiceInterface

	// 運用
	HealthChecker  HealthChecker
	BackupVerifier BackupVerifier
}

// NewRouter は全エンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → Logging → SecurityHeaders → CORS → Session → RateLimit
//
// ログイン、OIDCコールバック、ヘルスチェック、メトリクスはSession以降の外に配置する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewLoggingMiddleware(logger, deps.Metrics))
	r.Use(middleware.NewSecurityHeadersMiddleware(deps.AuthConfig.CookieSecure))
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))

	authHandler := NewAuthHandler(deps.AuthService, deps.AuthConfig)
	projectHandler := NewProjectHandler(deps.ProjectService)
	boardHandler := NewBoardHandler(deps.BoardService)
	commentHandler := NewCommentHandler(deps.CommentService)
	healthHandler := NewHealthHandler(deps.HealthChecker)
	backupHandler := NewBackupHandler(deps.BackupVerifier)
	pageHandler := NewPageHandler(deps.ProjectService)

	// --- 認証不要のルート ---

	r.Get(middleware.LoginPath, pageHandler.Login)
	r.Get("/api/auth/login", authHandler.Login)
	r.Get("/api/auth/callback", authHandler.Callback)
	r.Get("/api/health", healthHandler.Check)
	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}

	// --- 認証が必要なページ ---
	// 未認証の場合は/loginへリダイレクトする
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewPageSessionMiddleware(deps.Authenticator))
		r.Get("/", pageHandler.Index)
	})

	// --- 認証が必要なAPI ---
	// ミドルウェアスタック: Session → RateLimit
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewSessionMiddleware(deps.Authenticator))
		if deps.RateLimiter != nil {
			r.Use(deps.RateLimiter.Middleware())
		}

		r.Post("/api/auth/logout", authHandler.Logout)
		r.Get("/api/auth/me", authHandler.Me)

		// プロジェクト
		r.Route("/api/projects", func(r chi.Router) {
			r.Get("/", projectHandler.ListProjects)
			r.Post("/", projectHandler.CreateProject)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", projectHandler.GetProject)
				r.Patch("/", projectHandler.UpdateProject)
				r.Delete("/", projectHandler.DeleteProject)
				r.Get("/members", projectHandler.ListMembers)
				r.Get("/activity", projectHandler.ListActivity)
			})
		})

		// カラム
		r.Route("/api/columns", func(r chi.Router) {
			r.Get("/", boardHandler.GetColumns)
			r.Post("/", boardHandler.CreateColumn)
			r.Patch("/{id}", boardHandler.UpdateColumn)
			r.Delete("/{id}", boardHandler.DeleteColumn)
		})

		// タスク
		r.Route("/api/tasks", func(r chi.Router) {
			r.Get("/", boardHandler.ListTasks)
			r.Post("/", boardHandler.CreateTask)
			r.Patch("/{id}", boardHandler.UpdateTask)
			r.Delete("/{id}", boardHandler.DeleteTask)
		})

		// コメント
		r.Route("/api/comments", func(r chi.Router) {
			r.Get("/", commentHandler.ListComments)
			r.Post("/", commentHandler.CreateComment)
			r.Delete("/{id}", commentHandler.DeleteComment)
		})

		r.Post("/api/backup-verify", backupHandler.Verify)
	})

	return r
}
