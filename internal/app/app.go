package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os/signal"
	"syscall"
	"time"

	"github.com/imroc/req/v3"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/hitoshi/kanban/internal/access"
	"github.com/hitoshi/kanban/internal/auth"
	"github.com/hitoshi/kanban/internal/backup"
	"github.com/hitoshi/kanban/internal/board"
	"github.com/hitoshi/kanban/internal/cache"
	"github.com/hitoshi/kanban/internal/comment"
	"github.com/hitoshi/kanban/internal/config"
	"github.com/hitoshi/kanban/internal/database"
	"github.com/hitoshi/kanban/internal/handler"
	"github.com/hitoshi/kanban/internal/health"
	"github.com/hitoshi/kanban/internal/logger"
	"github.com/hitoshi/kanban/internal/metrics"
	"github.com/hitoshi/kanban/internal/middleware"
	"github.com/hitoshi/kanban/internal/project"
	"github.com/hitoshi/kanban/internal/repository"
	"github.com/hitoshi/kanban/internal/security"
	"github.com/hitoshi/kanban/internal/worker/cleanup"
)

const (
	dbPingTimeout   = 5 * time.Second
	shutdownTimeout = 30 * time.Second
)

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w)

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// 3. 設定に従ってログレベルを変更する
	logger.SetLevel(cfg.LogLevel)

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// argsにはos.Args[1:]を渡す。SIGINTまたはSIGTERMでコンテキストがキャンセルされる。
func Run(w io.Writer, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	root := NewRootCommand(w)
	root.SetArgs(args)
	return root.ExecuteContext(ctx)
}

// runWithConfig は設定を読み込んでからサブコマンドの処理を実行する。
func runWithConfig(cmd *cobra.Command, w io.Writer, name Command, run func(context.Context, *config.Config) error) error {
	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(name)),
		slog.String("port", cfg.ServerPort),
		slog.String("base_url", cfg.BaseURL),
	)

	return run(cmd.Context(), cfg)
}

// runServe はAPIサーバーモードで起動する。
// DB接続を開き、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// ctxがキャンセルされるとグレースフルシャットダウンを行う。
func runServe(ctx context.Context, cfg *config.Config) error {
	// 1. DB接続
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := database.Ping(ctx, db, dbPingTimeout); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	slog.Info("database connection established")

	// 2. Redis接続（参考用キャッシュのため、疎通できなくても起動は続ける）
	kv, err := cache.New(cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("failed to configure redis: %w", err)
	}
	defer kv.Close()

	if err := kv.Ping(ctx); err != nil {
		slog.Warn("redis is unreachable, continuing without cache",
			slog.String("error", err.Error()),
		)
	}

	// 3. メトリクス
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	collector := metrics.NewCollector(registry)

	// 4. リポジトリの初期化
	userRepo := repository.NewPostgresUserRepo(db)
	projectRepo := repository.NewPostgresProjectRepo(db)
	membershipRepo := repository.NewPostgresMembershipRepo(db)
	columnRepo := repository.NewPostgresColumnRepo(db)
	taskRepo := repository.NewPostgresTaskRepo(db)
	commentRepo := repository.NewPostgresCommentRepo(db)
	activityRepo := repository.NewPostgresActivityRepo(db)

	// 5. ドメインサービスの初期化
	sanitizer := security.NewContentSanitizer()
	gate := access.NewGate(membershipRepo)

	oidcProvider := auth.NewOIDCProvider(auth.OIDCConfig{
		IssuerURL:    cfg.OIDCIssuerURL,
		InternalURL:  cfg.OIDCInternalURL,
		ClientID:     cfg.OIDCClientID,
		ClientSecret: cfg.OIDCClientSecret,
		RedirectURL:  cfg.OIDCRedirectURL,
	})
	tokens := auth.NewTokenManager(cfg.JWTSecret, cfg.SessionTTL())
	authService := auth.NewService(oidcProvider, userRepo, tokens, cache.NewDenylist(kv))

	projectService := project.NewService(projectRepo, membershipRepo, activityRepo, gate, kv, sanitizer, collector)
	boardService := board.NewService(gate, columnRepo, taskRepo, activityRepo, sanitizer, collector)
	commentService := comment.NewService(commentRepo, taskRepo, activityRepo, gate, sanitizer)

	checker := health.NewChecker(db, kv, cfg.OIDCInternalURL, cfg.HealthProbeTimeout, collector)
	verifier := backup.NewVerifier(db, projectRepo, columnRepo, taskRepo, cfg.BackupWALWait, collector, slog.Default())

	// 6. ルーターの構築
	rateLimiter := middleware.NewRateLimiter(middleware.RateLimiterConfigPerMinute(cfg.RateLimitGeneral))
	defer rateLimiter.Stop()

	router := handler.NewRouter(&handler.RouterDeps{
		Authenticator:     authService,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimiter:       rateLimiter,
		Logger:            slog.Default(),
		Metrics:           collector,
		MetricsHandler:    metrics.Handler(registry),

		AuthService: authService,
		AuthConfig: handler.AuthHandlerConfig{
			CookieSecure:  cfg.CookieSecure,
			SessionMaxAge: cfg.SessionMaxAge,
		},

		ProjectService: projectService,
		BoardService:   boardService,
		CommentService: commentService,

		HealthChecker:  checker,
		BackupVerifier: verifier,
	})

	// 7. HTTPサーバーの起動
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		slog.Info("API server starting", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server listen error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}
	slog.Info("shutting down API server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// runWorker はワーカーモードで起動する。
// バックアップ検証が残した一時プロジェクトをcronスケジュールで削除する。
// ctxがキャンセルされるとシャットダウンする。
func runWorker(ctx context.Context, cfg *config.Config) error {
	// 1. DB接続
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := database.Ping(ctx, db, dbPingTimeout); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	slog.Info("database connection established (worker)")

	// 2. クリーンアップジョブの初期化
	job := cleanup.NewCleanupJob(repository.NewPostgresProjectRepo(db), backup.TestProjectPrefix, backup.TestProjectColor, slog.Default())
	job.MaxAge = cfg.BackupSweepMaxAge

	slog.Info("worker starting",
		slog.String("schedule", cfg.BackupSweepSchedule),
		slog.Duration("max_age", cfg.BackupSweepMaxAge),
	)

	// 3. ctxがキャンセルされるまでブロック
	if err := job.Schedule(ctx, cfg.BackupSweepSchedule); err != nil {
		return err
	}

	slog.Info("worker stopped gracefully")
	return nil
}

// migrateOptions はmigrateサブコマンドのフラグ。
type migrateOptions struct {
	rollback int
	status   bool
}

// run はデータベースマイグレーションを実行する。
// フラグがなければすべての未適用マイグレーションを順番に適用する。
func (o *migrateOptions) run(_ context.Context, cfg *config.Config) error {
	masked := maskDatabaseURL(cfg.DatabaseURL)

	switch {
	case o.status:
		version, dirty, err := database.MigrationVersion(cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("failed to read migration version: %w", err)
		}
		slog.Info("migration status",
			slog.String("database_url", masked),
			slog.Uint64("version", uint64(version)),
			slog.Bool("dirty", dirty),
		)
		return nil

	case o.rollback > 0:
		slog.Info("rolling back database migrations",
			slog.String("database_url", masked),
			slog.Int("steps", o.rollback),
		)
		if err := database.RollbackMigrations(cfg.DatabaseURL, o.rollback); err != nil {
			return fmt.Errorf("rollback failed: %w", err)
		}
		slog.Info("database rollback completed successfully")
		return nil
	}

	slog.Info("running database migrations", slog.String("database_url", masked))
	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully")
	return nil
}

func healthcheckURL(port string) string {
	return fmt.Sprintf("http://localhost:%s/api/health", port)
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /api/health は依存サービスが異常でも200を返すため、プロセスの生存確認として使う。
func runHealthcheck(ctx context.Context, target string) error {
	if ctx == nil {
		ctx = context.Background()
	}

	resp, err := req.C().
		SetTimeout(5 * time.Second).
		R().
		SetContext(ctx).
		Get(target)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// maskDatabaseURL はデータベースURLのパスワードをマスクする。
func maskDatabaseURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "***"
	}
	if _, hasPassword := u.User.Password(); hasPassword {
		u.User = url.UserPassword(u.User.Username(), "xxxxx")
	}
	return u.String()
}
