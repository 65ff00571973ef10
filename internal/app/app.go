package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/coursecrm/internal/auth"
	"github.com/hitoshi/coursecrm/internal/config"
	"github.com/hitoshi/coursecrm/internal/course"
	"github.com/hitoshi/coursecrm/internal/database"
	"github.com/hitoshi/coursecrm/internal/handler"
	"github.com/hitoshi/coursecrm/internal/logger"
	"github.com/hitoshi/coursecrm/internal/metrics"
	"github.com/hitoshi/coursecrm/internal/middleware"
	"github.com/hitoshi/coursecrm/internal/repository"
	"github.com/hitoshi/coursecrm/internal/security"
	"github.com/hitoshi/coursecrm/internal/session"
	"github.com/hitoshi/coursecrm/internal/user"
)

// Init はアプリケーションの初期化を行う。
// .envと環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w)

	// 2. .envで未設定の環境変数を補完する
	if err := config.LoadDotEnv(); err != nil {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	// 3. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// 4. LOG_LEVELを反映する
	logger.SetupDefaultWithLevel(w, logger.ParseLevel(cfg.LogLevel))

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd, ok := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	if !ok {
		slog.Warn("unknown command, falling back to serve", slog.String("arg", args[0]))
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("mode", cmd.Description()),
		slog.String("port", cfg.ServerPort),
		slog.String("base_url", cfg.BaseURL),
		slog.String("session_backend", cfg.SessionBackend),
		slog.Bool("kafka_enabled", cfg.KafkaEnabled),
	)

	switch cmd {
	case CommandWorker:
		return runWorker(cfg)
	case CommandMigrate:
		return runMigrate(cfg)
	default:
		return runServe(cfg)
	}
}

// runServe はAPIサーバーモードで起動する。
// DB接続を開き、全依存関係をワイヤリングし、HTTPサーバー・イベント購読者・
// セッション削除ジョブを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	// 1. DB接続
	db, err := openDatabase(context.Background(), cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	// 2. メトリクス
	reg, mc := newMetrics()

	// 3. リポジトリとセッションストアの初期化
	userRepo := repository.NewPostgresUserRepo(db)
	courseRepo := repository.NewPostgresCourseRepo(db)

	sessions, closeSessions, sweep, err := newSessionStore(cfg, db)
	if err != nil {
		return err
	}
	defer closeSessions()

	// 4. イベント送信（プロデューサはプロセスで1つ）
	publisher, closePublisher := newPublisher(cfg, mc)
	defer closePublisher()

	// 5. ドメインサービスの初期化
	hasher := auth.NewPasswordHasher(cfg.PasswordHashCost)
	authService := auth.NewService(userRepo, sessions, hasher, publisher, mc, auth.ServiceConfig{
		SessionMaxAge:   cfg.SessionMaxAge,
		UserEventsTopic: cfg.KafkaTopicUserEvents,
	})
	userService := user.NewService(userRepo, sessions, hasher, publisher, cfg.KafkaTopicUserEvents)
	courseService := course.NewService(courseRepo, security.NewCourseSanitizer(), publisher, cfg.KafkaTopicCourseEvents)

	// 6. ルーターの構築（RATE_LIMIT_* はreq/min単位）
	rateLimiter := middleware.NewRateLimiter(middleware.NewRateLimiterConfig(cfg.RateLimitGeneral, cfg.RateLimitLogin))
	defer rateLimiter.Stop()

	router := handler.NewRouter(&handler.RouterDeps{
		Logger:             slog.Default(),
		Metrics:            mc,
		SessionResolver:    authService,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		RateLimiter:        rateLimiter,

		HealthChecker:  db,
		MetricsHandler: metrics.Handler(reg),

		AuthService: authService,
		AuthConfig: handler.AuthHandlerConfig{
			CookieDomain:  cfg.CookieDomain,
			CookieSecure:  cfg.CookieSecure,
			SessionMaxAge: cfg.SessionMaxAge,
		},
		UserService:   userService,
		CourseService: courseService,
	})

	// 7. バックグラウンド処理の起動
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wg sync.WaitGroup
	startBackground(ctx, &wg, cfg, sessions, sweep, mc)

	// 8. HTTPサーバーの起動
	server := newHTTPServer(cfg.ServerPort, router)
	if err := serveUntilSignal(server); err != nil {
		return err
	}

	// 購読者を止めてからプロデューサを閉じる
	cancel()
	wg.Wait()

	slog.Info("API server stopped gracefully")
	return nil
}

// runWorker はワーカーモードで起動する。
// イベント購読者とセッション削除ジョブのみを動かし、/metrics と /ping を公開する。
// SIGINTまたはSIGTERMシグナルを受信するとシャットダウンする。
func runWorker(cfg *config.Config) error {
	// メモリストアはプロセス内にしか存在せず、RedisはTTLで失効するため、
	// ワーカーが掃除するのはPostgreSQLのセッションのみ
	var store session.Store
	if cfg.SessionBackend == config.SessionBackendPostgres {
		db, err := openDatabase(context.Background(), cfg)
		if err != nil {
			return err
		}
		defer db.Close()
		store = repository.NewPostgresSessionRepo(db)
	}
	sweepInWorker := store != nil

	reg, mc := newMetrics()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wg sync.WaitGroup
	startBackground(ctx, &wg, cfg, store, sweepInWorker, mc)

	r := chi.NewRouter()
	r.Get("/ping", handler.Ping)
	r.Handle("/metrics", metrics.Handler(reg))

	slog.Info("worker starting",
		slog.Bool("consumers_enabled", cfg.KafkaEnabled && cfg.KafkaConsumersEnabled),
		slog.Bool("session_sweeper", sweepInWorker),
	)

	if err := serveUntilSignal(newHTTPServer(cfg.ServerPort, r)); err != nil {
		return err
	}

	cancel()
	wg.Wait()

	slog.Info("worker stopped gracefully")
	return nil
}

// newHTTPServer はタイムアウト設定済みのhttp.Serverを生成する。
func newHTTPServer(port string, h http.Handler) *http.Server {
	return &http.Server{
		Addr:         ":" + port,
		Handler:      h,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

// serveUntilSignal はサーバーを起動し、SIGINT/SIGTERMを受信したらシャットダウンする。
// 起動に失敗した場合はそのエラーを返す。
func serveUntilSignal(server *http.Server) error {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(stop)

	errCh := make(chan error, 1)
	go func() {
		slog.Info("HTTP server starting", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server listen error: %w", err)
	case <-stop:
	}

	slog.Info("shutting down HTTP server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	version, err := database.RunMigrations(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully", slog.Uint64("version", uint64(version)))
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// maskDatabaseURL はデータベースURLの認証情報をマスクする。
func maskDatabaseURL(url string) string {
	if len(url) > 20 {
		return url[:12] + "***@..."
	}
	return "***"
}
