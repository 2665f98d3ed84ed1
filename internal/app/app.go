package app

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/time/rate"

	"github.com/hitoshi/comment-sidecar/internal/comment"
	"github.com/hitoshi/comment-sidecar/internal/config"
	"github.com/hitoshi/comment-sidecar/internal/database"
	"github.com/hitoshi/comment-sidecar/internal/handler"
	"github.com/hitoshi/comment-sidecar/internal/i18n"
	"github.com/hitoshi/comment-sidecar/internal/logger"
	"github.com/hitoshi/comment-sidecar/internal/metrics"
	"github.com/hitoshi/comment-sidecar/internal/middleware"
	"github.com/hitoshi/comment-sidecar/internal/notify"
	"github.com/hitoshi/comment-sidecar/internal/ratelimit"
	"github.com/hitoshi/comment-sidecar/internal/repository"
	"github.com/hitoshi/comment-sidecar/internal/security"
	"github.com/hitoshi/comment-sidecar/internal/worker/cleanup"
)

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w, slog.LevelInfo)

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// 3. LOG_LEVELに合わせてログを再設定する
	level, err := logger.ParseLevel(cfg.LogLevel)
	if err != nil {
		slog.Warn("invalid LOG_LEVEL, falling back to info", slog.String("log_level", cfg.LogLevel))
	}
	logger.SetupDefault(w, level)

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

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

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
		slog.String("base_url", cfg.BaseURL),
	)

	switch cmd {
	case CommandServe:
		return runServe(cfg)
	case CommandWorker:
		return runWorker(cfg)
	case CommandMigrate:
		return runMigrate(cfg)
	default:
		return runServe(cfg)
	}
}

// openDB はDB接続を開き、疎通を確認する。
func openDB(cfg *config.Config) (*sql.DB, error) {
	db, err := database.Open(cfg.DatabaseURL, database.PoolOptions{
		MaxOpenConns:    cfg.DBMaxOpenConns,
		MaxIdleConns:    cfg.DBMaxIdleConns,
		ConnMaxLifetime: cfg.DBConnMaxLifetime,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}

// runServe はAPIサーバーモードで起動する。
// DB接続を開き、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	// 1. DB接続
	db, err := openDB(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	slog.Info("database connection established")

	// 2. リポジトリの初期化
	commentRepo := repository.NewPostgresCommentRepo(db)
	ipRepo := repository.NewPostgresIPEntryRepo(db)

	// 3. メトリクス
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	collector := metrics.NewCollector(registry)

	// 4. 投稿間隔のゲート
	gate, closeGate, err := newGate(cfg, ipRepo)
	if err != nil {
		return err
	}
	defer closeGate()

	// 5. 翻訳と通知
	translator, err := i18n.New(cfg.Language)
	if err != nil {
		return fmt.Errorf("failed to load translations: %w", err)
	}
	dispatcher := notify.NewDispatcher(
		notify.Config{OperatorEmail: cfg.NotificationEmail, BaseURL: cfg.BaseURL},
		newMailer(cfg),
		commentRepo,
		translator,
		collector,
		slog.Default(),
	)

	// 6. コメントサービス
	commentService := comment.NewService(
		commentRepo,
		gate,
		dispatcher,
		security.NewContentEscaper(cfg.StripMarkup),
		collector,
		slog.Default(),
	)

	// 7. ルーターの構築
	// configのREQUEST_RATE_PER_MINはreq/min単位なのでreq/secに変換する
	rateLimiterCfg := middleware.DefaultRateLimiterConfig()
	if cfg.RequestRatePerMin > 0 {
		rateLimiterCfg.Rate = rate.Limit(float64(cfg.RequestRatePerMin) / 60.0)
	}
	if cfg.RequestBurst > 0 {
		rateLimiterCfg.Burst = cfg.RequestBurst
	}
	rateLimiter := middleware.NewRateLimiter(rateLimiterCfg)
	defer rateLimiter.Stop()

	router := handler.NewRouter(&handler.RouterDeps{
		CommentService:     commentService,
		Translator:         translator,
		Pinger:             db,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		RateLimiter:        rateLimiter,
		TrustProxyHeaders:  cfg.TrustProxyHeaders,
		Metrics:            collector,
		Gatherer:           registry,
		Logger:             slog.Default(),
	})

	// 8. HTTPサーバーの起動
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// グレースフルシャットダウンのためのシグナルハンドリング
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	serveErr := make(chan error, 1)
	go func() {
		slog.Info("API server starting",
			slog.String("addr", server.Addr),
			slog.String("language", translator.Language()),
			slog.String("rate_limit_backend", cfg.RateLimitBackend),
			slog.Duration("rate_limit_window", cfg.RateLimitWindow),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serveErr <- err
		}
	}()

	select {
	case <-stop:
	case err := <-serveErr:
		return fmt.Errorf("server listen error: %w", err)
	}
	slog.Info("shutting down API server...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// newGate はRATE_LIMIT_BACKENDに応じた投稿間隔のゲートを生成する。
// 返されるclose関数は終了時に呼ぶ。
func newGate(cfg *config.Config, ipRepo repository.IPEntryRepository) (comment.Gate, func(), error) {
	switch cfg.RateLimitBackend {
	case config.RateLimitBackendRedis:
		g, err := ratelimit.NewRedisGate(cfg.RedisURL, cfg.RateLimitWindow)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to set up redis gate: %w", err)
		}
		slog.Info("redis connection established")
		return g, func() { _ = g.Close() }, nil
	default:
		return ratelimit.NewPostgresGate(ipRepo, cfg.RateLimitWindow), func() {}, nil
	}
}

// newMailer はSMTPが設定されていればSMTPMailerを、そうでなければLogMailerを返す。
func newMailer(cfg *config.Config) notify.Mailer {
	if !cfg.SMTPConfigured() {
		slog.Warn("SMTP_HOST is not set, notification mails are written to the log only")
		return notify.NewLogMailer(slog.Default())
	}
	return notify.NewSMTPMailer(notify.SMTPConfig{
		Host:     cfg.SMTPHost,
		Port:     strconv.Itoa(cfg.SMTPPort),
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
		From:     cfg.SMTPFrom,
	})
}

// runWorker はワーカーモードで起動する。
// DB接続を開き、投稿元IPのクリーンアップジョブを定期実行する。
// SIGINTまたはSIGTERMシグナルを受信するとシャットダウンする。
func runWorker(cfg *config.Config) error {
	db, err := openDB(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	slog.Info("database connection established (worker)")

	cleanupJob := cleanup.NewCleanupJob(db, cfg.RateLimitWindow, slog.Default())

	// グレースフルシャットダウンのためのシグナルハンドリング
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	slog.Info("worker starting",
		slog.Duration("cleanup_interval", cfg.CleanupInterval),
		slog.Duration("rate_limit_window", cfg.RateLimitWindow),
	)

	// ctxがキャンセルされるまでブロックする
	cleanupJob.Start(ctx, cfg.CleanupInterval)

	slog.Info("worker stopped gracefully")
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
func maskDatabaseURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "***"
	}
	if u.User != nil {
		u.User = url.User("xxxxx")
	}
	u.RawQuery = ""
	return u.String()
}
