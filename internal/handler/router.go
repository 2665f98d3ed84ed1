package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/comment-sidecar/internal/metrics"
	"github.com/hitoshi/comment-sidecar/internal/middleware"
	"github.com/hitoshi/comment-sidecar/internal/repository"
	"github.com/prometheus/client_golang/prometheus"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// コメントAPI
	CommentService CommentService
	Translator     Translator

	// ヘルスチェック
	Pinger repository.Pinger

	// ミドルウェア依存
	CORSAllowedOrigins []string
	RateLimiter        *middleware.RateLimiter // nilの場合はスロットルなし
	TrustProxyHeaders  bool

	// メトリクス。nilの場合は記録も/metricsの公開もしない
	Metrics  middleware.StatusRecorder
	Gatherer prometheus.Gatherer

	Logger *slog.Logger
}

// NewRouter は全エンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	RequestID → Recovery → ClientIP → Logging → StatusMetrics → SecurityHeaders
//	  └ /comments, /unsubscribe のみ: CORS → RateLimit
//
// /health と /metrics はCORSとスロットルの外に配置する。
func NewRouter(deps *RouterDeps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()

	r.Use(middleware.NewRequestIDMiddleware())
	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewClientIPMiddleware(deps.TrustProxyHeaders))
	r.Use(middleware.NewLoggingMiddleware(logger))
	if deps.Metrics != nil {
		r.Use(middleware.NewStatusMetricsMiddleware(deps.Metrics))
	}
	r.Use(middleware.NewSecurityHeadersMiddleware())

	commentHandler := NewCommentHandler(deps.CommentService, deps.Translator, logger)

	// --- 運用向けのルート ---
	if deps.Pinger != nil {
		r.Get("/health", NewHealthHandler(deps.Pinger, logger))
	}
	if deps.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", metrics.Handler(deps.Gatherer))
	}

	// --- ウィジェット向けのルート ---
	// ミドルウェアスタック: CORS → RateLimit
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigins))
		if deps.RateLimiter != nil {
			r.Use(deps.RateLimiter.Middleware())
		}

		r.Route("/comments", func(r chi.Router) {
			r.Get("/", commentHandler.ListComments)
			r.Post("/", commentHandler.SubmitComment)
			r.Options("/", commentHandler.Preflight)
		})

		r.Get("/unsubscribe", commentHandler.Unsubscribe)
	})

	return r
}
