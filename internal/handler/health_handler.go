package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/hitoshi/comment-sidecar/internal/middleware"
	"github.com/hitoshi/comment-sidecar/internal/repository"
)

// healthCheckTimeout はヘルスチェック時のDB疎通確認のタイムアウト。
const healthCheckTimeout = 2 * time.Second

type healthResponse struct {
	Status string `json:"status"`
}

// NewHealthHandler はDBへの疎通を確認するヘルスチェックハンドラーを返す。
// GET /health
func NewHealthHandler(pinger repository.Pinger, logger *slog.Logger) http.HandlerFunc {
	if logger == nil {
		logger = slog.Default()
	}
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
		defer cancel()

		if err := pinger.PingContext(ctx); err != nil {
			logger.Warn("health check failed", slog.String("error", err.Error()))
			middleware.WriteJSON(w, http.StatusServiceUnavailable, healthResponse{Status: "unavailable"})
			return
		}
		middleware.WriteJSON(w, http.StatusOK, healthResponse{Status: "ok"})
	}
}
