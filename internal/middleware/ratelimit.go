package middleware

import (
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiterConfig はリクエストスロットルの設定を保持する。
type RateLimiterConfig struct {
	Rate            rate.Limit    // IPごとのレート（req/sec）
	Burst           int           // IPごとのバーストサイズ
	CleanupInterval time.Duration // 期限切れエントリのクリーンアップ間隔
}

// DefaultRateLimiterConfig はデフォルトのスロットル設定を返す。60 req/min/IP、バースト20。
func DefaultRateLimiterConfig() RateLimiterConfig {
	return RateLimiterConfig{
		Rate:            rate.Limit(60.0 / 60.0),
		Burst:           20,
		CleanupInterval: 5 * time.Minute,
	}
}

// ipLimiter はIPごとのレートリミッターとアクセス時刻を保持する。
type ipLimiter struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// RateLimiter はIPごとのトークンバケットでリクエスト数を制限する。
// 投稿のウィンドウ判定とは別に、一覧取得を含むすべてのAPI呼び出しの連打を抑える。
type RateLimiter struct {
	config RateLimiterConfig

	mu       sync.RWMutex
	limiters map[string]*ipLimiter

	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewRateLimiter は新しいRateLimiterを生成する。
// バックグラウンドで期限切れエントリのクリーンアップを開始する。
func NewRateLimiter(config RateLimiterConfig) *RateLimiter {
	if config.CleanupInterval <= 0 {
		config.CleanupInterval = 5 * time.Minute
	}
	rl := &RateLimiter{
		config:   config,
		limiters: make(map[string]*ipLimiter),
		stopCh:   make(chan struct{}),
	}

	go rl.cleanupLoop()

	return rl
}

// Stop はクリーンアップのバックグラウンドゴルーチンを停止する。複数回呼んでもよい。
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.stopCh) })
}

// Middleware はIPごとのスロットルミドルウェアを返す。
// クライアントIPはClientIPミドルウェアがコンテキストに格納したものを使う。
func (rl *RateLimiter) Middleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := ClientIPFromContext(r.Context())
			if ip == "" {
				ip = ClientIP(r, false)
			}

			if !rl.getOrCreateLimiter(ip).Allow() {
				writeRateLimitResponse(w, rl.config.Rate)
				slog.WarnContext(r.Context(), "request throttled",
					slog.String("client_ip", ip),
					slog.String("path", r.URL.Path),
				)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// LimiterCount は現在管理されているリミッターのエントリ数を返す。
// テストおよびメトリクス用。
func (rl *RateLimiter) LimiterCount() int {
	rl.mu.RLock()
	defer rl.mu.RUnlock()
	return len(rl.limiters)
}

// getOrCreateLimiter はIPのリミッターを取得または作成する。
func (rl *RateLimiter) getOrCreateLimiter(ip string) *rate.Limiter {
	rl.mu.RLock()
	il, exists := rl.limiters[ip]
	rl.mu.RUnlock()

	if exists {
		rl.mu.Lock()
		il.lastAccess = time.Now()
		rl.mu.Unlock()
		return il.limiter
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()

	// ダブルチェック
	if il, exists := rl.limiters[ip]; exists {
		il.lastAccess = time.Now()
		return il.limiter
	}

	limiter := rate.NewLimiter(rl.config.Rate, rl.config.Burst)
	rl.limiters[ip] = &ipLimiter{
		limiter:    limiter,
		lastAccess: time.Now(),
	}

	return limiter
}

// cleanupLoop はバックグラウンドで期限切れエントリを定期的にクリーンアップする。
func (rl *RateLimiter) cleanupLoop() {
	ticker := time.NewTicker(rl.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.cleanup(time.Now())
		case <-rl.stopCh:
			return
		}
	}
}

// cleanup は最終アクセス時刻がCleanupIntervalの2倍を超えたエントリを削除する。
func (rl *RateLimiter) cleanup(now time.Time) {
	ttl := rl.config.CleanupInterval * 2

	rl.mu.Lock()
	defer rl.mu.Unlock()
	for ip, il := range rl.limiters {
		if now.Sub(il.lastAccess) > ttl {
			delete(rl.limiters, ip)
		}
	}
}

// writeRateLimitResponse は429 Too Many Requestsレスポンスを書き込む。
// Retry-Afterヘッダーにはトークンが補充されるまでの推定秒数を設定する。
func writeRateLimitResponse(w http.ResponseWriter, r rate.Limit) {
	retryAfterSec := 1
	if r > 0 {
		retryAfterSec = int(math.Ceil(1.0 / float64(r)))
	}
	if retryAfterSec < 1 {
		retryAfterSec = 1
	}

	w.Header().Set("Retry-After", strconv.Itoa(retryAfterSec))
	WriteJSON(w, http.StatusTooManyRequests, ErrorResponseBody{
		Message: "Too many requests. Please try again later.",
	})
}
