package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

// RequestIDHeader はリクエストIDを受け渡すヘッダー名。
const RequestIDHeader = "X-Request-ID"

type contextKey string

const (
	requestIDContextKey contextKey = "request_id"
	clientIPContextKey  contextKey = "client_ip"
)

// maxRequestIDLength は受け入れる上流リクエストIDの最大長。
const maxRequestIDLength = 64

// NewRequestIDMiddleware はリクエストごとにIDを割り当てるミドルウェアを返す。
// 上流から妥当なX-Request-IDが渡された場合はそれを引き継ぎ、なければUUIDを生成する。
func NewRequestIDMiddleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get(RequestIDHeader)
			if id == "" || len(id) > maxRequestIDLength {
				id = uuid.NewString()
			}

			w.Header().Set(RequestIDHeader, id)
			ctx := context.WithValue(r.Context(), requestIDContextKey, id)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequestIDFromContext はコンテキストからリクエストIDを取得する。未設定の場合は空文字列を返す。
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDContextKey).(string)
	return id
}
