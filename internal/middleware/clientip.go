package middleware

import (
	"context"
	"net"
	"net/http"
	"strings"
)

// NewClientIPMiddleware はクライアントIPを判定してコンテキストに格納するミドルウェアを返す。
// trustProxyがtrueの場合のみX-Forwarded-Forの先頭のアドレスを採用する。
func NewClientIPMiddleware(trustProxy bool) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := ClientIP(r, trustProxy)
			ctx := context.WithValue(r.Context(), clientIPContextKey, ip)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ClientIP はリクエストの送信元IPを返す。
func ClientIP(r *http.Request, trustProxy bool) string {
	if trustProxy {
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			first, _, _ := strings.Cut(xff, ",")
			if ip := net.ParseIP(strings.TrimSpace(first)); ip != nil {
				return ip.String()
			}
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// ClientIPFromContext はコンテキストからクライアントIPを取得する。未設定の場合は空文字列を返す。
func ClientIPFromContext(ctx context.Context) string {
	ip, _ := ctx.Value(clientIPContextKey).(string)
	return ip
}
