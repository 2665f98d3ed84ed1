package middleware

import (
	"net/http"
	"strings"
)

// NewCORSMiddleware は許可リストのオリジンにだけCORSヘッダーを返すミドルウェアを返す。
// 許可されたOriginはそのままAccess-Control-Allow-Originに返す。
// OPTIONSプリフライトリクエストにはオリジンの許可にかかわらず204で応答する。
func NewCORSMiddleware(allowedOrigins []string) func(next http.Handler) http.Handler {
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		if o = strings.TrimSpace(o); o != "" {
			allowed[o] = true
		}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin != "" && allowed[origin] {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Access-Control-Allow-Methods", "GET, POST")
				w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
				w.Header().Add("Vary", "Origin")
			}

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
