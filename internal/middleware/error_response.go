package middleware

import (
	"encoding/json"
	"net/http"

	"github.com/hitoshi/comment-sidecar/internal/model"
)

// ErrorResponseBody はAPIエラーレスポンスのフォーマット。
// コメントウィジェットはmessageのみを表示する。
type ErrorResponseBody struct {
	Message string `json:"message"`
}

// internalErrorMessage は500応答の汎用メッセージ。詳細はログにのみ残す。
const internalErrorMessage = "An internal error occurred. Please try again later."

// WriteErrorResponse はエラーレスポンスを書き込む。
func WriteErrorResponse(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	WriteJSON(w, statusCode, ErrorResponseBody{Message: apiErr.Message})
}

// WriteInternalServerError は内部サーバーエラーのレスポンスを書き込む。
func WriteInternalServerError(w http.ResponseWriter) {
	WriteJSON(w, http.StatusInternalServerError, ErrorResponseBody{Message: internalErrorMessage})
}

// WriteJSON はvをJSONとして書き込む。
func WriteJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(v)
}
