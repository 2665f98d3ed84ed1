// Package handler はコメントAPIのHTTPハンドラーとルーティングを提供する。
package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/hitoshi/comment-sidecar/internal/comment"
	"github.com/hitoshi/comment-sidecar/internal/middleware"
	"github.com/hitoshi/comment-sidecar/internal/model"
)

// maxBodyBytes はPOSTボディの上限。最大長の検証より先に巨大な入力を切り捨てる。
const maxBodyBytes = 64 << 10

// CommentService はコメントハンドラーが必要とするサービスインターフェース。
type CommentService interface {
	// List はsite/pathのコメントをスレッドツリーで返す。
	List(ctx context.Context, site, path string) ([]model.CommentNode, error)
	// Submit はコメントを検証して保存し、採番されたIDを返す。
	Submit(ctx context.Context, sub comment.Submission, ip string) (int64, error)
	// Unsubscribe は返信通知の購読を解除する。
	Unsubscribe(ctx context.Context, commentID int64, token string) error
}

// Translator は応答メッセージの翻訳を返す。
type Translator interface {
	Translate(key string) string
}

// CommentHandler はコメントの一覧・投稿・配信停止のHTTPハンドラー。
type CommentHandler struct {
	service    CommentService
	translator Translator
	logger     *slog.Logger
}

// NewCommentHandler はCommentHandlerを生成する。loggerがnilの場合はslog.Defaultを使う。
func NewCommentHandler(service CommentService, translator Translator, logger *slog.Logger) *CommentHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &CommentHandler{
		service:    service,
		translator: translator,
		logger:     logger,
	}
}

// replyToValue はJSONの数値と数字文字列の両方を受け付けるreplyTo。
// ウィジェットはDOM属性の値をそのまま送るため文字列で届くことがある。
type replyToValue struct {
	id *int64
}

// UnmarshalJSON はnull、整数、整数を表す文字列を受け付ける。空文字はnullと同じ扱い。
func (v *replyToValue) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		v.id = nil
		return nil
	}

	raw := string(data)
	if strings.HasPrefix(raw, `"`) {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		raw = strings.TrimSpace(s)
		if raw == "" {
			v.id = nil
			return nil
		}
	}

	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return errors.New("replyTo must be an integer")
	}
	v.id = &id
	return nil
}

// submitCommentRequest はコメント投稿リクエストのボディ。
type submitCommentRequest struct {
	Author  string       `json:"author"`
	Email   string       `json:"email"`
	Content string       `json:"content"`
	Site    string       `json:"site"`
	Path    string       `json:"path"`
	URL     string       `json:"url"`
	ReplyTo replyToValue `json:"replyTo"`
}

// submitCommentResponse はコメント投稿成功時のレスポンス。
type submitCommentResponse struct {
	ID int64 `json:"id"`
}

// messageResponse はメッセージのみのレスポンス。
type messageResponse struct {
	Message string `json:"message"`
}

// ListComments はページのコメントをスレッドツリーで返す。
// GET /comments?site=...&path=...
func (h *CommentHandler) ListComments(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	nodes, err := h.service.List(r.Context(), q.Get("site"), q.Get("path"))
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	middleware.WriteJSON(w, http.StatusOK, nodes)
}

// SubmitComment はコメント投稿を処理する。
// POST /comments
func (h *CommentHandler) SubmitComment(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	var req submitCommentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidBodyError())
		return
	}

	sub := comment.Submission{
		Author:  req.Author,
		Email:   req.Email,
		Content: req.Content,
		Site:    req.Site,
		Path:    req.Path,
		URL:     req.URL,
		ReplyTo: req.ReplyTo.id,
	}

	id, err := h.service.Submit(r.Context(), sub, middleware.ClientIPFromContext(r.Context()))
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	middleware.WriteJSON(w, http.StatusCreated, submitCommentResponse{ID: id})
}

// Preflight はCORSプリフライトに応答する。
// OPTIONS /comments
func (h *CommentHandler) Preflight(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusNoContent)
}

// Unsubscribe は通知メールのリンクから返信通知を停止する。
// GET /unsubscribe?commentId=...&unsubscribeToken=...
func (h *CommentHandler) Unsubscribe(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	commentID, err := strconv.ParseInt(q.Get("commentId"), 10, 64)
	if err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidUnsubscribeError())
		return
	}

	if err := h.service.Unsubscribe(r.Context(), commentID, q.Get("unsubscribeToken")); err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	middleware.WriteJSON(w, http.StatusOK, messageResponse{Message: h.translator.Translate("unsubscribed")})
}

// handleServiceError はサービス層のエラーをHTTPレスポンスに変換する。
func (h *CommentHandler) handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) && apiErr.IsClientError() {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, apiErr)
		return
	}

	// クライアント起因でないエラーは詳細をログにのみ残す
	h.logger.Error("internal server error",
		slog.String("error", err.Error()),
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.String("request_id", middleware.RequestIDFromContext(r.Context())),
	)
	middleware.WriteInternalServerError(w)
}
