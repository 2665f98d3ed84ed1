package model

import "fmt"

// APIError はクライアントに返すエラーを表す。
// CodeはHTTPステータスの判定とログに使い、レスポンスにはMessageのみを載せる。
type APIError struct {
	Code    string // エラーコード
	Message string // クライアント向けメッセージ
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeBadRequest         = "BAD_REQUEST"
	ErrCodeValidation         = "VALIDATION_ERROR"
	ErrCodeSpamDetected       = "SPAM_DETECTED"
	ErrCodeRateLimitExceeded  = "RATE_LIMIT_EXCEEDED"
	ErrCodeInvalidReplyTo     = "INVALID_REPLY_TO"
	ErrCodeInvalidUnsubscribe = "INVALID_UNSUBSCRIBE"
)

// NewMissingQueryParamsError はsite/pathクエリパラメータ不足のエラーを生成する。
func NewMissingQueryParamsError() *APIError {
	return &APIError{
		Code:    ErrCodeBadRequest,
		Message: "Please submit both query parameters 'site' and 'path'",
	}
}

// NewMissingFieldError は必須フィールドの欠落エラーを生成する。
func NewMissingFieldError(field string) *APIError {
	return &APIError{
		Code:    ErrCodeValidation,
		Message: fmt.Sprintf("%s is missing, empty or blank", field),
	}
}

// NewFieldTooLongError は最大長超過エラーを生成する。
func NewFieldTooLongError(field string, maxLength int) *APIError {
	return &APIError{
		Code:    ErrCodeValidation,
		Message: fmt.Sprintf("%s value exceeds maximal length of %d", field, maxLength),
	}
}

// NewInvalidBodyError はリクエストボディの解析失敗エラーを生成する。
func NewInvalidBodyError() *APIError {
	return &APIError{
		Code:    ErrCodeValidation,
		Message: "invalid request body",
	}
}

// NewSpamDetectedError はスパム判定エラーを生成する。
// ボットに判定理由を与えないため、メッセージは空にする。
func NewSpamDetectedError() *APIError {
	return &APIError{
		Code:    ErrCodeSpamDetected,
		Message: "",
	}
}

// NewRateLimitExceededError はIP単位の投稿制限超過エラーを生成する。
func NewRateLimitExceededError() *APIError {
	return &APIError{
		Code:    ErrCodeRateLimitExceeded,
		Message: "You have exceeded the maximal number of comments within a time frame.",
	}
}

// NewInvalidReplyToError は存在しないコメントへの返信エラーを生成する。
func NewInvalidReplyToError(replyTo int64) *APIError {
	return &APIError{
		Code:    ErrCodeInvalidReplyTo,
		Message: fmt.Sprintf("The replyTo value '%d' refers to a not existing id.", replyTo),
	}
}

// NewInvalidUnsubscribeError は配信停止リンクが無効な場合のエラーを生成する。
func NewInvalidUnsubscribeError() *APIError {
	return &APIError{
		Code:    ErrCodeInvalidUnsubscribe,
		Message: "The unsubscribe link is invalid or has already been used.",
	}
}

// IsClientError はコードがクライアント起因のエラーかどうかを返す。
func (e *APIError) IsClientError() bool {
	switch e.Code {
	case ErrCodeBadRequest, ErrCodeValidation, ErrCodeSpamDetected,
		ErrCodeRateLimitExceeded, ErrCodeInvalidReplyTo, ErrCodeInvalidUnsubscribe:
		return true
	default:
		return false
	}
}
