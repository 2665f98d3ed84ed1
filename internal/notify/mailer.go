// Package notify は新着コメントのメール通知を提供する。
package notify

import (
	"context"
	"log/slog"
)

// Message は送信するプレーンテキストメール1通。
type Message struct {
	To          string
	FromName    string
	FromAddress string // 空の場合は送信側の既定アドレスを使う
	Subject     string
	Body        string
}

// Mailer はメール送信のインターフェース。
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// LogMailer は送信の代わりにログへ出力するMailer。SMTPが未設定の環境で使う。
type LogMailer struct {
	logger *slog.Logger
}

// NewLogMailer はLogMailerを生成する。
func NewLogMailer(logger *slog.Logger) *LogMailer {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogMailer{logger: logger}
}

// Send はメールの内容をログに出力する。
func (m *LogMailer) Send(ctx context.Context, msg Message) error {
	m.logger.InfoContext(ctx, "mail (not sent, smtp not configured)",
		slog.String("to", msg.To),
		slog.String("from_name", msg.FromName),
		slog.String("subject", msg.Subject),
	)
	m.logger.DebugContext(ctx, "mail body", slog.String("body", msg.Body))
	return nil
}
