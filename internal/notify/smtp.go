package notify

import (
	"bytes"
	"context"
	"fmt"
	"mime"
	"net"
	"net/mail"
	"net/smtp"
	"strings"
)

// SMTPConfig はSMTPサーバーの接続設定。
type SMTPConfig struct {
	Host     string
	Port     string
	Username string
	Password string
	From     string // エンベロープ送信者と、差出人アドレスの既定値
}

// IsConfigured はSMTP送信に必要な設定がそろっているかを返す。
func (c SMTPConfig) IsConfigured() bool {
	return c.Host != "" && c.Port != "" && c.From != ""
}

// SMTPMailer はnet/smtpでメールを送信するMailer。
type SMTPMailer struct {
	config SMTPConfig
	server string
	auth   smtp.Auth

	sendMail func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

// NewSMTPMailer はSMTPMailerを生成する。Usernameが空の場合は認証を行わない。
func NewSMTPMailer(config SMTPConfig) *SMTPMailer {
	var auth smtp.Auth
	if config.Username != "" {
		auth = smtp.PlainAuth("", config.Username, config.Password, config.Host)
	}
	return &SMTPMailer{
		config:   config,
		server:   net.JoinHostPort(config.Host, config.Port),
		auth:     auth,
		sendMail: smtp.SendMail,
	}
}

// Send はプレーンテキスト(UTF-8)のメールを送信する。
// net/smtpはcontextを受け取らないため、送信開始前のキャンセルのみを確認する。
func (m *SMTPMailer) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !m.config.IsConfigured() {
		return fmt.Errorf("smtp not configured")
	}

	to := headerValue(msg.To)
	if _, err := mail.ParseAddress(to); err != nil {
		return fmt.Errorf("invalid recipient %q: %w", to, err)
	}

	data := buildMessage(m.config.From, msg)
	if err := m.sendMail(m.server, m.auth, m.config.From, []string{to}, data); err != nil {
		return fmt.Errorf("send mail: %w", err)
	}
	return nil
}

// buildMessage はヘッダーと本文からなるメールデータを組み立てる。
func buildMessage(defaultFrom string, msg Message) []byte {
	address := headerValue(msg.FromAddress)
	if address == "" {
		address = defaultFrom
	}
	from := (&mail.Address{Name: headerValue(msg.FromName), Address: address}).String()

	var b bytes.Buffer
	fmt.Fprintf(&b, "To: %s\r\n", headerValue(msg.To))
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", headerValue(msg.Subject)))
	fmt.Fprintf(&b, "Mime-Version: 1.0\r\n")
	fmt.Fprintf(&b, "Content-Type: text/plain; charset=UTF-8\r\n")
	fmt.Fprintf(&b, "Content-Transfer-Encoding: 8bit\r\n")
	fmt.Fprintf(&b, "\r\n")
	body := strings.ReplaceAll(msg.Body, "\r\n", "\n")
	b.WriteString(strings.ReplaceAll(body, "\n", "\r\n"))
	return b.Bytes()
}

// headerValue はヘッダーインジェクションを防ぐため改行を取り除く。
func headerValue(s string) string {
	return strings.TrimSpace(strings.NewReplacer("\r", " ", "\n", " ").Replace(s))
}
