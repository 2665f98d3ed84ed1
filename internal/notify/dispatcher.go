package notify

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"

	"github.com/hitoshi/comment-sidecar/internal/model"
)

// 返信通知の差出人アドレス。返信先として使われないダミー。
const noReplyAddress = "dontReply@dontReply.com"

// 通知種別と結果のラベル値。
const (
	KindOperator = "operator"
	KindParent   = "parent"

	ResultSent    = "sent"
	ResultFailed  = "failed"
	ResultSkipped = "skipped"
)

// ParentFinder は返信先コメントの購読中の投稿者を検索する。
type ParentFinder interface {
	FindSubscribedAuthor(ctx context.Context, id int64) (*model.ParentAuthor, error)
}

// Translator は通知文の翻訳を返す。
type Translator interface {
	Translate(key string) string
}

// Recorder は通知結果のメトリクスを記録する。
type Recorder interface {
	Notification(kind, result string)
}

// Config は通知の宛先とリンク生成の設定。
type Config struct {
	OperatorEmail string
	BaseURL       string // 末尾は"/"
}

// Dispatcher は投稿後の運営者通知と返信通知を送る。
// 送信や検索の失敗はログとメトリクスに残し、呼び出し元へは返さない。
type Dispatcher struct {
	config     Config
	mailer     Mailer
	finder     ParentFinder
	translator Translator
	recorder   Recorder
	logger     *slog.Logger
}

// NewDispatcher はDispatcherを生成する。recorderがnilの場合はメトリクスを記録しない。
func NewDispatcher(config Config, mailer Mailer, finder ParentFinder, translator Translator, recorder Recorder, logger *slog.Logger) *Dispatcher {
	if recorder == nil {
		recorder = nopRecorder{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		config:     config,
		mailer:     mailer,
		finder:     finder,
		translator: translator,
		recorder:   recorder,
		logger:     logger,
	}
}

// NotifyOperator は運営者へ新着コメントを通知する。
func (d *Dispatcher) NotifyOperator(ctx context.Context, c model.NewComment) {
	msg := OperatorMessage(d.config.OperatorEmail, c)
	if err := d.mailer.Send(ctx, msg); err != nil {
		d.recorder.Notification(KindOperator, ResultFailed)
		d.logger.ErrorContext(ctx, "運営者への通知に失敗しました",
			slog.String("site", c.Site),
			slog.String("path", c.Path),
			slog.String("error", err.Error()),
		)
		return
	}
	d.recorder.Notification(KindOperator, ResultSent)
}

// NotifyParentAuthor は返信先コメントの投稿者が購読中であれば返信を通知する。
func (d *Dispatcher) NotifyParentAuthor(ctx context.Context, c model.NewComment) {
	if c.ReplyTo == nil {
		return
	}

	parent, err := d.finder.FindSubscribedAuthor(ctx, *c.ReplyTo)
	if err != nil {
		d.recorder.Notification(KindParent, ResultFailed)
		d.logger.ErrorContext(ctx, "返信先コメントの取得に失敗しました",
			slog.Int64("reply_to", *c.ReplyTo),
			slog.String("error", err.Error()),
		)
		return
	}
	if parent == nil {
		d.recorder.Notification(KindParent, ResultSkipped)
		return
	}

	msg := ParentMessage(d.translator, d.config.BaseURL, parent, c)
	if err := d.mailer.Send(ctx, msg); err != nil {
		d.recorder.Notification(KindParent, ResultFailed)
		d.logger.WarnContext(ctx, "返信通知の送信に失敗しました",
			slog.Int64("parent_id", parent.ID),
			slog.String("error", err.Error()),
		)
		return
	}
	d.recorder.Notification(KindParent, ResultSent)
}

// CommentURL はコメント欄へのリンクを返す。siteとpathを連結し、アンカーを付ける。
func CommentURL(c model.NewComment) string {
	return c.Site + c.Path + "#comment-sidecar"
}

// UnsubscribeURL は返信通知の配信停止リンクを返す。
func UnsubscribeURL(baseURL string, parent *model.ParentAuthor) string {
	q := url.Values{}
	q.Set("commentId", strconv.FormatInt(parent.ID, 10))
	q.Set("unsubscribeToken", parent.UnsubscribeToken)
	return baseURL + "unsubscribe?" + q.Encode()
}

// OperatorMessage は運営者向けの通知メールを組み立てる。
func OperatorMessage(operatorEmail string, c model.NewComment) Message {
	var body strings.Builder
	fmt.Fprintf(&body, "Site: %s\n", c.Site)
	fmt.Fprintf(&body, "Path: %s\n", c.Path)
	fmt.Fprintf(&body, "URL: %s\n", CommentURL(c))
	fmt.Fprintf(&body, "Message: %s\n", c.Content)

	return Message{
		To:          operatorEmail,
		FromName:    c.Author,
		FromAddress: strings.TrimSpace(c.Email),
		Subject:     fmt.Sprintf("Comment by %s on %s", c.Author, c.Path),
		Body:        body.String(),
	}
}

// ParentMessage は返信先の投稿者向けの通知メールを組み立てる。
func ParentMessage(tr Translator, baseURL string, parent *model.ParentAuthor, c model.NewComment) Message {
	var body strings.Builder
	fmt.Fprintf(&body, "Hi %s,\n\n", parent.Author)
	fmt.Fprintf(&body, "%s\n\n", tr.Translate("introduction"))
	fmt.Fprintf(&body, "%s: %s\n", tr.Translate("author"), c.Author)
	fmt.Fprintf(&body, "URL: %s\n", CommentURL(c))
	fmt.Fprintf(&body, "%s:\n", tr.Translate("message"))
	fmt.Fprintf(&body, "%s\n\n", c.Content)
	fmt.Fprintf(&body, "%s\n%s", tr.Translate("unsubscribeDescription"), UnsubscribeURL(baseURL, parent))

	return Message{
		To:          parent.Email,
		FromName:    c.Author,
		FromAddress: noReplyAddress,
		Subject:     strings.ReplaceAll(tr.Translate("subject"), "{}", c.Author),
		Body:        body.String(),
	}
}

type nopRecorder struct{}

func (nopRecorder) Notification(string, string) {}
