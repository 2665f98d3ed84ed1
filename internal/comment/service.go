// Package comment はコメントのスレッド構築と投稿パイプラインを提供する。
package comment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/hitoshi/comment-sidecar/internal/model"
	"github.com/hitoshi/comment-sidecar/internal/repository"
)

// Gate はIP単位の投稿間隔を制御するインターフェース。
type Gate interface {
	// Admit はipからの投稿を受け付けてよいか判定する。記録は行わない。
	Admit(ctx context.Context, ip string) error
	// Record はipからの投稿を記録し、以降のウィンドウ内の投稿を拒否させる。
	Record(ctx context.Context, ip string) error
}

// Notifier は投稿後のメール通知を行うインターフェース。
// 通知の失敗は実装側で処理し、投稿の結果には影響させない。
type Notifier interface {
	NotifyOperator(ctx context.Context, c model.NewComment)
	NotifyParentAuthor(ctx context.Context, c model.NewComment)
}

// Escaper は保存前に投稿者名と本文を無害化する。
type Escaper interface {
	Escape(s string) string
}

// Recorder は投稿処理のメトリクスを記録する。
type Recorder interface {
	CommentCreated()
	SubmissionRejected(reason string)
	ObserveRead(d time.Duration)
}

// 拒否理由のラベル値。
const (
	ReasonSpam           = "spam"
	ReasonValidation     = "validation"
	ReasonRateLimit      = "rate_limit"
	ReasonInvalidReplyTo = "invalid_reply_to"
)

// Service はコメントの取得と投稿パイプラインを提供する。
type Service struct {
	repo     repository.CommentRepository
	gate     Gate
	notifier Notifier
	escaper  Escaper
	recorder Recorder
	logger   *slog.Logger

	newToken func() (string, error)
}

// NewService はServiceの新しいインスタンスを生成する。
// recorderがnilの場合はメトリクスを記録しない。
func NewService(
	repo repository.CommentRepository,
	gate Gate,
	notifier Notifier,
	escaper Escaper,
	recorder Recorder,
	logger *slog.Logger,
) *Service {
	if recorder == nil {
		recorder = nopRecorder{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:     repo,
		gate:     gate,
		notifier: notifier,
		escaper:  escaper,
		recorder: recorder,
		logger:   logger,
		newToken: generateUnsubscribeToken,
	}
}

// List は(site, path)のコメントをスレッドのツリー群として返す。
func (s *Service) List(ctx context.Context, site, path string) ([]model.CommentNode, error) {
	if strings.TrimSpace(site) == "" || strings.TrimSpace(path) == "" {
		return nil, model.NewMissingQueryParamsError()
	}

	start := time.Now()
	comments, err := s.repo.ListBySitePath(ctx, site, path)
	if err != nil {
		return nil, fmt.Errorf("コメント一覧の取得に失敗しました: %w", err)
	}
	forest := BuildForest(comments)
	s.recorder.ObserveRead(time.Since(start))

	return forest, nil
}

// Submit は投稿を検証して保存し、採番されたIDを返す。
//
// スパム判定、入力検証、投稿間隔の判定、保存、IPの記録、通知の順に処理する。
// 保存より前の段階で失敗した場合は何も書き込まない。
func (s *Service) Submit(ctx context.Context, sub Submission, ip string) (int64, error) {
	if err := CheckSpam(sub); err != nil {
		s.recorder.SubmissionRejected(ReasonSpam)
		s.logger.Info("スパム投稿を拒否しました", slog.String("ip", ip))
		return 0, err
	}
	if err := Validate(sub); err != nil {
		s.recorder.SubmissionRejected(ReasonValidation)
		return 0, err
	}
	if err := s.gate.Admit(ctx, ip); err != nil {
		var apiErr *model.APIError
		if errors.As(err, &apiErr) {
			s.recorder.SubmissionRejected(ReasonRateLimit)
			return 0, err
		}
		return 0, fmt.Errorf("投稿間隔の確認に失敗しました: %w", err)
	}

	token, err := s.newToken()
	if err != nil {
		return 0, err
	}

	// マークアップ除去で空になった場合も必須項目の欠落として扱う
	author := s.escaper.Escape(sub.Author)
	if strings.TrimSpace(author) == "" {
		s.recorder.SubmissionRejected(ReasonValidation)
		return 0, model.NewMissingFieldError("author")
	}
	content := s.escaper.Escape(sub.Content)
	if strings.TrimSpace(content) == "" {
		s.recorder.SubmissionRejected(ReasonValidation)
		return 0, model.NewMissingFieldError("content")
	}

	c := &model.Comment{
		Author:           author,
		Email:            sub.Email,
		Content:          content,
		Site:             sub.Site,
		Path:             sub.Path,
		ReplyTo:          sub.ReplyTo,
		Subscribed:       strings.TrimSpace(sub.Email) != "",
		UnsubscribeToken: token,
	}

	id, err := s.repo.Create(ctx, c)
	if err != nil {
		if errors.Is(err, repository.ErrReplyToNotFound) && sub.ReplyTo != nil {
			s.recorder.SubmissionRejected(ReasonInvalidReplyTo)
			return 0, model.NewInvalidReplyToError(*sub.ReplyTo)
		}
		return 0, fmt.Errorf("コメントの保存に失敗しました: %w", err)
	}

	// コメントは保存済みのため、IPの記録に失敗しても投稿は成功として扱う
	if err := s.gate.Record(ctx, ip); err != nil {
		s.logger.Error("投稿元IPの記録に失敗しました",
			slog.Int64("comment_id", id),
			slog.String("ip", ip),
			slog.String("error", err.Error()),
		)
	}
	s.recorder.CommentCreated()

	posted := model.NewComment{
		Author:  sub.Author,
		Email:   sub.Email,
		Content: sub.Content,
		Site:    sub.Site,
		Path:    sub.Path,
		ReplyTo: sub.ReplyTo,
	}
	s.notifier.NotifyOperator(ctx, posted)
	if posted.ReplyTo != nil {
		s.notifier.NotifyParentAuthor(ctx, posted)
	}

	return id, nil
}

// Unsubscribe はコメントへの返信通知を停止する。
// IDとトークンの組が一致しない、またはすでに停止済みの場合はエラーを返す。
func (s *Service) Unsubscribe(ctx context.Context, commentID int64, token string) error {
	if commentID <= 0 || len(token) != model.UnsubscribeTokenLength {
		return model.NewInvalidUnsubscribeError()
	}

	ok, err := s.repo.Unsubscribe(ctx, commentID, token)
	if err != nil {
		return fmt.Errorf("購読解除に失敗しました: %w", err)
	}
	if !ok {
		return model.NewInvalidUnsubscribeError()
	}

	s.logger.Info("返信通知を停止しました", slog.Int64("comment_id", commentID))
	return nil
}

type nopRecorder struct{}

func (nopRecorder) CommentCreated()           {}
func (nopRecorder) SubmissionRejected(string) {}
func (nopRecorder) ObserveRead(time.Duration) {}
