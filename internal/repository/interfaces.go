// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/hitoshi/comment-sidecar/internal/model"
)

// ErrReplyToNotFound は返信先のコメントが存在しない場合に返される。
var ErrReplyToNotFound = errors.New("reply_to refers to a non-existing comment")

// CommentRepository はコメントデータの永続化インターフェース。
type CommentRepository interface {
	// ListBySitePath は(site, path)に完全一致するコメントを新しい順に返す。
	// 該当がない場合は空スライスを返す。
	ListBySitePath(ctx context.Context, site, path string) ([]model.Comment, error)

	// Create はコメントを保存し、採番されたIDを返す。
	// ReplyToが存在しないIDを指す場合はErrReplyToNotFoundを返す。
	Create(ctx context.Context, comment *model.Comment) (int64, error)

	// FindSubscribedAuthor は通知を購読している親コメントの投稿者を取得する。
	// 存在しない、または購読していない場合はnilを返す。
	FindSubscribedAuthor(ctx context.Context, id int64) (*model.ParentAuthor, error)

	// Unsubscribe はIDとトークンが一致するコメントの購読を解除する。
	// 一致する行がなければfalseを返す。
	Unsubscribe(ctx context.Context, id int64, token string) (bool, error)
}

// IPEntryRepository は投稿元IPの記録を永続化するインターフェース。
type IPEntryRepository interface {
	// PurgeOlderThan は記録からageより長く経過したエントリを削除する。
	PurgeOlderThan(ctx context.Context, age time.Duration) error

	// Exists は指定IPのエントリが存在するかを返す。
	Exists(ctx context.Context, ip string) (bool, error)

	// Insert は指定IPのエントリを現在時刻で記録する。
	Insert(ctx context.Context, ip string) error
}

// Pinger はデータベースの疎通確認用のインターフェース。
type Pinger interface {
	PingContext(ctx context.Context) error
}
