// Package model はドメインモデルを定義する。
package model

import "time"

// フィールド長の上限（文字数）。
const (
	MaxAuthorLength = 40
	MaxEmailLength  = 40
	MaxSiteLength   = 40
	MaxPathLength   = 170
)

// UnsubscribeTokenLength は配信停止トークンの文字数。
const UnsubscribeTokenLength = 10

// Comment は保存済みのコメント1件を表す。
// 作成後は不変で、配信停止によるSubscribedの変更のみ許可される。
type Comment struct {
	ID               int64
	Author           string // HTMLエスケープ済み
	Email            string // 空文字は未入力
	Content          string // HTMLエスケープ済み
	Site             string
	Path             string
	ReplyTo          *int64 // nilはルートコメント
	Subscribed       bool
	UnsubscribeToken string
	CreatedAt        time.Time
}

// IsRoot はルートコメントかどうかを返す。
func (c *Comment) IsRoot() bool {
	return c.ReplyTo == nil
}

// NewComment は投稿されたコメントの候補を表す。
// 検証済みだがエスケープ前の値を保持する。
type NewComment struct {
	Author  string
	Email   string
	Content string
	Site    string
	Path    string
	ReplyTo *int64
}

// CommentNode はスレッドツリーの1ノード。GETレスポンスの形そのもの。
type CommentNode struct {
	ID                int64         `json:"id"`
	Author            string        `json:"author"`
	Content           string        `json:"content"`
	CreationTimestamp int64         `json:"creationTimestamp"`
	Replies           []CommentNode `json:"replies"`
}

// ParentAuthor は返信通知に必要な親コメントの情報。
type ParentAuthor struct {
	ID               int64
	Author           string
	Email            string
	UnsubscribeToken string
}
