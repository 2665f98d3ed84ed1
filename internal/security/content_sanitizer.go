// Package security はアプリケーションのセキュリティ機能を提供する。
//
// ContentEscaper はコメントの投稿者名と本文を保存前に無害化し、
// 埋め込み先ページでのXSSを防ぐ。
package security

import (
	"html"

	"github.com/microcosm-cc/bluemonday"
)

// ContentEscaper は投稿テキストを無害化する。
// 既定ではHTMLの特殊文字をエスケープし、マークアップ除去モードでは
// bluemondayのStrictPolicyですべてのタグを取り除いたうえでエスケープする。
// 同一入力に対して常に同一出力を返し、並行して使用できる。
type ContentEscaper struct {
	policy *bluemonday.Policy
}

// NewContentEscaper はContentEscaperを生成する。
// stripMarkupがtrueの場合はタグを除去し、falseの場合はエスケープのみ行う。
func NewContentEscaper(stripMarkup bool) *ContentEscaper {
	e := &ContentEscaper{}
	if stripMarkup {
		e.policy = bluemonday.StrictPolicy()
	}
	return e
}

// Escape は入力を無害化した文字列を返す。空文字列には空文字列を返す。
func (e *ContentEscaper) Escape(s string) string {
	if e.policy != nil {
		return e.policy.Sanitize(s)
	}
	return html.EscapeString(s)
}
