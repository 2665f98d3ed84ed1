package comment

import "github.com/hitoshi/comment-sidecar/internal/model"

// BuildForest はフラットなコメント列をスレッドのツリー群に組み立てる。
//
// ReplyToごとにバケットへ振り分けたあと、ルートのバケットから順に子を埋めていく。
// 兄弟の順序は入力の順序を保つ。親が入力に含まれない返信は結果から除外される。
// 入力が空の場合も、nilではなく空のスライスを返す。
func BuildForest(flat []model.Comment) []model.CommentNode {
	roots := make([]model.Comment, 0)
	children := make(map[int64][]model.Comment)
	for _, c := range flat {
		if c.ReplyTo == nil {
			roots = append(roots, c)
			continue
		}
		children[*c.ReplyTo] = append(children[*c.ReplyTo], c)
	}

	onPath := make(map[int64]bool)
	return buildNodes(roots, children, onPath)
}

// buildNodes はcomments各要素のノードを子孫ごと生成する。
// onPathは祖先のIDで、重複IDによる循環を断つために使う。
func buildNodes(comments []model.Comment, children map[int64][]model.Comment, onPath map[int64]bool) []model.CommentNode {
	nodes := make([]model.CommentNode, 0, len(comments))
	for _, c := range comments {
		if onPath[c.ID] {
			continue
		}
		onPath[c.ID] = true
		nodes = append(nodes, model.CommentNode{
			ID:                c.ID,
			Author:            c.Author,
			Content:           c.Content,
			CreationTimestamp: c.CreatedAt.Unix(),
			Replies:           buildNodes(children[c.ID], children, onPath),
		})
		delete(onPath, c.ID)
	}
	return nodes
}
