package comment

import (
	"strings"
	"unicode/utf8"

	"github.com/hitoshi/comment-sidecar/internal/model"
)

// Submission はPOSTされたコメントの入力値。
// URLはボット検出用のハニーポット欄で、人間の投稿者は空のまま送信する。
type Submission struct {
	Author  string
	Email   string
	Content string
	Site    string
	Path    string
	URL     string
	ReplyTo *int64
}

// CheckSpam はハニーポット欄が埋められていればスパムとして拒否する。
func CheckSpam(s Submission) error {
	if strings.TrimSpace(s.URL) != "" {
		return model.NewSpamDetectedError()
	}
	return nil
}

type requiredField struct {
	name  string
	value string
}

type lengthLimit struct {
	name  string
	value string
	max   int
}

// Validate は必須項目と最大長を検証し、最初に見つかった違反を返す。
// 必須項目はauthor, content, site, pathの順、続いて最大長をauthor, email, site, pathの順で確認する。
func Validate(s Submission) error {
	required := []requiredField{
		{"author", s.Author},
		{"content", s.Content},
		{"site", s.Site},
		{"path", s.Path},
	}
	for _, f := range required {
		if strings.TrimSpace(f.value) == "" {
			return model.NewMissingFieldError(f.name)
		}
	}

	limits := []lengthLimit{
		{"author", s.Author, model.MaxAuthorLength},
		{"email", s.Email, model.MaxEmailLength},
		{"site", s.Site, model.MaxSiteLength},
		{"path", s.Path, model.MaxPathLength},
	}
	for _, l := range limits {
		if utf8.RuneCountInString(l.value) > l.max {
			return model.NewFieldTooLongError(l.name, l.max)
		}
	}

	return nil
}
