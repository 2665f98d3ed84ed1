package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/hitoshi/comment-sidecar/internal/model"
)

const (
	pqForeignKeyViolation = "23503"
	replyToConstraint     = "replyTo_refers_to_existing_id"
)

// PostgresCommentRepo はPostgreSQLを使用したコメントリポジトリ。
type PostgresCommentRepo struct {
	db *sql.DB
}

// NewPostgresCommentRepo はPostgresCommentRepoを生成する。
func NewPostgresCommentRepo(db *sql.DB) *PostgresCommentRepo {
	return &PostgresCommentRepo{db: db}
}

// ListBySitePath は(site, path)に一致するコメントをcreation_date降順で返す。
// 同時刻のコメントはIDの降順で並べる。
func (r *PostgresCommentRepo) ListBySitePath(ctx context.Context, site, path string) ([]model.Comment, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, author, email, content, reply_to, site, path,
		        subscribed, unsubscribe_token, creation_date
		 FROM comments
		 WHERE site = $1 AND path = $2
		 ORDER BY creation_date DESC, id DESC`,
		site, path,
	)
	if err != nil {
		return nil, fmt.Errorf("コメント一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	comments := []model.Comment{}
	for rows.Next() {
		var c model.Comment
		var email sql.NullString
		var replyTo sql.NullInt64
		if err := rows.Scan(
			&c.ID, &c.Author, &email, &c.Content, &replyTo, &c.Site, &c.Path,
			&c.Subscribed, &c.UnsubscribeToken, &c.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("コメントのスキャンに失敗しました: %w", err)
		}
		c.Email = nullStringValue(email)
		if replyTo.Valid {
			id := replyTo.Int64
			c.ReplyTo = &id
		}
		comments = append(comments, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("コメント一覧の読み込みに失敗しました: %w", err)
	}

	return comments, nil
}

// Create はコメントを保存し、採番されたIDを返す。
// 返信先の外部キー違反はErrReplyToNotFoundに変換する。
func (r *PostgresCommentRepo) Create(ctx context.Context, c *model.Comment) (int64, error) {
	var replyTo sql.NullInt64
	if c.ReplyTo != nil {
		replyTo = sql.NullInt64{Int64: *c.ReplyTo, Valid: true}
	}

	var id int64
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO comments (author, email, content, reply_to, site, path, subscribed, unsubscribe_token)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 RETURNING id, creation_date`,
		c.Author, nullString(c.Email), c.Content, replyTo, c.Site, c.Path,
		c.Subscribed, c.UnsubscribeToken,
	).Scan(&id, &c.CreatedAt)
	if err != nil {
		if isReplyToViolation(err) {
			return 0, ErrReplyToNotFound
		}
		return 0, fmt.Errorf("コメントの作成に失敗しました: %w", err)
	}

	c.ID = id
	return id, nil
}

// FindSubscribedAuthor は購読中の親コメント投稿者を取得する。該当しない場合はnilを返す。
func (r *PostgresCommentRepo) FindSubscribedAuthor(ctx context.Context, id int64) (*model.ParentAuthor, error) {
	parent := &model.ParentAuthor{}
	var email sql.NullString

	err := r.db.QueryRowContext(ctx,
		`SELECT id, author, email, unsubscribe_token
		 FROM comments WHERE id = $1 AND subscribed = true`,
		id,
	).Scan(&parent.ID, &parent.Author, &email, &parent.UnsubscribeToken)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("親コメントの取得に失敗しました: %w", err)
	}

	parent.Email = nullStringValue(email)
	return parent, nil
}

// Unsubscribe はIDとトークンが一致する購読中のコメントの購読を解除する。
func (r *PostgresCommentRepo) Unsubscribe(ctx context.Context, id int64, token string) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`UPDATE comments SET subscribed = false
		 WHERE id = $1 AND unsubscribe_token = $2 AND subscribed = true`,
		id, token,
	)
	if err != nil {
		return false, fmt.Errorf("購読解除に失敗しました: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("購読解除の結果取得に失敗しました: %w", err)
	}
	return affected > 0, nil
}

// isReplyToViolation は返信先制約の外部キー違反かどうかを判定する。
func isReplyToViolation(err error) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return false
	}
	return string(pqErr.Code) == pqForeignKeyViolation && pqErr.Constraint == replyToConstraint
}

// nullString は空文字列をNULLとして扱うsql.NullStringを返す。
func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// nullStringValue はsql.NullStringから文字列を取得する。
func nullStringValue(ns sql.NullString) string {
	if ns.Valid {
		return ns.String
	}
	return ""
}

var _ CommentRepository = (*PostgresCommentRepo)(nil)
