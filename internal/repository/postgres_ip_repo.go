package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// PostgresIPEntryRepo はPostgreSQLを使用した投稿元IPリポジトリ。
type PostgresIPEntryRepo struct {
	db *sql.DB
}

// NewPostgresIPEntryRepo はPostgresIPEntryRepoを生成する。
func NewPostgresIPEntryRepo(db *sql.DB) *PostgresIPEntryRepo {
	return &PostgresIPEntryRepo{db: db}
}

// PurgeOlderThan は記録からageより長く経過したエントリを削除する。
// 記録時刻と同じくデータベースの時計で比較する。
func (r *PostgresIPEntryRepo) PurgeOlderThan(ctx context.Context, age time.Duration) error {
	if _, err := r.db.ExecContext(ctx,
		`DELETE FROM ip_addresses WHERE creation_date < now() - make_interval(secs => $1)`,
		age.Seconds(),
	); err != nil {
		return fmt.Errorf("古いIPエントリの削除に失敗しました: %w", err)
	}
	return nil
}

// Exists は指定IPのエントリが存在するかを返す。
func (r *PostgresIPEntryRepo) Exists(ctx context.Context, ip string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM ip_addresses WHERE ip = $1)`, ip,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("IPエントリの確認に失敗しました: %w", err)
	}
	return exists, nil
}

// Insert は指定IPのエントリを記録する。
func (r *PostgresIPEntryRepo) Insert(ctx context.Context, ip string) error {
	if _, err := r.db.ExecContext(ctx,
		`INSERT INTO ip_addresses (ip) VALUES ($1)`, ip,
	); err != nil {
		return fmt.Errorf("IPエントリの記録に失敗しました: %w", err)
	}
	return nil
}

var _ IPEntryRepository = (*PostgresIPEntryRepo)(nil)
