package database

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
)

// PoolOptions はコネクションプールの設定。ゼロ値の項目はdatabase/sqlの既定値のままにする。
type PoolOptions struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// Open はPostgreSQLデータベース接続を開き、プール設定を適用する。
// sql.Openは接続を試行しないため、実際の接続確認にはdb.Ping()を使用すること。
// 返されたハンドルはプロセス起動時に1度だけ作り、リポジトリへ注入する。
func Open(databaseURL string, opts PoolOptions) (*sql.DB, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if opts.MaxOpenConns > 0 {
		db.SetMaxOpenConns(opts.MaxOpenConns)
	}
	if opts.MaxIdleConns > 0 {
		db.SetMaxIdleConns(opts.MaxIdleConns)
	}
	if opts.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(opts.ConnMaxLifetime)
	}

	return db, nil
}
