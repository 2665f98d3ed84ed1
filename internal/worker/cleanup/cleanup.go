// Package cleanup は投稿元IPの記録を定期的に削除するジョブを提供する。
//
// ゲートは投稿のたびに期限切れの記録を削除するが、投稿が途絶えると
// 最後のウィンドウ分の記録が残り続ける。このジョブはそれを一定間隔で掃除する。
package cleanup

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"
)

// DefaultInterval はジョブの実行間隔のデフォルト値。
const DefaultInterval = 10 * time.Minute

// Executor はSQLのExecContextを抽象化するインターフェース。
// *sql.DB や *sql.Tx を受け付けることができる。
type Executor interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// CleanupJob はウィンドウを過ぎたip_addressesの行を削除するジョブ。
type CleanupJob struct {
	db     Executor
	logger *slog.Logger
	Window time.Duration // この時間より古い記録を削除する
}

// NewCleanupJob は新しいCleanupJobを生成する。
func NewCleanupJob(db Executor, window time.Duration, logger *slog.Logger) *CleanupJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &CleanupJob{
		db:     db,
		logger: logger,
		Window: window,
	}
}

// Run はWindowより古い投稿元IPの記録を削除する。
// 冪等: 削除対象がない場合でもエラーにならない。
func (j *CleanupJob) Run(ctx context.Context) error {
	start := time.Now()

	query := `DELETE FROM ip_addresses WHERE creation_date < now() - make_interval(secs => $1)`
	result, err := j.db.ExecContext(ctx, query, j.Window.Seconds())
	if err != nil {
		j.logger.Error("投稿元IPのクリーンアップに失敗しました",
			slog.String("error", err.Error()),
			slog.Duration("window", j.Window),
		)
		return fmt.Errorf("投稿元IPのクリーンアップに失敗: %w", err)
	}

	deletedCount, err := result.RowsAffected()
	if err != nil {
		j.logger.Error("削除件数の取得に失敗しました",
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("削除件数の取得に失敗: %w", err)
	}

	j.logger.Info("投稿元IPのクリーンアップが完了しました",
		slog.Int64("deleted_count", deletedCount),
		slog.Duration("window", j.Window),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)

	return nil
}

// Start はctxがキャンセルされるまでintervalごとにRunを実行する。起動直後に1回実行する。
// Runの失敗はログに残して次の周期を待つ。
func (j *CleanupJob) Start(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultInterval
	}

	_ = j.Run(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_ = j.Run(ctx)
		}
	}
}
