// Package ratelimit はIP単位の投稿間隔を制御するウィンドウゲートを提供する。
//
// 1つのIPにつきウィンドウ内で1件だけを記録し、記録が残っている間の投稿を拒否する。
// Admitは判定のみ、Recordは保存成功後の記録のみを行う。
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/hitoshi/comment-sidecar/internal/model"
	"github.com/hitoshi/comment-sidecar/internal/repository"
)

// DefaultWindow は投稿間隔のデフォルトのウィンドウ幅。
const DefaultWindow = 30 * time.Second

// PostgresGate はip_addressesテーブルに記録を保持するゲート。
type PostgresGate struct {
	repo   repository.IPEntryRepository
	window time.Duration
}

// NewPostgresGate はPostgresGateを生成する。windowが0以下の場合はDefaultWindowを使う。
func NewPostgresGate(repo repository.IPEntryRepository, window time.Duration) *PostgresGate {
	if window <= 0 {
		window = DefaultWindow
	}
	return &PostgresGate{repo: repo, window: window}
}

// Admit はウィンドウを過ぎた記録を削除したうえで、ipの記録が残っていれば拒否する。
func (g *PostgresGate) Admit(ctx context.Context, ip string) error {
	if err := g.repo.PurgeOlderThan(ctx, g.window); err != nil {
		return fmt.Errorf("failed to purge expired ip entries: %w", err)
	}

	exists, err := g.repo.Exists(ctx, ip)
	if err != nil {
		return fmt.Errorf("failed to look up ip entry: %w", err)
	}
	if exists {
		return model.NewRateLimitExceededError()
	}
	return nil
}

// Record はipの投稿を記録する。
func (g *PostgresGate) Record(ctx context.Context, ip string) error {
	return g.repo.Insert(ctx, ip)
}
