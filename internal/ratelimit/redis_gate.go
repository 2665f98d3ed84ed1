package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/hitoshi/comment-sidecar/internal/model"
)

const redisKeyPrefix = "ratelimit:"

// RedisGate はTTL付きキーで記録を保持するゲート。
// キーの期限切れがウィンドウを過ぎた記録の削除にあたる。
type RedisGate struct {
	client *redis.Client
	window time.Duration
}

// NewRedisGate はredisURLに接続してRedisGateを生成する。
func NewRedisGate(redisURL string, window time.Duration) (*RedisGate, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return NewRedisGateWithClient(client, window), nil
}

// NewRedisGateWithClient は既存のクライアントからRedisGateを生成する。
func NewRedisGateWithClient(client *redis.Client, window time.Duration) *RedisGate {
	if window <= 0 {
		window = DefaultWindow
	}
	return &RedisGate{client: client, window: window}
}

func (g *RedisGate) key(ip string) string {
	return redisKeyPrefix + ip
}

// Admit はipのキーが残っていれば拒否する。
func (g *RedisGate) Admit(ctx context.Context, ip string) error {
	n, err := g.client.Exists(ctx, g.key(ip)).Result()
	if err != nil {
		return fmt.Errorf("look up ip entry: %w", err)
	}
	if n > 0 {
		return model.NewRateLimitExceededError()
	}
	return nil
}

// Record はipのキーをウィンドウ幅のTTLで設定する。
func (g *RedisGate) Record(ctx context.Context, ip string) error {
	if err := g.client.Set(ctx, g.key(ip), 1, g.window).Err(); err != nil {
		return fmt.Errorf("record ip entry: %w", err)
	}
	return nil
}

// Ping はRedisへの疎通を確認する。
func (g *RedisGate) Ping(ctx context.Context) error {
	return g.client.Ping(ctx).Err()
}

// Close はRedisとの接続を閉じる。
func (g *RedisGate) Close() error {
	return g.client.Close()
}
