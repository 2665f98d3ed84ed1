package comment

import (
	"crypto/rand"
	"fmt"
	"math/big"

	"github.com/hitoshi/comment-sidecar/internal/model"
)

const tokenAlphabet = "0123456789abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"

// generateUnsubscribeToken は配信停止リンク用の英数字トークンを生成する。
func generateUnsubscribeToken() (string, error) {
	max := big.NewInt(int64(len(tokenAlphabet)))
	b := make([]byte, model.UnsubscribeTokenLength)
	for i := range b {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("配信停止トークンの生成に失敗しました: %w", err)
		}
		b[i] = tokenAlphabet[n.Int64()]
	}
	return string(b), nil
}
