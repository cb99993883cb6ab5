// Package session はサーバー側セッションストアを提供します。
//
// クッキーには署名済みの不透明なセッションIDのみを載せ、内容はサーバー側
// （Redis またはプロセスメモリ）に保持します。
package session

import (
	"context"
	"fmt"

	ginsessions "github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/memstore"
	"github.com/gorilla/securecookie"
	"github.com/redis/go-redis/v9"

	"github.com/yourusername/gatehouse/internal/config"
)

// NewStore は設定に応じたセッションストアを作成します。
// redis の場合は返された closer で接続を閉じてください。
func NewStore(ctx context.Context, cfg *config.Config) (ginsessions.Store, func() error, error) {
	secret := []byte(cfg.SessionSecret)
	if len(secret) == 0 {
		// 開発用: 未設定なら起動ごとの一時鍵で署名する（再起動で全セッションが無効になる）
		secret = securecookie.GenerateRandomKey(32)
	}

	switch cfg.SessionStore {
	case config.SessionStoreRedis:
		opt, err := redis.ParseURL(cfg.SessionRedisURL)
		if err != nil {
			return nil, nil, fmt.Errorf("parse session redis url: %w", err)
		}
		rdb := redis.NewClient(opt)
		if err := rdb.Ping(ctx).Err(); err != nil {
			_ = rdb.Close()
			return nil, nil, fmt.Errorf("session redis ping: %w", err)
		}
		return NewRedisStore(rdb, secret), rdb.Close, nil
	case config.SessionStoreMemory, "":
		return memstore.NewStore(secret), func() error { return nil }, nil
	default:
		return nil, nil, fmt.Errorf("unsupported session store: %s", cfg.SessionStore)
	}
}
