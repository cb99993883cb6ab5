// Package main は Web サーバーのエントリーポイントです。
package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"strings"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"

	"github.com/yourusername/gatehouse/internal/auth"
	"github.com/yourusername/gatehouse/internal/config"
	"github.com/yourusername/gatehouse/internal/database"
	"github.com/yourusername/gatehouse/internal/metrics"
	"github.com/yourusername/gatehouse/internal/password"
	"github.com/yourusername/gatehouse/internal/session"
	"github.com/yourusername/gatehouse/internal/users"
	"github.com/yourusername/gatehouse/internal/views"
)

func main() {
	// 設定の読み込み
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	gin.SetMode(cfg.GinMode)
	logger := log.Default()
	ctx := context.Background()

	// データベース接続（失敗してもログのみで起動を続ける）
	db, err := database.Open(ctx, cfg.DatabaseDSN())
	if err != nil {
		logger.Printf("ERROR: database connection failed: %v", err)
	} else {
		logger.Printf("Database connection successful")
		if err := database.Migrate(ctx, db); err != nil {
			logger.Printf("ERROR: %v", err)
		}
	}
	if db != nil {
		defer db.Close()
	}

	store, closeStore, err := session.NewStore(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to create session store: %v", err)
	}
	defer closeStore()

	m := metrics.New()
	authManager := auth.NewManager(newUserRepository(db), password.NewBcrypt(password.DefaultCost), store, auth.Options{
		MaxLoginAttempts: cfg.LoginMaxAttempts,
		Metrics:          m,
		Logger:           logger,
	})

	router, err := newRouter(cfg, store, authManager, m)
	if err != nil {
		log.Fatalf("Failed to set up router: %v", err)
	}

	addr := ":" + cfg.Port
	log.Printf("Server is listening on %s (mode: %s)", addr, cfg.GinMode)
	if err := router.Run(addr); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}

// newRouter は Gin エンジンを組み立て、ミドルウェアとルートを登録します。
func newRouter(cfg *config.Config, store sessions.Store, authManager *auth.Manager, m *metrics.Metrics) (*gin.Engine, error) {
	// Ginルーターの初期化（デフォルトミドルウェア: Logger, Recovery）
	router := gin.Default()

	// 信頼するプロキシ以外からの X-Forwarded-For は無視する（ログイン試行制限のキーを偽装させない）
	if err := router.SetTrustedProxies(cfg.TrustedProxies); err != nil {
		return nil, fmt.Errorf("set trusted proxies: %w", err)
	}

	router.SetHTMLTemplate(views.MustLoad())
	router.Use(auth.RequestID(), m.Middleware())

	// セッションストアの設定
	store.Options(sessions.Options{
		Path:     "/",
		MaxAge:   auth.SessionMaxAgeSeconds(),
		HttpOnly: true,
		Secure:   cfg.GinMode == gin.ReleaseMode,
		SameSite: http.SameSiteLaxMode,
	})
	router.Use(sessions.Sessions(auth.SessionCookieName, store))

	// CORSミドルウェアの設定
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = strings.Split(cfg.CORSAllowedOrigins, ",")
	corsConfig.AllowCredentials = true
	corsConfig.AllowHeaders = []string{
		"Origin",
		"Content-Type",
		"Accept",
		"X-CSRF-Token",
	}
	corsConfig.ExposeHeaders = []string{"X-Request-Id"}
	router.Use(cors.New(corsConfig))

	// 計測は常に行い、公開は METRICS_ENABLED で切り替える
	var exposed *metrics.Metrics
	if cfg.MetricsEnabled {
		exposed = m
	}
	setupRoutes(router, authManager, exposed)
	return router, nil
}

// newUserRepository は db が nil でも使えるリポジトリを返します（その場合は全リクエストが失敗扱い）。
func newUserRepository(db *sql.DB) users.Repository {
	var conn database.DBTX
	if db != nil {
		conn = db
	}
	return users.NewPostgresRepository(conn)
}
