package main

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yourusername/gatehouse/internal/auth"
	"github.com/yourusername/gatehouse/internal/metrics"
	"github.com/yourusername/gatehouse/internal/views"
)

// handleWelcome はセッション状態に関係なく固定の JSON を返す疎通確認用エンドポイントです。
func handleWelcome(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "success",
		"message": "Welcome!",
	})
}

// renderPage は静的ページを描画するハンドラーを返します。
func renderPage(name, title string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.HTML(http.StatusOK, name, auth.PageData(c, title, nil))
	}
}

// setupRoutes はルーティングと認証周りの配線を行います。
func setupRoutes(router *gin.Engine, authManager *auth.Manager, m *metrics.Metrics) {
	router.GET("/", func(c *gin.Context) {
		c.Redirect(http.StatusFound, "/home")
	})
	router.GET("/welcome", handleWelcome)
	if m != nil {
		router.GET("/metrics", gin.WrapH(m.Handler()))
	}

	router.GET("/home", renderPage(views.PageHome, "Home"))
	router.GET("/login", authManager.LoginPage)
	router.POST("/login", authManager.Login)
	router.GET("/register", authManager.RegisterPage)
	router.POST("/register", authManager.Register)

	protected := router.Group("")
	protected.Use(authManager.RequireLogin())
	{
		protected.GET("/discover", renderPage(views.PageDiscover, "Discover"))
		protected.POST("/logout", authManager.VerifyCSRF(), authManager.Logout)
	}
}
