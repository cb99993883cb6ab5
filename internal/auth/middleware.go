package auth

import (
	"crypto/subtle"
	"net/http"
	"time"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yourusername/gatehouse/internal/users"
)

// RequestIDKey はリクエストIDを gin コンテキストに保存するキーです。
const RequestIDKey = "request_id"

const requestIDHeader = "X-Request-Id"

// RequestID はリクエストIDを採番し、レスポンスヘッダーとコンテキストに設定します。
// 受信ヘッダーに既にIDがあればそれを引き継ぎます。
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(RequestIDKey, id)
		c.Header(requestIDHeader, id)
		c.Next()
	}
}

// RequireLogin はセッションを検証するミドルウェアを返します。
// 未ログインまたは期限切れの場合は /login へリダイレクトします。
func (m *Manager) RequireLogin() gin.HandlerFunc {
	return func(c *gin.Context) {
		session := sessions.Default(c)
		user, ok := session.Get(sessionKeyUser).(users.User)
		if !ok || user.Username == "" {
			c.Redirect(http.StatusFound, "/login")
			c.Abort()
			return
		}

		now := time.Now()
		issuedAt := readUnix(session.Get(sessionKeyIssuedAt))
		lastActive := readUnix(session.Get(sessionKeyLastActive))

		if issuedAt.IsZero() || now.Sub(issuedAt) > maxSessionLifetime ||
			lastActive.IsZero() || now.Sub(lastActive) > idleTimeout {
			session.Clear()
			_ = session.Save()
			c.Redirect(http.StatusFound, "/login")
			c.Abort()
			return
		}

		session.Set(sessionKeyLastActive, now.Unix())
		_ = session.Save()
		c.Set(ContextUserKey, user)
		c.Next()
	}
}

// VerifyCSRF は X-CSRF-Token ヘッダーまたは csrf_token フォーム値を検証するミドルウェアです。
func (m *Manager) VerifyCSRF() gin.HandlerFunc {
	return func(c *gin.Context) {
		if isSafeMethod(c.Request.Method) {
			c.Next()
			return
		}

		session := sessions.Default(c)
		expected, ok := session.Get(sessionKeyCSRF).(string)
		if !ok || expected == "" {
			c.AbortWithStatus(http.StatusForbidden)
			return
		}

		received := c.GetHeader(csrfHeader)
		if received == "" {
			received = c.PostForm(csrfFormField)
		}
		if subtle.ConstantTimeCompare([]byte(expected), []byte(received)) != 1 {
			c.AbortWithStatus(http.StatusForbidden)
			return
		}

		c.Next()
	}
}

func isSafeMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodTrace:
		return true
	default:
		return false
	}
}
