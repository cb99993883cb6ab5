package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"

	"github.com/yourusername/gatehouse/internal/metrics"
	"github.com/yourusername/gatehouse/internal/password"
	"github.com/yourusername/gatehouse/internal/session"
	"github.com/yourusername/gatehouse/internal/users"
	"github.com/yourusername/gatehouse/internal/views"
)

// PageData はテンプレートに渡す共通データを組み立てます。
// ログイン中であればユーザーと CSRF トークンを含めます。
func PageData(c *gin.Context, title string, extra gin.H) gin.H {
	data := gin.H{
		"Title":     title,
		"User":      nil,
		"CSRFToken": "",
		"Error":     "",
		"Message":   "",
	}
	sess := sessions.Default(c)
	if user, ok := CurrentUser(c); ok {
		data["User"] = user
	} else if user, ok := sess.Get(sessionKeyUser).(users.User); ok {
		data["User"] = user
	}
	if token, ok := sess.Get(sessionKeyCSRF).(string); ok {
		data["CSRFToken"] = token
	}
	for k, v := range extra {
		data[k] = v
	}
	return data
}

// RegisterPage は GET /register のハンドラーです。
func (m *Manager) RegisterPage(c *gin.Context) {
	c.HTML(http.StatusOK, views.PageRegister, PageData(c, "Register", nil))
}

// LoginPage は GET /login のハンドラーです。
func (m *Manager) LoginPage(c *gin.Context) {
	c.HTML(http.StatusOK, views.PageLogin, PageData(c, "Login", nil))
}

// Register は POST /register のハンドラーです。
// 失敗理由（ユーザー名重複など）は画面に出さず、汎用メッセージで 400 を返します。
func (m *Manager) Register(c *gin.Context) {
	var req credentialsRequest
	err := c.ShouldBind(&req)
	if err == nil {
		err = m.register(c.Request.Context(), req.Username, req.Password)
	}
	if err != nil {
		if errors.Is(err, users.ErrDuplicateUsername) {
			m.logger.Printf("register rejected: duplicate username request_id=%s", c.GetString(RequestIDKey))
		} else {
			m.logger.Printf("register failed: %v request_id=%s", err, c.GetString(RequestIDKey))
		}
		m.metrics.ObserveRegistration(metrics.ResultFailure)
		c.HTML(http.StatusBadRequest, views.PageRegister, PageData(c, "Register", gin.H{
			"Error": msgRegisterFailed,
		}))
		return
	}

	m.metrics.ObserveRegistration(metrics.ResultSuccess)
	c.Redirect(http.StatusSeeOther, "/login")
}

func (m *Manager) register(ctx context.Context, username, plain string) error {
	if username == "" || plain == "" {
		return errors.New("username and password are required")
	}
	hash, err := m.hasher.Hash(plain)
	if err != nil {
		return err
	}
	return m.users.Create(ctx, username, hash)
}

// Login は POST /login のハンドラーです。
// 未登録ユーザーは /register へ、パスワード不一致は 401 でログイン画面を再表示します。
func (m *Manager) Login(c *gin.Context) {
	ip := c.ClientIP()
	if retryAfter := m.checkLock(ip); retryAfter > 0 {
		// Retry-After は秒数で返す
		c.Header("Retry-After", strconv.FormatInt(int64(retryAfter.Seconds()), 10))
		m.metrics.ObserveLogin(metrics.ResultThrottled)
		c.HTML(http.StatusTooManyRequests, views.PageLogin, PageData(c, "Login", gin.H{
			"Error": msgTooManyAttempts,
		}))
		return
	}

	var req credentialsRequest
	if err := c.ShouldBind(&req); err != nil {
		m.logger.Printf("login rejected: invalid body: %v request_id=%s", err, c.GetString(RequestIDKey))
		m.recordFailure(ip)
		m.metrics.ObserveLogin(metrics.ResultFailure)
		c.HTML(http.StatusUnauthorized, views.PageLogin, PageData(c, "Login", gin.H{
			"Error": msgLoginFailed,
		}))
		return
	}

	user, err := m.authenticate(c.Request.Context(), req.Username, req.Password)
	if errors.Is(err, users.ErrNotFound) {
		m.metrics.ObserveLogin(metrics.ResultUnknown)
		c.Redirect(http.StatusSeeOther, "/register")
		return
	}
	if err != nil {
		if !errors.Is(err, ErrInvalidCredentials) {
			m.logger.Printf("login failed: %v request_id=%s", err, c.GetString(RequestIDKey))
		}
		m.recordFailure(ip)
		m.metrics.ObserveLogin(metrics.ResultFailure)
		c.HTML(http.StatusUnauthorized, views.PageLogin, PageData(c, "Login", gin.H{
			"Error": msgLoginFailed,
		}))
		return
	}

	m.resetAttempts(ip)

	if err := m.startSession(c, user); err != nil {
		m.logger.Printf("session save failed: %v request_id=%s", err, c.GetString(RequestIDKey))
		c.HTML(http.StatusInternalServerError, views.PageLogin, PageData(c, "Login", gin.H{
			"Error": msgLoginFailed,
		}))
		return
	}

	m.metrics.ObserveLogin(metrics.ResultSuccess)
	c.Redirect(http.StatusSeeOther, "/discover")
}

// authenticate はユーザーを検索してパスワードを照合します。
// 未登録なら users.ErrNotFound、不一致なら ErrInvalidCredentials を返します。
func (m *Manager) authenticate(ctx context.Context, username, plain string) (*users.User, error) {
	if username == "" {
		return nil, users.ErrNotFound
	}
	user, err := m.users.GetByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if err := m.hasher.Compare(user.PasswordHash, plain); err != nil {
		if errors.Is(err, password.ErrMismatch) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("verify password: %w", err)
	}
	return user, nil
}

func (m *Manager) startSession(c *gin.Context, user *users.User) error {
	token, err := generateToken()
	if err != nil {
		return fmt.Errorf("generate csrf token: %w", err)
	}

	// ログイン前のセッションIDは引き継がない
	if err := session.Rotate(c, m.sessions, SessionCookieName); err != nil {
		return fmt.Errorf("rotate session: %w", err)
	}

	sess := sessions.Default(c)
	now := time.Now()
	sess.Set(sessionKeyUser, *user)
	sess.Set(sessionKeyIssuedAt, now.Unix())
	sess.Set(sessionKeyLastActive, now.Unix())
	sess.Set(sessionKeyCSRF, token)
	return sess.Save()
}

// Logout は POST /logout のハンドラーです。
func (m *Manager) Logout(c *gin.Context) {
	sess := sessions.Default(c)
	sess.Clear()
	sess.Options(sessions.Options{Path: "/", MaxAge: -1, HttpOnly: true})
	if err := sess.Save(); err != nil {
		m.logger.Printf("session delete failed: %v request_id=%s", err, c.GetString(RequestIDKey))
		c.AbortWithStatus(http.StatusInternalServerError)
		return
	}
	c.Redirect(http.StatusSeeOther, "/login")
}
