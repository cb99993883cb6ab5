// Package auth はユーザー登録・ログイン・セッション検証を提供します。
package auth

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"

	"github.com/yourusername/gatehouse/internal/metrics"
	"github.com/yourusername/gatehouse/internal/password"
	"github.com/yourusername/gatehouse/internal/users"
)

const (
	SessionCookieName    = "gh_session"
	sessionKeyUser       = "user"
	sessionKeyIssuedAt   = "issued_at"
	sessionKeyLastActive = "last_activity"
	sessionKeyCSRF       = "csrf_token"

	csrfHeader    = "X-CSRF-Token"
	csrfFormField = "csrf_token"

	formUsername = "input_username"
	formPassword = "input_password"
)

// credentialsRequest はフォーム送信と JSON の両方を受け付けるログイン・登録リクエストです。
type credentialsRequest struct {
	Username string `form:"input_username" json:"input_username"`
	Password string `form:"input_password" json:"input_password"`
}

// 画面に表示する固定メッセージ
const (
	msgRegisterFailed  = "An error occurred while registering. Please try again."
	msgLoginFailed     = "Incorrect username or password"
	msgTooManyAttempts = "Too many failed login attempts. Please try again later."
)

var (
	maxSessionLifetime = 12 * time.Hour
	idleTimeout        = 30 * time.Minute
	loginWindow        = 15 * time.Minute
	lockDuration       = 10 * time.Minute
)

// ErrInvalidCredentials はパスワードが一致しない場合のエラーです。
var ErrInvalidCredentials = errors.New("incorrect username or password")

// SessionMaxAgeSeconds はクッキーの MaxAge に利用する秒数を返します。
func SessionMaxAgeSeconds() int {
	return int(maxSessionLifetime.Seconds())
}

// ContextUserKey は、ハンドラー間でログイン済みユーザーを共有するためのキーです。
const ContextUserKey = "auth.user"

type attemptState struct {
	count        int
	firstAttempt time.Time
	lockedUntil  time.Time
}

// Options は Manager の任意設定です。
type Options struct {
	// MaxLoginAttempts は IP ごとの連続失敗上限です。0 で試行制限を無効にします。
	MaxLoginAttempts int
	Metrics          *metrics.Metrics
	Logger           *log.Logger
}

// Manager は認証処理と状態をまとめた構造体です。
type Manager struct {
	users       users.Repository
	hasher      password.Hasher
	sessions    sessions.Store
	metrics     *metrics.Metrics
	logger      *log.Logger
	maxAttempts int

	lock     sync.Mutex
	attempts map[string]*attemptState
}

// NewManager は認証マネージャーを作成します。
// store は sessions.Sessions に渡したものと同じストアを指定してください（ログイン時のID再発行に使います）。
func NewManager(repo users.Repository, hasher password.Hasher, store sessions.Store, opts Options) *Manager {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &Manager{
		users:       repo,
		hasher:      hasher,
		sessions:    store,
		metrics:     opts.Metrics,
		logger:      logger,
		maxAttempts: opts.MaxLoginAttempts,
		attempts:    make(map[string]*attemptState),
	}
}

// CurrentUser は RequireLogin が設定したユーザーを返します。
func CurrentUser(c *gin.Context) (users.User, bool) {
	v, ok := c.Get(ContextUserKey)
	if !ok {
		return users.User{}, false
	}
	user, ok := v.(users.User)
	return user, ok
}

func (m *Manager) checkLock(ip string) time.Duration {
	if m.maxAttempts <= 0 {
		return 0
	}
	m.lock.Lock()
	defer m.lock.Unlock()

	state, ok := m.attempts[ip]
	if !ok {
		return 0
	}
	now := time.Now()
	if now.After(state.lockedUntil) {
		return 0
	}
	return time.Until(state.lockedUntil)
}

func (m *Manager) recordFailure(ip string) {
	if m.maxAttempts <= 0 {
		return
	}
	m.lock.Lock()
	defer m.lock.Unlock()

	now := time.Now()
	state, ok := m.attempts[ip]
	if !ok || now.Sub(state.firstAttempt) > loginWindow {
		state = &attemptState{firstAttempt: now}
		m.attempts[ip] = state
	}

	state.count++
	if state.count >= m.maxAttempts {
		state.lockedUntil = now.Add(lockDuration)
		state.count = m.maxAttempts
	}
}

func (m *Manager) resetAttempts(ip string) {
	if m.maxAttempts <= 0 {
		return
	}
	m.lock.Lock()
	defer m.lock.Unlock()
	delete(m.attempts, ip)
}

func generateToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

func readUnix(v interface{}) time.Time {
	switch t := v.(type) {
	case int64:
		return time.Unix(t, 0)
	case int:
		return time.Unix(int64(t), 0)
	case float64:
		return time.Unix(int64(t), 0)
	default:
		return time.Time{}
	}
}
