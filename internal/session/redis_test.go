package session

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	ginsessions "github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/yourusername/gatehouse/internal/config"
	"github.com/yourusername/gatehouse/internal/users"
)

const cookieName = "test_session"

func newTestStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewRedisStore(rdb, []byte("0123456789abcdef0123456789abcdef")), mr
}

func newTestRouter(store ginsessions.Store) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(ginsessions.Sessions(cookieName, store))
	router.GET("/set", func(c *gin.Context) {
		s := ginsessions.Default(c)
		s.Set("user", users.User{Username: "alice", PasswordHash: "hash"})
		s.Set("issued_at", int64(42))
		if err := s.Save(); err != nil {
			c.String(http.StatusInternalServerError, err.Error())
			return
		}
		c.Status(http.StatusNoContent)
	})
	router.GET("/get", func(c *gin.Context) {
		s := ginsessions.Default(c)
		user, ok := s.Get("user").(users.User)
		if !ok {
			c.String(http.StatusUnauthorized, "none")
			return
		}
		c.String(http.StatusOK, user.Username)
	})
	router.GET("/destroy", func(c *gin.Context) {
		s := ginsessions.Default(c)
		s.Clear()
		s.Options(ginsessions.Options{Path: "/", MaxAge: -1})
		if err := s.Save(); err != nil {
			c.String(http.StatusInternalServerError, err.Error())
			return
		}
		c.Status(http.StatusNoContent)
	})
	return router
}

func sessionCookie(t *testing.T, rec *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range rec.Result().Cookies() {
		if c.Name == cookieName {
			return c
		}
	}
	t.Fatalf("session cookie not set, headers=%v", rec.Header())
	return nil
}

func TestRedisStoreRoundTrip(t *testing.T) {
	store, mr := newTestStore(t)
	router := newTestRouter(store)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/set", nil))
	if rec.Code != http.StatusNoContent {
		t.Fatalf("unexpected status: %d body=%s", rec.Code, rec.Body.String())
	}
	cookie := sessionCookie(t, rec)

	if strings.Contains(cookie.Value, "alice") || strings.Contains(cookie.Value, "hash") {
		t.Fatalf("cookie must not carry session contents: %s", cookie.Value)
	}
	if keys := mr.Keys(); len(keys) != 1 || !strings.HasPrefix(keys[0], keyPrefix) {
		t.Fatalf("unexpected redis keys: %v", keys)
	}
	if ttl := mr.TTL(mr.Keys()[0]); ttl <= 0 {
		t.Fatalf("expected session key to have ttl, got %v", ttl)
	}

	req := httptest.NewRequest(http.MethodGet, "/get", nil)
	req.AddCookie(cookie)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK || rec.Body.String() != "alice" {
		t.Fatalf("unexpected response: %d %q", rec.Code, rec.Body.String())
	}
}

func TestRedisStoreWithoutCookie(t *testing.T) {
	store, _ := newTestStore(t)
	router := newTestRouter(store)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/get", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
}

func TestRedisStoreRejectsTamperedCookie(t *testing.T) {
	store, _ := newTestStore(t)
	router := newTestRouter(store)

	req := httptest.NewRequest(http.MethodGet, "/get", nil)
	req.AddCookie(&http.Cookie{Name: cookieName, Value: "forged-session-id"})
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
}

func TestRedisStoreExpiredServerSide(t *testing.T) {
	store, mr := newTestStore(t)
	router := newTestRouter(store)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/set", nil))
	cookie := sessionCookie(t, rec)

	mr.FlushAll()

	req := httptest.NewRequest(http.MethodGet, "/get", nil)
	req.AddCookie(cookie)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
}

func TestRedisStoreDestroy(t *testing.T) {
	store, mr := newTestStore(t)
	router := newTestRouter(store)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/set", nil))
	cookie := sessionCookie(t, rec)

	req := httptest.NewRequest(http.MethodGet, "/destroy", nil)
	req.AddCookie(cookie)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("unexpected status: %d body=%s", rec.Code, rec.Body.String())
	}
	if keys := mr.Keys(); len(keys) != 0 {
		t.Fatalf("expected session to be deleted, keys=%v", keys)
	}
	if expired := sessionCookie(t, rec); expired.MaxAge >= 0 {
		t.Fatalf("expected expiring cookie, got MaxAge=%d", expired.MaxAge)
	}
}

func TestNewStore(t *testing.T) {
	ctx := context.Background()

	store, closeFn, err := NewStore(ctx, &config.Config{SessionStore: config.SessionStoreMemory})
	if err != nil || store == nil {
		t.Fatalf("memory store: store=%v err=%v", store, err)
	}
	if err := closeFn(); err != nil {
		t.Fatalf("memory closer: %v", err)
	}

	mr := miniredis.RunT(t)
	store, closeFn, err = NewStore(ctx, &config.Config{
		SessionStore:    config.SessionStoreRedis,
		SessionRedisURL: "redis://" + mr.Addr() + "/0",
		SessionSecret:   "secret",
	})
	if err != nil {
		t.Fatalf("redis store: %v", err)
	}
	if _, ok := store.(*RedisStore); !ok {
		t.Fatalf("expected *RedisStore, got %T", store)
	}
	_ = closeFn()

	if _, _, err := NewStore(ctx, &config.Config{SessionStore: config.SessionStoreRedis, SessionRedisURL: "://bad"}); err == nil {
		t.Fatal("expected error for invalid redis url")
	}
	if _, _, err := NewStore(ctx, &config.Config{SessionStore: "file"}); err == nil {
		t.Fatal("expected error for unsupported store")
	}
}
