package session

import (
	"bytes"
	"context"
	"encoding/base32"
	"encoding/gob"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	ginsessions "github.com/gin-contrib/sessions"
	"github.com/gorilla/securecookie"
	gsessions "github.com/gorilla/sessions"
	"github.com/redis/go-redis/v9"
)

const (
	keyPrefix      = "session:"
	defaultMaxAge  = 86400 * 30
	sessionIDBytes = 32
)

// RedisStore はセッション内容を Redis に保持し、クッキーには署名済みのセッションIDのみを載せます。
type RedisStore struct {
	rdb     redis.UniversalClient
	codecs  []securecookie.Codec
	options *gsessions.Options
}

var _ ginsessions.Store = (*RedisStore)(nil)

// NewRedisStore は RedisStore を作成します。keyPairs はクッキー署名用の鍵です。
func NewRedisStore(rdb redis.UniversalClient, keyPairs ...[]byte) *RedisStore {
	s := &RedisStore{
		rdb:    rdb,
		codecs: securecookie.CodecsFromPairs(keyPairs...),
		options: &gsessions.Options{
			Path:   "/",
			MaxAge: defaultMaxAge,
		},
	}
	s.setCodecMaxAge(defaultMaxAge)
	return s
}

// Options はクッキー属性を設定します。
func (s *RedisStore) Options(options ginsessions.Options) {
	s.options = options.ToGorillaOptions()
	if s.options.MaxAge > 0 {
		s.setCodecMaxAge(s.options.MaxAge)
	}
}

// Get はリクエスト単位でキャッシュされたセッションを返します。
func (s *RedisStore) Get(r *http.Request, name string) (*gsessions.Session, error) {
	return gsessions.GetRegistry(r).Get(s, name)
}

// New はクッキーのセッションIDから Redis 上の値を読み込みます。
// クッキーが無い、署名が不正、Redis に存在しない場合は新しい空のセッションを返します。
func (s *RedisStore) New(r *http.Request, name string) (*gsessions.Session, error) {
	sess := gsessions.NewSession(s, name)
	opts := *s.options
	sess.Options = &opts
	sess.IsNew = true

	c, err := r.Cookie(name)
	if err != nil {
		return sess, nil
	}
	if err := securecookie.DecodeMulti(name, c.Value, &sess.ID, s.codecs...); err != nil {
		// 改ざん・期限切れのクッキーは未ログイン扱い
		sess.ID = ""
		return sess, nil
	}

	found, err := s.load(r.Context(), sess)
	if err != nil {
		return sess, err
	}
	sess.IsNew = !found
	if !found {
		sess.ID = ""
	}
	return sess, nil
}

// Save はセッションを Redis に書き込み、署名済みIDをクッキーに設定します。
// MaxAge <= 0 の場合は Redis から削除し、クッキーも失効させます。
func (s *RedisStore) Save(r *http.Request, w http.ResponseWriter, sess *gsessions.Session) error {
	if sess.Options.MaxAge <= 0 {
		if sess.ID != "" {
			if err := s.rdb.Del(r.Context(), sessionKey(sess.ID)).Err(); err != nil {
				return err
			}
		}
		http.SetCookie(w, gsessions.NewCookie(sess.Name(), "", sess.Options))
		return nil
	}

	if sess.ID == "" {
		sess.ID = newSessionID()
	}
	if err := s.save(r.Context(), sess); err != nil {
		return err
	}

	encoded, err := securecookie.EncodeMulti(sess.Name(), sess.ID, s.codecs...)
	if err != nil {
		return err
	}
	http.SetCookie(w, gsessions.NewCookie(sess.Name(), encoded, sess.Options))
	return nil
}

func (s *RedisStore) load(ctx context.Context, sess *gsessions.Session) (bool, error) {
	data, err := s.rdb.Get(ctx, sessionKey(sess.ID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, fmt.Errorf("session load: %w", err)
	}
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&sess.Values); err != nil {
		return false, fmt.Errorf("session decode: %w", err)
	}
	return true, nil
}

func (s *RedisStore) save(ctx context.Context, sess *gsessions.Session) error {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(sess.Values); err != nil {
		return fmt.Errorf("session encode: %w", err)
	}
	ttl := time.Duration(sess.Options.MaxAge) * time.Second
	if err := s.rdb.Set(ctx, sessionKey(sess.ID), buf.Bytes(), ttl).Err(); err != nil {
		return fmt.Errorf("session save: %w", err)
	}
	return nil
}

func (s *RedisStore) setCodecMaxAge(age int) {
	for _, c := range s.codecs {
		if sc, ok := c.(*securecookie.SecureCookie); ok {
			sc.MaxAge(age)
		}
	}
}

func newSessionID() string {
	return strings.TrimRight(base32.StdEncoding.EncodeToString(securecookie.GenerateRandomKey(sessionIDBytes)), "=")
}

func sessionKey(id string) string {
	return keyPrefix + id
}
