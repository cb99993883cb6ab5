// Package users はユーザー資格情報（ユーザー名とパスワードハッシュ）の永続化を担います。
package users

import (
	"context"
	"encoding/gob"
	"errors"
	"time"
)

var (
	// ErrNotFound は該当ユーザーが存在しない場合に返されます。
	ErrNotFound = errors.New("user not found")
	// ErrDuplicateUsername はユーザー名の一意制約違反で返されます。
	ErrDuplicateUsername = errors.New("username already exists")
	// ErrUnavailable はデータベースが利用できない場合に返されます。
	ErrUnavailable = errors.New("credential store unavailable")
)

// User は users テーブルの1行です。
type User struct {
	Username     string
	PasswordHash string
	CreatedAt    time.Time
}

// Repository はユーザーの作成と取得を提供します。
type Repository interface {
	Create(ctx context.Context, username, passwordHash string) error
	GetByUsername(ctx context.Context, username string) (*User, error)
}

func init() {
	// セッションに User を保存するため gob に登録する
	gob.Register(User{})
}
