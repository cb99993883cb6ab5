// Package password はパスワードのハッシュ化と照合を提供します。
package password

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// DefaultCost は登録時に使用する bcrypt のコスト（10ラウンド相当）です。
const DefaultCost = 10

// ErrMismatch はパスワードがハッシュと一致しない場合に返されます。
var ErrMismatch = errors.New("password does not match")

// Hasher はパスワードのハッシュ化と照合を行います。
type Hasher interface {
	Hash(plain string) (string, error)
	Compare(hash, plain string) error
}

// Bcrypt は bcrypt による Hasher 実装です。
type Bcrypt struct {
	cost int
}

// NewBcrypt は指定コストの Bcrypt を作成します。範囲外のコストは DefaultCost に丸めます。
func NewBcrypt(cost int) *Bcrypt {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = DefaultCost
	}
	return &Bcrypt{cost: cost}
}

// Hash はソルト付きハッシュを生成します。
func (b *Bcrypt) Hash(plain string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(plain), b.cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hashed), nil
}

// Compare は平文とハッシュを照合し、不一致なら ErrMismatch を返します。
func (b *Bcrypt) Compare(hash, plain string) error {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain))
	switch {
	case err == nil:
		return nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return ErrMismatch
	default:
		return fmt.Errorf("compare password: %w", err)
	}
}
