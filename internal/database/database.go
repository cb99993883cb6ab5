// Package database は PostgreSQL への接続とスキーマのマイグレーションを提供します。
package database

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrations embed.FS

const (
	driverName    = "pgx"
	migrationsDir = "migrations"
	pingTimeout   = 5 * time.Second
)

// DBTX は *sql.DB と *sql.Tx の両方が満たす、リポジトリが使う最小限のインターフェースです。
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Open は接続プールを作成し、疎通確認を行います。
// 疎通に失敗してもプール自体は返すため、呼び出し側はエラーをログに残して起動を続行できます。
func Open(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("db open error: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		return db, fmt.Errorf("db ping error: %w", err)
	}
	return db, nil
}

// gooseUpContext はテストで差し替えるための goose.UpContext です。
var gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
	return goose.UpContext(ctx, db, dir, opts...)
}

// Migrate は埋め込みマイグレーションを適用します。
func Migrate(ctx context.Context, db *sql.DB) error {
	if db == nil {
		return fmt.Errorf("db is nil")
	}
	goose.SetBaseFS(migrations)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("goose dialect: %w", err)
	}
	if err := gooseUpContext(ctx, db, migrationsDir); err != nil {
		return fmt.Errorf("migration error: %w", err)
	}
	return nil
}
