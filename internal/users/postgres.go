package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/yourusername/gatehouse/internal/database"
)

const uniqueViolation = "23505"

// PostgresRepository は PostgreSQL の users テーブルに対する Repository 実装です。
type PostgresRepository struct {
	db database.DBTX
}

// NewPostgresRepository は PostgresRepository を作成します。
func NewPostgresRepository(db database.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create はユーザーを追加します。一意性はテーブルの主キー制約で保証します。
func (r *PostgresRepository) Create(ctx context.Context, username, passwordHash string) error {
	if r.db == nil {
		return ErrUnavailable
	}

	query := `INSERT INTO users (username, password) VALUES ($1, $2)`

	if _, err := r.db.ExecContext(ctx, query, username, passwordHash); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return ErrDuplicateUsername
		}
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// GetByUsername はユーザー名で1件取得します。存在しない場合は ErrNotFound を返します。
func (r *PostgresRepository) GetByUsername(ctx context.Context, username string) (*User, error) {
	if r.db == nil {
		return nil, ErrUnavailable
	}

	query :=
		`SELECT username, password, created_at FROM users
		 WHERE username = $1`

	user := &User{}
	err := r.db.QueryRowContext(ctx, query, username).Scan(&user.Username, &user.PasswordHash, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return user, nil
}
