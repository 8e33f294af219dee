package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/hitoshi/mailgate/internal/model"
)

const userColumns = `id, username, email, password_hash, is_verified, created_at`

// SQLUserRepo はdatabase/sqlを使用したユーザーリポジトリ。
// プレースホルダは$N形式で、出現順に番号を振ること（SQLiteは出現順でバインドする）。
type SQLUserRepo struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLUserRepo はSQLUserRepoを生成する。
func NewSQLUserRepo(db *sql.DB) *SQLUserRepo {
	return &SQLUserRepo{db: db, now: time.Now}
}

// Create は未認証ユーザーを1回のINSERTで作成する。
// 重複はストレージの一意制約で検出し、*model.ConflictErrorを返す。
func (r *SQLUserRepo) Create(ctx context.Context, username, email, passwordHash string) (*model.User, error) {
	user := &model.User{
		Username:     username,
		Email:        email,
		PasswordHash: passwordHash,
		IsVerified:   false,
		CreatedAt:    r.now().UTC(),
	}

	err := r.db.QueryRowContext(ctx,
		`INSERT INTO users (username, email, password_hash, is_verified, created_at)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id`,
		user.Username, user.Email, user.PasswordHash, user.IsVerified, user.CreatedAt,
	).Scan(&user.ID)
	if err != nil {
		if conflict := asConflictError(err); conflict != nil {
			return nil, conflict
		}
		return nil, fmt.Errorf("failed to insert user: %w", err)
	}

	return user, nil
}

// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
func (r *SQLUserRepo) FindByID(ctx context.Context, id int64) (*model.User, error) {
	return r.findOne(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
}

// FindByUsername はユーザー名でユーザーを検索する。見つからない場合はnilを返す。
func (r *SQLUserRepo) FindByUsername(ctx context.Context, username string) (*model.User, error) {
	return r.findOne(ctx, `SELECT `+userColumns+` FROM users WHERE username = $1`, username)
}

// FindByEmail はメールアドレスでユーザーを検索する。見つからない場合はnilを返す。
func (r *SQLUserRepo) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	return r.findOne(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email)
}

// MarkVerified はユーザーを認証済みにする。
// 既に認証済みの場合は書き込みを行わない。フラグがfalseに戻ることはない。
func (r *SQLUserRepo) MarkVerified(ctx context.Context, user *model.User) (*model.User, error) {
	if user.IsVerified {
		return user, nil
	}

	result, err := r.db.ExecContext(ctx,
		`UPDATE users SET is_verified = $1 WHERE id = $2`,
		true, user.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to mark user verified: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return nil, fmt.Errorf("user not found: %d", user.ID)
	}

	verified := *user
	verified.IsVerified = true
	return &verified, nil
}

func (r *SQLUserRepo) findOne(ctx context.Context, query string, arg any) (*model.User, error) {
	user := &model.User{}
	err := r.db.QueryRowContext(ctx, query, arg).Scan(
		&user.ID, &user.Username, &user.Email, &user.PasswordHash, &user.IsVerified, &user.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}

	return user, nil
}

// compile-time interface check
var _ UserRepository = (*SQLUserRepo)(nil)
