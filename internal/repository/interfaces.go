// Package repository はデータ永続化のインターフェースと
// database/sqlによる実装（PostgreSQL・SQLite共通）を提供する。
package repository

import (
	"context"

	"github.com/hitoshi/mailgate/internal/model"
)

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// Create は未認証ユーザーを作成する。
	// ユーザー名・メールアドレスの重複はストレージの一意制約で検出し、
	// *model.ConflictError を返す。事前チェックは行わない。
	Create(ctx context.Context, username, email, passwordHash string) (*model.User, error)

	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id int64) (*model.User, error)

	// FindByUsername はユーザー名でユーザーを検索する。見つからない場合はnilを返す。
	FindByUsername(ctx context.Context, username string) (*model.User, error)

	// FindByEmail はメールアドレスでユーザーを検索する。見つからない場合はnilを返す。
	FindByEmail(ctx context.Context, email string) (*model.User, error)

	// MarkVerified はユーザーを認証済みにする。
	// 既に認証済みの場合は何もせずそのまま返す（冪等）。
	MarkVerified(ctx context.Context, user *model.User) (*model.User, error)
}

// SessionRepository はセッションデータの永続化インターフェース。
type SessionRepository interface {
	// Create はセッションを作成する。
	Create(ctx context.Context, session *model.Session) error
	// FindByID は指定IDのセッションを取得する。存在しない・期限切れの場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Session, error)
	// DeleteByID は指定IDのセッションを削除する。
	DeleteByID(ctx context.Context, id string) error
	// DeleteByUserID は指定ユーザーの全セッションを削除する。
	DeleteByUserID(ctx context.Context, userID int64) error
}
