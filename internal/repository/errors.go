package repository

import (
	"errors"
	"strings"

	"github.com/hitoshi/mailgate/internal/model"
	"github.com/jackc/pgerrcode"
	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
)

// asConflictError はドライバの一意制約違反エラーをmodel.ConflictErrorに変換する。
// 一意制約違反でない場合はnilを返す。
func asConflictError(err error) *model.ConflictError {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		if string(pqErr.Code) != pgerrcode.UniqueViolation {
			return nil
		}
		return &model.ConflictError{Field: conflictField(pqErr.Constraint + " " + pqErr.Message)}
	}

	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		if sqliteErr.ExtendedCode != sqlite3.ErrConstraintUnique {
			return nil
		}
		// 例: "UNIQUE constraint failed: users.email"
		return &model.ConflictError{Field: conflictField(sqliteErr.Error())}
	}

	return nil
}

// conflictField は制約名・メッセージから重複した列を判定する。
func conflictField(detail string) string {
	if strings.Contains(detail, "email") {
		return "email"
	}
	return "username"
}
