package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/sethvargo/go-retry"
)

// Dialect は接続先データベースの種類を表す。
type Dialect string

const (
	// DialectPostgres はPostgreSQL（lib/pqドライバ）を表す。
	DialectPostgres Dialect = "postgres"
	// DialectSQLite はSQLite（mattn/go-sqlite3ドライバ）を表す。
	DialectSQLite Dialect = "sqlite3"
)

// ParseURL はDATABASE_URLから方言とドライバに渡すDSNを求める。
//
//	postgres://..., postgresql://...  -> PostgreSQL（URLをそのまま渡す）
//	sqlite3://<path>, sqlite://<path> -> SQLite（スキーム以降をDSNとして渡す）
func ParseURL(databaseURL string) (Dialect, string, error) {
	switch {
	case strings.HasPrefix(databaseURL, "postgres://"), strings.HasPrefix(databaseURL, "postgresql://"):
		return DialectPostgres, databaseURL, nil
	case strings.HasPrefix(databaseURL, "sqlite3://"):
		return DialectSQLite, strings.TrimPrefix(databaseURL, "sqlite3://"), nil
	case strings.HasPrefix(databaseURL, "sqlite://"):
		return DialectSQLite, strings.TrimPrefix(databaseURL, "sqlite://"), nil
	default:
		return "", "", fmt.Errorf("unsupported database URL scheme: %q", databaseURL)
	}
}

// Open はDATABASE_URLのスキームに応じてデータベース接続を開く。
// sql.Openは接続を試行しないため、実際の接続確認にはWaitForConnectionを使用すること。
// SQLiteは書き込みを直列化するため接続数を1に制限する。
func Open(databaseURL string) (*sql.DB, Dialect, error) {
	dialect, dsn, err := ParseURL(databaseURL)
	if err != nil {
		return nil, "", err
	}

	db, err := sql.Open(string(dialect), dsn)
	if err != nil {
		return nil, "", fmt.Errorf("failed to open database: %w", err)
	}

	if dialect == DialectSQLite {
		db.SetMaxOpenConns(1)
	}

	return db, dialect, nil
}

// WaitForConnection はデータベースへの疎通を指数バックオフで確認する。
// コンテナ起動直後などDBの準備が整うまでの待ち合わせに使用する。
func WaitForConnection(ctx context.Context, db *sql.DB, maxRetries uint64) error {
	backoff := retry.WithMaxRetries(maxRetries, retry.NewExponential(500*time.Millisecond))

	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := db.PingContext(pingCtx); err != nil {
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	return nil
}
