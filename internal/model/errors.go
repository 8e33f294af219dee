// Package model はドメインモデルを定義する。
package model

import (
	"errors"
	"fmt"
)

// ValidationError は入力値（パスワード・ユーザー名・メールアドレス）の形式エラーを表す。
// Messageはそのまま画面に表示できる文言とする。
type ValidationError struct {
	Field   string
	Message string
}

// Error はerrorインターフェースを実装する。
func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// ConflictError はユーザー名またはメールアドレスの重複を表す。
// ストレージの一意制約違反から生成される。
// Verifiedは既存アカウントが認証済みかどうか（メール重複の場合のみ意味を持つ）。
type ConflictError struct {
	Field    string // "username" または "email"
	Verified bool
}

// Error はerrorインターフェースを実装する。
func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s already exists", e.Field)
}

// TokenErrorKind は検証トークンの失敗理由。
type TokenErrorKind int

const (
	// TokenInvalid は署名不一致・用途不一致・形式不正を表す。
	TokenInvalid TokenErrorKind = iota
	// TokenExpired は有効期限切れを表す。
	TokenExpired
)

// String はTokenErrorKindの文字列表現を返す。
func (k TokenErrorKind) String() string {
	switch k {
	case TokenExpired:
		return "expired"
	default:
		return "invalid"
	}
}

// TokenError はメール認証トークンの検証失敗を表す。
// 利用者には理由を区別せず同じ文言を表示すること。
type TokenError struct {
	Kind TokenErrorKind
	Err  error
}

// Error はerrorインターフェースを実装する。
func (e *TokenError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("token %s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("token %s", e.Kind)
}

// Unwrap は元のエラーを返す。
func (e *TokenError) Unwrap() error {
	return e.Err
}

// DeliveryError はメール送信の失敗を表す。リトライは行わない。
type DeliveryError struct {
	Recipient string
	Err       error
}

// Error はerrorインターフェースを実装する。
func (e *DeliveryError) Error() string {
	return fmt.Sprintf("failed to deliver mail to %s: %v", e.Recipient, e.Err)
}

// Unwrap は元のエラーを返す。
func (e *DeliveryError) Unwrap() error {
	return e.Err
}

var (
	// ErrAuthRequired は保護されたページに有効なセッションなしでアクセスしたことを表す。
	ErrAuthRequired = errors.New("authentication required")

	// ErrInvalidCredentials はユーザー名またはパスワードの不一致を表す。
	ErrInvalidCredentials = errors.New("invalid username or password")

	// ErrEmailNotVerified は未認証アカウントでのログイン試行を表す。
	// 一般的な認証失敗ではなく、メール認証を促す案内として扱う。
	ErrEmailNotVerified = errors.New("email address is not verified")

	// ErrAccountNotFound は指定メールアドレスのアカウントが存在しないことを表す。
	ErrAccountNotFound = errors.New("account not found")

	// ErrAlreadyVerified は既に認証済みのアカウントに再送を要求したことを表す。
	ErrAlreadyVerified = errors.New("email already verified")
)

// IsTokenError はerrがTokenErrorかどうかを返す。
func IsTokenError(err error) bool {
	var tokenErr *TokenError
	return errors.As(err, &tokenErr)
}
