// Package credential は資格情報（パスワード・ユーザー名・メールアドレス）の検証と
// パスワードハッシュ化を提供する。
package credential

import (
	"strings"

	"github.com/go-playground/validator/v10"
)

// MinPasswordLength はパスワードの最小文字数。
const MinPasswordLength = 8

// passwordSymbols はパスワードに1文字以上含める必要がある記号の集合。
const passwordSymbols = `!@#$%^&*(),.?":{}|<>`

// MaxFieldLength はユーザー名・メールアドレスの最大長（usersテーブルの列長）。
const MaxFieldLength = 250

var validate = validator.New()

// ValidatePasswordStrength はパスワードが強度要件を満たすかを判定する。
// 8文字以上かつ英大文字・英小文字・数字・記号をそれぞれ1文字以上含む場合にtrueを返す。
func ValidatePasswordStrength(password string) bool {
	if len(password) < MinPasswordLength {
		return false
	}

	var hasUpper, hasLower, hasDigit, hasSymbol bool
	for i := 0; i < len(password); i++ {
		c := password[i]
		switch {
		case c >= 'A' && c <= 'Z':
			hasUpper = true
		case c >= 'a' && c <= 'z':
			hasLower = true
		case c >= '0' && c <= '9':
			hasDigit = true
		case strings.IndexByte(passwordSymbols, c) >= 0:
			hasSymbol = true
		}
	}

	return hasUpper && hasLower && hasDigit && hasSymbol
}

// ValidateUsername はユーザー名が英数字とアンダースコアのみで構成されるかを判定する。
// 空文字列はfalse。
func ValidateUsername(username string) bool {
	if username == "" {
		return false
	}
	for i := 0; i < len(username); i++ {
		c := username[i]
		if !isUsernameChar(c) {
			return false
		}
	}
	return true
}

func isUsernameChar(c byte) bool {
	return (c >= 'A' && c <= 'Z') ||
		(c >= 'a' && c <= 'z') ||
		(c >= '0' && c <= '9') ||
		c == '_'
}

// ValidateEmail はメールアドレスの形式を検証する。
func ValidateEmail(email string) bool {
	return validate.Var(email, "required,email,max=250") == nil
}
