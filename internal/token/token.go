// Package token はメールアドレス認証用の署名付きトークンを発行・検証する。
package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/hitoshi/mailgate/internal/model"
)

// PurposeEmailVerify はメール認証トークンの用途を表す。
// 同じ鍵で署名された別用途のトークンを受け付けないために使用する。
const PurposeEmailVerify = "email-verify"

// DefaultTTL はトークンの有効期間のデフォルト値。
const DefaultTTL = time.Hour

var (
	errWrongPurpose = errors.New("unexpected token purpose")
	errNoSubject    = errors.New("token has no subject")
	errNoIssuedAt   = errors.New("token has no issued-at")
)

// Claims はメール認証トークンのクレーム。
// subにメールアドレス、iatに発行時刻を持つ。
type Claims struct {
	Purpose string `json:"purpose"`
	jwt.RegisteredClaims
}

// Service はHS256でトークンを署名・検証する。
type Service struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// Option はServiceの設定を変更する。
type Option func(*Service)

// WithClock は現在時刻の取得関数を差し替える。
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// WithTTL は有効期間を変更する。0以下の場合はDefaultTTLを使用する。
func WithTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// NewService はServiceを生成する。
func NewService(secret []byte, opts ...Option) *Service {
	s := &Service{
		secret: secret,
		ttl:    DefaultTTL,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// TTL はトークンの有効期間を返す。
func (s *Service) TTL() time.Duration {
	return s.ttl
}

// Issue はメールアドレスを対象とする認証トークンを発行する。
func (s *Service) Issue(email string) (string, error) {
	claims := Claims{
		Purpose: PurposeEmailVerify,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:  email,
			IssuedAt: jwt.NewNumericDate(s.now()),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Verify はトークンを検証し、対象のメールアドレスを返す。
// 発行からTTLを超えた場合はTokenExpired、それ以外の不正はTokenInvalidの*model.TokenErrorを返す。
// 経過時間は秒単位で判定し、ちょうどTTLのトークンは有効とする。
func (s *Service) Verify(tokenString string) (string, error) {
	claims := &Claims{}
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
		jwt.WithIssuedAt(),
		jwt.WithStrictDecoding(),
	)

	_, err := parser.ParseWithClaims(tokenString, claims, func(*jwt.Token) (any, error) {
		return s.secret, nil
	})
	if err != nil {
		return "", &model.TokenError{Kind: model.TokenInvalid, Err: err}
	}

	if claims.Purpose != PurposeEmailVerify {
		return "", &model.TokenError{Kind: model.TokenInvalid, Err: errWrongPurpose}
	}
	if claims.Subject == "" {
		return "", &model.TokenError{Kind: model.TokenInvalid, Err: errNoSubject}
	}
	if claims.IssuedAt == nil {
		return "", &model.TokenError{Kind: model.TokenInvalid, Err: errNoIssuedAt}
	}

	age := s.now().Truncate(time.Second).Sub(claims.IssuedAt.Time.Truncate(time.Second))
	if age > s.ttl {
		return "", &model.TokenError{
			Kind: model.TokenExpired,
			Err:  fmt.Errorf("token issued %s ago, max age %s", age, s.ttl),
		}
	}

	return claims.Subject, nil
}
