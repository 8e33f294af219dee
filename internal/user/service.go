// Package user はアカウント登録・メール認証・ログイン認証のドメインロジックを提供する。
package user

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/hitoshi/mailgate/internal/credential"
	"github.com/hitoshi/mailgate/internal/metrics"
	"github.com/hitoshi/mailgate/internal/model"
	"github.com/hitoshi/mailgate/internal/repository"
)

// TokenIssuer はメール認証トークンの発行・検証インターフェース。
type TokenIssuer interface {
	Issue(email string) (string, error)
	Verify(token string) (string, error)
}

// VerificationSender は認証メールの送信インターフェース。
type VerificationSender interface {
	SendVerificationEmail(ctx context.Context, email, link string) error
}

// RegisterOutcome は登録処理の結果を表す。
type RegisterOutcome int

const (
	// OutcomeCreated は新規アカウントを作成し認証メールを送信したことを表す。
	OutcomeCreated RegisterOutcome = iota
	// OutcomeResent は未認証の既存アカウントに認証メールを再送したことを表す。
	OutcomeResent
)

// RegisterInput は登録フォームの入力値。
type RegisterInput struct {
	Username string
	Email    string
	Password string
}

// Service はアカウント管理のサービス層。
type Service struct {
	userRepo repository.UserRepository
	hasher   credential.PasswordHasher
	tokens   TokenIssuer
	mailer   VerificationSender
	baseURL  string
	metrics  metrics.MetricsCollector
}

// NewService はServiceの新しいインスタンスを生成する。
// baseURLは認証リンクの生成に使用する（末尾のスラッシュは除去する）。
func NewService(
	userRepo repository.UserRepository,
	hasher credential.PasswordHasher,
	tokens TokenIssuer,
	mailer VerificationSender,
	baseURL string,
	mc metrics.MetricsCollector,
) *Service {
	if mc == nil {
		mc = metrics.Nop{}
	}
	return &Service{
		userRepo: userRepo,
		hasher:   hasher,
		tokens:   tokens,
		mailer:   mailer,
		baseURL:  strings.TrimRight(baseURL, "/"),
		metrics:  mc,
	}
}

// VerificationLink はトークンから認証リンクを組み立てる。
func (s *Service) VerificationLink(token string) string {
	return s.baseURL + "/verify/" + url.PathEscape(token)
}

// Register は新規アカウントを登録し、認証メールを送信する。
// 入力検証はパスワード、ユーザー名、メールアドレスの順に行う。
// 重複はストレージの一意制約で検出し、メールアドレスが未認証の既存アカウントと
// 一致した場合は認証メールを再送してOutcomeResentを返す。
func (s *Service) Register(ctx context.Context, in RegisterInput) (RegisterOutcome, error) {
	if err := validateRegisterInput(in); err != nil {
		s.metrics.RecordRegistration("invalid")
		return 0, err
	}

	hash, err := s.hasher.Hash(in.Password)
	if errors.Is(err, credential.ErrPasswordTooLong) {
		s.metrics.RecordRegistration("invalid")
		return 0, &model.ValidationError{Field: "password", Message: msgPasswordTooLong}
	}
	if err != nil {
		return 0, fmt.Errorf("failed to hash password: %w", err)
	}

	created, err := s.userRepo.Create(ctx, in.Username, in.Email, hash)
	if err != nil {
		var conflict *model.ConflictError
		if errors.As(err, &conflict) {
			return s.resolveConflict(ctx, in.Email)
		}
		return 0, fmt.Errorf("failed to create user: %w", err)
	}

	slog.Info("user registered",
		slog.Int64("user_id", created.ID),
		slog.String("username", created.Username),
	)

	if err := s.sendVerification(ctx, created.Email); err != nil {
		s.metrics.RecordRegistration("delivery_failed")
		return 0, err
	}

	s.metrics.RecordRegistration("created")
	return OutcomeCreated, nil
}

// resolveConflict は登録時の重複を分類する。
// メールアドレスの重複を優先し、未認証なら認証メールを再送する。
func (s *Service) resolveConflict(ctx context.Context, email string) (RegisterOutcome, error) {
	existing, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		return 0, fmt.Errorf("failed to find user by email: %w", err)
	}

	if existing == nil {
		s.metrics.RecordRegistration("conflict")
		return 0, &model.ConflictError{Field: "username"}
	}

	if existing.IsVerified {
		s.metrics.RecordRegistration("conflict")
		return 0, &model.ConflictError{Field: "email", Verified: true}
	}

	if err := s.sendVerification(ctx, existing.Email); err != nil {
		s.metrics.RecordRegistration("delivery_failed")
		return 0, err
	}

	slog.Info("verification email resent on registration",
		slog.Int64("user_id", existing.ID),
	)
	s.metrics.RecordRegistration("resent")
	return OutcomeResent, nil
}

// VerifyEmail は認証トークンを検証し、対象ユーザーを認証済みにする。
// 既に認証済みの場合は変更せず、alreadyVerified=trueを返す。
// トークンが有効でも該当ユーザーが存在しない場合は*model.TokenError（TokenInvalid）を返す。
func (s *Service) VerifyEmail(ctx context.Context, token string) (*model.User, bool, error) {
	email, err := s.tokens.Verify(token)
	if err != nil {
		var tokenErr *model.TokenError
		if errors.As(err, &tokenErr) {
			s.metrics.RecordVerification(tokenErr.Kind.String())
		}
		return nil, false, err
	}

	u, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		return nil, false, fmt.Errorf("failed to find user by email: %w", err)
	}
	if u == nil {
		s.metrics.RecordVerification("invalid")
		return nil, false, &model.TokenError{Kind: model.TokenInvalid, Err: model.ErrAccountNotFound}
	}

	if u.IsVerified {
		s.metrics.RecordVerification("already_verified")
		return u, true, nil
	}

	verified, err := s.userRepo.MarkVerified(ctx, u)
	if err != nil {
		return nil, false, fmt.Errorf("failed to mark user verified: %w", err)
	}

	slog.Info("email verified", slog.Int64("user_id", verified.ID))
	s.metrics.RecordVerification("verified")
	return verified, false, nil
}

// ResendVerification は未認証アカウントに認証メールを再送する。
// アカウントが無い場合はmodel.ErrAccountNotFound（メールは送らない）、
// 認証済みの場合はmodel.ErrAlreadyVerifiedを返す。
func (s *Service) ResendVerification(ctx context.Context, email string) error {
	u, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		return fmt.Errorf("failed to find user by email: %w", err)
	}
	if u == nil {
		return model.ErrAccountNotFound
	}
	if u.IsVerified {
		return model.ErrAlreadyVerified
	}

	return s.sendVerification(ctx, u.Email)
}

// Authenticate はユーザー名とパスワードを照合する。
// ユーザーが存在しない場合とパスワード不一致の場合はどちらもmodel.ErrInvalidCredentialsを返す。
// パスワードが正しくても未認証の場合はmodel.ErrEmailNotVerifiedを返す。
func (s *Service) Authenticate(ctx context.Context, username, password string) (*model.User, error) {
	u, err := s.userRepo.FindByUsername(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("failed to find user by username: %w", err)
	}
	if u == nil || !s.hasher.Verify(password, u.PasswordHash) {
		s.metrics.RecordLogin("invalid_credentials")
		return nil, model.ErrInvalidCredentials
	}
	if !u.IsVerified {
		s.metrics.RecordLogin("unverified")
		return nil, model.ErrEmailNotVerified
	}

	s.metrics.RecordLogin("success")
	return u, nil
}

// sendVerification はトークンを発行して認証メールを送信する。
func (s *Service) sendVerification(ctx context.Context, email string) error {
	token, err := s.tokens.Issue(email)
	if err != nil {
		return fmt.Errorf("failed to issue verification token: %w", err)
	}
	return s.mailer.SendVerificationEmail(ctx, email, s.VerificationLink(token))
}

// 画面に表示する検証エラーの文言。
const (
	msgWeakPassword    = "Password must be at least 8 characters and include uppercase, lowercase, number, and special character."
	msgBadUsername     = "Don't use special characters in username like <>$#"
	msgBadEmail        = "Please enter a valid email address."
	msgLongUsername    = "Username must be at most 250 characters."
	msgPasswordTooLong = "Password must be at most 72 bytes."
)

func validateRegisterInput(in RegisterInput) error {
	if !credential.ValidatePasswordStrength(in.Password) {
		return &model.ValidationError{
			Field:   "password",
			Message: msgWeakPassword,
		}
	}
	if !credential.ValidateUsername(in.Username) {
		return &model.ValidationError{
			Field:   "username",
			Message: msgBadUsername,
		}
	}
	if len(in.Username) > credential.MaxFieldLength {
		return &model.ValidationError{
			Field:   "username",
			Message: msgLongUsername,
		}
	}
	if !credential.ValidateEmail(in.Email) {
		return &model.ValidationError{
			Field:   "email",
			Message: msgBadEmail,
		}
	}
	return nil
}
