// Package handler はHTTPハンドラーを提供する。
package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/hitoshi/mailgate/internal/middleware"
	"github.com/hitoshi/mailgate/internal/model"
	"github.com/hitoshi/mailgate/internal/user"
)

const (
	msgInvalidCredentials = "Invalid username or password"
	msgVerifyFirst        = "Please verify your email first."
)

// AccountService はアカウント関連のハンドラーが必要とするサービスインターフェース。
type AccountService interface {
	Register(ctx context.Context, in user.RegisterInput) (user.RegisterOutcome, error)
	VerifyEmail(ctx context.Context, token string) (*model.User, bool, error)
	ResendVerification(ctx context.Context, email string) error
	Authenticate(ctx context.Context, username, password string) (*model.User, error)
}

// SessionService はログイン・ログアウトのサービスインターフェース。
type SessionService interface {
	Login(ctx context.Context, u *model.User) (*model.Session, error)
	Logout(ctx context.Context, sessionID string) error
}

// AuthHandler はログイン・ログアウトのHTTPハンドラー。
type AuthHandler struct {
	accounts AccountService
	sessions SessionService
	cookie   middleware.SessionCookieConfig
	views    *views
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(accounts AccountService, sessions SessionService, cookie middleware.SessionCookieConfig) *AuthHandler {
	return &AuthHandler{
		accounts: accounts,
		sessions: sessions,
		cookie:   cookie,
		views:    defaultViews,
	}
}

// LoginPage はログインフォームを表示する。
// GET /login
func (h *AuthHandler) LoginPage(w http.ResponseWriter, r *http.Request) {
	h.views.render(w, r, http.StatusOK, pageLogin, pageData{Title: "Login"})
}

// Login はユーザー名とパスワードを照合し、セッションを発行する。
// ユーザー名は登録時と同じく前後の空白を除去する。パスワードはそのまま使う。
// POST /login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	username := strings.TrimSpace(r.PostFormValue("username"))
	password := r.PostFormValue("password")
	data := pageData{Title: "Login", Form: formValues{Username: username}}

	u, err := h.accounts.Authenticate(r.Context(), username, password)
	switch {
	case errors.Is(err, model.ErrInvalidCredentials):
		data.Error = msgInvalidCredentials
		h.views.render(w, r, http.StatusUnauthorized, pageLogin, data)
		return
	case errors.Is(err, model.ErrEmailNotVerified):
		data.Error = msgVerifyFirst
		h.views.render(w, r, http.StatusForbidden, pageLogin, data)
		return
	case err != nil:
		h.views.internalError(w, r, "authenticate", err)
		return
	}

	session, err := h.sessions.Login(r.Context(), u)
	if err != nil {
		h.views.internalError(w, r, "login", err)
		return
	}

	middleware.SetSessionCookie(w, h.cookie, session)
	http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
}

// Logout はセッションを破棄してトップページへ戻す。
// GET /logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if sessionID := middleware.SessionIDFromContext(r.Context()); sessionID != "" {
		if err := h.sessions.Logout(r.Context(), sessionID); err != nil {
			// 失敗してもCookieはクリアする
			slog.Error("failed to logout", slog.String("error", err.Error()))
		}
	}

	middleware.ClearSessionCookie(w, h.cookie)
	http.Redirect(w, r, "/", http.StatusFound)
}
