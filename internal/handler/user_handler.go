package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/mailgate/internal/model"
	"github.com/hitoshi/mailgate/internal/user"
)

const (
	msgVerificationSent   = "Verification email sent! Please check your inbox."
	msgVerificationResent = "Account exists but not verified. Verification email resent."
	msgEmailRegistered    = "Email already registered!"
	msgUsernameTaken      = "Username already taken!"
	msgAccountNotFound    = "Account not found."
	msgAlreadyVerified    = "Email already verified."
	msgResendDone         = "Verification email resent. Please check your inbox."
	msgVerificationFailed = "Verification link expired or invalid."
	msgDeliveryFailed     = "We could not send the verification email. Please try again later."
)

// UserHandler は登録・メール認証のHTTPハンドラー。
type UserHandler struct {
	accounts AccountService
	views    *views
}

// NewUserHandler はUserHandlerを生成する。
func NewUserHandler(accounts AccountService) *UserHandler {
	return &UserHandler{
		accounts: accounts,
		views:    defaultViews,
	}
}

// RegisterPage は登録フォームを表示する。
// GET /register
func (h *UserHandler) RegisterPage(w http.ResponseWriter, r *http.Request) {
	h.views.render(w, r, http.StatusOK, pageRegister, pageData{Title: "Register"})
}

// Register はアカウントを作成し認証メールを送信する。
// POST /register
func (h *UserHandler) Register(w http.ResponseWriter, r *http.Request) {
	in := user.RegisterInput{
		Username: strings.TrimSpace(r.PostFormValue("username")),
		Email:    strings.TrimSpace(r.PostFormValue("email")),
		Password: r.PostFormValue("password"),
	}
	data := pageData{
		Title: "Register",
		Form:  formValues{Username: in.Username, Email: in.Email},
	}

	outcome, err := h.accounts.Register(r.Context(), in)
	if err != nil {
		var validationErr *model.ValidationError
		var conflictErr *model.ConflictError
		var deliveryErr *model.DeliveryError
		switch {
		case errors.As(err, &validationErr):
			data.Error = validationErr.Message
			h.views.render(w, r, http.StatusBadRequest, pageRegister, data)
		case errors.As(err, &conflictErr):
			data.Error = msgUsernameTaken
			if conflictErr.Field == "email" {
				data.Error = msgEmailRegistered
			}
			h.views.render(w, r, http.StatusConflict, pageRegister, data)
		case errors.As(err, &deliveryErr):
			h.views.failure(w, r, http.StatusBadGateway, "Register", msgDeliveryFailed)
		default:
			h.views.internalError(w, r, "register", err)
		}
		return
	}

	msg := msgVerificationSent
	if outcome == user.OutcomeResent {
		msg = msgVerificationResent
	}
	h.views.message(w, r, http.StatusOK, "Check your inbox", msg)
}

// ResendVerification は未認証アカウントへ認証メールを再送する。
// POST /resend-verification
func (h *UserHandler) ResendVerification(w http.ResponseWriter, r *http.Request) {
	email := strings.TrimSpace(r.PostFormValue("email"))
	data := pageData{Title: "Login", Form: formValues{Email: email}}

	err := h.accounts.ResendVerification(r.Context(), email)
	var deliveryErr *model.DeliveryError
	switch {
	case err == nil:
		h.views.message(w, r, http.StatusOK, "Check your inbox", msgResendDone)
	case errors.Is(err, model.ErrAccountNotFound):
		data.Error = msgAccountNotFound
		h.views.render(w, r, http.StatusNotFound, pageLogin, data)
	case errors.Is(err, model.ErrAlreadyVerified):
		data.Error = msgAlreadyVerified
		h.views.render(w, r, http.StatusConflict, pageLogin, data)
	case errors.As(err, &deliveryErr):
		h.views.failure(w, r, http.StatusBadGateway, "Login", msgDeliveryFailed)
	default:
		h.views.internalError(w, r, "resend verification", err)
	}
}

// Verify は認証リンクのトークンを検証してアカウントを有効化する。
// GET /verify/{token}
func (h *UserHandler) Verify(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")

	_, alreadyVerified, err := h.accounts.VerifyEmail(r.Context(), token)
	if err != nil {
		if model.IsTokenError(err) {
			h.views.failure(w, r, http.StatusBadRequest, "Email verification", msgVerificationFailed)
			return
		}
		h.views.internalError(w, r, "verify email", err)
		return
	}

	if alreadyVerified {
		h.views.message(w, r, http.StatusOK, "Email verification", msgAlreadyVerified)
		return
	}
	http.Redirect(w, r, "/login", http.StatusFound)
}
