package middleware

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/mailgate/internal/metrics"
	"github.com/hitoshi/mailgate/internal/model"
)

// newChainRouter は本番と同じ順序でミドルウェアを積んだchiルーターを返す。
func newChainRouter(t *testing.T, resolver SessionResolver) *chi.Mux {
	t.Helper()

	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	rl := newTestRateLimiter(t, DefaultRateLimiterConfig(), &now)

	r := chi.NewRouter()
	r.Use(NewRequestIDMiddleware())
	r.Use(NewRecoveryMiddleware())
	r.Use(NewSecurityHeadersMiddleware())
	r.Use(NewSessionMiddleware(resolver))
	r.Use(NewLoggingMiddleware(logger))
	r.Use(NewMetricsMiddleware(metrics.Nop{}))
	r.Use(NewCSRFMiddleware(CSRFConfig{}))

	r.With(rl.LoginMiddleware()).Post("/login", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusSeeOther)
	})
	r.With(RequireSession).Get("/dashboard", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("hello " + UserFromContext(r.Context()).Username))
	})
	r.Get("/panic", func(w http.ResponseWriter, r *http.Request) {
		panic("unexpected")
	})
	return r
}

func TestMiddlewareChain_ProtectedRoute_WithSession(t *testing.T) {
	resolver := resolverFor("valid-session", &model.User{ID: 7, Username: "alice", IsVerified: true})
	router := newChainRouter(t, resolver)

	req := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: "valid-session"})
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if w.Body.String() != "hello alice" {
		t.Errorf("body = %q", w.Body.String())
	}
	if w.Header().Get(RequestIDHeader) == "" {
		t.Error("X-Request-ID should be set")
	}
	if w.Header().Get("X-Frame-Options") != "DENY" {
		t.Error("security headers should be set")
	}
}

func TestMiddlewareChain_ProtectedRoute_WithoutSession_Redirects(t *testing.T) {
	router := newChainRouter(t, &mockSessionResolver{})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/dashboard", nil))

	if w.Code != http.StatusFound {
		t.Fatalf("status = %d, want 302", w.Code)
	}
	if loc := w.Header().Get("Location"); loc != "/login" {
		t.Errorf("Location = %q, want /login", loc)
	}
}

func TestMiddlewareChain_POSTWithoutCSRF_Forbidden(t *testing.T) {
	router := newChainRouter(t, &mockSessionResolver{})

	form := url.Values{"username": {"alice"}, "password": {"x"}}
	req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403", w.Code)
	}
}

// TestMiddlewareChain_CSRFRejectionDoesNotConsumeRateLimit はCSRF検証がレート制限より前段にあり、
// 拒否されたリクエストがログイン試行回数に数えられないことを検証する。
func TestMiddlewareChain_CSRFRejectionDoesNotConsumeRateLimit(t *testing.T) {
	router := newChainRouter(t, &mockSessionResolver{})

	for i := 0; i < 10; i++ {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/login", nil))
		if w.Code != http.StatusForbidden {
			t.Fatalf("request %d: status = %d, want 403", i+1, w.Code)
		}
	}

	for i := 0; i < 5; i++ {
		form := url.Values{CSRFFormField: {"tok"}}
		req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		req.AddCookie(&http.Cookie{Name: CSRFCookieName, Value: "tok"})
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		if w.Code != http.StatusSeeOther {
			t.Fatalf("valid login %d: status = %d, want 303", i+1, w.Code)
		}
	}
}

func TestMiddlewareChain_PanicRecovered(t *testing.T) {
	router := newChainRouter(t, &mockSessionResolver{
		currentUserFn: func(ctx context.Context, id string) (*model.User, error) { return nil, nil },
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/panic", nil))

	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", w.Code)
	}
}
