package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/mailgate/internal/metrics"
	"github.com/hitoshi/mailgate/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	SessionResolver   middleware.SessionResolver
	RateLimiter       *middleware.RateLimiter
	Logger            *slog.Logger
	Metrics           metrics.MetricsCollector
	MetricsGatherer   prometheus.Gatherer
	TrustProxyHeaders bool
	CSRF              middleware.CSRFConfig

	// アカウント・セッション
	Accounts      AccountService
	Sessions      SessionService
	SessionCookie middleware.SessionCookieConfig

	// ヘルスチェック
	DB Pinger
}

// NewRouter は全エンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	RequestID → (RealIP) → Recovery → SecurityHeaders → NoCache → Session → Logging → Metrics
//	→ CSRF → RateLimit（ルートごと）
//
// /health と /metrics はCSRFとレート制限の外に配置する。
func NewRouter(deps *RouterDeps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	mc := deps.Metrics
	if mc == nil {
		mc = metrics.Nop{}
	}

	r := chi.NewRouter()

	r.Use(middleware.NewRequestIDMiddleware())
	if deps.TrustProxyHeaders {
		r.Use(chimw.RealIP)
	}
	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewNoCacheMiddleware())
	r.Use(middleware.NewSessionMiddleware(deps.SessionResolver))
	r.Use(middleware.NewLoggingMiddleware(logger))
	r.Use(middleware.NewMetricsMiddleware(mc))

	authHandler := NewAuthHandler(deps.Accounts, deps.Sessions, deps.SessionCookie)
	userHandler := NewUserHandler(deps.Accounts)
	pageHandler := NewPageHandler(deps.DB)
	rl := deps.RateLimiter

	// --- 運用向けのルート ---
	r.Get("/health", pageHandler.Health)
	if deps.MetricsGatherer != nil {
		r.Method(http.MethodGet, "/metrics", metrics.Handler(deps.MetricsGatherer))
	}

	// --- 画面のルート ---
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewCSRFMiddleware(deps.CSRF))

		r.With(rl.DefaultMiddleware("home")).Get("/", pageHandler.Home)

		// ログイン済みユーザーはダッシュボードへ転送する
		r.Group(func(r chi.Router) {
			r.Use(redirectAuthenticated)

			r.Route("/login", func(r chi.Router) {
				r.Use(rl.LoginMiddleware())
				r.Get("/", authHandler.LoginPage)
				r.Post("/", authHandler.Login)
			})
			r.Route("/register", func(r chi.Router) {
				r.Use(rl.DefaultMiddleware("register"))
				r.Get("/", userHandler.RegisterPage)
				r.Post("/", userHandler.Register)
			})
		})

		r.With(rl.ResendMiddleware()).Post("/resend-verification", userHandler.ResendVerification)
		r.With(rl.DefaultMiddleware("verify")).Get("/verify/{token}", userHandler.Verify)

		// --- 認証が必要なルート ---
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireSession)

			r.With(rl.DefaultMiddleware("dashboard")).Get("/dashboard", pageHandler.Dashboard)
			r.With(rl.DefaultMiddleware("logout")).Get("/logout", authHandler.Logout)
		})
	})

	return r
}

// redirectAuthenticated はログイン済みのリクエストをダッシュボードへ転送する。
func redirectAuthenticated(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if middleware.UserFromContext(r.Context()) != nil {
			http.Redirect(w, r, "/dashboard", http.StatusFound)
			return
		}
		next.ServeHTTP(w, r)
	})
}
