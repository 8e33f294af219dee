package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/hitoshi/mailgate/internal/middleware"
)

// PageHandler はトップページ・ダッシュボード・ヘルスチェックのハンドラー。
type PageHandler struct {
	db    Pinger
	views *views
}

// Pinger はヘルスチェックで疎通を確認するデータベース接続。
type Pinger interface {
	PingContext(ctx context.Context) error
}

// NewPageHandler はPageHandlerを生成する。dbがnilの場合ヘルスチェックは常に成功する。
func NewPageHandler(db Pinger) *PageHandler {
	return &PageHandler{
		db:    db,
		views: defaultViews,
	}
}

// Home はトップページを表示する。ログイン済みならダッシュボードへ転送する。
// GET /
func (h *PageHandler) Home(w http.ResponseWriter, r *http.Request) {
	if middleware.UserFromContext(r.Context()) != nil {
		http.Redirect(w, r, "/dashboard", http.StatusFound)
		return
	}
	h.views.render(w, r, http.StatusOK, pageHome, pageData{Title: "Welcome"})
}

// Dashboard はログインユーザーのダッシュボードを表示する。
// GET /dashboard
func (h *PageHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	h.views.render(w, r, http.StatusOK, pageDashboard, pageData{Title: "Dashboard"})
}

// Health はデータベースへの疎通を確認する。
// GET /health
func (h *PageHandler) Health(w http.ResponseWriter, r *http.Request) {
	if h.db != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.db.PingContext(ctx); err != nil {
			slog.Error("health check failed", slog.String("error", err.Error()))
			middleware.WriteError(w, http.StatusServiceUnavailable, "unavailable")
			return
		}
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}
