package handler

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"

	"github.com/hitoshi/mailgate/internal/middleware"
	"github.com/hitoshi/mailgate/internal/model"
)

//go:embed templates/*.html
var templateFS embed.FS

const (
	pageHome      = "home.html"
	pageLogin     = "login.html"
	pageRegister  = "register.html"
	pageDashboard = "dashboard.html"
	pageMessage   = "message.html"
)

// formValues はエラー時にフォームへ書き戻す入力値。パスワードは含めない。
type formValues struct {
	Username string
	Email    string
}

// pageData はテンプレートに渡す値。
type pageData struct {
	Title     string
	Error     string
	Message   string
	CSRFToken string
	User      *model.User
	Form      formValues
}

// views はページ名ごとにレイアウトと組み合わせたテンプレートを保持する。
type views struct {
	pages map[string]*template.Template
}

func loadViews() (*views, error) {
	v := &views{pages: make(map[string]*template.Template)}
	for _, name := range []string{pageHome, pageLogin, pageRegister, pageDashboard, pageMessage} {
		t, err := template.ParseFS(templateFS, "templates/layout.html", "templates/"+name)
		if err != nil {
			return nil, fmt.Errorf("failed to parse template %s: %w", name, err)
		}
		v.pages[name] = t
	}
	return v, nil
}

// defaultViews は埋め込みテンプレートから一度だけ構築する。
var defaultViews = mustLoadViews()

func mustLoadViews() *views {
	v, err := loadViews()
	if err != nil {
		panic(err)
	}
	return v
}

// render はページを描画する。描画途中で失敗した場合に部分的なHTMLを返さないよう、
// バッファに書き出してからステータスコードとともに送信する。
func (v *views) render(w http.ResponseWriter, r *http.Request, status int, name string, data pageData) {
	t, ok := v.pages[name]
	if !ok {
		slog.Error("unknown template", slog.String("template", name))
		middleware.WriteInternalServerError(w)
		return
	}

	data.CSRFToken = middleware.CSRFTokenFromContext(r.Context())
	if data.User == nil {
		data.User = middleware.UserFromContext(r.Context())
	}

	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "layout", data); err != nil {
		slog.Error("failed to render template",
			slog.String("template", name),
			slog.String("error", err.Error()),
		)
		middleware.WriteInternalServerError(w)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

// message は結果メッセージのみのページを描画する。
func (v *views) message(w http.ResponseWriter, r *http.Request, status int, title, msg string) {
	v.render(w, r, status, pageMessage, pageData{Title: title, Message: msg})
}

// failure はエラーメッセージのみのページを描画する。
func (v *views) failure(w http.ResponseWriter, r *http.Request, status int, title, msg string) {
	v.render(w, r, status, pageMessage, pageData{Title: title, Error: msg})
}

// internalError は予期しないエラーをログに記録し500ページを返す。
func (v *views) internalError(w http.ResponseWriter, r *http.Request, op string, err error) {
	slog.Error(op+" failed",
		slog.String("error", err.Error()),
		slog.String("request_id", middleware.RequestIDFromContext(r.Context())),
	)
	v.failure(w, r, http.StatusInternalServerError, "Error", "Something went wrong. Please try again later.")
}
