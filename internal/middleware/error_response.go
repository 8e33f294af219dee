package middleware

import (
	"net/http"
)

// msgInternalError は内部エラー時に利用者へ返す文言。詳細はログのみに記録する。
const msgInternalError = "Internal server error. Please try again later."

// WriteError はプレーンテキストでエラーレスポンスを書き込む。
// HTMLテンプレートを経由しないミドルウェア層のエラーで使用する。
func WriteError(w http.ResponseWriter, statusCode int, message string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(statusCode)
	_, _ = w.Write([]byte(message + "\n"))
}

// WriteInternalServerError は内部サーバーエラーのレスポンスを書き込む。
func WriteInternalServerError(w http.ResponseWriter) {
	WriteError(w, http.StatusInternalServerError, msgInternalError)
}
