package middleware

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/hitoshi/mailgate/internal/metrics"
	"github.com/hitoshi/mailgate/internal/model"
)

func newJSONLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func decodeLogEntry(t *testing.T, buf *bytes.Buffer) map[string]interface{} {
	t.Helper()
	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("failed to parse JSON log: %v\nraw: %s", err, buf.String())
	}
	return entry
}

// TestLoggingMiddleware_LogsRequestFields はリクエストログに必要なフィールドが含まれることを検証する。
func TestLoggingMiddleware_LogsRequestFields(t *testing.T) {
	var buf bytes.Buffer
	handler := NewLoggingMiddleware(newJSONLogger(&buf))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/login", nil)
	handler.ServeHTTP(httptest.NewRecorder(), req)

	entry := decodeLogEntry(t, &buf)
	if entry["msg"] != "http_request" {
		t.Errorf("msg = %v, want http_request", entry["msg"])
	}
	if entry["method"] != "GET" {
		t.Errorf("method = %v, want GET", entry["method"])
	}
	if entry["path"] != "/login" {
		t.Errorf("path = %v, want /login", entry["path"])
	}
	if status, ok := entry["status"].(float64); !ok || status != 200 {
		t.Errorf("status = %v, want 200", entry["status"])
	}
	if d, ok := entry["duration_ms"].(float64); !ok || d < 0 {
		t.Errorf("duration_ms = %v, want non-negative number", entry["duration_ms"])
	}
	if _, ok := entry["user_id"]; ok {
		t.Error("user_id should be omitted for anonymous requests")
	}
}

// TestLoggingMiddleware_IncludesUserAndRequestID はログイン済みユーザーのIDとリクエストIDが含まれることを検証する。
func TestLoggingMiddleware_IncludesUserAndRequestID(t *testing.T) {
	var buf bytes.Buffer
	chain := NewRequestIDMiddleware()(NewLoggingMiddleware(newJSONLogger(&buf))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})))

	req := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
	req = req.WithContext(ContextWithUser(req.Context(), &model.User{ID: 42, Username: "alice"}, "sid"))
	w := httptest.NewRecorder()
	chain.ServeHTTP(w, req)

	entry := decodeLogEntry(t, &buf)
	if uid, ok := entry["user_id"].(float64); !ok || uid != 42 {
		t.Errorf("user_id = %v, want 42", entry["user_id"])
	}
	reqID := w.Header().Get(RequestIDHeader)
	if reqID == "" {
		t.Fatal("X-Request-ID header should be set")
	}
	if entry["request_id"] != reqID {
		t.Errorf("request_id = %v, want %q", entry["request_id"], reqID)
	}
}

// TestLoggingMiddleware_LevelByStatus はステータスコードに応じてログレベルが変わることを検証する。
func TestLoggingMiddleware_LevelByStatus(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		wantLevel string
	}{
		{"200はINFO", http.StatusOK, "INFO"},
		{"303はINFO", http.StatusSeeOther, "INFO"},
		{"401はWARN", http.StatusUnauthorized, "WARN"},
		{"429はWARN", http.StatusTooManyRequests, "WARN"},
		{"502はERROR", http.StatusBadGateway, "ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			handler := NewLoggingMiddleware(newJSONLogger(&buf))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))
			handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/login", nil))

			entry := decodeLogEntry(t, &buf)
			if entry["level"] != tt.wantLevel {
				t.Errorf("level = %v, want %s", entry["level"], tt.wantLevel)
			}
			if status, _ := entry["status"].(float64); int(status) != tt.status {
				t.Errorf("status = %v, want %d", entry["status"], tt.status)
			}
		})
	}
}

// TestLoggingMiddleware_BodyWriteCapture はWriteHeaderを呼ばずにWriteした場合に200を記録することを検証する。
func TestLoggingMiddleware_BodyWriteCapture(t *testing.T) {
	var buf bytes.Buffer
	handler := NewLoggingMiddleware(newJSONLogger(&buf))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	entry := decodeLogEntry(t, &buf)
	if status, _ := entry["status"].(float64); status != 200 {
		t.Errorf("status = %v, want 200", entry["status"])
	}
	if w.Body.String() != "ok" {
		t.Errorf("body = %q, want ok", w.Body.String())
	}
}

func TestRequestIDMiddleware_UniquePerRequest(t *testing.T) {
	var seen []string
	handler := NewRequestIDMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = append(seen, RequestIDFromContext(r.Context()))
	}))

	for i := 0; i < 2; i++ {
		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	}

	if len(seen) != 2 || seen[0] == "" || seen[0] == seen[1] {
		t.Errorf("request IDs = %v, want two distinct non-empty values", seen)
	}
}

// recordingMetrics はHTTPメトリクスの記録を保持するテスト用コレクター。
type recordingMetrics struct {
	metrics.Nop
	statuses  []int
	latencies []time.Duration
}

func (m *recordingMetrics) RecordHTTPStatus(code int) {
	m.statuses = append(m.statuses, code)
}

func (m *recordingMetrics) RecordRequestLatency(d time.Duration) {
	m.latencies = append(m.latencies, d)
}

func TestMetricsMiddleware_RecordsStatusAndLatency(t *testing.T) {
	mc := &recordingMetrics{}
	handler := NewMetricsMiddleware(mc)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/missing", nil))

	if len(mc.statuses) != 1 || mc.statuses[0] != http.StatusNotFound {
		t.Errorf("statuses = %v, want [404]", mc.statuses)
	}
	if len(mc.latencies) != 1 || mc.latencies[0] < 0 {
		t.Errorf("latencies = %v", mc.latencies)
	}
}
