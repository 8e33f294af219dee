package middleware

import (
	"fmt"
	"log/slog"
	"math"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Rule は「Window内にLimit回まで」という固定ウィンドウのレート制限規則。
// ウィンドウはキーごとに最初のリクエスト時刻から始まる。
type Rule struct {
	Name   string
	Limit  int
	Window time.Duration
}

// String は"5 per 1m0s"形式の文字列を返す。
func (r Rule) String() string {
	return fmt.Sprintf("%d per %s", r.Limit, r.Window)
}

func (r Rule) enabled() bool {
	return r.Limit > 0 && r.Window > 0
}

// RateLimiterConfig はレート制限の設定を保持する。
type RateLimiterConfig struct {
	// DefaultRules は個別の制限を持たないエンドポイントに適用する規則。
	DefaultRules []Rule
	// LoginRule はログインPOSTに適用する規則。
	LoginRule Rule
	// ResendRule は認証メール再送に適用する規則。
	ResendRule Rule
	// CleanupInterval は使われなくなったエントリを掃除する間隔。
	CleanupInterval time.Duration
}

// DefaultRateLimiterConfig はデフォルトのレート制限設定を返す。
// 既定: 全体で200回/日・50回/時、ログイン5回/分、再送3回/時（いずれもエンドポイント×クライアントIP単位）
func DefaultRateLimiterConfig() RateLimiterConfig {
	return RateLimiterConfig{
		DefaultRules: []Rule{
			{Name: "day", Limit: 200, Window: 24 * time.Hour},
			{Name: "hour", Limit: 50, Window: time.Hour},
		},
		LoginRule:       Rule{Name: "login", Limit: 5, Window: time.Minute},
		ResendRule:      Rule{Name: "resend", Limit: 3, Window: time.Hour},
		CleanupInterval: 5 * time.Minute,
	}
}

// windowCounter はキーごとの現在のウィンドウ開始時刻とリクエスト数を保持する。
type windowCounter struct {
	start  time.Time
	count  int
	window time.Duration
}

func (c *windowCounter) expired(now time.Time) bool {
	return !now.Before(c.start.Add(c.window))
}

// RateLimiter はエンドポイント×クライアントIPごとのレート制限を管理する。
type RateLimiter struct {
	config RateLimiterConfig

	mu       sync.Mutex
	counters map[string]*windowCounter

	// warnLog は制限超過ログの出力頻度を抑える。
	warnLog rate.Sometimes

	now      func() time.Time
	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewRateLimiter は新しいRateLimiterを生成する。
// バックグラウンドで期限切れエントリのクリーンアップを開始する。
func NewRateLimiter(config RateLimiterConfig) *RateLimiter {
	if config.CleanupInterval <= 0 {
		config.CleanupInterval = 5 * time.Minute
	}
	rl := &RateLimiter{
		config:   config,
		counters: make(map[string]*windowCounter),
		warnLog:  rate.Sometimes{First: 1, Interval: time.Second},
		now:      time.Now,
		stopCh:   make(chan struct{}),
	}

	go rl.cleanupLoop()

	return rl
}

// Stop はクリーンアップのバックグラウンドゴルーチンを停止する。複数回呼んでもよい。
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() {
		close(rl.stopCh)
	})
}

// DefaultMiddleware は個別の制限を持たないエンドポイント用のミドルウェアを返す。
func (rl *RateLimiter) DefaultMiddleware(endpoint string) func(next http.Handler) http.Handler {
	return rl.Middleware(endpoint, rl.config.DefaultRules...)
}

// LoginMiddleware はログイン用のミドルウェアを返す。
func (rl *RateLimiter) LoginMiddleware() func(next http.Handler) http.Handler {
	return rl.Middleware("login", rl.config.LoginRule)
}

// ResendMiddleware は認証メール再送用のミドルウェアを返す。
func (rl *RateLimiter) ResendMiddleware() func(next http.Handler) http.Handler {
	return rl.Middleware("resend-verification", rl.config.ResendRule)
}

// Middleware は指定した規則をすべて満たすリクエストだけを通すミドルウェアを返す。
// いずれかの規則を超えた場合はどの規則のカウントも増やさず429を返す。
func (rl *RateLimiter) Middleware(endpoint string, rules ...Rule) func(next http.Handler) http.Handler {
	active := make([]Rule, 0, len(rules))
	for _, rule := range rules {
		if rule.enabled() {
			active = append(active, rule)
		}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := clientIP(r)

			if wait, ok := rl.allow(endpoint, ip, active); !ok {
				rl.warnLog.Do(func() {
					slog.Warn("rate limit exceeded",
						slog.String("endpoint", endpoint),
						slog.String("client_ip", ip),
					)
				})
				writeRateLimitResponse(w, wait)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// allow はすべての規則のウィンドウに空きがあればカウントを1つずつ進める。
// 拒否した場合は最も遅いウィンドウの終了までの待ち時間を返す。
func (rl *RateLimiter) allow(endpoint, ip string, rules []Rule) (time.Duration, bool) {
	if len(rules) == 0 {
		return 0, true
	}

	now := rl.now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	counters := make([]*windowCounter, 0, len(rules))
	var wait time.Duration
	for _, rule := range rules {
		c := rl.counterFor(endpoint+"|"+rule.Name+"|"+ip, rule, now)
		if c.count >= rule.Limit {
			if d := c.start.Add(c.window).Sub(now); d > wait {
				wait = d
			}
		}
		counters = append(counters, c)
	}
	if wait > 0 {
		return wait, false
	}

	for _, c := range counters {
		c.count++
	}
	return 0, true
}

// LimiterCount は現在管理されているカウンターのエントリ数を返す。
// テストおよびメトリクス用。
func (rl *RateLimiter) LimiterCount() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.counters)
}

// counterFor はキーに対応するカウンターを返す。ウィンドウが終わっていれば新しく始める。
// rl.muを保持した状態で呼ぶこと。
func (rl *RateLimiter) counterFor(key string, rule Rule, now time.Time) *windowCounter {
	c, exists := rl.counters[key]
	if !exists || c.expired(now) {
		c = &windowCounter{start: now, window: rule.Window}
		rl.counters[key] = c
	}
	return c
}

// cleanupLoop はバックグラウンドで期限切れエントリを定期的にクリーンアップする。
func (rl *RateLimiter) cleanupLoop() {
	ticker := time.NewTicker(rl.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.cleanup()
		case <-rl.stopCh:
			return
		}
	}
}

// cleanup はウィンドウが終了したエントリを削除する。
func (rl *RateLimiter) cleanup() {
	now := rl.now()

	rl.mu.Lock()
	defer rl.mu.Unlock()
	for key, c := range rl.counters {
		if c.expired(now) {
			delete(rl.counters, key)
		}
	}
}

// clientIP はリクエスト元のIPアドレスを返す。
// プロキシ配下ではchiのRealIPミドルウェアでRemoteAddrを書き換えておくこと。
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// writeRateLimitResponse は429 Too Many Requestsレスポンスを書き込む。
// Retry-Afterヘッダーには現在のウィンドウが終わるまでの秒数を設定する。
func writeRateLimitResponse(w http.ResponseWriter, wait time.Duration) {
	retryAfterSec := int(math.Ceil(wait.Seconds()))
	if retryAfterSec < 1 {
		retryAfterSec = 1
	}

	w.Header().Set("Retry-After", strconv.Itoa(retryAfterSec))
	WriteError(w, http.StatusTooManyRequests, "Too many requests. Please try again later.")
}
