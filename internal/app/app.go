package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/hitoshi/mailgate/internal/auth"
	"github.com/hitoshi/mailgate/internal/config"
	"github.com/hitoshi/mailgate/internal/credential"
	"github.com/hitoshi/mailgate/internal/database"
	"github.com/hitoshi/mailgate/internal/handler"
	"github.com/hitoshi/mailgate/internal/logger"
	"github.com/hitoshi/mailgate/internal/mailer"
	"github.com/hitoshi/mailgate/internal/metrics"
	"github.com/hitoshi/mailgate/internal/middleware"
	"github.com/hitoshi/mailgate/internal/repository"
	"github.com/hitoshi/mailgate/internal/token"
	"github.com/hitoshi/mailgate/internal/user"
	"github.com/hitoshi/mailgate/internal/worker/cleanup"
)

// dbConnectRetries は起動時のDB疎通確認の最大リトライ回数。
const dbConnectRetries = 5

// Init はアプリケーションの初期化を行う。
// .envファイルと環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
func Init(w io.Writer, envFile string) (*config.Config, error) {
	// 1. ログの初期化
	logger.SetupDefault(w, slog.LevelInfo)

	// 2. .envファイルと環境変数から設定を読み込む
	if envFile != "" {
		if err := config.LoadEnvFile(envFile); err != nil {
			return nil, err
		}
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// 3. 設定されたログレベルで再構成する
	logger.SetupDefault(w, logger.ParseLevel(cfg.LogLevel))

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := NewRootCmd(w)
	cmd.SetArgs(args)
	return cmd.Execute()
}

// server はHTTPサーバーとそのバックグラウンド処理に必要な部品をまとめたもの。
type server struct {
	http        *http.Server
	rateLimiter *middleware.RateLimiter
	cleanupJob  *cleanup.SessionCleanupJob
}

// newServer は全依存関係をワイヤリングしてHTTPサーバーを構築する。
func newServer(cfg *config.Config, db *sql.DB, reg *prometheus.Registry) *server {
	mc := metrics.NewCollector(reg)

	// 1. リポジトリの初期化
	userRepo := repository.NewSQLUserRepo(db)
	sessionRepo := repository.NewSQLSessionRepo(db)

	// 2. メール送信の初期化
	dispatcher := mailer.NewDispatcher(newMailSender(cfg), mc)

	// 3. ドメインサービスの初期化
	tokens := token.NewService([]byte(cfg.SecretKey), token.WithTTL(cfg.VerifyTokenTTL))
	accounts := user.NewService(
		userRepo,
		credential.NewBcryptHasher(cfg.BcryptCost),
		tokens,
		dispatcher,
		cfg.BaseURL,
		mc,
	)
	sessions := auth.NewService(userRepo, sessionRepo, auth.ServiceConfig{SessionMaxAge: cfg.SessionMaxAge})

	// 4. ルーターの構築
	rl := middleware.NewRateLimiter(rateLimiterConfig(cfg))
	router := handler.NewRouter(&handler.RouterDeps{
		SessionResolver:   sessions,
		RateLimiter:       rl,
		Logger:            slog.Default(),
		Metrics:           mc,
		MetricsGatherer:   reg,
		TrustProxyHeaders: cfg.TrustProxyHeaders,
		CSRF: middleware.CSRFConfig{
			CookieSecure: cfg.CookieSecure,
			CookieDomain: cfg.CookieDomain,
		},
		Accounts: accounts,
		Sessions: sessions,
		SessionCookie: middleware.SessionCookieConfig{
			MaxAge: cfg.SessionMaxAge,
			Secure: cfg.CookieSecure,
			Domain: cfg.CookieDomain,
		},
		DB: db,
	})

	return &server{
		http: &http.Server{
			Addr:         ":" + cfg.ServerPort,
			Handler:      router,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		rateLimiter: rl,
		cleanupJob:  cleanup.NewSessionCleanupJob(db, slog.Default(), mc),
	}
}

// newMailSender はSMTP_HOSTが設定されていればSMTP送信、なければログ出力のSenderを返す。
func newMailSender(cfg *config.Config) mailer.Sender {
	if cfg.SMTPHost == "" {
		slog.Warn("SMTP_HOST is not set; verification emails will be written to the log")
		return mailer.NewLogSender(slog.Default())
	}
	return mailer.NewSMTPSender(mailer.SMTPConfig{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
		From:     cfg.MailFrom,
	})
}

// rateLimiterConfig はConfigのレート制限値をRateLimiterConfigに変換する。
// 0以下の値はその規則を無効にする。
func rateLimiterConfig(cfg *config.Config) middleware.RateLimiterConfig {
	rc := middleware.DefaultRateLimiterConfig()
	rc.DefaultRules = []middleware.Rule{
		{Name: "day", Limit: cfg.RateLimitPerDay, Window: 24 * time.Hour},
		{Name: "hour", Limit: cfg.RateLimitPerHour, Window: time.Hour},
	}
	rc.LoginRule = middleware.Rule{Name: "login", Limit: cfg.RateLimitLoginPerMinute, Window: time.Minute}
	rc.ResendRule = middleware.Rule{Name: "resend", Limit: cfg.RateLimitResendPerHour, Window: time.Hour}
	return rc
}

// openDatabase はDB接続を開き、疎通を確認する。
func openDatabase(ctx context.Context, cfg *config.Config) (*sql.DB, database.Dialect, error) {
	db, dialect, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return nil, "", fmt.Errorf("failed to open database: %w", err)
	}

	if err := database.WaitForConnection(ctx, db, dbConnectRetries); err != nil {
		db.Close()
		return nil, "", err
	}

	slog.Info("database connection established", slog.String("dialect", string(dialect)))
	return db, dialect, nil
}

// runServe はHTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(ctx context.Context, cfg *config.Config, autoMigrate bool) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 1. DB接続
	db, dialect, err := openDatabase(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	if autoMigrate {
		if err := database.RunMigrationsWithDB(db, dialect); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
		slog.Info("database migrations completed successfully")
	}

	// 2. 依存関係のワイヤリング
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	srv := newServer(cfg, db, reg)
	defer srv.rateLimiter.Stop()

	// 3. 期限切れセッションのクリーンアップをバックグラウンドで実行
	if cfg.SessionCleanupInterval > 0 {
		go srv.cleanupJob.Start(ctx, cfg.SessionCleanupInterval)
	}

	// 4. HTTPサーバーの起動
	errCh := make(chan error, 1)
	go func() {
		slog.Info("server starting",
			slog.String("addr", srv.http.Addr),
			slog.String("base_url", cfg.BaseURL),
		)
		if err := srv.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server listen error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.http.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("server stopped gracefully")
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully")
	return nil
}

// runCleanup は期限切れセッションの削除を1回実行する。
func runCleanup(ctx context.Context, cfg *config.Config) error {
	db, _, err := openDatabase(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	job := cleanup.NewSessionCleanupJob(db, slog.Default(), nil)
	if _, err := job.Run(ctx); err != nil {
		return err
	}
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(baseURL string) error {
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(baseURL + "/health")
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// healthcheckPort はヘルスチェック先のポートを返す。
func healthcheckPort() string {
	if port := os.Getenv("SERVER_PORT"); port != "" {
		return port
	}
	return "8080"
}

// maskDatabaseURL はデータベースURLの認証情報をマスクする。
func maskDatabaseURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" {
		return "***"
	}
	return u.Redacted()
}
