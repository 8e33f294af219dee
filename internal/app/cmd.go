package app

import (
	"io"

	"github.com/spf13/cobra"
)

// defaultEnvFile は起動時に読み込む.envファイルのパス。
const defaultEnvFile = ".env"

// NewRootCmd はmailgateのルートコマンドを生成する。
// サブコマンドを省略した場合はserveとして動作する。
func NewRootCmd(w io.Writer) *cobra.Command {
	var envFile string

	serve := newServeCmd(w, &envFile)

	cmd := &cobra.Command{
		Use:   "mailgate",
		Short: "mailgate - account registration with email verification",
		Long: `mailgate serves a small web application where users register with a
username and password, confirm their email address through a signed link,
and log in to a session-gated dashboard.`,
		SilenceUsage: true,
		RunE:         serve.RunE,
	}
	cmd.SetOut(w)
	cmd.SetErr(w)

	cmd.PersistentFlags().StringVar(&envFile, "env-file", defaultEnvFile, "path to an optional .env file")
	cmd.Flags().AddFlagSet(serve.Flags())

	cmd.AddCommand(serve)
	cmd.AddCommand(newMigrateCmd(w, &envFile))
	cmd.AddCommand(newCleanupCmd(w, &envFile))
	cmd.AddCommand(newHealthcheckCmd())

	return cmd
}

func newServeCmd(w io.Writer, envFile *string) *cobra.Command {
	var autoMigrate bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := Init(w, *envFile)
			if err != nil {
				return err
			}
			return runServe(cmd.Context(), cfg, autoMigrate)
		},
	}
	cmd.Flags().BoolVar(&autoMigrate, "auto-migrate", false, "apply pending migrations before serving")

	return cmd
}

func newMigrateCmd(w io.Writer, envFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
		Long:  `Apply all pending migrations for the database selected by DATABASE_URL.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := Init(w, *envFile)
			if err != nil {
				return err
			}
			return runMigrate(cfg)
		},
	}
}

func newCleanupCmd(w io.Writer, envFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "cleanup",
		Short: "Delete expired sessions once",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := Init(w, *envFile)
			if err != nil {
				return err
			}
			return runCleanup(cmd.Context(), cfg)
		},
	}
}

// newHealthcheckCmd はdistroless環境でのDockerヘルスチェック用サブコマンドを生成する。
// 軽量サブコマンドのため設定の読み込みをスキップする。
func newHealthcheckCmd() *cobra.Command {
	var url string

	cmd := &cobra.Command{
		Use:   "healthcheck",
		Short: "Check that the local server reports healthy",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if url == "" {
				url = "http://localhost:" + healthcheckPort()
			}
			return runHealthcheck(url)
		},
	}
	cmd.Flags().StringVar(&url, "url", "", "base URL of the server (default http://localhost:$SERVER_PORT)")

	return cmd
}
