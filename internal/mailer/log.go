package mailer

import (
	"context"
	"log/slog"
	"strings"
)

// LogSender はメールを送信せずログに出力する。SMTPが未設定の開発環境で使用する。
type LogSender struct {
	logger *slog.Logger
}

// NewLogSender はLogSenderを生成する。loggerがnilの場合はデフォルトロガーを使用する。
func NewLogSender(logger *slog.Logger) *LogSender {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSender{logger: logger}
}

// Send はメールの内容をINFOレベルで出力する。
func (s *LogSender) Send(ctx context.Context, msg Message) error {
	s.logger.InfoContext(ctx, "mail not sent (SMTP disabled)",
		slog.String("to", strings.Join(msg.To, ",")),
		slog.String("subject", msg.Subject),
		slog.String("body", msg.Body),
	)
	return nil
}

var _ Sender = (*LogSender)(nil)
