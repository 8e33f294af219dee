package mailer

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gopkg.in/gomail.v2"
)

// SMTPConfig はSMTP送信の設定。
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// dialer はgomail.Dialerのうち送信に使う部分。
type dialer interface {
	DialAndSend(m ...*gomail.Message) error
}

// SMTPSender はgomailを使ってSMTPでメールを送信する。
type SMTPSender struct {
	from   string
	domain string
	dialer dialer
}

// NewSMTPSender はSMTPSenderを生成する。
func NewSMTPSender(cfg SMTPConfig) *SMTPSender {
	return &SMTPSender{
		from:   cfg.From,
		domain: messageIDDomain(cfg.From),
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
	}
}

// Send はメールを1回だけ送信する。
// gomailはcontextに対応していないため、送信前にキャンセル済みかどうかのみ確認する。
func (s *SMTPSender) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := s.dialer.DialAndSend(s.buildMessage(msg)); err != nil {
		return fmt.Errorf("smtp send failed: %w", err)
	}
	return nil
}

func (s *SMTPSender) buildMessage(msg Message) *gomail.Message {
	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", msg.To...)
	m.SetHeader("Subject", msg.Subject)
	m.SetHeader("Message-Id", fmt.Sprintf("<%s@%s>", uuid.NewString(), s.domain))
	m.SetDateHeader("Date", time.Now())
	m.SetBody("text/plain", msg.Body)
	return m
}

// messageIDDomain は送信元アドレスのドメイン部を返す。
func messageIDDomain(from string) string {
	i := strings.LastIndex(from, "@")
	if i < 0 {
		return "localhost"
	}
	domain := strings.TrimSuffix(from[i+1:], ">")
	if domain == "" {
		return "localhost"
	}
	return domain
}

var _ Sender = (*SMTPSender)(nil)
