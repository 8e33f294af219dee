// Package mailer は認証メールの組み立てと送信を提供する。
package mailer

import (
	"context"
	"log/slog"

	"github.com/hitoshi/mailgate/internal/metrics"
	"github.com/hitoshi/mailgate/internal/model"
)

const (
	verificationSubject = "Verify your email"
	verificationBody    = "Click the link to verify your account:\n"
)

// Message は送信するプレーンテキストメール。
type Message struct {
	To      []string
	Subject string
	Body    string
}

// Sender はメール送信のインターフェース。
// 1回の呼び出しで1回だけ送信を試み、リトライやキューイングは行わない。
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// Dispatcher はアプリケーションが送るメールの文面を組み立て、Senderに渡す。
type Dispatcher struct {
	sender  Sender
	metrics metrics.MetricsCollector
}

// NewDispatcher はDispatcherを生成する。mcがnilの場合はメトリクスを記録しない。
func NewDispatcher(sender Sender, mc metrics.MetricsCollector) *Dispatcher {
	if mc == nil {
		mc = metrics.Nop{}
	}
	return &Dispatcher{sender: sender, metrics: mc}
}

// SendVerificationEmail は認証リンクを含むメールを送信する。
// 送信に失敗した場合は*model.DeliveryErrorを返す。
func (d *Dispatcher) SendVerificationEmail(ctx context.Context, email, link string) error {
	msg := Message{
		To:      []string{email},
		Subject: verificationSubject,
		Body:    verificationBody + link,
	}

	if err := d.sender.Send(ctx, msg); err != nil {
		d.metrics.RecordMailDelivery(false)
		slog.Error("failed to send verification email",
			slog.String("error", err.Error()),
		)
		return &model.DeliveryError{Recipient: email, Err: err}
	}

	d.metrics.RecordMailDelivery(true)
	return nil
}
