// Package emailnotify mails new slot notifications over SMTP.
package emailnotify

import (
	"context"
	"errors"
	"fmt"
	"net/smtp"
	"slotwatch/internal/components/assert"
	"slotwatch/internal/components/telemetry"
	"slotwatch/internal/slots"
	"strings"

	"github.com/jordan-wright/email"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("slotwatch.internal.notify.emailnotify")

const report_email_send = "email.send"

type Config struct {
	Server       string   `json:"server"`
	Port         int      `json:"port"`
	EmailAddress string   `json:"email_address"`
	Password     string   `json:"password"`
	To           []string `json:"to"`
}

func (c Config) Validate() error {
	if c.Server == "" {
		return errors.New("smtp server is required")
	}
	if c.Port <= 0 {
		return errors.New("smtp port must be positive")
	}
	if c.EmailAddress == "" {
		return errors.New("sender email address is required")
	}
	if len(c.To) == 0 {
		return errors.New("at least one recipient is required")
	}
	return nil
}

type sendFunc func(mail *email.Email, addr string, auth smtp.Auth) error

func send(mail *email.Email, addr string, auth smtp.Auth) error {
	return mail.Send(addr, auth)
}

type Notifier struct {
	config Config
	send   sendFunc
	tel    telemetry.API
}

func NewNotifier(config Config, tel telemetry.API) Notifier {
	assert.NotNil(tel)
	return Notifier{
		config: config,
		send:   send,
		tel:    telemetry.NewScopedAPI("emailnotify", tel),
	}
}

func (n Notifier) addr() string {
	return fmt.Sprintf("%s:%d", n.config.Server, n.config.Port)
}

func (n Notifier) Notify(ctx context.Context, notification slots.Notification) error {
	_, span := tracer.Start(ctx, "Notify")
	defer span.End()

	mail := email.NewEmail()
	mail.From = fmt.Sprintf("Slotwatch <%s>", n.config.EmailAddress)
	mail.To = n.config.To
	mail.Subject = notification.Subject()
	mail.Text = []byte(notification.Message())

	err := n.send(
		mail,
		n.addr(),
		smtp.PlainAuth("", n.config.EmailAddress, n.config.Password, n.config.Server),
	)
	// local relays often accept unauthenticated mail only
	if err != nil && strings.Contains(err.Error(), "server doesn't support AUTH") {
		err = n.send(mail, n.addr(), nil)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to send email")
		n.tel.ReportBroken(report_email_send, err, n.addr())
		return fmt.Errorf("send email: %w", err)
	}
	return nil
}
