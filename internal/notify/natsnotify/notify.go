// Package natsnotify publishes new slot notifications as JSON messages on a NATS subject.
package natsnotify

import (
	"context"
	"encoding/json"
	"fmt"
	"slotwatch/internal/components/assert"
	"slotwatch/internal/components/telemetry"
	"slotwatch/internal/slots"
	"time"

	"github.com/nats-io/nats.go"
)

const report_nats_publish = "nats.publish"

const DefaultSubject = "slotwatch.slots.new"

// flushTimeout bounds the flush when the caller's context has no deadline, nats refuses to
// flush without one.
const flushTimeout = 10 * time.Second

type Config struct {
	Url     string `json:"url"`
	Subject string `json:"subject"`
	Token   string `json:"token"`
}

// Message is the payload published for every notification.
type Message struct {
	Source  string   `json:"source"`
	Subject string   `json:"subject"`
	Message string   `json:"message"`
	Slots   []string `json:"slots"`
}

type publisher interface {
	Publish(subject string, data []byte) error
	FlushWithContext(ctx context.Context) error
}

type Notifier struct {
	conn    publisher
	subject string
	tel     telemetry.API
}

// Connect dials the server, the returned close function drains the connection.
func Connect(cfg Config, tel telemetry.API) (Notifier, func(), error) {
	opts := []nats.Option{
		nats.Name("slotwatch"),
		nats.Timeout(10 * time.Second),
		nats.MaxReconnects(5),
	}
	if cfg.Token != "" {
		opts = append(opts, nats.Token(cfg.Token))
	}

	url := cfg.Url
	if url == "" {
		url = nats.DefaultURL
	}
	conn, err := nats.Connect(url, opts...)
	if err != nil {
		return Notifier{}, nil, fmt.Errorf("connect to nats at %s: %w", url, err)
	}
	closer := func() {
		err := conn.Drain()
		if err != nil {
			conn.Close()
		}
	}
	return newNotifier(conn, cfg.Subject, tel), closer, nil
}

func newNotifier(conn publisher, subject string, tel telemetry.API) Notifier {
	assert.NotNil(conn)
	assert.NotNil(tel)

	if subject == "" {
		subject = DefaultSubject
	}
	return Notifier{
		conn:    conn,
		subject: subject,
		tel:     telemetry.NewScopedAPI("natsnotify", tel),
	}
}

func (n Notifier) Notify(ctx context.Context, notification slots.Notification) error {
	data, err := json.Marshal(Message{
		Source:  notification.Source,
		Subject: notification.Subject(),
		Message: notification.Message(),
		Slots:   notification.Slots,
	})
	if err != nil {
		return err
	}

	err = n.conn.Publish(n.subject, data)
	if err != nil {
		n.tel.ReportBroken(report_nats_publish, err, n.subject)
		return fmt.Errorf("publish to %s: %w", n.subject, err)
	}
	// publishing is buffered, flushing makes sure the server has the message before the
	// run reports success.
	flushCtx := ctx
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		flushCtx, cancel = context.WithTimeout(ctx, flushTimeout)
		defer cancel()
	}
	err = n.conn.FlushWithContext(flushCtx)
	if err != nil {
		n.tel.ReportBroken(report_nats_publish, err, n.subject)
		return fmt.Errorf("flush %s: %w", n.subject, err)
	}
	return nil
}
