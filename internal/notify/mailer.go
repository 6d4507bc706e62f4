package notify

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"time"

	"github.com/jordan-wright/email"

	"github.com/mmeshcher/festival-portal/internal/observability"
)

// Message — письмо одному адресату с текстовой и HTML-частями.
type Message struct {
	From    string
	To      string
	Subject string
	Text    string
	HTML    string
}

// Mailer доставляет пакет писем и возвращает число писем, принятых транспортом.
type Mailer interface {
	Send(ctx context.Context, msgs []Message) (int, error)
}

// SMTPMailer отправляет письма через SMTP-сервер. Для каждого пакета открывается одно соединение.
type SMTPMailer struct {
	addr    string
	auth    smtp.Auth
	timeout time.Duration
}

// NewSMTPMailer создаёт отправителя. Пустой user отключает аутентификацию.
func NewSMTPMailer(host string, port int, user, password string, timeout time.Duration) *SMTPMailer {
	var auth smtp.Auth
	if user != "" {
		auth = smtp.PlainAuth("", user, password, host)
	}
	return &SMTPMailer{
		addr:    net.JoinHostPort(host, strconv.Itoa(port)),
		auth:    auth,
		timeout: timeout,
	}
}

// Send отправляет письма по одному через общее соединение.
// Ошибка отдельного адресата не прерывает отправку остальным.
func (m *SMTPMailer) Send(ctx context.Context, msgs []Message) (int, error) {
	if len(msgs) == 0 {
		return 0, nil
	}

	pool, err := email.NewPool(m.addr, 1, m.auth)
	if err != nil {
		return 0, fmt.Errorf("open smtp pool: %w", err)
	}
	defer pool.Close()

	var (
		accepted int
		errs     []error
	)
	for _, msg := range msgs {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}

		e := email.NewEmail()
		e.From = msg.From
		e.To = []string{msg.To}
		e.Subject = msg.Subject
		e.Text = []byte(msg.Text)
		e.HTML = []byte(msg.HTML)

		start := time.Now()
		if err := pool.Send(e, m.timeout); err != nil {
			errs = append(errs, fmt.Errorf("send to %s: %w", msg.To, err))
			continue
		}
		observability.EmailLatency.Observe(time.Since(start).Seconds())
		accepted++
	}

	return accepted, errors.Join(errs...)
}
