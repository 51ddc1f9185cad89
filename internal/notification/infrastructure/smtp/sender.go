package smtp

import (
	"context"
	"log/slog"

	"gopkg.in/gomail.v2"

	"github.com/dmehra2102/furniture-store/internal/notification/application"
)

type Sender struct {
	log    *slog.Logger
	dialer *gomail.Dialer
	from   string
}

func NewSender(log *slog.Logger, host string, port int, user, password, from string) *Sender {
	return &Sender{
		log:    log,
		dialer: gomail.NewDialer(host, port, user, password),
		from:   from,
	}
}

func (s *Sender) Send(ctx context.Context, m application.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := gomail.NewMessage()
	msg.SetHeader("From", s.from)
	msg.SetHeader("To", m.To)
	msg.SetHeader("Subject", m.Subject)
	msg.SetBody("text/html", m.HTML)
	return s.dialer.DialAndSend(msg)
}
