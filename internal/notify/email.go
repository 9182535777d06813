package notify

import (
	"context"

	"github.com/pkg/errors"
	"github.com/resend/resend-go/v2"
	"github.com/yakoovad/finflow/internal/config"
	"github.com/yakoovad/finflow/pkg/logger"
	"go.uber.org/zap"
)

type Email struct {
	To      string
	Subject string
	HTML    string
}

type Sender interface {
	Send(ctx context.Context, email Email) error
}

// NewSender returns a Resend-backed sender, or a sender that only logs when no API key is set.
func NewSender(cfg config.EmailConfig) Sender {
	if !cfg.Enabled() {
		return noopSender{}
	}
	return &ResendSender{
		client: resend.NewClient(cfg.ResendAPIKey),
		from:   cfg.From,
	}
}

type ResendSender struct {
	client *resend.Client
	from   string
}

func (s *ResendSender) Send(ctx context.Context, email Email) error {
	if email.To == "" {
		return errors.New("email has no recipient")
	}

	sent, err := s.client.Emails.SendWithContext(ctx, &resend.SendEmailRequest{
		From:    s.from,
		To:      []string{email.To},
		Subject: email.Subject,
		Html:    email.HTML,
	})
	if err != nil {
		return errors.Wrap(err, "resend send")
	}

	logger.FromContext(ctx).Info("email sent", zap.String("to", email.To), zap.String("email_id", sent.Id))
	return nil
}

type noopSender struct{}

func (noopSender) Send(ctx context.Context, email Email) error {
	logger.FromContext(ctx).Info("email delivery disabled, skipping",
		zap.String("to", email.To), zap.String("subject", email.Subject))
	return nil
}
