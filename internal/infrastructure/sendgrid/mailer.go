package sendgrid

import (
	"context"
	"fmt"

	"github.com/edutech-foundation/site-api/internal/config"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"go.uber.org/zap"
)

// Mailer sends email through the SendGrid v3 API.
type Mailer struct {
	client *sendgrid.Client
	from   *mail.Email
	log    *zap.SugaredLogger
}

func NewMailer(cfg *config.Config, log *zap.SugaredLogger) *Mailer {
	return &Mailer{
		client: sendgrid.NewSendClient(cfg.SendGridAPIKey),
		from:   mail.NewEmail(cfg.MailFromName, cfg.MailFrom),
		log:    log,
	}
}

func (m *Mailer) SendEmail(ctx context.Context, to, subject, htmlBody string) error {
	message := mail.NewSingleEmail(m.from, subject, mail.NewEmail("", to), "", htmlBody)

	resp, err := m.client.SendWithContext(ctx, message)
	if err != nil {
		m.log.Errorw("failed to send email", "to", to, "subject", subject, "err", err)
		return fmt.Errorf("failed to send email: %w", err)
	}
	if resp.StatusCode >= 300 {
		m.log.Errorw("email rejected", "to", to, "subject", subject, "status_code", resp.StatusCode)
		return fmt.Errorf("sendgrid rejected email: status %d", resp.StatusCode)
	}
	m.log.Infow("email sent", "to", to, "subject", subject, "status_code", resp.StatusCode)
	return nil
}
