package service

import (
	"context"
	"fmt"
	"net/http"

	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"
	"go.uber.org/zap"
)

type Email struct {
	To      Recipient
	Subject string
	Text    string
	HTML    string
}

type Mailer interface {
	Send(ctx context.Context, e Email) error
}

/* ===================== SendGrid ===================== */

type SendgridMailer struct {
	client     *sendgrid.Client
	from       *sgmail.Email
	subjPrefix string
}

func NewSendgridMailer(apiKey, fromName, fromAddress string) *SendgridMailer {
	return &SendgridMailer{
		client:     sendgrid.NewSendClient(apiKey),
		from:       sgmail.NewEmail(fromName, fromAddress),
		subjPrefix: "[" + fromName + "] ",
	}
}

func (m *SendgridMailer) prepare(e Email) *sgmail.SGMailV3 {
	p := sgmail.NewPersonalization()
	p.Subject = m.subjPrefix + e.Subject
	p.AddTos(sgmail.NewEmail(e.To.Name, e.To.Email))

	msg := sgmail.NewV3Mail()
	msg.SetFrom(m.from)
	msg.AddPersonalizations(p)
	msg.AddContent(sgmail.NewContent("text/plain", e.Text))
	if e.HTML != "" {
		msg.AddContent(sgmail.NewContent("text/html", e.HTML))
	}
	return msg
}

func (m *SendgridMailer) Send(ctx context.Context, e Email) error {
	res, err := m.client.SendWithContext(ctx, m.prepare(e))
	if err != nil {
		return fmt.Errorf("sendgrid: %w", err)
	}
	if res.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("sendgrid: status %d: %s", res.StatusCode, res.Body)
	}
	return nil
}

/* ===================== Log (dev) ===================== */

// LogMailer writes e-mails to the logger; used when no API key is set.
type LogMailer struct {
	Log *zap.Logger
}

func (m LogMailer) Send(_ context.Context, e Email) error {
	m.Log.Info("mail",
		zap.String("to", e.To.Email),
		zap.String("subject", e.Subject),
		zap.Int("text_len", len(e.Text)),
	)
	return nil
}
