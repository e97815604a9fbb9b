package notify

import (
	"context"
	"fmt"

	"github.com/jmehdipour/staffhooks/internal/credentials"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"
)

// Attachment content is base64 encoded, as SendGrid expects it.
type Attachment struct {
	Filename    string
	ContentType string
	Content     string
}

type Email struct {
	Subject     string
	HTML        string
	PlainText   string
	Attachments []Attachment
}

type SMSSender interface {
	SendSMS(ctx context.Context, creds credentials.Twilio, to, body string) error
}

type EmailSender interface {
	SendEmail(ctx context.Context, creds credentials.SendGrid, to string, msg Email) error
}

// TwilioSender builds a REST client from the tenant's own account for every
// call; no client outlives the task that resolved the credentials.
type TwilioSender struct{}

var _ SMSSender = TwilioSender{}

func (TwilioSender) SendSMS(_ context.Context, creds credentials.Twilio, to, body string) error {
	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: creds.AccountSID,
		Password: creds.AuthToken,
	})

	params := &twilioApi.CreateMessageParams{}
	params.SetTo(to)
	params.SetMessagingServiceSid(creds.MessagingServiceSID)
	params.SetBody(body)

	if _, err := client.Api.CreateMessage(params); err != nil {
		return fmt.Errorf("twilio create message: %w", err)
	}
	return nil
}

type SendGridSender struct{}

var _ EmailSender = SendGridSender{}

func (SendGridSender) SendEmail(ctx context.Context, creds credentials.SendGrid, to string, msg Email) error {
	from := mail.NewEmail(creds.FromName, creds.FromEmail)
	m := mail.NewSingleEmail(from, msg.Subject, mail.NewEmail("", to), msg.PlainText, msg.HTML)

	for _, a := range msg.Attachments {
		att := mail.NewAttachment()
		att.SetContent(a.Content)
		att.SetType(a.ContentType)
		att.SetFilename(a.Filename)
		att.SetDisposition("attachment")
		m.AddAttachment(att)
	}

	res, err := sendgrid.NewSendClient(creds.APIKey).SendWithContext(ctx, m)
	if err != nil {
		return fmt.Errorf("sendgrid send: %w", err)
	}
	if res.StatusCode/100 != 2 {
		return fmt.Errorf("sendgrid status=%d body=%s", res.StatusCode, truncate(res.Body, 200))
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
