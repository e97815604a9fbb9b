// Package notification runs the notify-lane tasks: HR alerts about the
// document lifecycle and tenant bulk email/SMS sends.
package notification

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmehdipour/staffhooks/internal/credentials"
	"github.com/jmehdipour/staffhooks/internal/model"
	"github.com/jmehdipour/staffhooks/internal/notify"
	"github.com/jmehdipour/staffhooks/internal/repository"
	"go.uber.org/zap"
)

// SmsLogSink accepts SMS outcome rows for asynchronous persistence.
type SmsLogSink interface {
	Add(rows ...model.SmsLog)
}

type Service struct {
	users    repository.UsersRepository
	creds    credentials.Resolver
	dispatch *notify.Dispatcher
	fetcher  *notify.AttachmentFetcher
	smsLog   SmsLogSink
	log      *zap.Logger

	system *credentials.SendGrid
}

func New(
	users repository.UsersRepository,
	creds credentials.Resolver,
	dispatch *notify.Dispatcher,
	fetcher *notify.AttachmentFetcher,
	smsLog SmsLogSink,
	log *zap.Logger,
) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{users: users, creds: creds, dispatch: dispatch, fetcher: fetcher, smsLog: smsLog, log: log}
}

// WithSystemSender sends HR alerts from the platform's own address. Alerts are
// system mail, so they do not depend on the tenant's sender identity. An
// incomplete sender is ignored.
func (s *Service) WithSystemSender(c credentials.SendGrid) *Service {
	if strings.TrimSpace(c.APIKey) != "" && strings.TrimSpace(c.FromEmail) != "" {
		s.system = &c
	}
	return s
}

// NotifyHR emails every member of the employer's HR group about a document
// being sent or completed.
func (s *Service) NotifyHR(ctx context.Context, p model.NotifyHRPayload) model.Result {
	if p.EmployerID == 0 {
		return model.Errorf("notify hr: employer is required")
	}

	hr, err := s.users.ListByGroup(ctx, p.EmployerID, model.GroupHR)
	if err != nil {
		return model.Errorf("notify hr: list hr users: %v", err)
	}
	recipients := make([]string, 0, len(hr))
	for _, u := range hr {
		if u.Email != "" {
			recipients = append(recipients, u.Email)
		}
	}
	if len(recipients) == 0 {
		s.log.Info("no hr recipients", zap.Int64("employer_id", p.EmployerID), zap.String("envelope_id", p.EnvelopeID))
		return model.Done(model.ResultSkipped).With("reason", "no hr recipients")
	}

	creds, err := s.hrSender(ctx, p.EmployerID)
	if err != nil {
		return s.credentialsResult("notify hr", p.EmployerID, err)
	}

	sum := s.dispatch.SendEmail(ctx, p.EmployerID, creds, recipients, hrEmail(p))
	return sum.Result()
}

// BulkEmail sends one message to every recipient. Attachments that cannot be
// downloaded are dropped; the email still goes out.
func (s *Service) BulkEmail(ctx context.Context, p model.BulkEmailPayload) model.Result {
	if p.EmployerID == 0 {
		return model.Errorf("bulk email: employer is required")
	}
	if len(p.Recipients) == 0 {
		return model.Done(model.ResultSkipped).With("reason", "no recipients")
	}

	creds, err := s.creds.SendGrid(ctx, p.EmployerID)
	if err != nil {
		return s.credentialsResult("bulk email", p.EmployerID, err)
	}

	msg := notify.Email{Subject: p.Subject, HTML: p.HTML}
	if len(p.AttachmentURLs) > 0 && s.fetcher != nil {
		msg.Attachments = s.fetcher.FetchAll(ctx, p.AttachmentURLs)
	}

	sum := s.dispatch.SendEmail(ctx, p.EmployerID, creds, p.Recipients, msg)
	return sum.Result().With("attachments", len(msg.Attachments))
}

// BulkSMS sends body through the employer's own Twilio account and records
// one sms_logs row per recipient.
func (s *Service) BulkSMS(ctx context.Context, p model.BulkSMSPayload) model.Result {
	if p.EmployerID == 0 {
		return model.Errorf("bulk sms: employer is required")
	}
	if strings.TrimSpace(p.Body) == "" {
		return model.Errorf("bulk sms: body is required")
	}
	if len(p.Recipients) == 0 {
		return model.Done(model.ResultSkipped).With("reason", "no recipients")
	}

	creds, err := s.creds.Twilio(ctx, p.EmployerID)
	if err != nil {
		return s.credentialsResult("bulk sms", p.EmployerID, err)
	}

	sum := s.dispatch.SendSMS(ctx, p.EmployerID, creds, p.Recipients, p.Body)

	batchID := uuid.NewString()
	s.record(batchID, p, sum)

	return sum.Result().With("batch_id", batchID)
}

func (s *Service) record(batchID string, p model.BulkSMSPayload, sum notify.Summary) {
	if s.smsLog == nil {
		return
	}
	now := time.Now().UTC()
	rows := make([]model.SmsLog, 0, sum.Total())
	for _, phone := range sum.Sent {
		rows = append(rows, model.SmsLog{BatchID: batchID, EmployerID: p.EmployerID, Phone: phone, Body: p.Body, Status: model.SmsSent, CreatedAt: now})
	}
	for _, f := range sum.Failed {
		rows = append(rows, model.SmsLog{BatchID: batchID, EmployerID: p.EmployerID, Phone: f.Recipient, Body: p.Body, Status: model.SmsFailed, Error: f.Error, CreatedAt: now})
	}
	s.smsLog.Add(rows...)
}

func (s *Service) hrSender(ctx context.Context, employerID int64) (credentials.SendGrid, error) {
	if s.system != nil {
		return *s.system, nil
	}
	return s.creds.SendGrid(ctx, employerID)
}

// credentialsResult turns a tenant without usable credentials into a skip.
// Store errors stay failures so the task is visible in logs.
func (s *Service) credentialsResult(op string, employerID int64, err error) model.Result {
	if errors.Is(err, credentials.ErrUnavailable) {
		s.log.Error("skipped: credentials unavailable",
			zap.String("op", op), zap.Int64("employer_id", employerID), zap.Error(err))
		return model.Done(model.ResultSkipped).With("reason", model.ReasonNoCredentials).With("error", err.Error())
	}
	return model.Errorf("%s: resolve credentials: %v", op, err)
}

func hrEmail(p model.NotifyHRPayload) notify.Email {
	doc := p.EnvelopeID
	if p.TemplateName != nil && *p.TemplateName != "" {
		doc = *p.TemplateName
	}
	who := p.RecipientEmail
	if p.RecipientName != "" {
		who = fmt.Sprintf("%s (%s)", p.RecipientName, p.RecipientEmail)
	}

	var subject, line string
	switch p.Stage {
	case model.DocumentCompleted:
		subject = "Document signed: " + doc
		line = fmt.Sprintf("%s has signed %s.", who, doc)
	default:
		subject = "Document sent: " + doc
		line = fmt.Sprintf("%s was sent %s for signature.", who, doc)
	}

	text := line + "\nEnvelope: " + p.EnvelopeID
	body := fmt.Sprintf("<p>%s</p><p>Envelope: %s</p>", html.EscapeString(line), html.EscapeString(p.EnvelopeID))
	return notify.Email{Subject: subject, HTML: body, PlainText: text}
}
