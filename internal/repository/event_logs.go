package repository

import (
	"context"
	"strings"

	"github.com/jmehdipour/staffhooks/internal/model"
	"github.com/jmoiron/sqlx"
)

// EventLogsRepository appends provider callback rows. Rows are never updated.
type EventLogsRepository interface {
	InsertEmailEvent(ctx context.Context, ev model.EmailEvent) error
	InsertWhatsAppMessage(ctx context.Context, m model.WhatsAppMessage) error
	InsertSmsLogBatch(ctx context.Context, rows []model.SmsLog) error
}

type EventLogsRepositoryImpl struct {
	db *sqlx.DB
}

func NewEventLogsRepository(db *sqlx.DB) *EventLogsRepositoryImpl {
	return &EventLogsRepositoryImpl{db: db}
}

var _ EventLogsRepository = (*EventLogsRepositoryImpl)(nil)

func (r *EventLogsRepositoryImpl) InsertEmailEvent(ctx context.Context, ev model.EmailEvent) error {
	_, err := r.db.NamedExecContext(ctx, `
		INSERT INTO email_events
		    (email, event, sg_event_id, sg_message_id, sg_template_id, sg_template_name,
		     occurred_at, ip, url, useragent, user_id, username, employer_id, created_at)
		VALUES
		    (:email, :event, :sg_event_id, :sg_message_id, :sg_template_id, :sg_template_name,
		     :occurred_at, :ip, :url, :useragent, :user_id, :username, :employer_id, NOW())
	`, ev)
	return err
}

func (r *EventLogsRepositoryImpl) InsertWhatsAppMessage(ctx context.Context, m model.WhatsAppMessage) error {
	_, err := r.db.NamedExecContext(ctx, `
		INSERT INTO whatsapp_messages
		    (kind, message_sid, channel, from_number, to_number, body, status, username, created_at)
		VALUES
		    (:kind, :message_sid, :channel, :from_number, :to_number, :body, :status, :username, NOW())
	`, m)
	return err
}

// InsertSmsLogBatch writes all rows with a single statement.
func (r *EventLogsRepositoryImpl) InsertSmsLogBatch(ctx context.Context, rows []model.SmsLog) error {
	if len(rows) == 0 {
		return nil
	}

	var sb strings.Builder
	args := make([]any, 0, len(rows)*6)

	sb.WriteString(`INSERT INTO sms_logs (batch_id, employer_id, phone, body, status, error, created_at) VALUES `)
	for i, rw := range rows {
		if i > 0 {
			sb.WriteString(",")
		}
		sb.WriteString("(?, ?, ?, ?, ?, ?, NOW())")
		args = append(args, rw.BatchID, rw.EmployerID, rw.Phone, rw.Body, string(rw.Status), rw.Error)
	}

	_, err := r.db.ExecContext(ctx, sb.String(), args...)
	return err
}
