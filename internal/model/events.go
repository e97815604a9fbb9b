package model

import "time"

// UnknownUsername attributes log rows whose user could not be resolved.
const UnknownUsername = "unknown"

// UnknownContact labels messaging rows whose phone matched no user.
const UnknownContact = "Unknown"

// EmailEvent is one SendGrid callback. Append-only.
type EmailEvent struct {
	ID           int64      `db:"id"`
	Email        string     `db:"email"`
	Event        string     `db:"event"`
	SGEventID    string     `db:"sg_event_id"`
	SGMessageID  string     `db:"sg_message_id"`
	TemplateID   string     `db:"sg_template_id"`
	TemplateName string     `db:"sg_template_name"`
	OccurredAt   *time.Time `db:"occurred_at"` // nil when the provider sent no timestamp
	IP           string     `db:"ip"`
	URL          string     `db:"url"`
	UserAgent    string     `db:"useragent"`
	UserID       *int64     `db:"user_id"`
	Username     string     `db:"username"`
	EmployerID   *int64     `db:"employer_id"`
	CreatedAt    time.Time  `db:"created_at"`
}

type SmsStatus string

const (
	SmsSent   SmsStatus = "sent"
	SmsFailed SmsStatus = "failed"
)

// SmsLog records one outbound SMS attempt. Append-only.
type SmsLog struct {
	ID         int64     `db:"id"`
	BatchID    string    `db:"batch_id"`
	EmployerID int64     `db:"employer_id"`
	Phone      string    `db:"phone"`
	Body       string    `db:"body"`
	Status     SmsStatus `db:"status"`
	Error      string    `db:"error"`
	CreatedAt  time.Time `db:"created_at"`
}

type MessageKind string

const (
	MessageInbound MessageKind = "inbound"
	MessageStatus  MessageKind = "status"
)

// WhatsAppMessage is one Twilio messaging callback (WhatsApp or SMS).
type WhatsAppMessage struct {
	ID         int64       `db:"id"`
	Kind       MessageKind `db:"kind"`
	MessageSID string      `db:"message_sid"`
	Channel    string      `db:"channel"`
	FromNumber string      `db:"from_number"`
	ToNumber   string      `db:"to_number"`
	Body       string      `db:"body"`
	Status     string      `db:"status"`
	Username   string      `db:"username"`
	CreatedAt  time.Time   `db:"created_at"`
}
