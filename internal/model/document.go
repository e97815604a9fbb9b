package model

import "time"

// ProcessedDocument marks a completed DocuSign recipient. The unique key
// (envelope_id, recipient_email) makes it the idempotency marker for replays.
type ProcessedDocument struct {
	ID             int64     `db:"id"`
	EnvelopeID     string    `db:"envelope_id"`
	RecipientEmail string    `db:"recipient_email"`
	TemplateName   *string   `db:"template_name"`
	UserID         *int64    `db:"user_id"`
	EmployerID     *int64    `db:"employer_id"`
	CreatedAt      time.Time `db:"created_at"`
}

type DocuSignTemplate struct {
	ID         int64     `db:"id"`
	TemplateID string    `db:"template_id"`
	Name       string    `db:"name"`
	EmployerID int64     `db:"employer_id"`
	CreatedAt  time.Time `db:"created_at"`
}
