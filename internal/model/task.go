package model

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jmehdipour/staffhooks/internal/util"
)

type TaskKind string

const (
	TaskSendGridWebhook TaskKind = "webhook.sendgrid"
	TaskDocuSignWebhook TaskKind = "webhook.docusign"
	TaskWhatsAppWebhook TaskKind = "webhook.whatsapp"

	TaskNotifyHR      TaskKind = "notify.hr"
	TaskDocumentFetch TaskKind = "document.fetch"
	TaskBulkEmail     TaskKind = "email.bulk"
	TaskBulkSMS       TaskKind = "sms.bulk"
)

func (k TaskKind) String() string { return string(k) }

// IsWebhook reports whether the task carries a raw provider callback.
func (k TaskKind) IsWebhook() bool { return strings.HasPrefix(string(k), "webhook.") }

// Task is the payload published to Kafka (via the outbox).
type Task struct {
	ID         string          `json:"id"` // ULID
	Kind       TaskKind        `json:"kind"`
	Payload    json.RawMessage `json:"payload"`
	EnqueuedAt time.Time       `json:"enqueued_at"`
}

// NewTask marshals payload unless it is already raw JSON.
func NewTask(kind TaskKind, payload any) (Task, error) {
	var raw json.RawMessage
	switch p := payload.(type) {
	case json.RawMessage:
		raw = p
	case []byte:
		raw = json.RawMessage(p)
	default:
		b, err := json.Marshal(payload)
		if err != nil {
			return Task{}, fmt.Errorf("marshal %s payload: %w", kind, err)
		}
		raw = b
	}
	return Task{
		ID:         util.New(),
		Kind:       kind,
		Payload:    raw,
		EnqueuedAt: time.Now().UTC(),
	}, nil
}

// Decode unmarshals the payload into dst.
func (t Task) Decode(dst any) error {
	if err := json.Unmarshal(t.Payload, dst); err != nil {
		return fmt.Errorf("decode %s payload: %w", t.Kind, err)
	}
	return nil
}

// Document lifecycle stages reported to HR.
const (
	DocumentSent      = "sent"
	DocumentCompleted = "completed"
)

type NotifyHRPayload struct {
	EmployerID     int64   `json:"employer_id"`
	Stage          string  `json:"stage"` // sent | completed
	EnvelopeID     string  `json:"envelope_id"`
	RecipientEmail string  `json:"recipient_email"`
	RecipientName  string  `json:"recipient_name,omitempty"`
	TemplateName   *string `json:"template_name,omitempty"`
}

type DocumentFetchPayload struct {
	EmployerID     int64   `json:"employer_id"`
	EnvelopeID     string  `json:"envelope_id"`
	RecipientEmail string  `json:"recipient_email"`
	UserID         *int64  `json:"user_id,omitempty"`
	TemplateName   *string `json:"template_name,omitempty"`
}

type BulkEmailPayload struct {
	EmployerID     int64    `json:"employer_id"`
	Subject        string   `json:"subject"`
	HTML           string   `json:"html"`
	Recipients     []string `json:"recipients"`
	AttachmentURLs []string `json:"attachment_urls,omitempty"`
}

type BulkSMSPayload struct {
	EmployerID int64    `json:"employer_id"`
	Body       string   `json:"body"`
	Recipients []string `json:"recipients"`
}

// Task outcomes. Handlers report failures through Result instead of
// returning errors so the consumer loop never sees them.
const (
	ResultProcessed = "processed"
	ResultDuplicate = "duplicate"
	ResultIgnored   = "ignored"
	ResultSkipped   = "skipped"
	ResultSent      = "sent"
	ResultPartial   = "partial"
	ResultFailed    = "failed"
)

// ReasonNoCredentials is the skip reason when a tenant has no usable
// credentials for the channel.
const ReasonNoCredentials = "credentials_unavailable"

type Result struct {
	Status string         `json:"status,omitempty"`
	Error  string         `json:"error,omitempty"`
	Detail map[string]any `json:"detail,omitempty"`
}

func Done(status string) Result { return Result{Status: status} }

func Errorf(format string, args ...any) Result {
	return Result{Status: ResultFailed, Error: fmt.Sprintf(format, args...)}
}

// With returns a copy of r carrying one more detail entry.
func (r Result) With(key string, value any) Result {
	detail := make(map[string]any, len(r.Detail)+1)
	for k, v := range r.Detail {
		detail[k] = v
	}
	detail[key] = value
	r.Detail = detail
	return r
}

func (r Result) Failed() bool { return r.Error != "" }

// MissingCredentials reports a skip caused by the tenant's credentials.
func (r Result) MissingCredentials() bool {
	return r.Status == ResultSkipped && r.Detail["reason"] == ReasonNoCredentials
}
