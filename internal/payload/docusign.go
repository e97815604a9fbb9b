package payload

import (
	"encoding/json"
	"strings"
)

type DocuSignKind int

const (
	DocuSignOther DocuSignKind = iota
	DocuSignTemplateSaved
	DocuSignEnvelopeSent
	DocuSignRecipientCompleted
)

func (k DocuSignKind) String() string {
	switch k {
	case DocuSignTemplateSaved:
		return "templateSaved"
	case DocuSignEnvelopeSent:
		return "envelope-sent"
	case DocuSignRecipientCompleted:
		return "recipient-completed"
	default:
		return "other"
	}
}

func docuSignKindOf(tag string) DocuSignKind {
	switch strings.TrimSpace(tag) {
	case "templateSaved":
		return DocuSignTemplateSaved
	case "envelope-sent":
		return DocuSignEnvelopeSent
	case "recipient-completed":
		return DocuSignRecipientCompleted
	default:
		return DocuSignOther
	}
}

type Signer struct {
	Email string `json:"email"`
	Name  string `json:"name"`
}

// DocuSignEvent is a DocuSign Connect notification.
type DocuSignEvent struct {
	Kind DocuSignKind
	// Event keeps the raw tag so ignored events can still be logged by name.
	Event        string
	EnvelopeID   string
	TemplateID   string
	TemplateName string
	Subject      string
	Signers      []Signer
	SenderEmail  string
	SenderName   string
}

type docuSignWire struct {
	Event string `json:"event"`
	Data  struct {
		EnvelopeID      string `json:"envelopeId"`
		TemplateID      string `json:"templateId"`
		TemplateName    string `json:"templateName"`
		TemplateSummary struct {
			Name string `json:"name"`
		} `json:"templateSummary"`
		EnvelopeSummary struct {
			TemplateID   string `json:"templateId"`
			EmailSubject string `json:"emailSubject"`
			Recipients   struct {
				Signers []Signer `json:"signers"`
			} `json:"recipients"`
		} `json:"envelopeSummary"`
		Sender struct {
			Email    string `json:"email"`
			UserName string `json:"userName"`
		} `json:"sender"`
	} `json:"data"`
}

// ParseDocuSign decodes a Connect payload. Shape problems inside data are not
// errors; Validate decides what is required for the event kind.
func ParseDocuSign(body []byte) (DocuSignEvent, error) {
	if !ValidJSON(body) {
		return DocuSignEvent{}, ErrInvalidJSON
	}
	var w docuSignWire
	if err := json.Unmarshal(body, &w); err != nil {
		return DocuSignEvent{}, ErrInvalidJSON
	}

	d := w.Data
	ev := DocuSignEvent{
		Kind:        docuSignKindOf(w.Event),
		Event:       strings.TrimSpace(w.Event),
		EnvelopeID:  strings.TrimSpace(d.EnvelopeID),
		TemplateID:  firstNonEmpty(d.TemplateID, d.EnvelopeSummary.TemplateID),
		Subject:     strings.TrimSpace(d.EnvelopeSummary.EmailSubject),
		SenderEmail: normalizeEmail(d.Sender.Email),
		SenderName:  strings.TrimSpace(d.Sender.UserName),
	}
	ev.TemplateName = firstNonEmpty(d.TemplateName, d.TemplateSummary.Name)
	for _, s := range d.EnvelopeSummary.Recipients.Signers {
		ev.Signers = append(ev.Signers, Signer{Email: normalizeEmail(s.Email), Name: strings.TrimSpace(s.Name)})
	}
	return ev, nil
}

// RecipientEmail is the first signer's email, or the sender's when the
// first signer has none.
func (e DocuSignEvent) RecipientEmail() string {
	if len(e.Signers) > 0 && e.Signers[0].Email != "" {
		return e.Signers[0].Email
	}
	return e.SenderEmail
}

// RecipientName follows the same precedence as RecipientEmail.
func (e DocuSignEvent) RecipientName() string {
	if len(e.Signers) > 0 && e.Signers[0].Email != "" {
		return e.Signers[0].Name
	}
	return e.SenderName
}

// Validate rejects envelope events that cannot be attributed.
func (e DocuSignEvent) Validate() error {
	switch e.Kind {
	case DocuSignEnvelopeSent, DocuSignRecipientCompleted:
		if e.EnvelopeID == "" {
			return ErrMissingEnvelopeID
		}
		if e.RecipientEmail() == "" {
			return ErrMissingRecipient
		}
	}
	return nil
}

func normalizeEmail(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
