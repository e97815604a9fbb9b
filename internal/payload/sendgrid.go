package payload

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// SendGridEvent is one element of a SendGrid event webhook batch.
type SendGridEvent struct {
	Email        string      `json:"email"`
	Event        string      `json:"event"`
	SGEventID    string      `json:"sg_event_id"`
	SGMessageID  string      `json:"sg_message_id"`
	TemplateID   string      `json:"sg_template_id"`
	TemplateName string      `json:"sg_template_name"`
	Timestamp    EpochSecond `json:"timestamp"`
	IP           string      `json:"ip"`
	URL          string      `json:"url"`
	UserAgent    string      `json:"useragent"`
}

// EpochSecond accepts a unix timestamp as a JSON number or numeric string.
// Zero, null and absent all mean "unknown". So does a value that is not a
// number or is out of range; Invalid reports that case so callers can log it.
type EpochSecond struct {
	t   *time.Time
	bad string
}

// maxEpochSecond is the last second of year 9999.
const maxEpochSecond = 253402300799

func (e *EpochSecond) UnmarshalJSON(b []byte) error {
	e.t, e.bad = nil, ""
	s := strings.Trim(string(bytes.TrimSpace(b)), `"`)
	if s == "" || s == "null" {
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || f > maxEpochSecond {
		e.bad = s
		return nil
	}
	if f <= 0 {
		return nil
	}
	t := time.Unix(int64(f), 0).UTC()
	e.t = &t
	return nil
}

// Invalid returns the raw value when it could not be read as a timestamp.
func (e EpochSecond) Invalid() (string, bool) { return e.bad, e.bad != "" }

// Time returns nil when the timestamp is unknown.
func (e EpochSecond) Time() *time.Time { return e.t }

// ValidJSON reports whether body is syntactically valid JSON.
func ValidJSON(body []byte) bool {
	return len(bytes.TrimSpace(body)) > 0 && json.Valid(body)
}

// ParseSendGrid decodes a SendGrid batch. A top-level object is treated as a
// batch of one. Elements that fail to decode are reported in errs and left out
// of events; they never fail the whole batch.
func ParseSendGrid(body []byte) (events []SendGridEvent, errs []error, err error) {
	body = bytes.TrimSpace(body)
	if !ValidJSON(body) {
		return nil, nil, ErrInvalidJSON
	}

	var items []json.RawMessage
	switch body[0] {
	case '[':
		if err := json.Unmarshal(body, &items); err != nil {
			return nil, nil, ErrInvalidJSON
		}
	case '{':
		items = []json.RawMessage{body}
	default:
		return nil, nil, ErrUnsupportedPayload
	}

	events = make([]SendGridEvent, 0, len(items))
	for i, raw := range items {
		var ev SendGridEvent
		if err := json.Unmarshal(raw, &ev); err != nil {
			errs = append(errs, fmt.Errorf("sendgrid event %d: %w", i, err))
			continue
		}
		ev.Email = strings.ToLower(strings.TrimSpace(ev.Email))
		events = append(events, ev)
	}
	return events, errs, nil
}
