package payload

import (
	"net/url"
	"strings"

	"github.com/jmehdipour/staffhooks/internal/model"
	"github.com/jmehdipour/staffhooks/internal/util"
)

// TwilioMessage is a messaging callback posted as a form.
type TwilioMessage struct {
	Kind       model.MessageKind
	MessageSID string
	Channel    string // "whatsapp", "sms" or "" for bare numbers
	From       string
	To         string
	Body       string
	Status     string
}

// ParseTwilio classifies the callback: an SmsMessageSid field marks an inbound
// message, anything else is a delivery status update.
func ParseTwilio(form url.Values) TwilioMessage {
	msg := TwilioMessage{
		Kind:   model.MessageStatus,
		Body:   form.Get("Body"),
		Status: strings.TrimSpace(form.Get("MessageStatus")),
	}
	if _, ok := form["SmsMessageSid"]; ok {
		msg.Kind = model.MessageInbound
		msg.MessageSID = strings.TrimSpace(form.Get("SmsMessageSid"))
	} else {
		msg.MessageSID = strings.TrimSpace(form.Get("MessageSid"))
	}

	fromCh, from := util.SplitChannelAddress(form.Get("From"))
	toCh, to := util.SplitChannelAddress(form.Get("To"))
	msg.From, msg.To = from, to
	msg.Channel = fromCh
	if msg.Channel == "" {
		msg.Channel = toCh
	}
	return msg
}

// Counterpart is the number on our users' side of the conversation.
func (m TwilioMessage) Counterpart() string {
	if m.Kind == model.MessageInbound {
		return m.From
	}
	return m.To
}
