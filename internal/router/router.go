// Package router consumes raw webhook tasks, classifies each provider event
// and either records it or schedules the follow-up notify-lane tasks.
package router

import (
	"context"
	"encoding/json"
	"net/url"

	"github.com/jmehdipour/staffhooks/internal/model"
	"github.com/jmehdipour/staffhooks/internal/payload"
	"go.uber.org/zap"
)

type Router struct {
	DocuSign *DocuSignRouter
	SendGrid *SendGridRouter
	WhatsApp *WhatsAppRouter
	Log      *zap.Logger
}

// Handle decodes a webhook task. The payload is the body exactly as the
// ingestor received it; WhatsApp forms travel as a JSON object of value lists.
func (r *Router) Handle(ctx context.Context, t model.Task) model.Result {
	switch t.Kind {
	case model.TaskSendGridWebhook:
		events, errs, err := payload.ParseSendGrid(t.Payload)
		if err != nil {
			return model.Errorf("sendgrid: %v", err)
		}
		for _, e := range errs {
			r.logger().Warn("sendgrid event skipped", zap.String("task_id", t.ID), zap.Error(e))
		}
		res := r.SendGrid.Route(ctx, events)
		if len(errs) > 0 {
			if res.Status == model.ResultProcessed {
				res.Status = model.ResultPartial
			}
			res = res.With("malformed", len(errs))
		}
		return res

	case model.TaskDocuSignWebhook:
		ev, err := payload.ParseDocuSign(t.Payload)
		if err != nil {
			return model.Errorf("docusign: %v", err)
		}
		return r.DocuSign.Route(ctx, ev)

	case model.TaskWhatsAppWebhook:
		var form url.Values
		if err := json.Unmarshal(t.Payload, &form); err != nil {
			return model.Errorf("whatsapp: %v", err)
		}
		return r.WhatsApp.Route(ctx, payload.ParseTwilio(form))
	}

	return model.Errorf("router: unsupported task kind %q", t.Kind)
}

func (r *Router) logger() *zap.Logger {
	if r.Log == nil {
		return zap.NewNop()
	}
	return r.Log
}
