package router

import (
	"context"
	"time"

	"github.com/jmehdipour/staffhooks/internal/metrics"
	"github.com/jmehdipour/staffhooks/internal/model"
	"github.com/jmehdipour/staffhooks/internal/payload"
	"github.com/jmehdipour/staffhooks/internal/repository"
	"github.com/jmehdipour/staffhooks/internal/util"
	"go.uber.org/zap"
)

type WhatsAppRouter struct {
	users repository.UsersRepository
	logs  repository.EventLogsRepository
	log   *zap.Logger
}

func NewWhatsAppRouter(users repository.UsersRepository, logs repository.EventLogsRepository, log *zap.Logger) *WhatsAppRouter {
	if log == nil {
		log = zap.NewNop()
	}
	return &WhatsAppRouter{users: users, logs: logs, log: log}
}

func (r *WhatsAppRouter) Route(ctx context.Context, msg payload.TwilioMessage) model.Result {
	row := model.WhatsAppMessage{
		Kind:       msg.Kind,
		MessageSID: msg.MessageSID,
		Channel:    msg.Channel,
		FromNumber: msg.From,
		ToNumber:   msg.To,
		Body:       msg.Body,
		Status:     msg.Status,
		Username:   r.username(ctx, msg.Counterpart()),
		CreatedAt:  time.Now().UTC(),
	}

	if err := r.logs.InsertWhatsAppMessage(ctx, row); err != nil {
		metrics.EventsRouted.WithLabelValues("whatsapp", string(msg.Kind), "error").Inc()
		return model.Errorf("whatsapp %s: %v", msg.MessageSID, err)
	}

	metrics.EventsRouted.WithLabelValues("whatsapp", string(msg.Kind), model.ResultProcessed).Inc()
	return model.Done(model.ResultProcessed).With("username", row.Username)
}

func (r *WhatsAppRouter) username(ctx context.Context, number string) string {
	phone := util.NormalizePhone(number)
	if phone == "" {
		return model.UnknownContact
	}
	u, err := r.users.GetByPhone(ctx, phone)
	if err != nil {
		r.log.Warn("whatsapp user lookup failed", zap.String("phone", phone), zap.Error(err))
		return model.UnknownContact
	}
	if u == nil || u.Username == "" {
		return model.UnknownContact
	}
	return u.Username
}
