package router

import (
	"context"
	"fmt"
	"time"

	"github.com/jmehdipour/staffhooks/internal/metrics"
	"github.com/jmehdipour/staffhooks/internal/model"
	"github.com/jmehdipour/staffhooks/internal/payload"
	"github.com/jmehdipour/staffhooks/internal/repository"
	"go.uber.org/zap"
)

// SendGridRouter appends one email_events row per event. Rows are
// independent: a failing event is logged and the rest of the batch goes on.
type SendGridRouter struct {
	users repository.UsersRepository
	logs  repository.EventLogsRepository
	log   *zap.Logger
}

func NewSendGridRouter(users repository.UsersRepository, logs repository.EventLogsRepository, log *zap.Logger) *SendGridRouter {
	if log == nil {
		log = zap.NewNop()
	}
	return &SendGridRouter{users: users, logs: logs, log: log}
}

func (r *SendGridRouter) Route(ctx context.Context, events []payload.SendGridEvent) model.Result {
	stored, failed := 0, 0
	for i, ev := range events {
		if err := r.routeOne(ctx, ev); err != nil {
			failed++
			metrics.EventsRouted.WithLabelValues("sendgrid", ev.Event, "error").Inc()
			r.log.Error("sendgrid event not stored",
				zap.Int("index", i),
				zap.String("email", ev.Email),
				zap.String("event", ev.Event),
				zap.String("sg_event_id", ev.SGEventID),
				zap.Error(err))
			continue
		}
		stored++
		metrics.EventsRouted.WithLabelValues("sendgrid", ev.Event, model.ResultProcessed).Inc()
	}

	status := model.ResultProcessed
	switch {
	case len(events) == 0:
		status = model.ResultIgnored
	case stored == 0:
		status = model.ResultFailed
	case failed > 0:
		status = model.ResultPartial
	}
	return model.Done(status).With("stored", stored).With("failed", failed)
}

func (r *SendGridRouter) routeOne(ctx context.Context, ev payload.SendGridEvent) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic: %v", p)
		}
	}()

	if raw, bad := ev.Timestamp.Invalid(); bad {
		r.log.Warn("sendgrid timestamp unreadable, stored as unknown",
			zap.String("sg_event_id", ev.SGEventID), zap.String("timestamp", raw))
	}

	row := model.EmailEvent{
		Email:        ev.Email,
		Event:        ev.Event,
		SGEventID:    ev.SGEventID,
		SGMessageID:  ev.SGMessageID,
		TemplateID:   ev.TemplateID,
		TemplateName: ev.TemplateName,
		OccurredAt:   ev.Timestamp.Time(),
		IP:           ev.IP,
		URL:          ev.URL,
		UserAgent:    ev.UserAgent,
		Username:     model.UnknownUsername,
		CreatedAt:    time.Now().UTC(),
	}

	if ev.Email != "" {
		u, lerr := r.users.GetByEmail(ctx, ev.Email)
		switch {
		case lerr != nil:
			r.log.Warn("sendgrid user lookup failed", zap.String("email", ev.Email), zap.Error(lerr))
		case u == nil:
			r.log.Warn("sendgrid event for unknown user", zap.String("email", ev.Email), zap.String("event", ev.Event))
		default:
			row.UserID = &u.ID
			row.Username = u.Username
			row.EmployerID = u.EmployerID
		}
	}

	return r.logs.InsertEmailEvent(ctx, row)
}
