package repository

import (
	"context"

	"github.com/jmehdipour/staffhooks/internal/model"
	"github.com/jmoiron/sqlx"
)

// CHEmailEventsRepository lists email events from ClickHouse (CDC mirror of email_events).
type CHEmailEventsRepository interface {
	ListByEmployer(ctx context.Context, employerID int64, email, event string, limit, offset int) ([]model.EmailEvent, error)
}

type chEmailEventsRepository struct {
	ch *sqlx.DB // ClickHouse connection
}

func NewCHEmailEventsRepository(ch *sqlx.DB) CHEmailEventsRepository {
	return &chEmailEventsRepository{ch: ch}
}

func (r *chEmailEventsRepository) ListByEmployer(ctx context.Context, employerID int64, email, event string, limit, offset int) ([]model.EmailEvent, error) {
	if limit <= 0 || limit > 1000 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	q := `
		SELECT id, email, event, sg_event_id, sg_message_id, sg_template_id, sg_template_name,
		       occurred_at, ip, url, useragent, user_id, username, employer_id, created_at
		FROM staffhooks.email_events
		WHERE employer_id = ?
	`
	args := []any{employerID}

	if email != "" {
		q += " AND email = ?"
		args = append(args, email)
	}
	if event != "" {
		q += " AND event = ?"
		args = append(args, event)
	}

	q += " ORDER BY created_at DESC LIMIT ? OFFSET ?"
	args = append(args, limit, offset)

	var rows []model.EmailEvent
	if err := r.ch.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, err
	}
	return rows, nil
}
