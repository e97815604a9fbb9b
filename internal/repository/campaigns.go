package repository

import (
	"context"
	"time"

	"github.com/jmehdipour/staffhooks/internal/model"
	"github.com/jmoiron/sqlx"
)

type CampaignsRepository interface {
	ListDue(ctx context.Context, now time.Time, limit int) ([]model.Campaign, error)
	Reschedule(ctx context.Context, id int64, next time.Time) error
	// Deactivate retires a one-shot campaign after its only run.
	Deactivate(ctx context.Context, id int64) error
	RecordRun(ctx context.Context, run model.PeriodicTaskRun) error
}

type CampaignsRepositoryImpl struct {
	db *sqlx.DB
}

func NewCampaignsRepository(db *sqlx.DB) *CampaignsRepositoryImpl {
	return &CampaignsRepositoryImpl{db: db}
}

var _ CampaignsRepository = (*CampaignsRepositoryImpl)(nil)

// ListDue returns active campaigns whose next_run_at has passed, oldest first.
func (r *CampaignsRepositoryImpl) ListDue(ctx context.Context, now time.Time, limit int) ([]model.Campaign, error) {
	if limit <= 0 || limit > 1000 {
		limit = 200
	}
	var rows []model.Campaign
	err := r.db.SelectContext(ctx, &rows, `
		SELECT id, employer_id, name, channel, subject, body, audience_group,
		       interval_minutes, next_run_at, active
		  FROM campaigns
		 WHERE active = 1 AND next_run_at <= ?
		 ORDER BY next_run_at, id
		 LIMIT ?
	`, now, limit)
	return rows, err
}

func (r *CampaignsRepositoryImpl) Reschedule(ctx context.Context, id int64, next time.Time) error {
	_, err := r.db.ExecContext(ctx, `UPDATE campaigns SET next_run_at = ? WHERE id = ?`, next, id)
	return err
}

func (r *CampaignsRepositoryImpl) Deactivate(ctx context.Context, id int64) error {
	_, err := r.db.ExecContext(ctx, `UPDATE campaigns SET active = 0 WHERE id = ?`, id)
	return err
}

func (r *CampaignsRepositoryImpl) RecordRun(ctx context.Context, run model.PeriodicTaskRun) error {
	_, err := r.db.NamedExecContext(ctx, `
		INSERT INTO periodic_task_runs (name, processed, skipped, failed, started_at, finished_at)
		VALUES (:name, :processed, :skipped, :failed, :started_at, :finished_at)
	`, run)
	return err
}
