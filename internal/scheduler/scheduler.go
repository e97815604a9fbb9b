// Package scheduler runs due campaigns on a cron tick. Every campaign is
// dispatched on its own; a tenant without credentials is skipped and the
// rest of the run goes on.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/jmehdipour/staffhooks/internal/model"
	"github.com/jmehdipour/staffhooks/internal/repository"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// RunName tags periodic_task_runs rows written by this scheduler.
const RunName = "campaigns.dispatch"

// Notifier is satisfied by *notification.Service.
type Notifier interface {
	BulkSMS(ctx context.Context, p model.BulkSMSPayload) model.Result
	BulkEmail(ctx context.Context, p model.BulkEmailPayload) model.Result
}

type Scheduler struct {
	campaigns repository.CampaignsRepository
	users     repository.UsersRepository
	notifier  Notifier
	log       *zap.Logger

	batch int
	now   func() time.Time
}

func New(campaigns repository.CampaignsRepository, users repository.UsersRepository, notifier Notifier, log *zap.Logger) *Scheduler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Scheduler{campaigns: campaigns, users: users, notifier: notifier, log: log, batch: 200, now: time.Now}
}

// Start runs RunDue on spec (standard cron or @every) until ctx ends.
// Overlapping ticks are skipped while a run is still in progress.
func (s *Scheduler) Start(ctx context.Context, spec string) error {
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	if _, err := c.AddFunc(spec, func() { s.RunDue(ctx) }); err != nil {
		return fmt.Errorf("scheduler: bad spec %q: %w", spec, err)
	}

	s.log.Info("scheduler started", zap.String("spec", spec))
	c.Start()
	<-ctx.Done()
	<-c.Stop().Done()
	s.log.Info("scheduler stopped")
	return nil
}

// RunDue dispatches every due campaign once and records the run.
func (s *Scheduler) RunDue(ctx context.Context) model.PeriodicTaskRun {
	run := model.PeriodicTaskRun{Name: RunName, StartedAt: s.now().UTC()}

	due, err := s.campaigns.ListDue(ctx, run.StartedAt, s.batch)
	if err != nil {
		s.log.Error("list due campaigns", zap.Error(err))
		return run
	}

	for _, c := range due {
		res := s.dispatch(ctx, c)
		switch {
		case res.Failed():
			run.Failed++
			s.log.Error("campaign failed", zap.Int64("campaign_id", c.ID), zap.Int64("employer_id", c.EmployerID), zap.String("error", res.Error))
		case res.MissingCredentials():
			run.Skipped++
			s.log.Error("campaign skipped: tenant credentials unavailable", zap.Int64("campaign_id", c.ID), zap.Int64("employer_id", c.EmployerID), zap.String("channel", string(c.Channel)))
		case res.Status == model.ResultSkipped:
			run.Skipped++
			s.log.Warn("campaign skipped", zap.Int64("campaign_id", c.ID), zap.Int64("employer_id", c.EmployerID), zap.Any("detail", res.Detail))
		default:
			run.Processed++
		}
		s.advance(ctx, c, run.StartedAt)
	}

	run.FinishedAt = s.now().UTC()
	if len(due) > 0 {
		if err := s.campaigns.RecordRun(ctx, run); err != nil {
			s.log.Error("record periodic run", zap.Error(err))
		}
	}
	return run
}

func (s *Scheduler) dispatch(ctx context.Context, c model.Campaign) (res model.Result) {
	defer func() {
		if p := recover(); p != nil {
			res = model.Errorf("campaign %d panicked: %v", c.ID, p)
		}
	}()

	audience, err := s.users.ListByGroup(ctx, c.EmployerID, c.AudienceGroup)
	if err != nil {
		return model.Errorf("campaign %d: audience: %v", c.ID, err)
	}

	switch c.Channel {
	case model.ChannelSMS:
		phones := make([]string, 0, len(audience))
		for _, u := range audience {
			if u.Phone != "" {
				phones = append(phones, u.Phone)
			}
		}
		return s.notifier.BulkSMS(ctx, model.BulkSMSPayload{EmployerID: c.EmployerID, Body: c.Body, Recipients: phones})
	case model.ChannelEmail:
		emails := make([]string, 0, len(audience))
		for _, u := range audience {
			if u.Email != "" {
				emails = append(emails, u.Email)
			}
		}
		return s.notifier.BulkEmail(ctx, model.BulkEmailPayload{EmployerID: c.EmployerID, Subject: c.Subject, HTML: c.Body, Recipients: emails})
	}
	return model.Errorf("campaign %d: unknown channel %q", c.ID, c.Channel)
}

// advance schedules a recurring campaign one interval after this run and
// retires a one-shot one.
func (s *Scheduler) advance(ctx context.Context, c model.Campaign, now time.Time) {
	var err error
	if c.IntervalMinutes <= 0 {
		err = s.campaigns.Deactivate(ctx, c.ID)
	} else {
		err = s.campaigns.Reschedule(ctx, c.ID, now.Add(time.Duration(c.IntervalMinutes)*time.Minute))
	}
	if err != nil {
		s.log.Error("campaign reschedule failed", zap.Int64("campaign_id", c.ID), zap.Error(err))
	}
}
