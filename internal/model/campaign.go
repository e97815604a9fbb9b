package model

import "time"

type Channel string

const (
	ChannelSMS   Channel = "sms"
	ChannelEmail Channel = "email"
)

func (c Channel) Valid() bool { return c == ChannelSMS || c == ChannelEmail }

// Campaign is a recurring per-employer broadcast to a user group.
type Campaign struct {
	ID              int64     `db:"id"`
	EmployerID      int64     `db:"employer_id"`
	Name            string    `db:"name"`
	Channel         Channel   `db:"channel"`
	Subject         string    `db:"subject"`
	Body            string    `db:"body"`
	AudienceGroup   string    `db:"audience_group"`
	IntervalMinutes int       `db:"interval_minutes"`
	NextRunAt       time.Time `db:"next_run_at"`
	Active          bool      `db:"active"`
}

// PeriodicTaskRun tags a completed scheduled run.
type PeriodicTaskRun struct {
	ID         int64     `db:"id"`
	Name       string    `db:"name"`
	Processed  int       `db:"processed"`
	Skipped    int       `db:"skipped"`
	Failed     int       `db:"failed"`
	StartedAt  time.Time `db:"started_at"`
	FinishedAt time.Time `db:"finished_at"`
}
