package queue

import (
	"context"
	"time"

	"github.com/jmehdipour/staffhooks/internal/kafka"
	"github.com/jmehdipour/staffhooks/internal/model"
	"github.com/jmehdipour/staffhooks/internal/repository"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

// Publisher is satisfied by *kafka.Producer.
type Publisher interface {
	Publish(ctx context.Context, msgs ...kafka.Message) error
}

// Relay polls the outbox and publishes unpublished rows. It replaces Debezium
// where CDC is not deployed. Rows are locked with SKIP LOCKED so several
// relays can run side by side.
type Relay struct {
	Tx        repository.TxRunner
	Outbox    repository.OutboxRepository
	Publisher Publisher
	Log       *zap.Logger

	Interval  time.Duration
	BatchSize int
}

// Run blocks until ctx is cancelled.
func (r *Relay) Run(ctx context.Context) error {
	if r.Interval <= 0 {
		r.Interval = 500 * time.Millisecond
	}
	if r.BatchSize <= 0 {
		r.BatchSize = 100
	}

	tick := time.NewTicker(r.Interval)
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-tick.C:
			// drain while full batches keep coming
			for {
				n, err := r.RelayOnce(ctx)
				if err != nil {
					r.Log.Error("outbox relay failed", zap.Error(err))
					break
				}
				if n < r.BatchSize || ctx.Err() != nil {
					break
				}
			}
		}
	}
}

// RelayOnce publishes one batch and returns how many rows it handled.
func (r *Relay) RelayOnce(ctx context.Context) (int, error) {
	var handled int
	err := r.Tx.InTx(ctx, func(tx *sqlx.Tx) error {
		rows, err := r.Outbox.LockUnpublished(ctx, tx, r.BatchSize)
		if err != nil {
			return err
		}
		if len(rows) == 0 {
			return nil
		}
		handled = len(rows)

		ids := make([]int64, 0, len(rows))
		msgs := make([]kafka.Message, 0, len(rows))
		for _, row := range rows {
			ids = append(ids, row.ID)
			msgs = append(msgs, toMessage(row))
		}

		if err := r.Publisher.Publish(ctx, msgs...); err != nil {
			r.Log.Warn("outbox publish failed, will retry",
				zap.Int("rows", len(rows)), zap.Error(err))
			return r.Outbox.BumpAttempts(ctx, tx, ids)
		}
		return r.Outbox.MarkPublished(ctx, tx, ids)
	})
	return handled, err
}

func toMessage(row model.OutboxEvent) kafka.Message {
	return kafka.Message{
		Topic: row.Topic,
		Key:   []byte(row.AggregateID),
		Value: row.Payload,
		Headers: []kafka.Header{
			{Key: "aggregate", Value: []byte(row.Aggregate)},
		},
	}
}
