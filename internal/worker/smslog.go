package worker

import (
	"context"
	"time"

	"github.com/jmehdipour/staffhooks/internal/model"
	"github.com/jmehdipour/staffhooks/internal/repository"
	"go.uber.org/zap"
)

// SmsLogWriter buffers SMS outcome rows and inserts them in batches, flushing
// on size or time, whichever comes first.
type SmsLogWriter struct {
	Logs      repository.EventLogsRepository
	BatchSize int
	BatchWait time.Duration
	Log       *zap.Logger

	in chan model.SmsLog
}

func NewSmsLogWriter(logs repository.EventLogsRepository, batchSize int, batchWait time.Duration, log *zap.Logger) *SmsLogWriter {
	if batchSize <= 0 {
		batchSize = 200
	}
	if batchWait <= 0 {
		batchWait = 300 * time.Millisecond
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &SmsLogWriter{
		Logs:      logs,
		BatchSize: batchSize,
		BatchWait: batchWait,
		Log:       log,
		in:        make(chan model.SmsLog, batchSize*2),
	}
}

// Add blocks when the buffer is full.
func (w *SmsLogWriter) Add(rows ...model.SmsLog) {
	for _, r := range rows {
		w.in <- r
	}
}

// Run flushes until ctx is cancelled, then drains what is buffered.
func (w *SmsLogWriter) Run(ctx context.Context) {
	tick := time.NewTicker(w.BatchWait)
	defer tick.Stop()

	batch := make([]model.SmsLog, 0, w.BatchSize)

	flush := func() {
		if len(batch) == 0 {
			return
		}
		// parent ctx may already be cancelled on shutdown
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()

		if err := w.Logs.InsertSmsLogBatch(fctx, batch); err != nil {
			w.Log.Error("sms log batch insert failed", zap.Int("rows", len(batch)), zap.Error(err))
		} else {
			w.Log.Debug("sms log flushed", zap.Int("rows", len(batch)))
		}
		batch = batch[:0]
	}

	for {
		select {
		case <-ctx.Done():
			for {
				select {
				case r := <-w.in:
					batch = append(batch, r)
				default:
					flush()
					return
				}
			}

		case r := <-w.in:
			batch = append(batch, r)
			if len(batch) >= w.BatchSize {
				flush()
			}

		case <-tick.C:
			flush()
		}
	}
}
