package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmehdipour/staffhooks/internal/kafka"
	"github.com/jmehdipour/staffhooks/internal/metrics"
	"github.com/jmehdipour/staffhooks/internal/model"
	"go.uber.org/zap"
)

// Handler runs one task. Failures are reported in the Result.
type Handler func(ctx context.Context, t model.Task) model.Result

// Source is satisfied by *kafka.Consumer.
type Source interface {
	Fetch(ctx context.Context) (kafka.Message, error)
	Commit(ctx context.Context, m kafka.Message) error
}

// TaskWorker:
// - fetches tasks from one Kafka topic,
// - fans them out to Workers processors,
// - runs the handler registered for the task kind,
// - commits every message once handled (at-least-once; handlers are idempotent).
type TaskWorker struct {
	Source   Source
	Handlers map[model.TaskKind]Handler
	Workers  int
	Log      *zap.Logger
}

func NewTaskWorker(src Source, handlers map[model.TaskKind]Handler, workers int, log *zap.Logger) *TaskWorker {
	if log == nil {
		log = zap.NewNop()
	}
	return &TaskWorker{Source: src, Handlers: handlers, Workers: workers, Log: log}
}

// Run blocks until ctx is cancelled.
func (w *TaskWorker) Run(ctx context.Context) error {
	if len(w.Handlers) == 0 {
		return errors.New("task worker: no handlers registered")
	}
	if w.Workers <= 0 {
		w.Workers = 16
	}

	msgCh := make(chan kafka.Message, w.Workers*2)

	go func() {
		defer close(msgCh)
		for {
			m, err := w.Source.Fetch(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				w.Log.Warn("kafka fetch failed", zap.Error(err))
				time.Sleep(200 * time.Millisecond)
				continue
			}
			select {
			case msgCh <- m:
			case <-ctx.Done():
				return
			}
		}
	}()

	for i := 0; i < w.Workers; i++ {
		go w.runProcessor(ctx, msgCh)
	}

	<-ctx.Done()
	return nil
}

func (w *TaskWorker) runProcessor(ctx context.Context, in <-chan kafka.Message) {
	for {
		select {
		case <-ctx.Done():
			return
		case m, ok := <-in:
			if !ok {
				return
			}
			w.ProcessOne(ctx, m)
		}
	}
}

// ProcessOne handles a single message and commits it, poison or not.
func (w *TaskWorker) ProcessOne(ctx context.Context, m kafka.Message) model.Result {
	res := w.handle(ctx, m)

	if err := w.Source.Commit(ctx, m); err != nil {
		w.Log.Warn("kafka commit failed", zap.Int64("offset", m.Offset), zap.Error(err))
	}
	return res
}

func (w *TaskWorker) handle(ctx context.Context, m kafka.Message) (res model.Result) {
	var t model.Task
	if err := json.Unmarshal(m.Value, &t); err != nil || t.ID == "" {
		if err == nil {
			err = errors.New("task missing id")
		}
		w.Log.Error("bad task message", zap.Int64("offset", m.Offset), zap.Error(err))
		metrics.TasksProcessed.WithLabelValues("unknown", "poison").Inc()
		return model.Errorf("bad task message: %v", err)
	}

	log := w.Log.With(zap.String("task_id", t.ID), zap.String("kind", t.Kind.String()))

	h, ok := w.Handlers[t.Kind]
	if !ok {
		log.Error("no handler for task kind")
		metrics.TasksProcessed.WithLabelValues(t.Kind.String(), "unhandled").Inc()
		return model.Errorf("no handler for %s", t.Kind)
	}

	defer func() {
		if p := recover(); p != nil {
			log.Error("task panicked", zap.Any("panic", p), zap.Stack("stack"))
			res = model.Errorf("panic: %v", fmt.Sprint(p))
		}
		outcome := res.Status
		if res.Failed() {
			outcome = "error"
		}
		metrics.TasksProcessed.WithLabelValues(t.Kind.String(), outcome).Inc()
	}()

	res = h(ctx, t)
	if res.Failed() {
		log.Error("task failed", zap.String("error", res.Error), zap.Any("detail", res.Detail))
	} else {
		log.Info("task done", zap.String("status", res.Status), zap.Any("detail", res.Detail))
	}
	return res
}
