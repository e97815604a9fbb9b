package queue

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jmehdipour/staffhooks/internal/model"
	"github.com/jmehdipour/staffhooks/internal/repository"
	"github.com/jmoiron/sqlx"
)

const (
	DefaultWebhooksTopic = "tasks.webhooks"
	DefaultNotifyTopic   = "tasks.notify"
)

// Enqueuer hands a task to the background queue. With a non-nil tx the task
// becomes visible only if tx commits.
type Enqueuer interface {
	Enqueue(ctx context.Context, tx *sqlx.Tx, task model.Task) error
}

type Topics struct {
	Webhooks string
	Notify   string
}

// Service writes tasks into the transactional outbox; Debezium or the relay
// worker moves them to Kafka.
type Service struct {
	outbox repository.OutboxRepository
	topics Topics
}

var _ Enqueuer = (*Service)(nil)

// New constructs the queue service.
func New(outboxRepo repository.OutboxRepository, topics Topics) *Service {
	if topics.Webhooks == "" {
		topics.Webhooks = DefaultWebhooksTopic
	}
	if topics.Notify == "" {
		topics.Notify = DefaultNotifyTopic
	}
	return &Service{outbox: outboxRepo, topics: topics}
}

// TopicFor routes raw webhooks to the router lane and everything else to the
// notify lane.
func (s *Service) TopicFor(kind model.TaskKind) string {
	if kind.IsWebhook() {
		return s.topics.Webhooks
	}
	return s.topics.Notify
}

func (s *Service) Enqueue(ctx context.Context, tx *sqlx.Tx, task model.Task) error {
	if task.ID == "" || task.Kind == "" {
		return fmt.Errorf("enqueue: task id and kind are required")
	}
	payload, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("marshal task: %w", err)
	}
	if err := s.outbox.Insert(ctx, tx, task.Kind.String(), task.ID, s.TopicFor(task.Kind), payload); err != nil {
		return fmt.Errorf("insert outbox: %w", err)
	}
	return nil
}
