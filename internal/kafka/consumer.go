package kafka

import (
	"context"
	"time"

	"github.com/jmehdipour/staffhooks/internal/config"
	"github.com/segmentio/kafka-go"
)

type Message = kafka.Message

type Config struct {
	Brokers        []string
	Topic          string
	GroupID        string
	MinBytes       int           // default 1KB
	MaxBytes       int           // default 10MB
	CommitInterval time.Duration // default 1s
	MaxWait        time.Duration // default 50ms
}

// ConfigFor builds a reader config for one topic. Each topic gets its own
// consumer group (<group_id>-<suffix>) so lanes commit independently.
func ConfigFor(c config.KafkaConfig, topic, suffix string) Config {
	group := c.GroupID
	if group == "" {
		group = "staffhooks"
	}
	return Config{
		Brokers:        c.Brokers,
		Topic:          topic,
		GroupID:        group + "-" + suffix,
		MinBytes:       c.MinBytes,
		MaxBytes:       c.MaxBytes,
		CommitInterval: time.Duration(c.CommitInterval) * time.Millisecond,
	}
}

// Consumer is a thin wrapper around segmentio/kafka-go Reader.
type Consumer struct {
	r     *kafka.Reader
	topic string
}

func NewConsumer(c Config) *Consumer {
	if c.MinBytes <= 0 {
		c.MinBytes = 1 << 10
	}
	if c.MaxBytes <= 0 {
		c.MaxBytes = 10 << 20
	}
	if c.CommitInterval <= 0 {
		c.CommitInterval = time.Second
	}
	if c.MaxWait <= 0 {
		c.MaxWait = 50 * time.Millisecond
	}

	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        c.Brokers,
		GroupID:        c.GroupID,
		Topic:          c.Topic,
		MinBytes:       c.MinBytes,
		MaxBytes:       c.MaxBytes,
		CommitInterval: c.CommitInterval,
		MaxWait:        c.MaxWait,
	})

	return &Consumer{r: r, topic: c.Topic}
}

func (c *Consumer) Topic() string { return c.topic }

func (c *Consumer) Fetch(ctx context.Context) (Message, error) {
	return c.r.FetchMessage(ctx)
}

func (c *Consumer) Commit(ctx context.Context, m Message) error {
	return c.r.CommitMessages(ctx, m)
}

func (c *Consumer) Close() error { return c.r.Close() }
