package worker

import (
	"github.com/jmehdipour/staffhooks/internal/kafka"
	"github.com/jmehdipour/staffhooks/internal/repository"
	"github.com/jmehdipour/staffhooks/internal/service/queue"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var relayCmd = &cobra.Command{
	Use:   "relay",
	Short: "Publish outbox rows to Kafka (for deployments without CDC)",
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := setup(cmd)
		if err != nil {
			return err
		}
		defer rt.Close()

		producer := kafka.NewProducer(rt.cfg.Kafka.Brokers)
		defer producer.Close()

		r := &queue.Relay{
			Tx:        repository.NewTxRunner(rt.db),
			Outbox:    repository.NewOutboxRepository(rt.db),
			Publisher: producer,
			Log:       rt.log.Named("relay"),
			Interval:  rt.cfg.Kafka.Relay.PollInterval,
			BatchSize: rt.cfg.Kafka.Relay.BatchSize,
		}

		ctx, stop := signalContext()
		defer stop()

		rt.log.Info("outbox relay started",
			zap.Duration("interval", r.Interval), zap.Int("batch_size", r.BatchSize))
		return r.Run(ctx)
	},
}
