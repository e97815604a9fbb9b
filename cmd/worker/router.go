package worker

import (
	"github.com/jmehdipour/staffhooks/internal/kafka"
	"github.com/jmehdipour/staffhooks/internal/model"
	"github.com/jmehdipour/staffhooks/internal/repository"
	"github.com/jmehdipour/staffhooks/internal/router"
	"github.com/jmehdipour/staffhooks/internal/service/queue"
	"github.com/jmehdipour/staffhooks/internal/worker"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var routerCmd = &cobra.Command{
	Use:   "router",
	Short: "Consume raw webhooks and route provider events",
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := setup(cmd)
		if err != nil {
			return err
		}
		defer rt.Close()

		users := repository.NewUsersRepository(rt.db)
		logs := repository.NewEventLogsRepository(rt.db)
		q := queue.New(repository.NewOutboxRepository(rt.db), queue.Topics{
			Webhooks: rt.cfg.Kafka.Topics.Webhooks,
			Notify:   rt.cfg.Kafka.Topics.Notify,
		})

		r := &router.Router{
			DocuSign: router.NewDocuSignRouter(
				users,
				repository.NewTemplatesRepository(rt.db),
				repository.NewDocumentsRepository(rt.db),
				repository.NewTxRunner(rt.db),
				q,
				rt.log.Named("docusign"),
			),
			SendGrid: router.NewSendGridRouter(users, logs, rt.log.Named("sendgrid")),
			WhatsApp: router.NewWhatsAppRouter(users, logs, rt.log.Named("whatsapp")),
			Log:      rt.log,
		}

		topic := q.TopicFor(model.TaskSendGridWebhook)
		consumer := kafka.NewConsumer(kafka.ConfigFor(rt.cfg.Kafka, topic, "router"))
		defer consumer.Close()

		w := worker.NewTaskWorker(consumer, map[model.TaskKind]worker.Handler{
			model.TaskSendGridWebhook: r.Handle,
			model.TaskDocuSignWebhook: r.Handle,
			model.TaskWhatsAppWebhook: r.Handle,
		}, rt.cfg.Dispatcher.WorkerCount, rt.log)

		ctx, stop := signalContext()
		defer stop()

		rt.log.Info("router worker started", zap.String("topic", topic), zap.Int("workers", w.Workers))
		return w.Run(ctx)
	},
}
