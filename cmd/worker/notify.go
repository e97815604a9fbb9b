package worker

import (
	"errors"
	"fmt"

	"github.com/jmehdipour/staffhooks/internal/config"
	"github.com/jmehdipour/staffhooks/internal/credentials"
	"github.com/jmehdipour/staffhooks/internal/docusign"
	"github.com/jmehdipour/staffhooks/internal/kafka"
	"github.com/jmehdipour/staffhooks/internal/model"
	"github.com/jmehdipour/staffhooks/internal/notify"
	"github.com/jmehdipour/staffhooks/internal/repository"
	"github.com/jmehdipour/staffhooks/internal/service/documents"
	"github.com/jmehdipour/staffhooks/internal/service/notification"
	"github.com/jmehdipour/staffhooks/internal/service/queue"
	"github.com/jmehdipour/staffhooks/internal/storage"
	"github.com/jmehdipour/staffhooks/internal/worker"
	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var notifyCmd = &cobra.Command{
	Use:   "notify",
	Short: "Send HR notifications, bulk messages and archive signed documents",
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := setup(cmd)
		if err != nil {
			return err
		}
		defer rt.Close()

		ctx, stop := signalContext()
		defer stop()

		smsLog := worker.NewSmsLogWriter(
			repository.NewEventLogsRepository(rt.db),
			rt.cfg.Dispatcher.BatchSize,
			rt.cfg.Dispatcher.BatchWait,
			rt.log.Named("smslog"),
		)
		done := make(chan struct{})
		go func() {
			defer close(done)
			smsLog.Run(ctx)
		}()
		defer func() {
			stop()
			<-done
		}()

		notifier := newNotificationService(rt.cfg, rt.db, smsLog, rt.log)

		docs, err := newDocumentsService(rt.cfg, rt.db, rt.log)
		if err != nil {
			return err
		}

		topic := rt.cfg.Kafka.Topics.Notify
		if topic == "" {
			topic = queue.DefaultNotifyTopic
		}
		consumer := kafka.NewConsumer(kafka.ConfigFor(rt.cfg.Kafka, topic, "notify"))
		defer consumer.Close()

		w := worker.NewTaskWorker(consumer, map[model.TaskKind]worker.Handler{
			model.TaskNotifyHR:      notifier.HandleNotifyHR,
			model.TaskBulkEmail:     notifier.HandleBulkEmail,
			model.TaskBulkSMS:       notifier.HandleBulkSMS,
			model.TaskDocumentFetch: docs.HandleDocumentFetch,
		}, rt.cfg.Dispatcher.WorkerCount, rt.log)

		rt.log.Info("notify worker started", zap.String("topic", topic), zap.Int("workers", w.Workers))
		return w.Run(ctx)
	},
}

func newResolver(cfg config.Config, dbx *sqlx.DB) *credentials.StoreResolver {
	return credentials.NewStoreResolver(
		repository.NewAPIKeysRepository(dbx),
		repository.NewEmployersRepository(dbx),
		cfg.SendGrid.APIKey,
	)
}

func newNotificationService(cfg config.Config, dbx *sqlx.DB, smsLog notification.SmsLogSink, log *zap.Logger) *notification.Service {
	return notification.New(
		repository.NewUsersRepository(dbx),
		newResolver(cfg, dbx),
		notify.NewDispatcher(notify.TwilioSender{}, notify.SendGridSender{}, cfg.Dispatcher, log.Named("dispatch")),
		notify.NewAttachmentFetcher(cfg.Attachments, log.Named("attachments")),
		smsLog,
		log.Named("notification"),
	).WithSystemSender(credentials.SendGrid{
		APIKey:    cfg.SendGrid.APIKey,
		FromEmail: cfg.SendGrid.DefaultSender,
		FromName:  cfg.SendGrid.DefaultSenderName,
	})
}

func newDocumentsService(cfg config.Config, dbx *sqlx.DB, log *zap.Logger) (*documents.Service, error) {
	var fetcher documents.Fetcher
	client, err := docusign.New(cfg.DocuSign)
	switch {
	case err == nil:
		fetcher = client
	case errors.Is(err, docusign.ErrNotConfigured):
		log.Warn("docusign not configured; document archiving disabled")
	default:
		return nil, fmt.Errorf("docusign client: %w", err)
	}

	newArchive := func() (storage.Uploader, error) { return storage.NewS3Uploader(cfg.Storage) }
	newDropbox := func(c credentials.Dropbox) storage.Uploader { return storage.NewDropboxUploader(c) }

	return documents.New(fetcher, newResolver(cfg, dbx), newArchive, newDropbox, log.Named("documents")), nil
}
