package worker

import (
	"github.com/jmehdipour/staffhooks/internal/repository"
	"github.com/jmehdipour/staffhooks/internal/scheduler"
	"github.com/jmehdipour/staffhooks/internal/worker"
	"github.com/spf13/cobra"
)

var schedulerCmd = &cobra.Command{
	Use:   "scheduler",
	Short: "Dispatch due SMS and email campaigns",
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

		s := scheduler.New(
			repository.NewCampaignsRepository(rt.db),
			repository.NewUsersRepository(rt.db),
			newNotificationService(rt.cfg, rt.db, smsLog, rt.log),
			rt.log.Named("scheduler"),
		)
		return s.Start(ctx, rt.cfg.Scheduler.Spec)
	},
}
