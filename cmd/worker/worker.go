package worker

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/jmehdipour/staffhooks/internal/config"
	"github.com/jmehdipour/staffhooks/internal/db"
	"github.com/jmehdipour/staffhooks/internal/logger"
	"github.com/jmehdipour/staffhooks/internal/metrics"
	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// NewWorkerCmd returns the parent "worker" command.
func NewWorkerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Run background workers",
	}
	cmd.AddCommand(routerCmd)
	cmd.AddCommand(notifyCmd)
	cmd.AddCommand(relayCmd)
	cmd.AddCommand(schedulerCmd)

	return cmd
}

// runtime is what every worker needs before it can start.
type runtime struct {
	cfg config.Config
	log *zap.Logger
	db  *sqlx.DB
}

func setup(cmd *cobra.Command) (*runtime, error) {
	cfgPath, _ := cmd.Root().PersistentFlags().GetString("config")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	log := logger.Init(cfg.Log.Level)

	metrics.MustRegister(prometheus.DefaultRegisterer)

	dbx, err := db.NewMySQLConnection(cfg.MySQL.DSN, db.PoolOptsFrom(cfg.MySQL))
	if err != nil {
		return nil, fmt.Errorf("mysql connect: %w", err)
	}
	return &runtime{cfg: cfg, log: log, db: dbx}, nil
}

func (r *runtime) Close() {
	_ = r.db.Close()
	_ = r.log.Sync()
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}
