package http

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/jmehdipour/staffhooks/internal/config"
	"github.com/jmehdipour/staffhooks/internal/http/middleware"
	"github.com/jmehdipour/staffhooks/internal/metrics"
	"github.com/jmehdipour/staffhooks/internal/repository"
	"github.com/jmehdipour/staffhooks/internal/service/queue"
	"github.com/jmoiron/sqlx"
	"github.com/labstack/echo/v4"
	echoMid "github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type Server struct {
	e   *echo.Echo
	log *zap.Logger
}

// Deps are the collaborators the routes need.
type Deps struct {
	Queue       queue.Enqueuer
	Employers   repository.EmployersRepository
	Users       repository.UsersRepository
	EmailEvents repository.CHEmailEventsRepository
	Redis       *redis.Client
	RateLimit   config.RateLimitConfig
	LogLevel    string
	Log         *zap.Logger
}

func NewServer(cfg config.Config, mysqlDB, clickhouseDB *sqlx.DB, rds *redis.Client, logger *zap.Logger) *Server {
	// repos (MySQL)
	outboxRepo := repository.NewOutboxRepository(mysqlDB)
	employersRepo := repository.NewEmployersRepository(mysqlDB)
	usersRepo := repository.NewUsersRepository(mysqlDB)

	// repos (ClickHouse)
	chEventsRepo := repository.NewCHEmailEventsRepository(clickhouseDB)

	// services
	queueSvc := queue.New(outboxRepo, queue.Topics{
		Webhooks: cfg.Kafka.Topics.Webhooks,
		Notify:   cfg.Kafka.Topics.Notify,
	})

	return newServer(Deps{
		Queue:       queueSvc,
		Employers:   employersRepo,
		Users:       usersRepo,
		EmailEvents: chEventsRepo,
		Redis:       rds,
		RateLimit:   cfg.RateLimit,
		LogLevel:    cfg.Log.Level,
		Log:         logger,
	})
}

func newServer(d Deps) *Server {
	if d.Log == nil {
		d.Log = zap.NewNop()
	}

	// echo
	e := echo.New()
	e.HideBanner = true
	e.Logger.SetLevel(echoLevel(d.LogLevel))
	e.Use(echoMid.Recover(), echoMid.Logger())

	metrics.MustRegister(prometheus.DefaultRegisterer)

	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	// health
	e.GET("/healthz", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })

	// provider webhooks (unauthenticated, limited per provider+IP)
	hookRL := func(provider string) echo.MiddlewareFunc {
		return middleware.RateLimitMiddleware(middleware.RateLimitConfig{
			Redis:      d.Redis,
			DefaultRPS: d.RateLimit.WebhookRPS,
			KeyPrefix:  "rl:hook:",
			Window:     time.Second,
			Key:        middleware.ByProviderIP(provider),
		})
	}
	e.Any("/sendgrid_hook/", sendGridHookHandler(d.Queue), hookRL("sendgrid"))
	e.Any("/docusign-webhook/", docuSignHookHandler(d.Queue), hookRL("docusign"))
	e.Any("/webhook/whatsapp/", whatsAppHookHandler(d.Queue), hookRL("whatsapp"))

	// middlewares
	authMW := middleware.APIKeyMiddleware(d.Employers)
	rlMW := middleware.RateLimitMiddleware(middleware.RateLimitConfig{
		Redis:          d.Redis,
		DefaultRPS:     d.RateLimit.RPS,
		KeyPrefix:      "rl:emp:",
		Window:         time.Second,
		RetryAfterHint: true,
	})

	// routes
	v1 := e.Group("/v1", authMW, rlMW)
	v1.POST("/campaigns/sms", smsCampaignHandler(d.Queue, d.Users))
	v1.POST("/campaigns/email", emailCampaignHandler(d.Queue, d.Users))
	v1.GET("/reports/email-events", listEmailEventsHandler(d.EmailEvents))

	return &Server{e: e, log: d.Log}
}

func echoLevel(level string) log.Lvl {
	switch strings.ToLower(level) {
	case "debug":
		return log.DEBUG
	case "warn":
		return log.WARN
	case "error":
		return log.ERROR
	default:
		return log.INFO
	}
}

func (s *Server) Start(addr string) error {
	s.log.Info("http: listening", zap.String("addr", addr))
	return s.e.Start(addr)
}

func (s *Server) Shutdown(ctx context.Context) error { return s.e.Shutdown(ctx) }
