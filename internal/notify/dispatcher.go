package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/jmehdipour/staffhooks/internal/config"
	"github.com/jmehdipour/staffhooks/internal/credentials"
	"github.com/jmehdipour/staffhooks/internal/metrics"
	"github.com/jmehdipour/staffhooks/internal/model"
	"github.com/jmehdipour/staffhooks/internal/util"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

var ErrInvalidRecipient = errors.New("invalid recipient")

type Failure struct {
	Recipient string `json:"recipient"`
	Error     string `json:"error"`
}

// Summary reports per-recipient outcomes. One recipient failing never
// stops delivery to the rest.
type Summary struct {
	Sent   []string  `json:"sent"`
	Failed []Failure `json:"failed,omitempty"`
}

func (s Summary) Total() int { return len(s.Sent) + len(s.Failed) }

// Result folds the summary into a task result.
func (s Summary) Result() model.Result {
	status := model.ResultSent
	switch {
	case s.Total() == 0:
		status = model.ResultSkipped
	case len(s.Sent) == 0:
		status = model.ResultFailed
	case len(s.Failed) > 0:
		status = model.ResultPartial
	}
	r := model.Done(status).With("sent", len(s.Sent))
	if len(s.Failed) > 0 {
		r = r.With("failed", s.Failed)
	}
	return r
}

type Dispatcher struct {
	sms   SMSSender
	email EmailSender

	breakers    *breakers
	smsLimiter  *rate.Limiter
	concurrency int

	smsAttempts   int
	emailAttempts int

	log *zap.Logger
}

func NewDispatcher(sms SMSSender, email EmailSender, cfg config.DispatcherConfig, log *zap.Logger) *Dispatcher {
	if log == nil {
		log = zap.NewNop()
	}

	concurrency := cfg.SendConcurrency
	if concurrency <= 0 {
		concurrency = 8
	}

	smsAttempts := cfg.MaxRetryAttempts.SMS
	if smsAttempts < 1 {
		smsAttempts = 2
	}

	emailAttempts := cfg.MaxRetryAttempts.Email
	if emailAttempts < 1 {
		emailAttempts = 3
	}

	limit := rate.Inf
	if cfg.SMSPerSecond > 0 {
		limit = rate.Limit(cfg.SMSPerSecond)
	}

	return &Dispatcher{
		sms:           sms,
		email:         email,
		breakers:      newBreakers(cfg.Breaker.FailThreshold, time.Duration(cfg.Breaker.OpenForMs)*time.Millisecond),
		smsLimiter:    rate.NewLimiter(limit, concurrency),
		concurrency:   concurrency,
		smsAttempts:   smsAttempts,
		emailAttempts: emailAttempts,
		log:           log,
	}
}

// SendSMS normalizes every recipient to E.164 and sends body through the
// tenant's Twilio messaging service.
func (d *Dispatcher) SendSMS(ctx context.Context, employerID int64, creds credentials.Twilio, recipients []string, body string) Summary {
	br := d.breakers.get(employerID, string(model.ChannelSMS))

	return d.fanOut(ctx, dedupe(recipients), func(ctx context.Context, to string) (string, error) {
		phone := util.NormalizePhone(to)
		if phone == "" {
			return to, ErrInvalidRecipient
		}
		err := d.attempt(ctx, br, d.smsAttempts, func() error {
			if err := d.smsLimiter.Wait(ctx); err != nil {
				return err
			}
			return d.sms.SendSMS(ctx, creds, phone, body)
		})
		d.observe(model.ChannelSMS, employerID, phone, err)
		return phone, err
	})
}

func (d *Dispatcher) SendEmail(ctx context.Context, employerID int64, creds credentials.SendGrid, recipients []string, msg Email) Summary {
	br := d.breakers.get(employerID, string(model.ChannelEmail))

	return d.fanOut(ctx, dedupe(recipients), func(ctx context.Context, to string) (string, error) {
		addr := strings.ToLower(strings.TrimSpace(to))
		if !strings.Contains(addr, "@") {
			return to, ErrInvalidRecipient
		}
		err := d.attempt(ctx, br, d.emailAttempts, func() error {
			return d.email.SendEmail(ctx, creds, addr, msg)
		})
		d.observe(model.ChannelEmail, employerID, addr, err)
		return addr, err
	})
}

func (d *Dispatcher) fanOut(ctx context.Context, recipients []string, send func(context.Context, string) (string, error)) Summary {
	var (
		mu  sync.Mutex
		out Summary
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.concurrency)

	for _, to := range recipients {
		g.Go(func() error {
			addr, err := send(gctx, to)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				out.Failed = append(out.Failed, Failure{Recipient: addr, Error: err.Error()})
			} else {
				out.Sent = append(out.Sent, addr)
			}
			return nil
		})
	}
	_ = g.Wait()

	return out
}

func (d *Dispatcher) attempt(ctx context.Context, br *breaker, attempts int, fn func() error) error {
	var last error
	for i := 0; i < attempts; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if !br.acquire() {
			return ErrCircuitOpen
		}
		err := fn()
		br.record(err)
		if err == nil {
			return nil
		}
		last = err
	}

	if last == nil {
		last = fmt.Errorf("send failed after %d attempts", attempts)
	}
	return last
}

func (d *Dispatcher) observe(ch model.Channel, employerID int64, to string, err error) {
	if err != nil {
		metrics.Notifications.WithLabelValues(string(ch), "failed").Inc()
		d.log.Warn("notification failed",
			zap.String("channel", string(ch)),
			zap.Int64("employer_id", employerID),
			zap.String("recipient", to),
			zap.Error(err))
		return
	}
	metrics.Notifications.WithLabelValues(string(ch), "sent").Inc()
}

func dedupe(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		k := strings.ToLower(s)
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, s)
	}
	return out
}
