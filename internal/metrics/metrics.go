package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	WebhooksReceived = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "staffhooks_webhooks_received_total",
			Help: "Inbound provider callbacks by provider and ingest outcome",
		},
		[]string{"provider", "outcome"}, // sendgrid|docusign|whatsapp , accepted|rejected|error
	)

	EventsRouted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "staffhooks_events_routed_total",
			Help: "Events classified by the router",
		},
		[]string{"provider", "event", "outcome"},
	)

	Notifications = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "staffhooks_notifications_total",
			Help: "Per-recipient notification attempts",
		},
		[]string{"channel", "outcome"}, // sms|email , sent|failed
	)

	TasksProcessed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "staffhooks_tasks_processed_total",
			Help: "Queue tasks handled by workers",
		},
		[]string{"kind", "outcome"},
	)

	CredentialsUnavailable = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "staffhooks_credentials_unavailable_total",
			Help: "Dispatches skipped because the tenant had no usable credentials",
		},
		[]string{"provider"},
	)
)

var once sync.Once

// MustRegister registers the collectors once per process; later calls are no-ops.
func MustRegister(r prometheus.Registerer) {
	once.Do(func() {
		r.MustRegister(
			WebhooksReceived,
			EventsRouted,
			Notifications,
			TasksProcessed,
			CredentialsUnavailable,
		)
	})
}
