package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all application metrics
type Metrics struct {
	// Outbox related metrics
	OutboxEventsProcessed   prometheus.Counter
	OutboxEventsFailed      prometheus.Counter
	OutboxProcessingLatency prometheus.Histogram
	OutboxQueueSize         prometheus.Gauge
	OutboxRetries           *prometheus.CounterVec

	// Database metrics
	DatabaseOperations *prometheus.CounterVec

	// Broker metrics
	BrokerOperations *prometheus.CounterVec
	BrokerLatency    *prometheus.HistogramVec

	// Live feed metrics
	WebsocketClients   prometheus.Gauge
	WebsocketDelivered *prometheus.CounterVec

	// Mail metrics
	MailsSent *prometheus.CounterVec
}

// NewMetrics creates all application metrics and registers them with reg
func NewMetrics(reg prometheus.Registerer, namespace, subsystem string) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		// Outbox metrics
		OutboxEventsProcessed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "outbox_events_processed_total",
			Help:      "Total number of successfully processed outbox events",
		}),
		OutboxEventsFailed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "outbox_events_failed_total",
			Help:      "Total number of outbox events that exhausted their retries",
		}),
		OutboxProcessingLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "outbox_processing_duration_seconds",
			Help:      "Time spent processing a batch of outbox events",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}),
		OutboxQueueSize: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "outbox_queue_size",
			Help:      "Current number of events waiting in the outbox",
		}),
		OutboxRetries: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "outbox_retry_attempts_total",
			Help:      "Total number of retry attempts for outbox events",
		}, []string{"event_type"}),

		// Database metrics
		DatabaseOperations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "database_operations_total",
			Help:      "Total number of database operations",
		}, []string{"operation", "status"}),

		// Broker metrics
		BrokerOperations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "broker_operations_total",
			Help:      "Total number of message broker operations",
		}, []string{"operation", "status"}),
		BrokerLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "broker_operation_duration_seconds",
			Help:      "Duration of message broker operations",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5},
		}, []string{"operation"}),

		// Live feed metrics
		WebsocketClients: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "websocket_clients",
			Help:      "Current number of connected live feed clients",
		}),
		WebsocketDelivered: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "websocket_events_delivered_total",
			Help:      "Total number of events pushed to live feed clients",
		}, []string{"event_type"}),

		// Mail metrics
		MailsSent: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "mails_sent_total",
			Help:      "Total number of notification mails by outcome",
		}, []string{"kind", "status"}),
	}
}

// New creates metrics registered on a private registry, for tests and tools
func New(namespace string) *Metrics {
	return NewMetrics(prometheus.NewRegistry(), namespace, "")
}
