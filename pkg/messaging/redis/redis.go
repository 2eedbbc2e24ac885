package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"

	"github.com/jwalitptl/fieldservice-api/pkg/messaging"
	"github.com/jwalitptl/fieldservice-api/pkg/metrics"
)

const (
	breakerFailureThreshold = 5
	breakerOpenTimeout      = 5 * time.Second
)

type RedisBroker struct {
	client  *redis.Client
	cb      *gobreaker.CircuitBreaker
	logger  *zerolog.Logger
	metrics *metrics.Metrics
}

type Config struct {
	URL          string
	MaxRetries   int
	RetryBackoff time.Duration
	PoolSize     int
	MinIdleConns int
}

// NewRedisBroker connects to Redis and returns a broker whose publishes go
// through a circuit breaker
func NewRedisBroker(config Config, logger *zerolog.Logger, m *metrics.Metrics) (*RedisBroker, error) {
	opts, err := redis.ParseURL(config.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	// Configure connection pooling
	opts.MaxRetries = config.MaxRetries
	opts.MinRetryBackoff = config.RetryBackoff
	opts.PoolSize = config.PoolSize
	opts.MinIdleConns = config.MinIdleConns

	client := redis.NewClient(opts)

	// Test connection
	if err := client.Ping(context.Background()).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return newBroker(client, logger, m), nil
}

func newBroker(client *redis.Client, logger *zerolog.Logger, m *metrics.Metrics) *RedisBroker {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}

	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "redis-broker",
		MaxRequests: 1,
		Interval:    10 * time.Second,
		Timeout:     breakerOpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= breakerFailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("circuit breaker state changed")
		},
	})

	return &RedisBroker{
		client:  client,
		cb:      cb,
		logger:  logger,
		metrics: m,
	}
}

func (b *RedisBroker) Publish(ctx context.Context, channel string, message interface{}) error {
	payload, err := messaging.Encode(message)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	start := time.Now()
	_, err = b.cb.Execute(func() (interface{}, error) {
		return nil, b.client.Publish(ctx, channel, payload).Err()
	})
	b.observe("publish", start, err)
	if err != nil {
		return fmt.Errorf("failed to publish to %s: %w", channel, err)
	}
	return nil
}

func (b *RedisBroker) Subscribe(ctx context.Context, channel string) (<-chan []byte, error) {
	pubsub := b.client.Subscribe(ctx, channel)

	// Wait for the subscription to be confirmed
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		b.observe("subscribe", time.Now(), err)
		return nil, fmt.Errorf("failed to subscribe to %s: %w", channel, err)
	}
	b.observe("subscribe", time.Now(), nil)

	msgChan := make(chan []byte, 100)
	go func() {
		defer func() {
			pubsub.Close()
			close(msgChan)
		}()

		in := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-in:
				if !ok {
					return
				}
				select {
				case msgChan <- []byte(msg.Payload):
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return msgChan, nil
}

// State reports the circuit breaker state
func (b *RedisBroker) State() gobreaker.State {
	return b.cb.State()
}

func (b *RedisBroker) Close() error {
	return b.client.Close()
}

func (b *RedisBroker) observe(op string, start time.Time, err error) {
	if b.metrics == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	b.metrics.BrokerOperations.WithLabelValues(op, status).Inc()
	b.metrics.BrokerLatency.WithLabelValues(op).Observe(time.Since(start).Seconds())
}
