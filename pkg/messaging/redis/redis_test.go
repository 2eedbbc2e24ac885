package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/fieldservice-api/pkg/metrics"
)

func TestNewRedisBrokerRejectsBadURL(t *testing.T) {
	_, err := NewRedisBroker(Config{URL: "not-a-url"}, nil, nil)
	assert.Error(t, err)
}

func TestPublishOpensBreakerAfterConsecutiveFailures(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		MaxRetries:  -1,
		DialTimeout: 100 * time.Millisecond,
	})
	b := newBroker(client, nil, metrics.New("test"))
	defer b.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	for i := 0; i < breakerFailureThreshold; i++ {
		err := b.Publish(ctx, "events", map[string]string{"type": "service.created"})
		require.Error(t, err)
		assert.False(t, errors.Is(err, gobreaker.ErrOpenState))
	}
	assert.Equal(t, gobreaker.StateOpen, b.State())

	err := b.Publish(ctx, "events", []byte(`{}`))
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
}
