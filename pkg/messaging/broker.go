package messaging

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Broker defines the interface for message brokers
type Broker interface {
	Publish(ctx context.Context, channel string, message interface{}) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
	Close() error
}

// Message is the envelope published for every outbox event
type Message struct {
	ID         uuid.UUID       `json:"id"`
	Type       string          `json:"type"`
	Payload    json.RawMessage `json:"payload"`
	OccurredAt time.Time       `json:"occurred_at"`
}

// Decode parses a message received from a subscription
func Decode(data []byte) (*Message, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// Encode renders message as JSON. Byte slices and raw JSON pass through unchanged.
func Encode(message interface{}) ([]byte, error) {
	switch m := message.(type) {
	case []byte:
		return m, nil
	case json.RawMessage:
		return m, nil
	}
	return json.Marshal(message)
}

// Consume subscribes to channel and hands every decoded message to handler
// until ctx is cancelled or the subscription closes. Undecodable messages and
// handler errors are reported to onError and skipped.
func Consume(ctx context.Context, broker Broker, channel string, handler func(*Message) error, onError func(error)) error {
	msgChan, err := broker.Subscribe(ctx, channel)
	if err != nil {
		return err
	}

	go func() {
		for data := range msgChan {
			msg, err := Decode(data)
			if err == nil {
				err = handler(msg)
			}
			if err != nil && onError != nil {
				onError(err)
			}
		}
	}()

	return nil
}
