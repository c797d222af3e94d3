package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

const (
	metaSessionID  = "session_id"
	metaOccurredAt = "occurred_at"
)

// SessionBus is an in-process pub/sub scoped to a single edit session. Topics
// are event types, so subscribers pick exactly the signals they care about.
type SessionBus struct {
	sessionID string
	pubSub    *gochannel.GoChannel
}

func NewSessionBus(sessionID string, logger watermill.LoggerAdapter) *SessionBus {
	if logger == nil {
		logger = watermill.NopLogger{}
	}
	return &SessionBus{
		sessionID: sessionID,
		pubSub: gochannel.NewGoChannel(
			gochannel.Config{OutputChannelBuffer: 64},
			logger,
		),
	}
}

func (b *SessionBus) Publish(ctx context.Context, event Event) error {
	payload, err := json.Marshal(event.Payload())
	if err != nil {
		return fmt.Errorf("failed to marshal event payload: %w", err)
	}

	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.Metadata.Set(metaSessionID, b.sessionID)
	msg.Metadata.Set(metaOccurredAt, event.Timestamp().Format(time.RFC3339Nano))
	msg.SetContext(ctx)

	if err := b.pubSub.Publish(event.EventType(), msg); err != nil {
		return fmt.Errorf("failed to publish event to topic %s: %w", event.EventType(), err)
	}
	return nil
}

// Subscribe streams events of one type until ctx is done or the bus is closed.
func (b *SessionBus) Subscribe(ctx context.Context, eventType string) (<-chan Event, error) {
	messages, err := b.pubSub.Subscribe(ctx, eventType)
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe to %s: %w", eventType, err)
	}

	out := make(chan Event, 16)
	go func() {
		defer close(out)
		for msg := range messages {
			var data map[string]interface{}
			if err := json.Unmarshal(msg.Payload, &data); err != nil {
				// Malformed payloads would be redelivered forever on Nack.
				msg.Ack()
				continue
			}
			occurredAt, _ := time.Parse(time.RFC3339Nano, msg.Metadata.Get(metaOccurredAt))
			evt := BaseEvent{
				Type:       eventType,
				Data:       data,
				OccurredAt: occurredAt,
			}
			select {
			case out <- evt:
				msg.Ack()
			case <-ctx.Done():
				msg.Nack()
				return
			}
		}
	}()
	return out, nil
}

func (b *SessionBus) Close() error {
	return b.pubSub.Close()
}
