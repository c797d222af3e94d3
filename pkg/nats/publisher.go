package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"ai-notetaking-editor/internal/pkg/logger"
	"ai-notetaking-editor/pkg/events"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

const (
	ackTimeout   = 5 * time.Second
	maxPending   = 256
	stallWait    = 50 * time.Millisecond
	drainTimeout = 5 * time.Second
)

// asyncPublisher is the part of jetstream.JetStream the publisher uses.
type asyncPublisher interface {
	PublishMsgAsync(msg *nats.Msg, opts ...jetstream.PublishOpt) (jetstream.PubAckFuture, error)
	PublishAsyncComplete() <-chan struct{}
}

// Publisher forwards session signals to JetStream. It satisfies events.Sink.
// Publish never waits for the server: acks are collected in the background
// and failures are logged.
type Publisher struct {
	nc     *nats.Conn
	js     asyncPublisher
	logger logger.ILogger
}

var _ events.Sink = (*Publisher)(nil)

// NewPublisher connects and makes sure the editor stream exists.
func NewPublisher(url string, log logger.ILogger) (*Publisher, error) {
	p := &Publisher{logger: log}
	nc, js, err := connect(url,
		jetstream.WithPublishAsyncMaxPending(maxPending),
		jetstream.WithPublishAsyncTimeout(ackTimeout),
		jetstream.WithPublishAsyncErrHandler(func(_ jetstream.JetStream, msg *nats.Msg, err error) {
			p.ackFailed(msg, err)
		}),
	)
	if err != nil {
		return nil, err
	}
	p.nc, p.js = nc, js

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err = js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:      StreamName,
		Subjects:  StreamSubjects(),
		Storage:   jetstream.FileStorage,
		Retention: jetstream.LimitsPolicy,
		MaxAge:    24 * time.Hour,
	})
	if err != nil {
		// Not fatal: the stream may already exist with a different config.
		log.Warn("NATS", "Failed to ensure stream", map[string]interface{}{
			"stream": StreamName,
			"error":  err.Error(),
		})
	}

	return p, nil
}

// Publish queues an event for NATS. It fails fast when the pending-ack window
// is full instead of stalling the caller.
func (p *Publisher) Publish(ctx context.Context, event events.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(event.Payload())
	if err != nil {
		return fmt.Errorf("failed to marshal event payload: %w", err)
	}

	subject := SubjectFor(event.EventType())
	msg := &nats.Msg{
		Subject: subject,
		Data:    data,
		Header:  encodeHeaders(event),
	}

	if _, err := p.js.PublishMsgAsync(msg, jetstream.WithStallWait(stallWait)); err != nil {
		return fmt.Errorf("failed to publish event to subject %s: %w", subject, err)
	}
	return nil
}

func (p *Publisher) ackFailed(msg *nats.Msg, err error) {
	p.logger.Warn("NATS", "Event not acknowledged", map[string]interface{}{
		"subject": msg.Subject,
		"error":   err.Error(),
	})
}

// Close waits a bounded time for outstanding acks, then closes the connection.
func (p *Publisher) Close() {
	if p.js != nil {
		select {
		case <-p.js.PublishAsyncComplete():
		case <-time.After(drainTimeout):
			p.logger.Warn("NATS", "Closing with unacknowledged events", nil)
		}
	}
	if p.nc != nil {
		p.nc.Close()
	}
}
