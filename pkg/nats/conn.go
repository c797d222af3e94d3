package nats

import (
	"fmt"
	"strings"
	"time"

	"ai-notetaking-editor/pkg/events"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

const (
	// StreamName holds every outbound editor signal.
	StreamName = "EDITOR_EVENTS"
	// SubjectPrefix is prepended to the event type to build the subject.
	SubjectPrefix = "events."

	headerEventType  = "Editor-Event-Type"
	headerOccurredAt = "Editor-Occurred-At"
	headerSessionID  = "Editor-Session-Id"
)

// StreamSubjects returns the subject filter the stream is bound to.
func StreamSubjects() []string {
	return []string{SubjectPrefix + "editor.>"}
}

func connect(url string, opts ...jetstream.JetStreamOpt) (*nats.Conn, jetstream.JetStream, error) {
	nc, err := nats.Connect(url,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(5),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := jetstream.New(nc, opts...)
	if err != nil {
		nc.Close()
		return nil, nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}
	return nc, js, nil
}

// SubjectFor maps an event type onto its JetStream subject.
func SubjectFor(eventType string) string {
	return SubjectPrefix + eventType
}

// EventTypeFromSubject is the inverse of SubjectFor.
func EventTypeFromSubject(subject string) string {
	return strings.TrimPrefix(subject, SubjectPrefix)
}

// encodeHeaders carries the envelope fields the JSON payload does not.
func encodeHeaders(event events.Event) nats.Header {
	h := nats.Header{}
	h.Set(headerEventType, event.EventType())
	h.Set(headerOccurredAt, event.Timestamp().UTC().Format(time.RFC3339Nano))
	if base, ok := event.(events.BaseEvent); ok {
		if sid := base.String("session_id"); sid != "" {
			h.Set(headerSessionID, sid)
		}
	}
	return h
}

// decodeEnvelope rebuilds the event type and timestamp, falling back to the
// subject and receive time when headers are missing.
func decodeEnvelope(subject string, h nats.Header, received time.Time) (string, time.Time) {
	eventType := h.Get(headerEventType)
	if eventType == "" {
		eventType = EventTypeFromSubject(subject)
	}
	occurredAt, err := time.Parse(time.RFC3339Nano, h.Get(headerOccurredAt))
	if err != nil {
		occurredAt = received
	}
	return eventType, occurredAt
}
