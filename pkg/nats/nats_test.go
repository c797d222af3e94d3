package nats

import (
	"context"
	"testing"
	"time"

	"ai-notetaking-editor/internal/pkg/logger"
	"ai-notetaking-editor/pkg/events"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubjectRoundTrip(t *testing.T) {
	subject := SubjectFor(events.TypeSuggestionAccepted)

	assert.Equal(t, "events.editor.suggestion_accepted", subject)
	assert.Equal(t, events.TypeSuggestionAccepted, EventTypeFromSubject(subject))
}

func TestStreamSubjectsCoverEditorEvents(t *testing.T) {
	for _, typ := range []string{
		events.TypeSuggestionAccepted,
		events.TypeLinkCleanup,
		events.TypeTagsGenerated,
		events.TypeDocumentSaved,
		events.TypeDocumentSaveFailed,
	} {
		assert.Regexp(t, `^events\.editor\.[a-z_]+$`, SubjectFor(typ))
	}
	assert.Equal(t, []string{"events.editor.>"}, StreamSubjects())
}

func TestEnvelopeHeaders(t *testing.T) {
	at := time.Date(2025, 5, 4, 10, 30, 0, 123, time.UTC)
	evt := events.BaseEvent{
		Type:       events.TypeTagsGenerated,
		Data:       map[string]interface{}{"session_id": "sess-7"},
		OccurredAt: at,
	}

	h := encodeHeaders(evt)
	assert.Equal(t, "sess-7", h.Get(headerSessionID))

	eventType, occurredAt := decodeEnvelope("ignored", h, time.Now())
	assert.Equal(t, events.TypeTagsGenerated, eventType)
	assert.True(t, occurredAt.Equal(at))
}

func TestDecodeEnvelope_FallsBackToSubject(t *testing.T) {
	received := time.Unix(1700000000, 0)

	eventType, occurredAt := decodeEnvelope("events.editor.link_cleanup", nats.Header{}, received)

	assert.Equal(t, events.TypeLinkCleanup, eventType)
	assert.Equal(t, received, occurredAt)
}

type pendingAck struct {
	msg *nats.Msg
}

func (a pendingAck) Ok() <-chan *jetstream.PubAck { return nil }
func (a pendingAck) Err() <-chan error            { return nil }
func (a pendingAck) Msg() *nats.Msg               { return a.msg }

type fakeJetStream struct {
	sent     []*nats.Msg
	err      error
	complete chan struct{}
}

func (f *fakeJetStream) PublishMsgAsync(msg *nats.Msg, _ ...jetstream.PublishOpt) (jetstream.PubAckFuture, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.sent = append(f.sent, msg)
	return pendingAck{msg: msg}, nil
}

func (f *fakeJetStream) PublishAsyncComplete() <-chan struct{} {
	return f.complete
}

func TestPublisher_DoesNotWaitForAck(t *testing.T) {
	js := &fakeJetStream{complete: make(chan struct{})}
	p := &Publisher{js: js, logger: logger.NewNopLogger()}
	evt := events.BaseEvent{
		Type:       events.TypeDocumentSaved,
		Data:       map[string]interface{}{"session_id": "sess-1", "revision": 3},
		OccurredAt: time.Now(),
	}

	done := make(chan error, 1)
	go func() { done <- p.Publish(context.Background(), evt) }()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("publish blocked on an unacknowledged message")
	}
	require.Len(t, js.sent, 1)
	assert.Equal(t, "events.editor.document_saved", js.sent[0].Subject)
	assert.Equal(t, "sess-1", js.sent[0].Header.Get(headerSessionID))
	assert.JSONEq(t, `{"session_id":"sess-1","revision":3}`, string(js.sent[0].Data))

	close(js.complete)
	assert.NotPanics(t, p.Close)
}

func TestPublisher_Errors(t *testing.T) {
	js := &fakeJetStream{err: jetstream.ErrTooManyStalledMsgs}
	p := &Publisher{js: js, logger: logger.NewNopLogger()}
	evt := events.BaseEvent{Type: events.TypeLinkCleanup, OccurredAt: time.Now()}

	err := p.Publish(context.Background(), evt)
	assert.ErrorIs(t, err, jetstream.ErrTooManyStalledMsgs)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	js.err = nil
	assert.ErrorIs(t, p.Publish(ctx, evt), context.Canceled)
	assert.Empty(t, js.sent)
}
