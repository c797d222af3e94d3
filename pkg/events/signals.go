package events

import (
	"context"
	"fmt"
	"time"

	"ai-notetaking-editor/internal/pkg/logger"
)

// Outbound signals emitted by an edit session.
const (
	TypeSuggestionAccepted = "editor.suggestion_accepted"
	TypeLinkCleanup        = "editor.link_cleanup"
	TypeTagsGenerated      = "editor.tags_generated"
	TypeDocumentSaved      = "editor.document_saved"
	TypeDocumentSaveFailed = "editor.document_save_failed"
)

// Signals abstracts event publishing for one edit session
type Signals interface {
	SuggestionAccepted(ctx context.Context, pageID, pageTitle, source string)
	LinkCleanup(ctx context.Context, marker, reason string)
	TagsGenerated(ctx context.Context, tags []string)
	DocumentSaved(ctx context.Context, fingerprint uint64)
	DocumentSaveFailed(ctx context.Context, err error)
}

// SignalPublisher stamps every event with the session and document it came from.
// Delivery failures are logged, never returned: signals are fire-and-forget.
type SignalPublisher struct {
	sessionID  string
	documentID string
	sink       Sink
	logger     logger.ILogger
	now        func() time.Time
}

var _ Signals = (*SignalPublisher)(nil)

func NewSignalPublisher(sessionID, documentID string, sink Sink, log logger.ILogger, now func() time.Time) *SignalPublisher {
	if now == nil {
		now = time.Now
	}
	return &SignalPublisher{
		sessionID:  sessionID,
		documentID: documentID,
		sink:       sink,
		logger:     log,
		now:        now,
	}
}

func (p *SignalPublisher) publish(ctx context.Context, eventType string, data map[string]interface{}) {
	if p.sink == nil {
		return
	}
	data["session_id"] = p.sessionID
	data["document_id"] = p.documentID

	evt := BaseEvent{
		Type:       eventType,
		Data:       data,
		OccurredAt: p.now(),
	}
	if err := p.sink.Publish(ctx, evt); err != nil {
		p.logger.Error("Signals", fmt.Sprintf("Failed to publish %s event", eventType), map[string]interface{}{
			"error":      err.Error(),
			"session_id": p.sessionID,
		})
	}
}

// SuggestionAccepted emits the accept signal; source is "ai" or "page".
func (p *SignalPublisher) SuggestionAccepted(ctx context.Context, pageID, pageTitle, source string) {
	p.publish(ctx, TypeSuggestionAccepted, map[string]interface{}{
		"page_id":    pageID,
		"page_title": pageTitle,
		"source":     source,
	})
}

// LinkCleanup tells listeners the residual trigger marker was removed.
func (p *SignalPublisher) LinkCleanup(ctx context.Context, marker, reason string) {
	p.publish(ctx, TypeLinkCleanup, map[string]interface{}{
		"remove_trigger_marker": true,
		"marker":                marker,
		"reason":                reason,
	})
}

func (p *SignalPublisher) TagsGenerated(ctx context.Context, tags []string) {
	p.publish(ctx, TypeTagsGenerated, map[string]interface{}{
		"tags": tags,
	})
}

func (p *SignalPublisher) DocumentSaved(ctx context.Context, fingerprint uint64) {
	p.publish(ctx, TypeDocumentSaved, map[string]interface{}{
		"fingerprint": fmt.Sprintf("%016x", fingerprint),
	})
}

func (p *SignalPublisher) DocumentSaveFailed(ctx context.Context, err error) {
	p.publish(ctx, TypeDocumentSaveFailed, map[string]interface{}{
		"error": err.Error(),
	})
}

// AuditSink writes every event to a (usually isolated) log file.
type AuditSink struct {
	logger logger.ILogger
}

func NewAuditSink(log logger.ILogger) *AuditSink {
	return &AuditSink{logger: log}
}

func (a *AuditSink) Publish(_ context.Context, event Event) error {
	details := make(map[string]interface{}, len(event.Payload())+1)
	for k, v := range event.Payload() {
		details[k] = v
	}
	details["occurred_at"] = event.Timestamp()
	a.logger.Info("EventAudit", event.EventType(), details)
	return nil
}

// NopSignals drops every signal.
type NopSignals struct{}

func (NopSignals) SuggestionAccepted(context.Context, string, string, string) {}
func (NopSignals) LinkCleanup(context.Context, string, string)                {}
func (NopSignals) TagsGenerated(context.Context, []string)                    {}
func (NopSignals) DocumentSaved(context.Context, uint64)                      {}
func (NopSignals) DocumentSaveFailed(context.Context, error)                  {}
