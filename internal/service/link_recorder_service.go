package service

import (
	"context"
	"fmt"

	"ai-notetaking-editor/internal/dto"
	"ai-notetaking-editor/internal/pkg/logger"
	"ai-notetaking-editor/pkg/events"
	"ai-notetaking-editor/pkg/nats"
)

const acceptedLinksDurable = "mockapi-accepted-links"

// EventSubscriber is the part of nats.Subscriber the recorder needs.
type EventSubscriber interface {
	Subscribe(ctx context.Context, subject, durableName string, handler nats.EventHandler) error
}

type ILinkRecorderService interface {
	Consume(ctx context.Context) error
	Handle(ctx context.Context, event events.Event) error
}

// linkRecorderService stores the suggestion-accepted signals editors publish,
// so the mock backend can show which links a document gained.
type linkRecorderService struct {
	subscriber EventSubscriber
	workspace  IWorkspaceService
	logger     logger.ILogger
}

func NewLinkRecorderService(subscriber EventSubscriber, workspace IWorkspaceService, log logger.ILogger) ILinkRecorderService {
	return &linkRecorderService{
		subscriber: subscriber,
		workspace:  workspace,
		logger:     log,
	}
}

func (s *linkRecorderService) Consume(ctx context.Context) error {
	subject := nats.SubjectFor(events.TypeSuggestionAccepted)
	if err := s.subscriber.Subscribe(ctx, subject, acceptedLinksDurable, s.Handle); err != nil {
		return fmt.Errorf("subscribe accepted links: %w", err)
	}
	return nil
}

func (s *linkRecorderService) Handle(ctx context.Context, event events.Event) error {
	base, ok := event.(events.BaseEvent)
	if !ok {
		base = events.BaseEvent{Type: event.EventType(), Data: event.Payload(), OccurredAt: event.Timestamp()}
	}

	link := dto.AcceptedLink{
		DocumentId: base.String("document_id"),
		PageId:     base.String("page_id"),
		PageTitle:  base.String("page_title"),
		Source:     base.String("source"),
		AcceptedAt: base.OccurredAt,
	}
	if link.DocumentId == "" || link.PageId == "" {
		// Ack and drop: redelivery cannot add the missing ids.
		s.logger.Warn("LinkRecorder", "Accepted link without ids", map[string]interface{}{
			"payload": base.Data,
		})
		return nil
	}

	s.workspace.RecordAcceptedLink(ctx, link)
	s.logger.Info("LinkRecorder", "Accepted link recorded", map[string]interface{}{
		"document_id": link.DocumentId,
		"page_id":     link.PageId,
	})
	return nil
}
