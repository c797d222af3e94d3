package bootstrap

import (
	"context"
	"errors"
	"fmt"

	"ai-notetaking-editor/internal/config"
	"ai-notetaking-editor/internal/pkg/logger"
	"ai-notetaking-editor/internal/repository/memory"
	"ai-notetaking-editor/internal/tracer"
	"ai-notetaking-editor/pkg/editor"
	"ai-notetaking-editor/pkg/editsession"
	"ai-notetaking-editor/pkg/events"
	"ai-notetaking-editor/pkg/gateway/factory"
	"ai-notetaking-editor/pkg/schedule"

	pktNats "ai-notetaking-editor/pkg/nats"

	"github.com/google/uuid"
)

var ErrSessionOpen = errors.New("a session is already open for this document")

// Container holds everything edit sessions share within one process.
type Container struct {
	Config      *config.Config
	Logger      logger.ILogger
	AuditLogger *logger.ZapLogger

	Loop     *schedule.Loop
	Clock    schedule.Clock
	Gateways *factory.Gateways
	Pages    *memory.PageRepository
	Sessions *memory.SessionRepository

	// NatsPublisher is nil when NATS_URL is empty or unreachable.
	NatsPublisher *pktNats.Publisher

	shutdownTracer func(context.Context) error
}

// OpenSession pairs a session with its private event bus.
type OpenSession struct {
	Session *editsession.Session
	Bus     *events.SessionBus
}

func NewContainer(cfg *config.Config) (*Container, error) {
	sysLogger := logger.NewZapLogger(cfg.App.LogFilePath, cfg.App.Environment == "production")
	return newContainer(cfg, sysLogger, schedule.RealClock{})
}

func newContainer(cfg *config.Config, sysLogger logger.ILogger, clock schedule.Clock) (*Container, error) {
	shutdownTracer := tracer.InitTracer(cfg.App.OtelEnabled, tracer.ServiceName, sysLogger)

	gateways, err := factory.NewGateways(cfg, sysLogger)
	if err != nil {
		return nil, fmt.Errorf("init gateways: %w", err)
	}

	var auditLogger *logger.ZapLogger
	if cfg.App.EventsLogPath != "" {
		auditLogger = logger.NewIsolatedLogger(cfg.App.EventsLogPath)
	}

	var natsPub *pktNats.Publisher
	if cfg.App.NatsURL != "" {
		natsPub, err = pktNats.NewPublisher(cfg.App.NatsURL, sysLogger)
		if err != nil {
			sysLogger.Warn("Container", "Failed to connect to NATS publisher", map[string]interface{}{
				"url":   cfg.App.NatsURL,
				"error": err.Error(),
			})
			natsPub = nil
		}
	}

	return &Container{
		Config:         cfg,
		Logger:         sysLogger,
		AuditLogger:    auditLogger,
		Loop:           schedule.NewLoop(),
		Clock:          clock,
		Gateways:       gateways,
		Pages:          memory.NewPageRepository(gateways.Pages, cfg.Editor.PageCacheTTL),
		Sessions:       memory.NewSessionRepository(),
		NatsPublisher:  natsPub,
		shutdownTracer: shutdownTracer,
	}, nil
}

// OpenSession builds a session for documentID and attaches it to surface.
// Call it before the loop runs or from a loop task.
func (c *Container) OpenSession(ctx context.Context, documentID string, surface editor.Surface) (*OpenSession, error) {
	if _, ok := c.Sessions.Get(documentID); ok {
		return nil, ErrSessionOpen
	}

	opts := editsession.OptionsFromConfig(c.Config, documentID)
	opts.SessionID = uuid.NewString()

	if _, err := c.Pages.Refresh(ctx, opts.WorkspaceID); err != nil {
		c.Logger.Warn("Container", "Page cache refresh failed, suggestions start without candidates", map[string]interface{}{
			"workspace_id": opts.WorkspaceID,
			"error":        err.Error(),
		})
	}

	bus := events.NewSessionBus(opts.SessionID, logger.NewWatermillAdapter(c.Logger, "SessionBus"))
	sink := events.Fanout{bus}
	if c.AuditLogger != nil {
		sink = append(sink, events.NewAuditSink(c.AuditLogger))
	}
	if c.NatsPublisher != nil {
		sink = append(sink, c.NatsPublisher)
	}

	session, err := editsession.New(opts, editsession.Deps{
		Loop:        c.Loop,
		Clock:       c.Clock,
		Persistence: c.Gateways.Persistence,
		Suggestions: c.Gateways.Suggestions,
		Tags:        c.Gateways.Tags,
		Pages:       c.Pages,
		Signals:     events.NewSignalPublisher(opts.SessionID, documentID, sink, c.Logger, c.Clock.Now),
		Logger:      c.Logger,
	})
	if err != nil {
		_ = bus.Close()
		return nil, err
	}
	if err := session.Attach(surface); err != nil {
		_ = bus.Close()
		return nil, err
	}

	c.Sessions.Save(session)
	return &OpenSession{Session: session, Bus: bus}, nil
}

// CloseSession flushes and stops the session, then releases its bus.
// The loop must be running.
func (c *Container) CloseSession(ctx context.Context, open *OpenSession) error {
	err := open.Session.Close(ctx)
	c.Sessions.Delete(open.Session.DocumentID())
	if cerr := open.Bus.Close(); cerr != nil && err == nil {
		err = cerr
	}
	return err
}

// Close releases shared resources. Open sessions should be closed first.
func (c *Container) Close(ctx context.Context) {
	c.Loop.Close()
	if err := c.Gateways.Close(); err != nil {
		c.Logger.Warn("Container", "Failed to close gateways", map[string]interface{}{"error": err.Error()})
	}
	if c.NatsPublisher != nil {
		c.NatsPublisher.Close()
	}
	if err := c.shutdownTracer(ctx); err != nil {
		c.Logger.Warn("Container", "Failed to shut down tracer", map[string]interface{}{"error": err.Error()})
	}
	if c.AuditLogger != nil {
		_ = c.AuditLogger.Sync()
	}
	_ = c.Logger.Sync()
}
