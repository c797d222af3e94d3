package bootstrap

import (
	"context"

	"ai-notetaking-editor/internal/config"
	"ai-notetaking-editor/internal/controller"
	"ai-notetaking-editor/internal/pkg/logger"
	"ai-notetaking-editor/internal/service"
	"ai-notetaking-editor/pkg/gateway"

	pktNats "ai-notetaking-editor/pkg/nats"
)

// DemoWorkspaceID is seeded when WORKSPACE_ID is empty.
const DemoWorkspaceID = "demo"

// DemoPages are the pages every mock workspace starts with.
var DemoPages = []gateway.Page{
	{ID: "p-visa", Title: "Visa checklist", Icon: "🛂", Summary: "Documents for the embassy appointment"},
	{ID: "p-hotels", Title: "Hotels", Icon: "🏨", Summary: "Booked stays in Kyoto and Osaka"},
	{ID: "p-flights", Title: "Flights", Icon: "✈", Summary: "Outbound and return flight numbers"},
	{ID: "p-budget", Title: "Budget", Icon: "💴", Summary: "Daily spending plan in yen"},
	{ID: "p-packing", Title: "Packing list", Icon: "🎒", Summary: "Clothes, adapters and travel documents"},
}

// MockAPIContainer wires the development backend.
type MockAPIContainer struct {
	Logger            logger.ILogger
	WorkspaceService  service.IWorkspaceService
	GatewayController controller.IGatewayController

	// LinkRecorder is nil when NATS is not configured.
	LinkRecorder service.ILinkRecorderService
	natsSub      *pktNats.Subscriber
}

func NewMockAPIContainer(cfg *config.Config) *MockAPIContainer {
	sysLogger := logger.NewZapLogger(cfg.App.LogFilePath, cfg.App.Environment == "production")

	workspaceID := cfg.Gateway.WorkspaceID
	if workspaceID == "" {
		workspaceID = DemoWorkspaceID
	}
	workspaceService := service.NewWorkspaceService()
	workspaceService.SeedPages(context.Background(), workspaceID, DemoPages)

	c := &MockAPIContainer{
		Logger:            sysLogger,
		WorkspaceService:  workspaceService,
		GatewayController: controller.NewGatewayController(workspaceService),
	}

	if cfg.App.NatsURL != "" {
		natsSub, err := pktNats.NewSubscriber(cfg.App.NatsURL, sysLogger)
		if err != nil {
			sysLogger.Warn("Container", "Failed to connect to NATS subscriber", map[string]interface{}{
				"url":   cfg.App.NatsURL,
				"error": err.Error(),
			})
		} else {
			c.natsSub = natsSub
			c.LinkRecorder = service.NewLinkRecorderService(natsSub, workspaceService, sysLogger)
		}
	}
	return c
}

func (c *MockAPIContainer) Close() {
	if c.natsSub != nil {
		c.natsSub.Close()
	}
	_ = c.Logger.Sync()
}
