package factory

import (
	"fmt"

	"ai-notetaking-editor/internal/config"
	"ai-notetaking-editor/internal/pkg/logger"
	"ai-notetaking-editor/pkg/gateway"
	"ai-notetaking-editor/pkg/gateway/httpclient"
	"ai-notetaking-editor/pkg/gateway/redisdraft"
)

const (
	PersistenceHTTP  = "http"
	PersistenceRedis = "redis"
)

// Gateways bundles every backend collaborator a session needs.
type Gateways struct {
	Persistence gateway.PersistenceGateway
	Suggestions gateway.SuggestionGateway
	Tags        gateway.TagGateway
	Pages       gateway.PageLister

	closers []func() error
}

// Close releases connections held by the selected drivers.
func (g *Gateways) Close() error {
	var firstErr error
	for _, c := range g.closers {
		if err := c(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// NewGateways wires the HTTP client for AI and page calls and picks the
// persistence driver from cfg.Gateway.Persistence.
func NewGateways(cfg *config.Config, log logger.ILogger) (*Gateways, error) {
	client := httpclient.NewClient(cfg.Gateway.BaseURL, cfg.Gateway.Token, cfg.Gateway.Timeout, log)
	g := &Gateways{
		Suggestions: client,
		Tags:        client,
		Pages:       client,
	}

	switch cfg.Gateway.Persistence {
	case PersistenceHTTP, "":
		g.Persistence = client
	case PersistenceRedis:
		store, err := redisdraft.NewStore(cfg.App.RedisURL, 0)
		if err != nil {
			return nil, fmt.Errorf("redis draft store: %w", err)
		}
		g.Persistence = store
		g.closers = append(g.closers, store.Close)
	default:
		return nil, fmt.Errorf("unsupported persistence driver: %s", cfg.Gateway.Persistence)
	}

	log.Info("Gateway", "Gateways initialized", map[string]interface{}{
		"base_url":    cfg.Gateway.BaseURL,
		"persistence": cfg.Gateway.Persistence,
	})
	return g, nil
}
