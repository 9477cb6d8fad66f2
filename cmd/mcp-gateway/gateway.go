package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Jacky-ZJQ/mcp-gateway/internal/config"
	"github.com/Jacky-ZJQ/mcp-gateway/internal/courses"
	"github.com/Jacky-ZJQ/mcp-gateway/internal/engine"
	"github.com/Jacky-ZJQ/mcp-gateway/internal/quota"
	"github.com/Jacky-ZJQ/mcp-gateway/internal/skills"
	"github.com/Jacky-ZJQ/mcp-gateway/mcpservice"
	"github.com/Jacky-ZJQ/mcp-gateway/sessions/memoryhost"
	"github.com/Jacky-ZJQ/mcp-gateway/streaminghttp"
)

// gateway is the fully wired set of components behind both transports.
type gateway struct {
	cfg      *config.Config
	log      *slog.Logger
	store    *courses.Store
	skills   *skills.Service
	registry *mcpservice.Registry
	quota    *quota.Limiter
	engine   *engine.Engine

	closers []func() error
}

func newGateway(ctx context.Context, cfg *config.Config, log *slog.Logger) (*gateway, error) {
	store, err := courses.Open(cfg.Database.Path, log)
	if err != nil {
		return nil, fmt.Errorf("opening course store: %w", err)
	}

	g := &gateway{cfg: cfg, log: log, store: store}
	g.closers = append(g.closers, store.Close)

	var completer skills.Completer
	if cfg.Skills.BaseURL != "" {
		completer = skills.NewOpenAICompleter(cfg.Skills.BaseURL, cfg.Skills.APIKey)
	}
	g.skills, err = skills.New(skillsConfig(cfg.Skills), completer, skills.WithLogger(log.With("component", "skills")))
	if err != nil {
		g.Close()
		return nil, fmt.Errorf("loading skills: %w", err)
	}

	handlers := courses.Handlers(store)
	if len(g.skills.Profiles()) > 0 {
		handlers = append(handlers, g.skills.ChatOnceHandler())
	}

	g.registry, err = mcpservice.NewRegistry(cfg.RegistryConfig(), courses.Tools(store), handlers,
		mcpservice.WithRegistryLogger(log.With("component", "registry")))
	if err != nil {
		g.Close()
		return nil, fmt.Errorf("building tool registry: %w", err)
	}

	if cfg.Quota.Enabled {
		if g.quota, err = g.newQuota(ctx); err != nil {
			g.Close()
			return nil, err
		}
	}

	host := memoryhost.New(memoryhost.WithTTL(cfg.MCP.SessionTTL))
	g.engine = engine.NewEngine(host, g.registry,
		engine.WithLogger(log),
		engine.WithServerInfo(cfg.MCP.ServerName, cfg.MCP.ServerVersion),
		engine.WithProtocolVersions(cfg.MCP.ProtocolVersions),
	)
	return g, nil
}

// httpHandler builds the Streamable HTTP transport, metered when quota is
// enabled.
func (g *gateway) httpHandler() (*streaminghttp.StreamingHTTPHandler, error) {
	opts := []streaminghttp.Option{
		streaminghttp.WithLogger(g.log),
		streaminghttp.WithEndpoint(g.cfg.Server.Endpoint),
	}
	if g.quota != nil {
		opts = append(opts, streaminghttp.WithQuota(g.quota))
	}
	return streaminghttp.New(g.engine, opts...)
}

func (g *gateway) newQuota(ctx context.Context) (*quota.Limiter, error) {
	q := g.cfg.Quota
	opts := []quota.Option{quota.WithLogger(g.log)}
	if q.UserHeader != "" {
		opts = append(opts, quota.WithUserHeader(q.UserHeader))
	}
	if q.Message != "" {
		opts = append(opts, quota.WithMessage(q.Message))
	}
	if strings.EqualFold(q.Backend, config.QuotaRedis) {
		c, err := quota.NewRedisCounter(ctx, q.RedisAddr, quota.WithKeyPrefix(q.KeyPrefix))
		if err != nil {
			return nil, fmt.Errorf("connecting quota store: %w", err)
		}
		g.closers = append(g.closers, c.Close)
		opts = append(opts, quota.WithCounter(c))
		g.log.Info("gateway.quota", "backend", "redis", "addr", q.RedisAddr)
	}
	return quota.New(q.Limit, q.Window, opts...), nil
}

func (g *gateway) Close() error {
	var errs []error
	for i := len(g.closers) - 1; i >= 0; i-- {
		errs = append(errs, g.closers[i]())
	}
	g.closers = nil
	return errors.Join(errs...)
}

func skillsConfig(sc config.SkillsConfig) skills.Config {
	out := skills.Config{
		DefaultModel:              sc.Model,
		DefaultConversationPrefix: sc.DefaultConversationPrefix,
	}
	for _, p := range sc.Profiles {
		out.Profiles = append(out.Profiles, skills.Profile{
			Code:               p.Code,
			Name:               p.Name,
			Description:        p.Description,
			Mode:               skills.Mode(p.Mode),
			Model:              p.Model,
			SystemPrompt:       p.SystemPrompt,
			ConversationPrefix: p.ConversationPrefix,
			WelcomeMessage:     p.WelcomeMessage,
			Enabled:            p.Enabled == nil || *p.Enabled,
		})
	}
	return out
}
