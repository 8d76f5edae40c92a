package main

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"tabletop/internal/agent"
	"tabletop/internal/campaign"
	"tabletop/internal/config"
	"tabletop/internal/dice"
	"tabletop/internal/eventbus"
	"tabletop/internal/gamesystem"
	"tabletop/internal/llm"
	"tabletop/internal/logging"
	"tabletop/internal/mcpserver"
	"tabletop/internal/metrics"
	"tabletop/internal/security"
	"tabletop/internal/server"
	"tabletop/internal/tool"
)

// App holds the wired application. Commands build only the parts they need.
type App struct {
	cfg      *config.Config
	loader   *config.Loader
	logger   *slog.Logger
	bus      *eventbus.Bus
	systems  *gamesystem.Catalog
	keyStore *security.KeyStore

	store      *campaign.SQLiteStore
	cache      *campaign.CachedMembership
	membership campaign.Membership
	closers    []func() error
}

// newApp loads configuration and resolves "[keyring]" secrets.
func newApp(cmd *cobra.Command) (*App, error) {
	loader, err := newLoader(cmd)
	if err != nil {
		return nil, err
	}
	cfg, err := loader.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logger := logging.New(logging.ParseLevel(cfg.Log.Level), cfg.Log.Format)
	slog.SetDefault(logger)

	ks, err := security.NewKeyStore(filepath.Dir(loader.FilePath()), cfg.Secrets.VaultPassword)
	if err != nil {
		return nil, fmt.Errorf("open key store: %w", err)
	}
	if err := ks.ResolveConfig(cfg); err != nil {
		return nil, err
	}

	return &App{
		cfg:      cfg,
		loader:   loader,
		logger:   logger,
		bus:      eventbus.New(),
		systems:  gamesystem.Builtin(),
		keyStore: ks,
	}, nil
}

func newLoader(cmd *cobra.Command) (*config.Loader, error) {
	path, _ := cmd.Flags().GetString("config")
	if path != "" {
		return config.NewLoaderAt(path), nil
	}
	return config.NewLoader()
}

// openMembership opens the SQLite store and, when Redis is configured,
// puts the membership cache in front of it.
func (a *App) openMembership(ctx context.Context) error {
	store, err := campaign.OpenSQLite(a.cfg.Storage.DBPath)
	if err != nil {
		return fmt.Errorf("open campaign store: %w", err)
	}
	a.store = store
	a.membership = store
	a.closers = append(a.closers, store.Close)

	if a.cfg.Cache.RedisAddr == "" {
		return nil
	}
	client := campaign.NewRedisClient(a.cfg.Cache.RedisAddr, a.cfg.Cache.RedisPassword, a.cfg.Cache.RedisDB)
	a.closers = append(a.closers, client.Close)

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		a.logger.Warn("redis unreachable, membership cache will fall through", "addr", a.cfg.Cache.RedisAddr, "error", err)
	}

	a.cache = campaign.NewCachedMembership(store, client,
		campaign.WithPrefix(a.cfg.Cache.Prefix),
		campaign.WithTTL(a.cfg.Cache.TTL()),
		campaign.WithLogger(a.logger),
	)
	a.membership = a.cache
	return nil
}

func newRegistry(systems *gamesystem.Catalog, roller *dice.Roller) (*tool.Registry, error) {
	registry := tool.NewRegistry()
	if err := registry.RegisterTool(tool.NewRollDice(systems, roller)); err != nil {
		return nil, err
	}
	return registry, nil
}

func (a *App) authenticator() (*security.JWTAuthenticator, error) {
	auth, err := security.NewJWTAuthenticator(a.cfg.Auth.JWTSecret, a.cfg.Auth.Issuer)
	if err != nil {
		return nil, fmt.Errorf("%w (set TABLETOP_JWT_SECRET or auth.jwt_secret)", err)
	}
	return auth, nil
}

// buildServer wires the full serving stack.
func (a *App) buildServer(ctx context.Context) (*server.Server, error) {
	if err := a.openMembership(ctx); err != nil {
		return nil, err
	}
	auth, err := a.authenticator()
	if err != nil {
		return nil, err
	}

	provider, err := llm.Build(a.cfg, a.logger)
	if err != nil {
		return nil, fmt.Errorf("llm provider: %w", err)
	}

	roller, err := dice.NewRandomRoller()
	if err != nil {
		return nil, err
	}
	registry, err := newRegistry(a.systems, roller)
	if err != nil {
		return nil, err
	}

	m := metrics.New()
	m.Subscribe(a.bus)

	dispatcher := agent.NewDispatcher()
	dispatcher.Register(agent.RoleNarrator, agent.NewNarrator(a.cfg.Agent, agent.Deps{
		Provider: provider,
		Tools:    registry,
		Systems:  a.systems,
		Bus:      a.bus,
		Logger:   a.logger,
		Model:    a.cfg.LLM.Model,
	}))

	deps := server.Deps{
		Agents:     dispatcher,
		Membership: a.membership,
		Auth:       auth,
		Systems:    a.systems,
		Bus:        a.bus,
		Logger:     a.logger,
		Metrics:    m.Handler(),
	}
	if a.cfg.MCP.Enabled {
		deps.MCP = mcpserver.New(mcpserver.Deps{
			Registry:   registry,
			Systems:    a.systems,
			Membership: a.membership,
			Bus:        a.bus,
			Logger:     a.logger,
			Version:    version,
		}).Handler()
	}

	a.logger.Info("tabletop ready",
		"provider", provider.Name(),
		"model", a.cfg.LLM.Model,
		"tools", registry.Names(),
		"mcp", a.cfg.MCP.Enabled,
		"cache", a.cache != nil,
	)
	return server.New(a.cfg, deps), nil
}

// Close releases everything opened by the App, most recent first.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Warn("close failed", "error", err)
		}
	}
	a.closers = nil
}
