// Package agent runs role-scoped conversational agents that may call tools
// before answering.
package agent

import (
	"log/slog"

	"tabletop/internal/config"
	"tabletop/internal/eventbus"
	"tabletop/internal/gamesystem"
	"tabletop/internal/llm"
	"tabletop/internal/tool"
)

// DefaultMaxToolIterations bounds tool round-trips when config leaves it unset.
const DefaultMaxToolIterations = 8

// SystemLookup resolves a game system id.
type SystemLookup interface {
	Lookup(id string) (gamesystem.System, error)
}

// Agent drives the tool-use loop for one role.
type Agent struct {
	profile  Profile
	cfg      config.AgentConfig
	model    string
	provider llm.Provider
	tools    *tool.Registry
	systems  SystemLookup
	bus      *eventbus.Bus
	logger   *slog.Logger
}

// Deps are the collaborators an Agent needs.
type Deps struct {
	Provider llm.Provider
	Tools    *tool.Registry
	Systems  SystemLookup
	Bus      *eventbus.Bus // optional
	Logger   *slog.Logger  // optional
	Model    string        // optional, provider default when empty
}

// New creates an Agent for the given profile.
func New(profile Profile, cfg config.AgentConfig, deps Deps) *Agent {
	if cfg.MaxToolIterations <= 0 {
		cfg.MaxToolIterations = DefaultMaxToolIterations
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Agent{
		profile:  profile,
		cfg:      cfg,
		model:    deps.Model,
		provider: deps.Provider,
		tools:    deps.Tools,
		systems:  deps.Systems,
		bus:      deps.Bus,
		logger:   logger.With("component", "agent", "role", string(profile.Role)),
	}
}

// NewNarrator creates the narrator agent.
func NewNarrator(cfg config.AgentConfig, deps Deps) *Agent {
	return New(NarratorProfile, cfg, deps)
}

// Role returns the role this agent serves.
func (a *Agent) Role() Role {
	return a.profile.Role
}
