package agent

import (
	"context"
	"errors"
	"fmt"
)

// Role names an agent persona.
type Role string

const (
	RoleNarrator         Role = "narrator"
	RoleRulesArbiter     Role = "rules_arbiter"
	RoleNPCDialogue      Role = "npc_dialogue"
	RoleLoreKeeper       Role = "lore_keeper"
	RoleEncounterBuilder Role = "encounter_builder"
)

var (
	// ErrUnknownRole is returned for a role name outside the known set.
	ErrUnknownRole = errors.New("unknown agent role")
	// ErrRoleNotImplemented is returned for a known role with no agent behind it.
	ErrRoleNotImplemented = errors.New("agent role not implemented")
)

var knownRoles = []Role{
	RoleNarrator,
	RoleRulesArbiter,
	RoleNPCDialogue,
	RoleLoreKeeper,
	RoleEncounterBuilder,
}

// ParseRole validates a role name.
func ParseRole(s string) (Role, error) {
	for _, r := range knownRoles {
		if string(r) == s {
			return r, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownRole, s)
}

// Roles returns every known role.
func Roles() []Role {
	out := make([]Role, len(knownRoles))
	copy(out, knownRoles)
	return out
}

// Runner handles requests for one role.
type Runner interface {
	Run(ctx context.Context, req Request) (*Response, error)
}

// Dispatcher routes a request to the agent registered for its role.
type Dispatcher struct {
	runners map[Role]Runner
}

// NewDispatcher creates an empty dispatcher.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{runners: make(map[Role]Runner)}
}

// Register binds a runner to a role, replacing any previous binding.
func (d *Dispatcher) Register(role Role, r Runner) {
	d.runners[role] = r
}

// Implemented reports whether a runner is bound to role.
func (d *Dispatcher) Implemented(role Role) bool {
	_, ok := d.runners[role]
	return ok
}

// Run dispatches req by its role.
func (d *Dispatcher) Run(ctx context.Context, req Request) (*Response, error) {
	r, ok := d.runners[req.Role]
	if !ok {
		if _, err := ParseRole(string(req.Role)); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %s", ErrRoleNotImplemented, req.Role)
	}
	return r.Run(ctx, req)
}
