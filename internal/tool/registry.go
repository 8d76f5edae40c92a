package tool

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"
)

var (
	// ErrDuplicateTool is returned when a tool name is registered twice.
	ErrDuplicateTool = errors.New("duplicate tool")
	// ErrInvalidTool is returned for a definition that cannot be registered.
	ErrInvalidTool = errors.New("invalid tool")
)

type entry struct {
	def     Definition
	handler Handler
	schema  *gojsonschema.Schema
}

// Registry manages available tools. Registration is expected to happen once
// at startup; after that the registry is only read.
type Registry struct {
	mu      sync.RWMutex
	entries []*entry
	byName  map[string]*entry
}

// NewRegistry creates an empty tool registry.
func NewRegistry() *Registry {
	return &Registry{
		byName: make(map[string]*entry),
	}
}

// Register adds a tool. The name must be unique; a collision leaves the
// first registration in place.
func (r *Registry) Register(def Definition, h Handler) error {
	if strings.TrimSpace(def.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidTool)
	}
	if h == nil {
		return fmt.Errorf("%w: %s: handler is nil", ErrInvalidTool, def.Name)
	}
	schema, err := compileSchema(def.InputSchema)
	if err != nil {
		return fmt.Errorf("%w: %s: input schema: %v", ErrInvalidTool, def.Name, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.byName[def.Name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateTool, def.Name)
	}
	e := &entry{def: cloneDefinition(def), handler: h, schema: schema}
	r.entries = append(r.entries, e)
	r.byName[def.Name] = e
	return nil
}

// RegisterTool adds a Tool implementation.
func (r *Registry) RegisterTool(t Tool) error {
	return r.Register(t.Definition(), t.Execute)
}

// Definitions returns tool definitions in registration order.
func (r *Registry) Definitions() []Definition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	defs := make([]Definition, len(r.entries))
	for i, e := range r.entries {
		defs[i] = cloneDefinition(e.def)
	}
	return defs
}

// Names returns the registered tool names in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.namesLocked()
}

func (r *Registry) namesLocked() []string {
	names := make([]string, len(r.entries))
	for i, e := range r.entries {
		names[i] = e.def.Name
	}
	return names
}

// Execute runs the named tool. Every outcome, including an unknown name,
// invalid arguments, a handler error or a handler panic, comes back as a
// Result; Execute itself never fails.
func (r *Registry) Execute(ctx context.Context, call Call, tc Context) (res Result) {
	r.mu.RLock()
	e, ok := r.byName[call.Name]
	var available []string
	if !ok {
		available = r.namesLocked()
	}
	r.mu.RUnlock()

	if !ok {
		return Failure("Unknown tool: %s. Available tools: %s", call.Name, strings.Join(available, ", "))
	}

	defer func() {
		if p := recover(); p != nil {
			res = toolFailed(call.Name, fmt.Errorf("panic: %v", p))
		}
	}()

	if err := validateArgs(e.schema, call.Arguments); err != nil {
		return toolFailed(call.Name, err)
	}

	args := call.Arguments
	if args == nil {
		args = map[string]any{}
	}
	out, err := e.handler(ctx, args, tc)
	if err != nil {
		return toolFailed(call.Name, err)
	}
	return out
}

func toolFailed(name string, err error) Result {
	return Failure("Tool \"%s\" failed: %v", name, err)
}

func cloneDefinition(d Definition) Definition {
	if d.InputSchema != nil {
		d.InputSchema = append([]byte(nil), d.InputSchema...)
	}
	return d
}
