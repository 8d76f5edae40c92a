// Package mcpserver exposes the tool registry as a Model Context Protocol
// endpoint over streamable HTTP.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"tabletop/internal/campaign"
	"tabletop/internal/eventbus"
	"tabletop/internal/gamesystem"
	"tabletop/internal/tool"
)

const (
	serverName = "tabletop"

	CampaignHeader   = "X-Campaign-ID"
	GameSystemHeader = "X-Game-System"
	CharacterHeader  = "X-Character-ID"
)

var errArgumentsNotObject = errors.New("arguments must be a JSON object")

// SystemLookup resolves a game-system id.
type SystemLookup interface {
	Lookup(id string) (gamesystem.System, error)
}

// Server builds MCP servers bound to one caller's tool context.
type Server struct {
	registry   *tool.Registry
	systems    SystemLookup
	membership campaign.Membership
	bus        *eventbus.Bus
	logger     *slog.Logger
	version    string
}

// Deps are the collaborators of the MCP endpoint.
type Deps struct {
	Registry   *tool.Registry
	Systems    SystemLookup
	Membership campaign.Membership
	Bus        *eventbus.Bus
	Logger     *slog.Logger
	Version    string
}

func New(deps Deps) *Server {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Version == "" {
		deps.Version = "dev"
	}
	return &Server{
		registry:   deps.Registry,
		systems:    deps.Systems,
		membership: deps.Membership,
		bus:        deps.Bus,
		logger:     deps.Logger,
		version:    deps.Version,
	}
}

// NewMCPServer returns an MCP server whose tools all run with tc.
func (s *Server) NewMCPServer(tc tool.Context) *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{Name: serverName, Version: s.version}, nil)
	for _, def := range s.registry.Definitions() {
		server.AddTool(mcpTool(def), s.handler(def.Name, tc))
	}
	return server
}

func mcpTool(def tool.Definition) *mcp.Tool {
	schema := def.InputSchema
	if len(schema) == 0 {
		schema = json.RawMessage(`{"type":"object"}`)
	}
	return &mcp.Tool{
		Name:        def.Name,
		Description: def.Description,
		InputSchema: schema,
	}
}

func (s *Server) handler(name string, tc tool.Context) mcp.ToolHandler {
	return func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		start := time.Now()
		var res tool.Result
		args, err := decodeArguments(req.Params.Arguments)
		if err != nil {
			res = tool.Failure("Tool \"%s\" failed: %v", name, err)
		} else {
			res = s.registry.Execute(ctx, tool.Call{Name: name, Arguments: args}, tc)
		}

		s.bus.Publish(eventbus.TopicToolResult, eventbus.ToolResult{
			Tool:     name,
			IsError:  res.IsError(),
			Duration: time.Since(start),
		})
		s.logger.Debug("mcp tool call",
			"tool", name, "campaign_id", tc.CampaignID, "user_id", tc.UserID, "is_error", res.IsError())

		return toCallToolResult(res), nil
	}
}

func decodeArguments(raw json.RawMessage) (map[string]any, error) {
	args := map[string]any{}
	if len(raw) == 0 || string(raw) == "null" {
		return args, nil
	}
	if err := json.Unmarshal(raw, &args); err != nil {
		return nil, errArgumentsNotObject
	}
	return args, nil
}

func toCallToolResult(res tool.Result) *mcp.CallToolResult {
	out := &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: res.Text()}},
		IsError: res.IsError(),
	}
	if !res.IsError() && res.Data != nil {
		out.StructuredContent = res.Data
	}
	return out
}
