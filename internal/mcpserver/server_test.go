package mcpserver

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tabletop/internal/dice"
	"tabletop/internal/eventbus"
	"tabletop/internal/gamesystem"
	"tabletop/internal/logging"
	"tabletop/internal/requestctx"
	"tabletop/internal/tool"
)

type fakeMembership struct {
	err error
}

func (m fakeMembership) IsMember(_ context.Context, campaignID, userID string) (bool, error) {
	if m.err != nil {
		return false, m.err
	}
	return campaignID == "camp-1" && userID == "alice", nil
}

func newTestServer(t *testing.T, membership fakeMembership) (*Server, *[]eventbus.ToolResult) {
	t.Helper()
	registry := tool.NewRegistry()
	require.NoError(t, registry.RegisterTool(tool.NewRollDice(gamesystem.Builtin(), dice.NewRoller(7))))

	var results []eventbus.ToolResult
	bus := eventbus.New()
	bus.Subscribe(eventbus.TopicToolResult, func(e eventbus.Event) {
		results = append(results, e.Payload.(eventbus.ToolResult))
	})

	return New(Deps{
		Registry:   registry,
		Systems:    gamesystem.Builtin(),
		Membership: membership,
		Bus:        bus,
		Logger:     logging.NewNop(),
	}), &results
}

func connect(t *testing.T, server *mcp.Server) *mcp.ClientSession {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)

	serverTransport, clientTransport := mcp.NewInMemoryTransports()
	serverSession, err := server.Connect(ctx, serverTransport, nil)
	require.NoError(t, err)
	t.Cleanup(func() { serverSession.Close() })

	client := mcp.NewClient(&mcp.Implementation{Name: "test-client", Version: "v0.0.1"}, nil)
	session, err := client.Connect(ctx, clientTransport, nil)
	require.NoError(t, err)
	t.Cleanup(func() { session.Close() })
	return session
}

func textOf(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	require.NotEmpty(t, res.Content)
	text, ok := res.Content[0].(*mcp.TextContent)
	require.True(t, ok)
	return text.Text
}

func TestListTools(t *testing.T) {
	s, _ := newTestServer(t, fakeMembership{})
	session := connect(t, s.NewMCPServer(tool.Context{CampaignID: "camp-1", GameSystem: "5E_2014", UserID: "alice"}))

	res, err := session.ListTools(context.Background(), &mcp.ListToolsParams{})
	require.NoError(t, err)
	require.Len(t, res.Tools, 1)
	assert.Equal(t, tool.RollDiceName, res.Tools[0].Name)
	assert.NotEmpty(t, res.Tools[0].Description)
}

func TestCallRollDice(t *testing.T) {
	s, results := newTestServer(t, fakeMembership{})
	session := connect(t, s.NewMCPServer(tool.Context{CampaignID: "camp-1", GameSystem: "5E_2014", UserID: "alice"}))

	res, err := session.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      tool.RollDiceName,
		Arguments: map[string]any{"notation": "2d6+1", "reason": "damage"},
	})
	require.NoError(t, err)
	assert.False(t, res.IsError)
	assert.True(t, strings.HasPrefix(textOf(t, res), "🎲 Rolled 2d6+1 for damage"), textOf(t, res))
	assert.NotNil(t, res.StructuredContent)

	require.Len(t, *results, 1)
	assert.Equal(t, tool.RollDiceName, (*results)[0].Tool)
	assert.False(t, (*results)[0].IsError)
}

func TestCallReportsToolFailure(t *testing.T) {
	s, results := newTestServer(t, fakeMembership{})
	session := connect(t, s.NewMCPServer(tool.Context{CampaignID: "camp-1", GameSystem: "5E_2014", UserID: "alice"}))

	res, err := session.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      tool.RollDiceName,
		Arguments: map[string]any{"notation": "banana"},
	})
	require.NoError(t, err)
	assert.True(t, res.IsError)
	assert.Contains(t, textOf(t, res), "banana")
	require.Len(t, *results, 1)
	assert.True(t, (*results)[0].IsError)
}

func withUser(h http.Handler, userID string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if userID != "" {
			r = r.WithContext(requestctx.WithUserID(r.Context(), userID))
		}
		h.ServeHTTP(w, r)
	})
}

func TestHandlerRejects(t *testing.T) {
	tests := []struct {
		name       string
		user       string
		campaign   string
		system     string
		membership fakeMembership
		want       int
	}{
		{"anonymous", "", "camp-1", "5E_2014", fakeMembership{}, http.StatusUnauthorized},
		{"missing headers", "alice", "", "", fakeMembership{}, http.StatusBadRequest},
		{"unknown system", "alice", "camp-1", "GURPS", fakeMembership{}, http.StatusBadRequest},
		{"not a member", "mallory", "camp-1", "5E_2014", fakeMembership{}, http.StatusForbidden},
		{"lookup failure", "alice", "camp-1", "5E_2014", fakeMembership{err: errors.New("db down")}, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, _ := newTestServer(t, tt.membership)
			req := httptest.NewRequest(http.MethodPost, "/mcp", strings.NewReader(`{}`))
			if tt.campaign != "" {
				req.Header.Set(CampaignHeader, tt.campaign)
			}
			if tt.system != "" {
				req.Header.Set(GameSystemHeader, tt.system)
			}
			rec := httptest.NewRecorder()
			withUser(s.Handler(), tt.user).ServeHTTP(rec, req)

			assert.Equal(t, tt.want, rec.Code)
			assert.Contains(t, rec.Body.String(), `"error"`)
		})
	}
}

type headerTransport struct {
	headers http.Header
	base    http.RoundTripper
}

func (h headerTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	r = r.Clone(r.Context())
	for k, v := range h.headers {
		r.Header[k] = v
	}
	return h.base.RoundTrip(r)
}

func TestStreamableHTTP(t *testing.T) {
	s, _ := newTestServer(t, fakeMembership{})
	srv := httptest.NewServer(withUser(s.Handler(), "alice"))
	defer srv.Close()

	headers := http.Header{}
	headers.Set(CampaignHeader, "camp-1")
	headers.Set(GameSystemHeader, "5E_2014")
	transport := &mcp.StreamableClientTransport{
		Endpoint:   srv.URL,
		HTTPClient: &http.Client{Transport: headerTransport{headers: headers, base: http.DefaultTransport}},
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	client := mcp.NewClient(&mcp.Implementation{Name: "test-client", Version: "v0.0.1"}, nil)
	session, err := client.Connect(ctx, transport, nil)
	require.NoError(t, err)
	defer session.Close()

	res, err := session.CallTool(ctx, &mcp.CallToolParams{
		Name:      tool.RollDiceName,
		Arguments: map[string]any{"notation": "1d20"},
	})
	require.NoError(t, err)
	assert.False(t, res.IsError)
	assert.Contains(t, textOf(t, res), "Dungeons & Dragons 5th Edition (2014)")
}
