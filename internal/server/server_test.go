package server

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tabletop/internal/agent"
	"tabletop/internal/config"
	"tabletop/internal/eventbus"
	"tabletop/internal/gamesystem"
	"tabletop/internal/logging"
	"tabletop/internal/security"
)

type fakeMembership struct {
	members map[string]bool
	err     error
	calls   int
}

func (m *fakeMembership) IsMember(_ context.Context, campaignID, userID string) (bool, error) {
	m.calls++
	if m.err != nil {
		return false, m.err
	}
	return m.members[campaignID+"/"+userID], nil
}

type fakeNarrator struct {
	err      error
	requests []agent.Request
	deadline bool
}

func (f *fakeNarrator) Run(ctx context.Context, req agent.Request) (*agent.Response, error) {
	f.requests = append(f.requests, req)
	_, f.deadline = ctx.Deadline()
	if f.err != nil {
		return nil, f.err
	}
	return &agent.Response{Content: "The tavern door creaks open.", AgentRole: agent.RoleNarrator}, nil
}

type fixture struct {
	server     *Server
	narrator   *fakeNarrator
	membership *fakeMembership
	auth       *security.JWTAuthenticator
	denied     []string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	auth, err := security.NewJWTAuthenticator("test-secret", "tabletop")
	require.NoError(t, err)

	f := &fixture{
		narrator:   &fakeNarrator{},
		membership: &fakeMembership{members: map[string]bool{"camp-1/alice": true}},
		auth:       auth,
	}

	dispatcher := agent.NewDispatcher()
	dispatcher.Register(agent.RoleNarrator, f.narrator)

	bus := eventbus.New()
	bus.Subscribe(eventbus.TopicAccessDenied, func(e eventbus.Event) {
		f.denied = append(f.denied, e.Payload.(eventbus.AccessDenied).Reason)
	})

	f.server = New(config.Defaults(), Deps{
		Agents:     dispatcher,
		Membership: f.membership,
		Auth:       auth,
		Systems:    gamesystem.Builtin(),
		Bus:        bus,
		Logger:     logging.NewNop(),
		Metrics: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte("metrics"))
		}),
	})
	return f
}

func (f *fixture) token(t *testing.T, userID string) string {
	t.Helper()
	tok, err := f.auth.Issue(userID, time.Hour)
	require.NoError(t, err)
	return tok
}

func (f *fixture) post(t *testing.T, userID, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/agent", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if userID != "" {
		req.Header.Set("Authorization", "Bearer "+f.token(t, userID))
	}
	rec := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(rec, req)
	return rec
}

func errorOf(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body errorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body.Error
}

const validBody = `{
  "agentRole": "narrator",
  "message": "I push open the tavern door.",
  "context": {"campaignId": "camp-1", "gameSystem": "5E_2014", "characterId": "char-9"},
  "conversationHistory": [
    {"role": "user", "content": "We arrive in town."},
    {"role": "assistant", "content": "Rain lashes the cobbles."}
  ]
}`

func TestAgentSuccess(t *testing.T) {
	f := newFixture(t)
	rec := f.post(t, "alice", validBody)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{"content":"The tavern door creaks open.","agentRole":"narrator"}`, rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	require.Len(t, f.narrator.requests, 1)
	req := f.narrator.requests[0]
	assert.Equal(t, "I push open the tavern door.", req.Message)
	assert.Equal(t, "camp-1", req.Context.CampaignID)
	assert.Equal(t, "5E_2014", req.Context.GameSystem)
	assert.Equal(t, "alice", req.Context.UserID)
	assert.Equal(t, "char-9", req.Context.CharacterID)
	assert.Len(t, req.History, 2)
	assert.True(t, f.narrator.deadline)
}

func TestAgentUnauthenticated(t *testing.T) {
	f := newFixture(t)

	rec := f.post(t, "", validBody)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Unauthorized", errorOf(t, rec))

	req := httptest.NewRequest(http.MethodPost, "/api/agent", strings.NewReader(validBody))
	req.Header.Set("Authorization", "Bearer not-a-token")
	rec = httptest.NewRecorder()
	f.server.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	assert.Equal(t, []string{"missing_token", "invalid_token"}, f.denied)
	assert.Zero(t, f.membership.calls)
}

func TestAgentBadRequests(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name string
		body string
		want string
	}{
		{"invalid json", `{"agentRole":`, "Invalid JSON body"},
		{"missing game system", `{"agentRole":"narrator","message":"hi","context":{"campaignId":"camp-1"}}`,
			"Missing required fields: agentRole, message, context.campaignId, context.gameSystem"},
		{"missing role", `{"message":"hi","context":{"campaignId":"camp-1","gameSystem":"5E_2014"}}`,
			"Missing required fields: agentRole, message, context.campaignId, context.gameSystem"},
		{"missing context", `{"agentRole":"narrator","message":"hi"}`,
			"Missing required fields: agentRole, message, context.campaignId, context.gameSystem"},
		{"bad history role", `{"agentRole":"narrator","message":"hi","context":{"campaignId":"camp-1","gameSystem":"5E_2014"},"conversationHistory":[{"role":"system","content":"x"}]}`,
			`Invalid conversationHistory: role must be "user" or "assistant"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.post(t, "alice", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, tt.want, errorOf(t, rec))
		})
	}
	assert.Zero(t, f.membership.calls)
	assert.Empty(t, f.narrator.requests)
}

func TestAgentNonMember(t *testing.T) {
	f := newFixture(t)
	rec := f.post(t, "mallory", validBody)

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "Not a member of this campaign", errorOf(t, rec))
	assert.Equal(t, []string{"not_member"}, f.denied)
	assert.Empty(t, f.narrator.requests)
}

func TestAgentMembershipFailure(t *testing.T) {
	f := newFixture(t)
	f.membership.err = errors.New("database is locked")

	rec := f.post(t, "alice", validBody)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "Failed to verify campaign membership", errorOf(t, rec))
	assert.Empty(t, f.narrator.requests)
}

func TestAgentRoles(t *testing.T) {
	f := newFixture(t)

	body := strings.Replace(validBody, `"narrator"`, `"rules_arbiter"`, 1)
	rec := f.post(t, "alice", body)
	assert.Equal(t, http.StatusNotImplemented, rec.Code)
	assert.Equal(t, `Agent role "rules_arbiter" is not yet implemented`, errorOf(t, rec))

	body = strings.Replace(validBody, `"narrator"`, `"bard"`, 1)
	rec = f.post(t, "alice", body)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, `Unknown agent role: "bard"`, errorOf(t, rec))

	assert.Empty(t, f.narrator.requests)
}

func TestAgentFailure(t *testing.T) {
	f := newFixture(t)
	f.narrator.err = agent.ErrUnknownGameSystem

	rec := f.post(t, "alice", validBody)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "unknown game system", errorOf(t, rec))
}

func TestRequestIDPropagates(t *testing.T) {
	f := newFixture(t)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	rec := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "abc-123", rec.Header().Get("X-Request-ID"))
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestGameSystems(t *testing.T) {
	f := newFixture(t)

	rec := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/game-systems", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/game-systems", nil)
	req.Header.Set("Authorization", "Bearer "+f.token(t, "alice"))
	rec = httptest.NewRecorder()
	f.server.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var systems []gamesystem.System
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &systems))
	assert.Len(t, systems, 12)
}

func TestMetricsRoute(t *testing.T) {
	f := newFixture(t)
	rec := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, "metrics", rec.Body.String())
}

func TestServeShutsDownOnCancel(t *testing.T) {
	f := newFixture(t)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.server.Serve(ctx, ln) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + ln.Addr().String() + "/healthz")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}
