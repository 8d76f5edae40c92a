package mcpserver

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"tabletop/internal/eventbus"
	"tabletop/internal/requestctx"
	"tabletop/internal/tool"
)

type toolContextKey struct{}

// Handler serves MCP over streamable HTTP. Each request must already be
// authenticated; the campaign and game system come from request headers
// and the caller must belong to the campaign.
func (s *Server) Handler() http.Handler {
	streamable := mcp.NewStreamableHTTPHandler(func(r *http.Request) *mcp.Server {
		tc, ok := r.Context().Value(toolContextKey{}).(tool.Context)
		if !ok {
			return nil
		}
		return s.NewMCPServer(tc)
	}, &mcp.StreamableHTTPOptions{Stateless: true, JSONResponse: true})

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tc, status, msg := s.resolve(r)
		if status != http.StatusOK {
			writeError(w, status, msg)
			return
		}
		ctx := context.WithValue(r.Context(), toolContextKey{}, tc)
		streamable.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) resolve(r *http.Request) (tool.Context, int, string) {
	ctx := r.Context()
	tc := tool.Context{
		CampaignID:  r.Header.Get(CampaignHeader),
		GameSystem:  r.Header.Get(GameSystemHeader),
		CharacterID: r.Header.Get(CharacterHeader),
		UserID:      requestctx.UserID(ctx),
	}
	if tc.UserID == "" {
		return tc, http.StatusUnauthorized, "Unauthorized"
	}
	if tc.CampaignID == "" || tc.GameSystem == "" {
		return tc, http.StatusBadRequest, "Missing required headers: " + CampaignHeader + ", " + GameSystemHeader
	}
	if _, err := s.systems.Lookup(tc.GameSystem); err != nil {
		return tc, http.StatusBadRequest, err.Error()
	}

	member, err := s.membership.IsMember(ctx, tc.CampaignID, tc.UserID)
	if err != nil {
		s.logger.Error("membership lookup failed", "campaign_id", tc.CampaignID, "user_id", tc.UserID, "error", err)
		return tc, http.StatusInternalServerError, "Failed to verify campaign membership"
	}
	if !member {
		s.bus.Publish(eventbus.TopicAccessDenied, eventbus.AccessDenied{Reason: "not_member"})
		return tc, http.StatusForbidden, "Not a member of this campaign"
	}
	return tc, http.StatusOK, ""
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
