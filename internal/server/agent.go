package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"tabletop/internal/agent"
	"tabletop/internal/requestctx"
	"tabletop/internal/tool"
)

const maxBodyBytes = 1 << 20

type agentRequestBody struct {
	AgentRole string `json:"agentRole"`
	Message   string `json:"message"`
	Context   struct {
		CampaignID  string `json:"campaignId"`
		GameSystem  string `json:"gameSystem"`
		CharacterID string `json:"characterId,omitempty"`
	} `json:"context"`
	ConversationHistory []agent.Message `json:"conversationHistory,omitempty"`
}

func (b *agentRequestBody) complete() bool {
	return b.AgentRole != "" && b.Message != "" && b.Context.CampaignID != "" && b.Context.GameSystem != ""
}

func validHistory(history []agent.Message) bool {
	for _, m := range history {
		if m.Role != "user" && m.Role != "assistant" {
			return false
		}
	}
	return true
}

// handleAgent serves POST /api/agent. Checks run in a fixed order: the
// bearer token (middleware), the body, campaign membership, then the role.
func (s *Server) handleAgent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := requestctx.UserID(ctx)

	var body agentRequestBody
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	if !body.complete() {
		writeError(w, http.StatusBadRequest, "Missing required fields: agentRole, message, context.campaignId, context.gameSystem")
		return
	}
	if !validHistory(body.ConversationHistory) {
		writeError(w, http.StatusBadRequest, `Invalid conversationHistory: role must be "user" or "assistant"`)
		return
	}

	member, err := s.deps.Membership.IsMember(ctx, body.Context.CampaignID, userID)
	if err != nil {
		s.deps.Logger.Error("membership lookup failed",
			"campaign_id", body.Context.CampaignID, "user_id", userID, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to verify campaign membership")
		return
	}
	if !member {
		s.deny(w, http.StatusForbidden, "Not a member of this campaign", "not_member")
		return
	}

	role, err := agent.ParseRole(body.AgentRole)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("Unknown agent role: %q", body.AgentRole))
		return
	}

	resp, err := s.deps.Agents.Run(ctx, agent.Request{
		Role:    role,
		Message: body.Message,
		Context: tool.Context{
			CampaignID:  body.Context.CampaignID,
			GameSystem:  body.Context.GameSystem,
			UserID:      userID,
			CharacterID: body.Context.CharacterID,
		},
		History: body.ConversationHistory,
	})
	switch {
	case errors.Is(err, agent.ErrRoleNotImplemented):
		writeError(w, http.StatusNotImplemented, fmt.Sprintf("Agent role %q is not yet implemented", role))
	case errors.Is(err, agent.ErrUnknownRole):
		writeError(w, http.StatusBadRequest, fmt.Sprintf("Unknown agent role: %q", body.AgentRole))
	case err != nil:
		s.deps.Logger.Error("agent request failed",
			"role", role, "campaign_id", body.Context.CampaignID, "user_id", userID,
			"request_id", requestctx.RequestID(ctx), "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
	default:
		writeJSON(w, http.StatusOK, resp)
	}
}
