// Package campaign stores campaigns and their members, and answers the
// membership question every agent request depends on.
package campaign

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a campaign does not exist.
var ErrNotFound = errors.New("campaign not found")

// Campaign is a tabletop campaign played under one game system.
type Campaign struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	GameSystem string    `json:"gameSystem,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Member links a user to a campaign.
type Member struct {
	CampaignID string    `json:"campaignId"`
	UserID     string    `json:"userId"`
	Role       string    `json:"role"` // "gm" or "player"
	JoinedAt   time.Time `json:"joinedAt"`
}

// Membership answers whether a user belongs to a campaign.
type Membership interface {
	IsMember(ctx context.Context, campaignID, userID string) (bool, error)
}
