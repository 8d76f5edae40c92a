package agent

import (
	"strings"

	"tabletop/internal/gamesystem"
)

// Profile is the fixed part of a role's system prompt.
type Profile struct {
	Role             Role
	Intro            string
	Responsibilities []string
}

// NarratorProfile describes the story-driving narrator.
var NarratorProfile = Profile{
	Role:  RoleNarrator,
	Intro: "You are the Narrator for a tabletop RPG session.",
	Responsibilities: []string{
		"Describe scenes, environments, and NPC actions vividly.",
		"Drive the story forward based on player input.",
		"When a narrative skill check or ability check is needed, use the roll-dice tool.",
		"Never roll dice for tactical combat; Fantasy Grounds handles that.",
		"Keep responses concise and immersive.",
	},
}

// SystemPrompt frames the profile with a game system's name and rules primer.
func (p Profile) SystemPrompt(system gamesystem.System) string {
	lines := []string{
		p.Intro,
		"Game system: " + system.Name + ".",
		strings.TrimSpace(system.RulesPrompt),
		"",
		"Your responsibilities:",
	}
	for _, r := range p.Responsibilities {
		lines = append(lines, "- "+r)
	}
	return strings.Join(lines, "\n")
}
