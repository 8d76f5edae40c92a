package tool

import (
	"context"
	"encoding/json"
	"strings"

	"tabletop/internal/dice"
	"tabletop/internal/gamesystem"
)

// RollDiceName is the registered name of the dice tool.
const RollDiceName = "roll-dice"

var rollDiceSchema = json.RawMessage(`{
	"type": "object",
	"properties": {
		"notation": {
			"type": "string",
			"description": "Dice notation string, e.g. \"1d20+5\", \"2d6\", \"1d100\""
		},
		"reason": {
			"type": "string",
			"description": "Why the roll is being made, e.g. \"Perception check to notice the hidden door\""
		}
	},
	"required": ["notation"]
}`)

// SystemLookup resolves a game system id.
type SystemLookup interface {
	Lookup(id string) (gamesystem.System, error)
}

// RollDice rolls narrative dice: skill checks, ability checks and other
// non-combat rolls. Tactical combat dice belong to Fantasy Grounds.
type RollDice struct {
	systems SystemLookup
	roller  *dice.Roller
}

// NewRollDice creates the dice tool.
func NewRollDice(systems SystemLookup, roller *dice.Roller) *RollDice {
	return &RollDice{systems: systems, roller: roller}
}

func (t *RollDice) Definition() Definition {
	return Definition{
		Name: RollDiceName,
		Description: "Roll dice for narrative skill checks, ability checks, and other non-combat rolls. " +
			"Fantasy Grounds handles tactical combat dice; use this tool only for narrative play.",
		InputSchema: rollDiceSchema,
	}
}

func (t *RollDice) Execute(_ context.Context, args map[string]any, tc Context) (Result, error) {
	notation, _ := args["notation"].(string)
	if strings.TrimSpace(notation) == "" {
		return Failure(`Missing or invalid "notation" argument. Expected a dice string like "1d20+5".`), nil
	}

	system, err := t.systems.Lookup(tc.GameSystem)
	if err != nil {
		return Result{}, err
	}

	n, err := dice.Parse(notation)
	if err != nil {
		return Failure("%v", err), nil
	}

	out := t.roller.Roll(n)

	var reasonData any
	reason, _ := args["reason"].(string)
	if reason != "" {
		reasonData = reason
	}

	return Result{
		Content: out.Format(n, reason, system.Name),
		Data: map[string]any{
			"notation":   n.Notation,
			"rolls":      out.Rolls,
			"modifier":   n.Modifier,
			"total":      out.Total,
			"reason":     reasonData,
			"gameSystem": system.ID,
		},
	}, nil
}
