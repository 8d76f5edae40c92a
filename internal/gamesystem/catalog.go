// Package gamesystem holds the static catalog of supported tabletop rule
// systems: display names, primary dice and the rules primer handed to agents.
package gamesystem

import (
	_ "embed"
	"errors"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed systems.yaml
var builtinYAML []byte

// ErrUnknownSystem is returned when a game system id is not in the catalog.
var ErrUnknownSystem = errors.New("unknown game system")

// System describes one supported tabletop rule system.
type System struct {
	ID            string   `yaml:"id" json:"id"`
	Name          string   `yaml:"name" json:"name"`
	Description   string   `yaml:"description" json:"description"`
	PrimaryDie    string   `yaml:"primaryDie" json:"primaryDie"`
	AbilityScores []string `yaml:"abilityScores" json:"abilityScores"`
	RulesPrompt   string   `yaml:"rulesPrompt" json:"rulesPrompt"`
	FGRulesetID   string   `yaml:"fgRulesetId" json:"fgRulesetId"`
}

// Catalog is an immutable, ordered set of systems keyed by id.
type Catalog struct {
	systems []System
	byID    map[string]int
	byFG    map[string]int
}

// Builtin parses the embedded catalog. The embedded file is part of the
// binary, so a parse failure is a programming error.
func Builtin() *Catalog {
	c, err := Parse(builtinYAML)
	if err != nil {
		panic(fmt.Sprintf("gamesystem: builtin catalog: %v", err))
	}
	return c
}

// Parse reads a YAML list of systems. Ids must be unique and non-empty, and
// every system needs a name and a rules primer.
func Parse(data []byte) (*Catalog, error) {
	var systems []System
	if err := yaml.Unmarshal(data, &systems); err != nil {
		return nil, fmt.Errorf("parse game systems: %w", err)
	}

	c := &Catalog{
		systems: make([]System, 0, len(systems)),
		byID:    make(map[string]int, len(systems)),
		byFG:    make(map[string]int, len(systems)),
	}
	for _, s := range systems {
		s.ID = strings.TrimSpace(s.ID)
		switch {
		case s.ID == "":
			return nil, fmt.Errorf("game system %q: id is required", s.Name)
		case s.Name == "":
			return nil, fmt.Errorf("game system %s: name is required", s.ID)
		case s.RulesPrompt == "":
			return nil, fmt.Errorf("game system %s: rulesPrompt is required", s.ID)
		}
		if _, dup := c.byID[s.ID]; dup {
			return nil, fmt.Errorf("game system %s: duplicate id", s.ID)
		}
		c.byID[s.ID] = len(c.systems)
		if s.FGRulesetID != "" {
			c.byFG[s.FGRulesetID] = len(c.systems)
		}
		c.systems = append(c.systems, s)
	}
	return c, nil
}

// Lookup returns the system with the given id.
func (c *Catalog) Lookup(id string) (System, error) {
	i, ok := c.byID[id]
	if !ok {
		return System{}, fmt.Errorf("%w: %q", ErrUnknownSystem, id)
	}
	return c.systems[i], nil
}

// ByFGRuleset finds a system by its Fantasy Grounds ruleset identifier.
func (c *Catalog) ByFGRuleset(rulesetID string) (System, error) {
	i, ok := c.byFG[rulesetID]
	if !ok {
		return System{}, fmt.Errorf("%w: no system for Fantasy Grounds ruleset %q", ErrUnknownSystem, rulesetID)
	}
	return c.systems[i], nil
}

// All returns every system in catalog order.
func (c *Catalog) All() []System {
	out := make([]System, len(c.systems))
	copy(out, c.systems)
	return out
}
