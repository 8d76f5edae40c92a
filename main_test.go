package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	t.Cleanup(func() { rootCmd.SetArgs(nil) })
	err := rootCmd.Execute()
	return out.String(), err
}

func TestRollCommand(t *testing.T) {
	out, err := run(t, "roll", "1d1+2", "--seed", "1", "--reason", "stealth")
	require.NoError(t, err)
	assert.Contains(t, out, "Rolled 1d1+2 for stealth")
	assert.Contains(t, out, "= **3**")
}

func TestRollCommandRejectsBadNotation(t *testing.T) {
	_, err := run(t, "roll", "banana", "--seed", "1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "banana")
}

func TestSystemsCommand(t *testing.T) {
	out, err := run(t, "systems")
	require.NoError(t, err)
	assert.Contains(t, out, "5E_2014")
	assert.Contains(t, out, "CYBERPUNK_2020")
	assert.Contains(t, out, "FANTASY GROUNDS")
}

func TestSystemsCommandByFantasyGroundsRuleset(t *testing.T) {
	t.Cleanup(func() { _ = systemsCmd.Flags().Set("fg", "") })

	out, err := run(t, "systems", "--fg", "CP2020")
	require.NoError(t, err)
	assert.Contains(t, out, "CYBERPUNK_2020")
	assert.NotContains(t, out, "5E_2014")

	_, err = run(t, "systems", "--fg", "NOPE")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "NOPE")
}
