package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRenderSubstitutesPlaceholders(t *testing.T) {
	got := Render("{emoji} {prize} by {host}", map[string]string{
		"emoji": "🎉",
		"prize": "Nitro",
		"host":  "<@400>",
	})
	assert.Equal(t, "🎉 Nitro by <@400>", got)
}

func TestRenderLeavesUnknownTokens(t *testing.T) {
	got := Render("win {prize} {unknown}", map[string]string{"prize": "Nitro"})
	assert.Equal(t, "win Nitro {unknown}", got)
}

func TestDefaults(t *testing.T) {
	s := Defaults(300)
	assert.Equal(t, int64(300), s.GuildID)
	assert.Contains(t, s.StartMessage, "{prize}")
	assert.Contains(t, s.EndMessage, "{winner}")
	assert.False(t, s.WinnerDM)
	assert.False(t, s.HostDM)
	assert.Nil(t, s.DefaultRules)
}
