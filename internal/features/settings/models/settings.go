package models

import (
	"strings"

	giveaway "giveaway-engine/internal/features/giveaway/models"
)

// GuildSettings holds the per-guild templates and toggles the lifecycle
// engine reads. It never writes them.
type GuildSettings struct {
	GuildID int64 `json:"guild_id"`

	// Message templates. Placeholders: {prize} {emoji} {winner} {winners_amount}
	// {host} {donor} {link} {timestamp}.
	StartMessage    string `json:"start_message"`
	EndMessage      string `json:"end_message"`
	WinnerDMMessage string `json:"winnerdm_message"`
	HostDMMessage   string `json:"hostdm_message"`
	ThankMessage    string `json:"thank_message"`

	// DM toggles.
	WinnerDM bool `json:"winnerdm"`
	HostDM   bool `json:"hostdm"`

	PingRoleID int64 `json:"ping_role_id"`
	EmbedColor int   `json:"embed_color"`

	// DefaultRules apply to every giveaway in the guild unless suppressed.
	DefaultRules *giveaway.RuleSet `json:"default_rules,omitempty"`

	// Multipliers grant extra entries per held role: role id -> bonus entries.
	Multipliers map[int64]int `json:"multipliers,omitempty"`
}

// Defaults returns the settings used until a guild configures its own.
func Defaults(guildID int64) *GuildSettings {
	return &GuildSettings{
		GuildID:         guildID,
		StartMessage:    "{emoji} **GIVEAWAY** {emoji}\nPrize: **{prize}**\nHosted by: {host}\nWinners: {winners_amount}\nEnds: {timestamp}",
		EndMessage:      "Congratulations {winner}! You won **{prize}**!\n{link}",
		WinnerDMMessage: "Congratulations! You won **{prize}**!\n{link}",
		HostDMMessage:   "Your giveaway for **{prize}** has ended.\nWinners: {winner}\n{link}",
		ThankMessage:    "Thanks to {donor} for donating **{prize}**!",
	}
}

// Render substitutes {placeholder} tokens in a template. Unknown tokens are
// left untouched.
func Render(template string, vars map[string]string) string {
	pairs := make([]string, 0, len(vars)*2)
	for k, v := range vars {
		pairs = append(pairs, "{"+k+"}", v)
	}
	return strings.NewReplacer(pairs...).Replace(template)
}
