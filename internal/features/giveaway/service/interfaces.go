package service

import (
	"context"

	"giveaway-engine/internal/features/giveaway/models"
	settingsmodels "giveaway-engine/internal/features/settings/models"
)

// ChatClient is the chat-platform surface the engine needs. Implementations
// live under internal/platform.
type ChatClient interface {
	SendMessage(ctx context.Context, channelID int64, content string) (*models.Message, error)
	FetchMessage(ctx context.Context, channelID, messageID int64) (*models.Message, error)
	EditMessage(ctx context.Context, channelID, messageID int64, content string) error
	AddReaction(ctx context.Context, channelID, messageID int64, emoji string) error
	SendDM(ctx context.Context, userID int64, content string) error
	GuildMember(ctx context.Context, guildID, userID int64) (*models.Member, error)
	// ResolveChannel returns models.ErrChannelNotFound when the channel is gone.
	ResolveChannel(ctx context.Context, channelID int64) error
}

// SettingsStore is read-only access to per-guild configuration.
type SettingsStore interface {
	Guild(ctx context.Context, guildID int64) (*settingsmodels.GuildSettings, error)
}

// ReputationClient fetches external reputation scores.
type ReputationClient interface {
	Score(ctx context.Context, guildID, userID int64) (*models.Score, error)
}

// ActivityCounter reports how many messages a user sent since a giveaway
// started, keyed by the giveaway's message id.
type ActivityCounter interface {
	MessageCount(ctx context.Context, messageID, userID int64) (int64, error)
}

// MultiplierExpander duplicates entrant ids to grant bonus entries. The
// engine treats it as a pure function over the pool.
type MultiplierExpander interface {
	Expand(ctx context.Context, guildID int64, entrants []int64) ([]int64, error)
}

// Registry is the shared active-giveaway index, keyed by message id.
type Registry interface {
	AddActive(ctx context.Context, rec *models.Record) error
	RemoveActive(ctx context.Context, messageID int64) error
}
