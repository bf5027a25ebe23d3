package repository

import (
	"context"

	"giveaway-engine/internal/features/settings/models"
)

// SettingsRepository persists per-guild settings.
type SettingsRepository interface {
	Get(ctx context.Context, guildID int64) (*models.GuildSettings, error)
	Set(ctx context.Context, settings *models.GuildSettings) error
}
