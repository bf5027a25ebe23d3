package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"

	"giveaway-engine/internal/features/settings/models"
	"giveaway-engine/internal/features/settings/repository"
)

const keyPrefixSettings = "guild:settings:"

type redisRepository struct {
	client *redis.Client
}

func NewRedisSettingsRepository(client *redis.Client) repository.SettingsRepository {
	return &redisRepository{client: client}
}

func makeSettingsKey(guildID int64) string {
	return keyPrefixSettings + strconv.FormatInt(guildID, 10)
}

// Get returns the stored settings for a guild, or the defaults when none
// were ever saved.
func (r *redisRepository) Get(ctx context.Context, guildID int64) (*models.GuildSettings, error) {
	data, err := r.client.Get(ctx, makeSettingsKey(guildID)).Bytes()
	if err == redis.Nil {
		return models.Defaults(guildID), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get guild settings: %w", err)
	}

	var settings models.GuildSettings
	if err := json.Unmarshal(data, &settings); err != nil {
		return nil, fmt.Errorf("failed to unmarshal guild settings: %w", err)
	}
	return &settings, nil
}

func (r *redisRepository) Set(ctx context.Context, settings *models.GuildSettings) error {
	data, err := json.Marshal(settings)
	if err != nil {
		return fmt.Errorf("failed to marshal guild settings: %w", err)
	}
	return r.client.Set(ctx, makeSettingsKey(settings.GuildID), data, 0).Err()
}
