package service

import (
	"context"

	"giveaway-engine/internal/common/logger"
	giveaway "giveaway-engine/internal/features/giveaway/models"
	"giveaway-engine/internal/features/settings/models"
	"giveaway-engine/internal/features/settings/repository"
)

// MemberSource resolves guild members, needed to check multiplier roles.
type MemberSource interface {
	GuildMember(ctx context.Context, guildID, userID int64) (*giveaway.Member, error)
}

// Service exposes guild settings and entry-multiplier expansion.
type Service struct {
	repo    repository.SettingsRepository
	members MemberSource
}

func NewService(repo repository.SettingsRepository, members MemberSource) *Service {
	return &Service{repo: repo, members: members}
}

// Guild returns the settings for a guild, falling back to defaults.
func (s *Service) Guild(ctx context.Context, guildID int64) (*models.GuildSettings, error) {
	return s.repo.Get(ctx, guildID)
}

// Update stores new settings for a guild.
func (s *Service) Update(ctx context.Context, settings *models.GuildSettings) error {
	return s.repo.Set(ctx, settings)
}

// Expand applies the guild's role multipliers to an entrant pool by
// duplicating entrant ids, one extra copy per bonus entry. Members that can
// no longer be resolved keep their single base entry.
func (s *Service) Expand(ctx context.Context, guildID int64, entrants []int64) ([]int64, error) {
	settings, err := s.repo.Get(ctx, guildID)
	if err != nil {
		return nil, err
	}
	if len(settings.Multipliers) == 0 || len(entrants) == 0 {
		return entrants, nil
	}

	expanded := make([]int64, 0, len(entrants))
	for _, id := range entrants {
		expanded = append(expanded, id)

		member, err := s.members.GuildMember(ctx, guildID, id)
		if err != nil {
			logger.Debug().
				Int64("guild_id", guildID).
				Int64("user_id", id).
				Err(err).
				Msg("Skipping multipliers for unresolvable member")
			continue
		}

		for roleID, bonus := range settings.Multipliers {
			if _, ok := member.HasAnyRole([]int64{roleID}); !ok {
				continue
			}
			for i := 0; i < bonus; i++ {
				expanded = append(expanded, id)
			}
		}
	}
	return expanded, nil
}
