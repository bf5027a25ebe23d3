package service

import (
	"context"
	"fmt"

	"giveaway-engine/internal/common/logger"
	"giveaway-engine/internal/features/giveaway/models"
	"giveaway-engine/internal/utils/random"
)

// Reroll draws replacement winners from an ended giveaway's recorded
// entrants, re-expanded by the guild multipliers, and announces them. Unlike
// the end-of-giveaway selection the winners are distinct: duplicate pool
// copies from multiplier expansion only raise a member's odds. Every drawn
// copy leaves the pool, eligible or not, so the attempts are bounded by the
// pool size and the result is bounded by the distinct entrants; it can fall
// short of count. The new winners replace the recorded ones on the snapshot.
func (e *Engine) Reroll(ctx context.Context, ended *models.EndedGiveaway, count int) ([]int64, error) {
	if count <= 0 {
		count = 1
	}

	if err := e.chat.ResolveChannel(ctx, ended.ChannelID); err != nil {
		return nil, fmt.Errorf("channel %d: %w", ended.ChannelID, models.ErrChannelNotFound)
	}

	// A vanished announcement message makes the reroll a no-op: notify the
	// channel and stop without touching the snapshot.
	if _, err := e.chat.FetchMessage(ctx, ended.ChannelID, ended.MessageID); err != nil {
		logger.Warn().Int64("message_id", ended.MessageID).Err(err).Msg("Giveaway message unresolvable, skipping reroll")
		content := fmt.Sprintf("Can't find message with id: %d.", ended.MessageID)
		if _, err := e.chat.SendMessage(ctx, ended.ChannelID, content); err != nil {
			logger.Warn().Int64("message_id", ended.MessageID).Err(err).Msg("Failed to announce lost message")
		}
		return nil, nil
	}

	rules, err := e.effectiveRules(ctx, &ended.Giveaway)
	if err != nil {
		return nil, err
	}

	pool := ended.Entrants()
	if !ended.Flags.NoMulti {
		pool, err = e.expander.Expand(ctx, ended.GuildID, pool)
		if err != nil {
			return nil, fmt.Errorf("failed to expand entrant pool: %w", err)
		}
	}
	winners := []int64{}
	for len(winners) < count && len(pool) > 0 {
		i, err := random.Index(len(pool))
		if err != nil {
			return nil, fmt.Errorf("failed to draw winner: %w", err)
		}
		id := pool[i]
		pool = append(pool[:i], pool[i+1:]...)

		if containsID(winners, id) {
			continue
		}

		member, err := e.chat.GuildMember(ctx, ended.GuildID, id)
		if err != nil {
			logger.Debug().
				Int64("message_id", ended.MessageID).
				Int64("user_id", id).
				Err(err).
				Msg("Discarding draw of unresolvable member")
			continue
		}

		verdict, err := e.eval.Evaluate(ctx, &ended.Giveaway, rules, member)
		if err != nil {
			return nil, err
		}
		if !verdict.Allowed {
			continue
		}

		winners = append(winners, id)
	}

	ended.SetWinners(winners)

	var content string
	switch {
	case len(winners) == 0:
		content = "There weren't enough eligible entrants to pick a new winner."
	case len(winners) < count:
		content = fmt.Sprintf(
			"There weren't enough eligible entrants to pick %d new winners.\n"+
				"**New winners:** %s", count, ended.WinnersText())
	default:
		content = fmt.Sprintf("**New winners:** %s", ended.WinnersText())
	}
	if _, err := e.chat.SendMessage(ctx, ended.ChannelID, content); err != nil {
		logger.Warn().Int64("message_id", ended.MessageID).Err(err).Msg("Failed to announce reroll")
	}

	logger.Info().
		Int64("message_id", ended.MessageID).
		Int64("guild_id", ended.GuildID).
		Int("requested", count).
		Int("picked", len(winners)).
		Msg("Giveaway rerolled")
	return winners, nil
}
