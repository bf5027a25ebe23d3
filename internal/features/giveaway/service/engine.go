package service

import (
	"context"
	"fmt"
	"strconv"

	"giveaway-engine/internal/common/logger"
	"giveaway-engine/internal/features/giveaway/models"
	settingsmodels "giveaway-engine/internal/features/settings/models"
	"giveaway-engine/internal/utils/random"
)

// EntryResult is the outcome of an entry attempt. Rejections are expected
// results, returned as values with a displayable reason.
type EntryResult struct {
	Accepted       bool   `json:"accepted"`
	AlreadyEntered bool   `json:"already_entered,omitempty"`
	Reason         string `json:"reason,omitempty"`
}

// Engine drives a giveaway through its scheduled, active and ended states.
// It is the single writer of a giveaway's entrant set and winner list while
// the event is live; collaborators are injected, never reached for globally.
type Engine struct {
	chat     ChatClient
	settings SettingsStore
	registry Registry
	expander MultiplierExpander
	eval     *Evaluator
}

func NewEngine(chat ChatClient, settings SettingsStore, registry Registry, expander MultiplierExpander, eval *Evaluator) *Engine {
	return &Engine{
		chat:     chat,
		settings: settings,
		registry: registry,
		expander: expander,
		eval:     eval,
	}
}

// Start publishes the giveaway and opens it for entry. The announcement
// message replaces any previously published one, so the giveaway is re-keyed
// in the registry under the new message id.
func (e *Engine) Start(ctx context.Context, g *models.Giveaway) error {
	if g.Ended() {
		return fmt.Errorf("giveaway %d: %w", g.MessageID, models.ErrAlreadyEnded)
	}

	settings, err := e.settings.Guild(ctx, g.GuildID)
	if err != nil {
		return fmt.Errorf("failed to load guild settings: %w", err)
	}

	if err := e.chat.ResolveChannel(ctx, g.ChannelID); err != nil {
		return fmt.Errorf("channel %d: %w", g.ChannelID, models.ErrChannelNotFound)
	}

	content := settingsmodels.Render(settings.StartMessage, map[string]string{
		"prize":          g.Prize,
		"emoji":          g.Emoji,
		"host":           mention(g.HostID),
		"donor":          mention(g.Flags.DonorOrHost(g.HostID)),
		"winners_amount": strconv.Itoa(g.WinnerCount),
		"timestamp":      fmt.Sprintf("<t:%d:R>", g.EndsAt.Unix()),
		"link":           g.JumpURL(),
	})

	oldID := g.MessageID
	msg, err := e.chat.SendMessage(ctx, g.ChannelID, content)
	if err != nil {
		return fmt.Errorf("failed to publish giveaway: %w", err)
	}

	if err := e.chat.AddReaction(ctx, g.ChannelID, msg.ID, g.Emoji); err != nil {
		logger.Warn().Int64("message_id", msg.ID).Err(err).Msg("Failed to add entry reaction")
	}

	if err := e.registry.RemoveActive(ctx, oldID); err != nil {
		logger.Warn().Int64("message_id", oldID).Err(err).Msg("Failed to deregister old message id")
	}
	g.MessageID = msg.ID
	if err := e.registry.AddActive(ctx, g.Record()); err != nil {
		return fmt.Errorf("failed to register giveaway: %w", err)
	}

	e.applyStartFlags(ctx, g, settings)

	logger.Info().
		Int64("message_id", g.MessageID).
		Int64("guild_id", g.GuildID).
		Str("prize", g.Prize).
		Msg("Giveaway started")
	return nil
}

func (e *Engine) applyStartFlags(ctx context.Context, g *models.Giveaway, settings *settingsmodels.GuildSettings) {
	if g.Flags.PingOnStart {
		content := "No ping role configured for this guild."
		if settings.PingRoleID != 0 {
			content = fmt.Sprintf("<@&%d>", settings.PingRoleID)
		}
		if _, err := e.chat.SendMessage(ctx, g.ChannelID, content); err != nil {
			logger.Warn().Int64("message_id", g.MessageID).Err(err).Msg("Failed to send start ping")
		}
	}

	if g.Flags.StartMessage != "" {
		content := fmt.Sprintf("***Message***: %s", g.Flags.StartMessage)
		if _, err := e.chat.SendMessage(ctx, g.ChannelID, content); err != nil {
			logger.Warn().Int64("message_id", g.MessageID).Err(err).Msg("Failed to send start message")
		}
	}

	if g.Flags.ThankDonor {
		content := settingsmodels.Render(settings.ThankMessage, map[string]string{
			"donor": mention(g.Flags.DonorOrHost(g.HostID)),
			"prize": g.Prize,
		})
		if _, err := e.chat.SendMessage(ctx, g.ChannelID, content); err != nil {
			logger.Warn().Int64("message_id", g.MessageID).Err(err).Msg("Failed to send thank message")
		}
	}
}

// AddEntrant checks the donor restriction and the entry rules, then adds the
// member to the entrant pool. Entering twice is a no-op reported through
// AlreadyEntered.
func (e *Engine) AddEntrant(ctx context.Context, g *models.Giveaway, m *models.Member) (EntryResult, error) {
	if g.Flags.NoDonorEntry && m.ID == g.Flags.DonorOrHost(g.HostID) {
		return EntryResult{Reason: fmt.Sprintf(
			"Your entry for [this](%s) giveaway has been removed.\n"+
				"This giveaway does not allow its donor to enter.", g.JumpURL())}, nil
	}

	rules, err := e.effectiveRules(ctx, g)
	if err != nil {
		return EntryResult{}, err
	}

	verdict, err := e.eval.Evaluate(ctx, g, rules, m)
	if err != nil {
		return EntryResult{}, err
	}
	if !verdict.Allowed {
		return EntryResult{Reason: verdict.Reason}, nil
	}

	if !g.AddEntrant(m.ID) {
		return EntryResult{Accepted: true, AlreadyEntered: true}, nil
	}
	return EntryResult{Accepted: true}, nil
}

// RemoveEntrant drops the user from the pool, reporting false for a
// non-member.
func (e *Engine) RemoveEntrant(g *models.Giveaway, userID int64) bool {
	return g.RemoveEntrant(userID)
}

// PickWinners draws the configured number of winners from pool, uniformly at
// random with replacement. Every draw is re-validated against the entry
// rules; a rejected draw still consumes one attempt, so the result may fall
// short of the requested count.
func (e *Engine) PickWinners(ctx context.Context, g *models.Giveaway, pool []int64) ([]int64, error) {
	winners := []int64{}
	if len(pool) == 0 {
		return winners, nil
	}

	rules, err := e.effectiveRules(ctx, g)
	if err != nil {
		return nil, err
	}

	for i := 0; i < g.WinnerCount; i++ {
		at, err := random.Index(len(pool))
		if err != nil {
			return nil, fmt.Errorf("failed to draw winner: %w", err)
		}
		id := pool[at]

		member, err := e.chat.GuildMember(ctx, g.GuildID, id)
		if err != nil {
			logger.Debug().
				Int64("message_id", g.MessageID).
				Int64("user_id", id).
				Err(err).
				Msg("Discarding draw of unresolvable member")
			continue
		}

		verdict, err := e.eval.Evaluate(ctx, g, rules, member)
		if err != nil {
			return nil, err
		}
		if !verdict.Allowed {
			continue
		}

		if g.Flags.NoDuplicateWinners && containsID(winners, id) {
			continue
		}

		winners = append(winners, id)
	}
	return winners, nil
}

// End closes the giveaway, selects winners and announces the result. The
// returned snapshot is terminal; the caller persists it and must not call
// End again. A vanished announcement message still ends the giveaway, with a
// system reason and no winners.
func (e *Engine) End(ctx context.Context, g *models.Giveaway, reason string) (*models.EndedGiveaway, error) {
	if !g.Started() {
		return nil, fmt.Errorf("giveaway %d: %w", g.MessageID, models.ErrNotStarted)
	}

	if err := e.chat.ResolveChannel(ctx, g.ChannelID); err != nil {
		return nil, fmt.Errorf("channel %d: %w", g.ChannelID, models.ErrChannelNotFound)
	}

	if _, err := e.chat.FetchMessage(ctx, g.ChannelID, g.MessageID); err != nil {
		logger.Warn().Int64("message_id", g.MessageID).Err(err).Msg("Giveaway message unresolvable, ending without winners")

		content := fmt.Sprintf("Can't find message with id: %d. Removing it from active giveaways.", g.MessageID)
		if _, err := e.chat.SendMessage(ctx, g.ChannelID, content); err != nil {
			logger.Warn().Int64("message_id", g.MessageID).Err(err).Msg("Failed to announce lost message")
		}

		e.deregister(ctx, g.MessageID)
		g.SetWinners(nil)
		return models.NewEnded(g, models.ReasonMessageLost), nil
	}

	settings, err := e.settings.Guild(ctx, g.GuildID)
	if err != nil {
		return nil, fmt.Errorf("failed to load guild settings: %w", err)
	}

	pool := g.Entrants()
	if err := random.Shuffle(pool); err != nil {
		return nil, fmt.Errorf("failed to shuffle entrants: %w", err)
	}

	if !g.Flags.NoMulti {
		pool, err = e.expander.Expand(ctx, g.GuildID, pool)
		if err != nil {
			return nil, fmt.Errorf("failed to expand entrant pool: %w", err)
		}
	}

	winners, err := e.PickWinners(ctx, g, pool)
	if err != nil {
		return nil, err
	}
	g.SetWinners(winners)

	winnersText := g.WinnersText()
	if g.Flags.NoDuplicateWinners && len(winners) != g.WinnerCount {
		winnersText += fmt.Sprintf(
			" Couldn't select %d winners because of too few entries and disallowed duplicate winners.",
			g.WinnerCount)
	}

	if len(winners) == 0 || g.WinnerCount == 0 {
		e.editFinalMessage(ctx, g, fmt.Sprintf(
			"This giveaway has ended.\nThere were 0 winners.\n**Host:** %s", mention(g.HostID)))
	} else {
		e.editFinalMessage(ctx, g, fmt.Sprintf(
			"This giveaway has ended.\n**Winners:** %s\n**Host:** %s", winnersText, mention(g.HostID)))
	}

	endText := settingsmodels.Render(settings.EndMessage, map[string]string{
		"winner": winnersText,
		"prize":  g.Prize,
		"link":   g.JumpURL(),
	})
	if _, err := e.chat.SendMessage(ctx, g.ChannelID, endText); err != nil {
		logger.Warn().Int64("message_id", g.MessageID).Err(err).Msg("Failed to send end announcement")
	}

	if settings.WinnerDM && len(winners) > 0 {
		e.sendWinnerDMs(ctx, g, settings, winnersText)
	}
	if settings.HostDM {
		e.sendHostDM(ctx, g, settings, winnersText)
	}

	e.deregister(ctx, g.MessageID)

	logger.Info().
		Int64("message_id", g.MessageID).
		Int64("guild_id", g.GuildID).
		Int("winners", len(winners)).
		Int("entrants", g.EntrantCount()).
		Msg("Giveaway ended")
	return models.NewEnded(g, reason), nil
}

func (e *Engine) editFinalMessage(ctx context.Context, g *models.Giveaway, content string) {
	if err := e.chat.EditMessage(ctx, g.ChannelID, g.MessageID, content); err != nil {
		logger.Warn().Int64("message_id", g.MessageID).Err(err).Msg("Failed to edit giveaway message")
	}
}

// DM failures are logged and swallowed; a closed inbox must not fail the end
// transition.
func (e *Engine) sendWinnerDMs(ctx context.Context, g *models.Giveaway, settings *settingsmodels.GuildSettings, winnersText string) {
	content := settingsmodels.Render(settings.WinnerDMMessage, map[string]string{
		"prize":          g.Prize,
		"winner":         winnersText,
		"winners_amount": strconv.Itoa(g.WinnerCount),
		"link":           g.JumpURL(),
	})

	for _, id := range distinctIDs(g.Winners()) {
		if err := e.chat.SendDM(ctx, id, content); err != nil {
			logger.Warn().Int64("user_id", id).Err(err).Msg("Failed to DM winner")
		}
	}
}

func (e *Engine) sendHostDM(ctx context.Context, g *models.Giveaway, settings *settingsmodels.GuildSettings, winnersText string) {
	content := settingsmodels.Render(settings.HostDMMessage, map[string]string{
		"prize":          g.Prize,
		"winner":         winnersText,
		"winners_amount": strconv.Itoa(g.WinnerCount),
		"link":           g.JumpURL(),
	})

	if err := e.chat.SendDM(ctx, g.HostID, content); err != nil {
		logger.Warn().Int64("user_id", g.HostID).Err(err).Msg("Failed to DM host")
	}
}

func (e *Engine) deregister(ctx context.Context, messageID int64) {
	if err := e.registry.RemoveActive(ctx, messageID); err != nil {
		logger.Warn().Int64("message_id", messageID).Err(err).Msg("Failed to deregister giveaway")
	}
}

func (e *Engine) effectiveRules(ctx context.Context, g *models.Giveaway) (*models.RuleSet, error) {
	settings, err := e.settings.Guild(ctx, g.GuildID)
	if err != nil {
		return nil, fmt.Errorf("failed to load guild settings: %w", err)
	}
	return models.EffectiveRules(g.Rules, settings.DefaultRules, g.Flags), nil
}

func mention(id int64) string {
	return fmt.Sprintf("<@%d>", id)
}

func containsID(ids []int64, id int64) bool {
	for _, have := range ids {
		if have == id {
			return true
		}
	}
	return false
}

func distinctIDs(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
