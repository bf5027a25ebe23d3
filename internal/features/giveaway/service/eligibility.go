package service

import (
	"context"
	"fmt"

	"giveaway-engine/internal/common/logger"
	"giveaway-engine/internal/features/giveaway/models"
)

// Verdict is the outcome of an entry check. A disallowed verdict carries a
// user-facing reason; it is a value, not an error.
type Verdict struct {
	Allowed bool
	Reason  string
}

func allow() Verdict {
	return Verdict{Allowed: true}
}

func deny(reason string) Verdict {
	return Verdict{Reason: reason}
}

// Evaluator decides whether a member may enter (or stay in) a giveaway,
// given a rule set and live signals: held roles, reputation scores and
// message-activity counters.
type Evaluator struct {
	reputation ReputationClient
	activity   ActivityCounter
}

func NewEvaluator(reputation ReputationClient, activity ActivityCounter) *Evaluator {
	return &Evaluator{reputation: reputation, activity: activity}
}

// Evaluate runs the rules in order: bypass roles short-circuit success,
// blacklisted roles short-circuit failure, then required roles and the
// numeric thresholds. An empty rule set allows everyone. Failures fetching
// the primary score propagate; failures fetching the weekly score are
// treated as a zero score.
func (e *Evaluator) Evaluate(ctx context.Context, g *models.Giveaway, rules *models.RuleSet, m *models.Member) (Verdict, error) {
	if rules.Null() {
		return allow(), nil
	}

	for _, rule := range rules.Rules() {
		switch rule.Kind {
		case models.RuleKindBypassRoles:
			if _, ok := m.HasAnyRole(rule.Roles); ok {
				// Bypass overrides every other requirement.
				return allow(), nil
			}

		case models.RuleKindBlacklistedRoles:
			if role, ok := m.HasAnyRole(rule.Roles); ok {
				return deny(fmt.Sprintf(
					"Your entry for [this](%s) giveaway has been removed.\n"+
						"You have a role that is blacklisted from this giveaway.\n"+
						"Blacklisted role: <@&%d>", g.JumpURL(), role)), nil
			}

		case models.RuleKindRequiredRoles:
			if _, ok := m.HasAnyRole(rule.Roles); !ok {
				return deny(fmt.Sprintf(
					"Your entry for [this](%s) giveaway has been removed.\n"+
						"You do not have any of the roles required to join it.\n"+
						"Required roles: %s", g.JumpURL(), mentionRoles(rule.Roles))), nil
			}

		case models.RuleKindMinScore:
			score, err := e.reputation.Score(ctx, g.GuildID, m.ID)
			if err != nil {
				return Verdict{}, fmt.Errorf("failed to fetch reputation score: %w", err)
			}
			if score.Level < rule.Threshold {
				return deny(fmt.Sprintf(
					"Your entry for [this](%s) giveaway has been removed.\n"+
						"You are level `%d` which is `%d` levels fewer than the required `%d`.",
					g.JumpURL(), score.Level, rule.Threshold-score.Level, rule.Threshold)), nil
			}

		case models.RuleKindMinWeeklyScore:
			// The weekly check is best effort: a failed lookup counts as zero.
			var weekly int64
			if score, err := e.reputation.Score(ctx, g.GuildID, m.ID); err != nil {
				logger.Debug().
					Int64("guild_id", g.GuildID).
					Int64("user_id", m.ID).
					Err(err).
					Msg("Weekly score lookup failed, treating as zero")
			} else {
				weekly = score.WeeklyExp
			}
			if weekly < rule.Threshold {
				return deny(fmt.Sprintf(
					"Your entry for [this](%s) giveaway has been removed.\n"+
						"You have `%d` weekly xp which is `%d` xp fewer than the required `%d`.",
					g.JumpURL(), weekly, rule.Threshold-weekly, rule.Threshold)), nil
			}

		case models.RuleKindMinMessages:
			count, err := e.activity.MessageCount(ctx, g.MessageID, m.ID)
			if err != nil {
				return Verdict{}, fmt.Errorf("failed to fetch message count: %w", err)
			}
			if count < rule.Threshold {
				return deny(fmt.Sprintf(
					"Your entry for [this](%s) giveaway has been removed.\n"+
						"You have sent `%d` messages since the giveaway started "+
						"which is `%d` messages fewer than the required `%d`.",
					g.JumpURL(), count, rule.Threshold-count, rule.Threshold)), nil
			}
		}
	}

	return allow(), nil
}

func mentionRoles(ids []int64) string {
	out := ""
	for i, id := range ids {
		if i > 0 {
			out += ", "
		}
		out += fmt.Sprintf("<@&%d>", id)
	}
	return out
}
