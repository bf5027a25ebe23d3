package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"giveaway-engine/internal/features/giveaway/models"
)

func testGiveaway(t *testing.T, mutate func(*models.CreateParams)) *models.Giveaway {
	t.Helper()
	p := models.CreateParams{
		MessageID:   100,
		ChannelID:   200,
		GuildID:     300,
		HostID:      400,
		WinnerCount: 1,
		StartsAt:    time.Now().Add(-time.Hour),
		EndsAt:      time.Now().Add(time.Hour),
	}
	if mutate != nil {
		mutate(&p)
	}
	g, err := models.New(p)
	require.NoError(t, err)
	return g
}

func newEvaluatorForTest(rep *fakeReputation, act *fakeActivity) *Evaluator {
	if rep == nil {
		rep = &fakeReputation{}
	}
	if act == nil {
		act = &fakeActivity{}
	}
	return NewEvaluator(rep, act)
}

func TestEvaluateNullRulesAllowsEveryone(t *testing.T) {
	eval := newEvaluatorForTest(nil, nil)
	g := testGiveaway(t, nil)

	verdict, err := eval.Evaluate(context.Background(), g, nil, &models.Member{ID: 1})
	require.NoError(t, err)
	assert.True(t, verdict.Allowed)
}

func TestEvaluateBypassOverridesEverything(t *testing.T) {
	eval := newEvaluatorForTest(&fakeReputation{err: errors.New("down")}, nil)
	g := testGiveaway(t, nil)
	rules := &models.RuleSet{
		BypassRoles:      []int64{10},
		BlacklistedRoles: []int64{20},
		MinScore:         50,
	}
	member := &models.Member{ID: 1, RoleIDs: []int64{10, 20}}

	verdict, err := eval.Evaluate(context.Background(), g, rules, member)
	require.NoError(t, err)
	assert.True(t, verdict.Allowed)
}

func TestEvaluateBlacklistedRole(t *testing.T) {
	eval := newEvaluatorForTest(nil, nil)
	g := testGiveaway(t, nil)
	rules := &models.RuleSet{BlacklistedRoles: []int64{20}}
	member := &models.Member{ID: 1, RoleIDs: []int64{20}}

	verdict, err := eval.Evaluate(context.Background(), g, rules, member)
	require.NoError(t, err)
	assert.False(t, verdict.Allowed)
	assert.Contains(t, verdict.Reason, "blacklisted")
	assert.Contains(t, verdict.Reason, "<@&20>")
}

func TestEvaluateRequiredRolesAnyOf(t *testing.T) {
	eval := newEvaluatorForTest(nil, nil)
	g := testGiveaway(t, nil)
	rules := &models.RuleSet{RequiredRoles: []int64{30, 31}}

	verdict, err := eval.Evaluate(context.Background(), g, rules, &models.Member{ID: 1, RoleIDs: []int64{31}})
	require.NoError(t, err)
	assert.True(t, verdict.Allowed, "holding any required role is enough")

	verdict, err = eval.Evaluate(context.Background(), g, rules, &models.Member{ID: 2})
	require.NoError(t, err)
	assert.False(t, verdict.Allowed)
	assert.Contains(t, verdict.Reason, "<@&30>, <@&31>")
}

func TestEvaluateMinScore(t *testing.T) {
	rep := &fakeReputation{scores: map[int64]*models.Score{
		1: {Level: 3},
		2: {Level: 10},
	}}
	eval := newEvaluatorForTest(rep, nil)
	g := testGiveaway(t, nil)
	rules := &models.RuleSet{MinScore: 5}

	verdict, err := eval.Evaluate(context.Background(), g, rules, &models.Member{ID: 1})
	require.NoError(t, err)
	assert.False(t, verdict.Allowed)
	assert.Contains(t, verdict.Reason, "level `3`")
	assert.Contains(t, verdict.Reason, "`2` levels fewer")

	verdict, err = eval.Evaluate(context.Background(), g, rules, &models.Member{ID: 2})
	require.NoError(t, err)
	assert.True(t, verdict.Allowed)
}

func TestEvaluateMinScoreLookupFailurePropagates(t *testing.T) {
	eval := newEvaluatorForTest(&fakeReputation{err: errors.New("api down")}, nil)
	g := testGiveaway(t, nil)

	_, err := eval.Evaluate(context.Background(), g,
		&models.RuleSet{MinScore: 5}, &models.Member{ID: 1})
	require.Error(t, err)
}

func TestEvaluateWeeklyScoreLookupFailureCountsAsZero(t *testing.T) {
	eval := newEvaluatorForTest(&fakeReputation{err: errors.New("api down")}, nil)
	g := testGiveaway(t, nil)

	verdict, err := eval.Evaluate(context.Background(), g,
		&models.RuleSet{MinWeeklyScore: 5}, &models.Member{ID: 1})
	require.NoError(t, err)
	assert.False(t, verdict.Allowed)
	assert.Contains(t, verdict.Reason, "`0` weekly xp")
}

func TestEvaluateMinMessages(t *testing.T) {
	act := &fakeActivity{counts: map[int64]int64{1: 2, 2: 9}}
	eval := newEvaluatorForTest(nil, act)
	g := testGiveaway(t, nil)
	rules := &models.RuleSet{MinMessages: 5}

	verdict, err := eval.Evaluate(context.Background(), g, rules, &models.Member{ID: 1})
	require.NoError(t, err)
	assert.False(t, verdict.Allowed)

	verdict, err = eval.Evaluate(context.Background(), g, rules, &models.Member{ID: 2})
	require.NoError(t, err)
	assert.True(t, verdict.Allowed)
}

func TestEvaluateMinMessagesCounterFailurePropagates(t *testing.T) {
	eval := newEvaluatorForTest(nil, &fakeActivity{err: errors.New("redis down")})
	g := testGiveaway(t, nil)

	_, err := eval.Evaluate(context.Background(), g,
		&models.RuleSet{MinMessages: 5}, &models.Member{ID: 1})
	require.Error(t, err)
}
