package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRuleSetNull(t *testing.T) {
	var nilSet *RuleSet
	assert.True(t, nilSet.Null())
	assert.True(t, (&RuleSet{}).Null())
	assert.False(t, (&RuleSet{MinScore: 1}).Null())
	assert.Nil(t, (&RuleSet{}).Rules())
}

func TestRulesEvaluationOrder(t *testing.T) {
	rs := &RuleSet{
		BypassRoles:      []int64{1},
		BlacklistedRoles: []int64{2},
		RequiredRoles:    []int64{3},
		MinScore:         4,
		MinWeeklyScore:   5,
		MinMessages:      6,
	}

	kinds := make([]RuleKind, 0, 6)
	for _, rule := range rs.Rules() {
		kinds = append(kinds, rule.Kind)
	}

	assert.Equal(t, []RuleKind{
		RuleKindBypassRoles,
		RuleKindBlacklistedRoles,
		RuleKindRequiredRoles,
		RuleKindMinScore,
		RuleKindMinWeeklyScore,
		RuleKindMinMessages,
	}, kinds)
}

func TestCloneIsIndependent(t *testing.T) {
	rs := &RuleSet{RequiredRoles: []int64{1, 2}}
	clone := rs.Clone()

	clone.RequiredRoles[0] = 99
	clone.MinScore = 10

	assert.Equal(t, []int64{1, 2}, rs.RequiredRoles)
	assert.Zero(t, rs.MinScore)
}

func TestEffectiveRulesFillsUnsetFields(t *testing.T) {
	own := &RuleSet{MinScore: 10}
	defaults := &RuleSet{MinScore: 5, RequiredRoles: []int64{1}, MinMessages: 3}

	got := EffectiveRules(own, defaults, Flags{})

	assert.Equal(t, int64(10), got.MinScore, "own value wins")
	assert.Equal(t, []int64{1}, got.RequiredRoles)
	assert.Equal(t, int64(3), got.MinMessages)
}

func TestEffectiveRulesSuppressed(t *testing.T) {
	defaults := &RuleSet{RequiredRoles: []int64{1}, MinScore: 5}

	got := EffectiveRules(nil, defaults, Flags{SuppressDefaultRules: true})
	assert.True(t, got.Null())
}

func TestEffectiveRulesMessageCountOverride(t *testing.T) {
	own := &RuleSet{MinMessages: 10}
	defaults := &RuleSet{MinMessages: 20}

	got := EffectiveRules(own, defaults, Flags{MessageCountOverride: 7})
	assert.Equal(t, int64(7), got.MinMessages)
}

func TestDonorOrHost(t *testing.T) {
	assert.Equal(t, int64(5), Flags{}.DonorOrHost(5))
	assert.Equal(t, int64(9), Flags{DonorID: 9}.DonorOrHost(5))
}
