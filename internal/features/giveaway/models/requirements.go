package models

// RuleKind enumerates the closed set of entry-rule kinds.
type RuleKind string

const (
	RuleKindBypassRoles      RuleKind = "bypass_roles"
	RuleKindBlacklistedRoles RuleKind = "blacklisted_roles"
	RuleKindRequiredRoles    RuleKind = "required_roles"
	RuleKindMinScore         RuleKind = "min_score"
	RuleKindMinWeeklyScore   RuleKind = "min_weekly_score"
	RuleKindMinMessages      RuleKind = "min_messages"
)

// Rule is a single entry rule with its typed payload. Role-based kinds carry
// Roles; threshold-based kinds carry Threshold.
type Rule struct {
	Kind      RuleKind
	Roles     []int64
	Threshold int64
}

// RuleSet describes who may enter a giveaway. The zero value (or nil) allows
// everyone.
type RuleSet struct {
	BypassRoles      []int64 `json:"bypass_roles,omitempty"`
	BlacklistedRoles []int64 `json:"blacklisted_roles,omitempty"`
	RequiredRoles    []int64 `json:"required_roles,omitempty"`
	MinScore         int64   `json:"min_score,omitempty"`
	MinWeeklyScore   int64   `json:"min_weekly_score,omitempty"`
	MinMessages      int64   `json:"min_messages,omitempty"`
}

// Null reports whether no rules are configured.
func (rs *RuleSet) Null() bool {
	if rs == nil {
		return true
	}
	return len(rs.BypassRoles) == 0 &&
		len(rs.BlacklistedRoles) == 0 &&
		len(rs.RequiredRoles) == 0 &&
		rs.MinScore == 0 &&
		rs.MinWeeklyScore == 0 &&
		rs.MinMessages == 0
}

// Rules returns the configured rules in evaluation order: bypass first, then
// blacklist, required roles, and the numeric thresholds.
func (rs *RuleSet) Rules() []Rule {
	if rs.Null() {
		return nil
	}

	var rules []Rule
	if len(rs.BypassRoles) > 0 {
		rules = append(rules, Rule{Kind: RuleKindBypassRoles, Roles: rs.BypassRoles})
	}
	if len(rs.BlacklistedRoles) > 0 {
		rules = append(rules, Rule{Kind: RuleKindBlacklistedRoles, Roles: rs.BlacklistedRoles})
	}
	if len(rs.RequiredRoles) > 0 {
		rules = append(rules, Rule{Kind: RuleKindRequiredRoles, Roles: rs.RequiredRoles})
	}
	if rs.MinScore > 0 {
		rules = append(rules, Rule{Kind: RuleKindMinScore, Threshold: rs.MinScore})
	}
	if rs.MinWeeklyScore > 0 {
		rules = append(rules, Rule{Kind: RuleKindMinWeeklyScore, Threshold: rs.MinWeeklyScore})
	}
	if rs.MinMessages > 0 {
		rules = append(rules, Rule{Kind: RuleKindMinMessages, Threshold: rs.MinMessages})
	}
	return rules
}

// Clone returns a copy; nil yields an empty set.
func (rs *RuleSet) Clone() *RuleSet {
	out := &RuleSet{}
	if rs == nil {
		return out
	}
	*out = *rs
	out.BypassRoles = append([]int64(nil), rs.BypassRoles...)
	out.BlacklistedRoles = append([]int64(nil), rs.BlacklistedRoles...)
	out.RequiredRoles = append([]int64(nil), rs.RequiredRoles...)
	return out
}

// EffectiveRules combines a giveaway's own rules with the guild defaults.
// Defaults only fill fields the giveaway left unset, and are skipped entirely
// when the suppress flag is set. A message-count override flag replaces the
// minimum message threshold last.
func EffectiveRules(own, defaults *RuleSet, f Flags) *RuleSet {
	out := own.Clone()

	if !f.SuppressDefaultRules && defaults != nil {
		if len(out.BypassRoles) == 0 {
			out.BypassRoles = append([]int64(nil), defaults.BypassRoles...)
		}
		if len(out.BlacklistedRoles) == 0 {
			out.BlacklistedRoles = append([]int64(nil), defaults.BlacklistedRoles...)
		}
		if len(out.RequiredRoles) == 0 {
			out.RequiredRoles = append([]int64(nil), defaults.RequiredRoles...)
		}
		if out.MinScore == 0 {
			out.MinScore = defaults.MinScore
		}
		if out.MinWeeklyScore == 0 {
			out.MinWeeklyScore = defaults.MinWeeklyScore
		}
		if out.MinMessages == 0 {
			out.MinMessages = defaults.MinMessages
		}
	}

	if f.MessageCountOverride > 0 {
		out.MinMessages = f.MessageCountOverride
	}

	return out
}
