package models

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

var (
	ErrAlreadyEnded    = errors.New("giveaway has already ended")
	ErrNotStarted      = errors.New("giveaway has not started yet")
	ErrChannelNotFound = errors.New("giveaway channel could not be found")
	ErrMessageNotFound = errors.New("giveaway message could not be found")
)

const (
	DefaultPrize = "Giveaway prize"
	DefaultEmoji = "\U0001F389" // 🎉

	// DefaultEndReason is recorded when a giveaway ends normally.
	DefaultEndReason = "Giveaway ended successfully."
	// ReasonMessageLost is recorded when the published message cannot be
	// fetched at end time.
	ReasonMessageLost = "The giveaway message was either deleted or could not be read."
)

// GiveawayStatus is the lifecycle state of a giveaway.
type GiveawayStatus string

const (
	GiveawayStatusScheduled GiveawayStatus = "scheduled"
	GiveawayStatusActive    GiveawayStatus = "active"
	GiveawayStatusEnded     GiveawayStatus = "ended"
)

// ValidationError reports malformed construction input.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid giveaway: field %q %s", e.Field, e.Reason)
}

func missingField(field string) *ValidationError {
	return &ValidationError{Field: field, Reason: "not provided"}
}

// Giveaway is the state of one giveaway event, identified by the
// (message, channel, guild) id triple. The entrant set and winner list are
// only mutated through methods; while the event is live the lifecycle engine
// is their sole writer.
type Giveaway struct {
	MessageID   int64
	ChannelID   int64
	GuildID     int64
	Prize       string
	Emoji       string
	WinnerCount int
	HostID      int64
	StartsAt    time.Time
	EndsAt      time.Time
	Rules       *RuleSet
	Flags       Flags

	entrants map[int64]struct{}
	winners  []int64
}

// CreateParams carries construction input. MessageID, ChannelID, GuildID and
// EndsAt are required; everything else has a default.
type CreateParams struct {
	MessageID   int64
	ChannelID   int64
	GuildID     int64
	HostID      int64
	Prize       string
	Emoji       string
	WinnerCount int
	StartsAt    time.Time
	EndsAt      time.Time
	Rules       *RuleSet
	Flags       Flags
	Entrants    []int64
	Winners     []int64
}

// New validates params and builds a Giveaway.
func New(p CreateParams) (*Giveaway, error) {
	if p.MessageID == 0 {
		return nil, missingField("message_id")
	}
	if p.GuildID == 0 {
		return nil, missingField("guild_id")
	}
	if p.ChannelID == 0 {
		return nil, missingField("channel_id")
	}
	if p.EndsAt.IsZero() {
		return nil, missingField("ends_at")
	}

	if p.Prize == "" {
		p.Prize = DefaultPrize
	}
	if p.Emoji == "" {
		p.Emoji = DefaultEmoji
	}
	// Zero winners is valid: such a giveaway ends without a draw.
	if p.WinnerCount < 0 {
		return nil, &ValidationError{Field: "amount_of_winners", Reason: "must not be negative"}
	}
	if p.StartsAt.IsZero() {
		p.StartsAt = time.Now()
	}
	// Persisted timestamps are epoch seconds, so anything finer is dropped
	// up front to keep serialization round-trip exact.
	p.StartsAt = p.StartsAt.UTC().Truncate(time.Second)
	p.EndsAt = p.EndsAt.UTC().Truncate(time.Second)
	if !p.EndsAt.After(p.StartsAt) {
		return nil, &ValidationError{Field: "ends_at", Reason: "must be after starts_at"}
	}

	g := &Giveaway{
		MessageID:   p.MessageID,
		ChannelID:   p.ChannelID,
		GuildID:     p.GuildID,
		Prize:       p.Prize,
		Emoji:       p.Emoji,
		WinnerCount: p.WinnerCount,
		HostID:      p.HostID,
		StartsAt:    p.StartsAt,
		EndsAt:      p.EndsAt,
		Rules:       p.Rules,
		Flags:       p.Flags,
		entrants:    make(map[int64]struct{}, len(p.Entrants)),
		winners:     append([]int64{}, p.Winners...),
	}
	for _, id := range p.Entrants {
		g.entrants[id] = struct{}{}
	}
	return g, nil
}

// Started reports whether the start time has passed.
func (g *Giveaway) Started() bool {
	return !time.Now().UTC().Before(g.StartsAt)
}

// Ended reports whether the end time has passed.
func (g *Giveaway) Ended() bool {
	return !time.Now().UTC().Before(g.EndsAt)
}

// Status derives the lifecycle state from the schedule.
func (g *Giveaway) Status() GiveawayStatus {
	if g.Ended() {
		return GiveawayStatusEnded
	}
	if g.Started() {
		return GiveawayStatusActive
	}
	return GiveawayStatusScheduled
}

// Duration is the scheduled length in seconds.
func (g *Giveaway) Duration() int64 {
	return int64(g.EndsAt.Sub(g.StartsAt) / time.Second)
}

// JumpURL is the deep link to the published message.
func (g *Giveaway) JumpURL() string {
	return fmt.Sprintf("https://discord.com/channels/%d/%d/%d", g.GuildID, g.ChannelID, g.MessageID)
}

// AddEntrant adds id to the entrant set, reporting false if already present.
func (g *Giveaway) AddEntrant(id int64) bool {
	if _, ok := g.entrants[id]; ok {
		return false
	}
	g.entrants[id] = struct{}{}
	return true
}

// RemoveEntrant removes id, reporting false if it was not entered.
func (g *Giveaway) RemoveEntrant(id int64) bool {
	if _, ok := g.entrants[id]; !ok {
		return false
	}
	delete(g.entrants, id)
	return true
}

// HasEntrant reports membership in the entrant set.
func (g *Giveaway) HasEntrant(id int64) bool {
	_, ok := g.entrants[id]
	return ok
}

// Entrants returns the entrant ids, sorted for determinism.
func (g *Giveaway) Entrants() []int64 {
	out := make([]int64, 0, len(g.entrants))
	for id := range g.entrants {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// EntrantCount returns the number of distinct entrants.
func (g *Giveaway) EntrantCount() int {
	return len(g.entrants)
}

// Winners returns a copy of the ordered winner list.
func (g *Giveaway) Winners() []int64 {
	return append([]int64{}, g.winners...)
}

// SetWinners replaces the winner list.
func (g *Giveaway) SetWinners(ids []int64) {
	g.winners = append([]int64{}, ids...)
}

// WinnersText renders the winner list as mentions, deduplicated with a
// repeat count where someone won more than once.
func (g *Giveaway) WinnersText() string {
	if len(g.winners) == 0 {
		return "There were no winners."
	}

	var order []int64
	counts := make(map[int64]int)
	for _, id := range g.winners {
		if counts[id] == 0 {
			order = append(order, id)
		}
		counts[id]++
	}

	var b strings.Builder
	for i, id := range order {
		if i > 0 {
			b.WriteString(", ")
		}
		if counts[id] > 1 {
			fmt.Fprintf(&b, "<@%d> x %d", id, counts[id])
		} else {
			fmt.Fprintf(&b, "<@%d>", id)
		}
	}
	return b.String()
}

func (g *Giveaway) String() string {
	return fmt.Sprintf("<Giveaway message_id=%d prize=%q emoji=%s winners=%d ended=%t>",
		g.MessageID, g.Prize, g.Emoji, g.WinnerCount, g.Ended())
}

// EndedGiveaway is the immutable terminal snapshot of a giveaway. Only the
// winner list may change afterwards, through a reroll.
type EndedGiveaway struct {
	Giveaway
	Reason string
}

// NewEnded snapshots g into its terminal form. An empty reason records the
// default.
func NewEnded(g *Giveaway, reason string) *EndedGiveaway {
	if reason == "" {
		reason = DefaultEndReason
	}

	snap := *g
	snap.entrants = make(map[int64]struct{}, len(g.entrants))
	for id := range g.entrants {
		snap.entrants[id] = struct{}{}
	}
	snap.winners = append([]int64{}, g.winners...)
	if g.Rules != nil {
		snap.Rules = g.Rules.Clone()
	}

	return &EndedGiveaway{Giveaway: snap, Reason: reason}
}
