package models

import "time"

// Record is the flat persisted form of a giveaway: primitive fields only,
// ids as integers, timestamps as epoch seconds, the entrant set as a sorted
// list. Client handles are never serialized; they are injected again on
// reconstruction. A non-empty Reason marks an ended giveaway.
type Record struct {
	MessageID   int64    `json:"message_id"`
	ChannelID   int64    `json:"channel_id"`
	GuildID     int64    `json:"guild_id"`
	Prize       string   `json:"prize"`
	Emoji       string   `json:"emoji"`
	WinnerCount int      `json:"amount_of_winners"`
	HostID      int64    `json:"host"`
	Entrants    []int64  `json:"entrants"`
	Winners     []int64  `json:"winners"`
	Rules       *RuleSet `json:"requirements,omitempty"`
	Flags       Flags    `json:"flags"`
	StartsAt    int64    `json:"starts_at"`
	EndsAt      int64    `json:"ends_at"`
	Reason      string   `json:"reason,omitempty"`
}

// Ended reports whether the record snapshots a finished giveaway.
func (r *Record) Ended() bool {
	return r.Reason != ""
}

// Record serializes the giveaway.
func (g *Giveaway) Record() *Record {
	return &Record{
		MessageID:   g.MessageID,
		ChannelID:   g.ChannelID,
		GuildID:     g.GuildID,
		Prize:       g.Prize,
		Emoji:       g.Emoji,
		WinnerCount: g.WinnerCount,
		HostID:      g.HostID,
		Entrants:    g.Entrants(),
		Winners:     g.Winners(),
		Rules:       g.Rules,
		Flags:       g.Flags,
		StartsAt:    g.StartsAt.Unix(),
		EndsAt:      g.EndsAt.Unix(),
	}
}

// Record serializes the ended giveaway, including its end reason.
func (e *EndedGiveaway) Record() *Record {
	rec := e.Giveaway.Record()
	rec.Reason = e.Reason
	return rec
}

func (r *Record) createParams() CreateParams {
	return CreateParams{
		MessageID:   r.MessageID,
		ChannelID:   r.ChannelID,
		GuildID:     r.GuildID,
		HostID:      r.HostID,
		Prize:       r.Prize,
		Emoji:       r.Emoji,
		WinnerCount: r.WinnerCount,
		StartsAt:    time.Unix(r.StartsAt, 0).UTC(),
		EndsAt:      time.Unix(r.EndsAt, 0).UTC(),
		Rules:       r.Rules,
		Flags:       r.Flags,
		Entrants:    r.Entrants,
		Winners:     r.Winners,
	}
}

// FromRecord reconstructs a live giveaway, revalidating required fields.
func FromRecord(r *Record) (*Giveaway, error) {
	return New(r.createParams())
}

// EndedFromRecord reconstructs an ended giveaway.
func EndedFromRecord(r *Record) (*EndedGiveaway, error) {
	g, err := New(r.createParams())
	if err != nil {
		return nil, err
	}
	reason := r.Reason
	if reason == "" {
		reason = DefaultEndReason
	}
	return &EndedGiveaway{Giveaway: *g, Reason: reason}, nil
}
